package configsync

import (
	"context"
	"fmt"
	"log"
	"strings"

	"mapscraper-desktop/internal/api"
)

// ProfileActions lists what the settings view may offer for a profile
type ProfileActions struct {
	CanEdit       bool `json:"canEdit"`
	CanDelete     bool `json:"canDelete"`
	CanSetDefault bool `json:"canSetDefault"`
}

// LoadProfiles replaces the profile list with the service's
func (s *Synchronizer) LoadProfiles(ctx context.Context) error {
	list, err := s.svc.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	s.mu.Lock()
	s.profiles = cloneProfiles(list)
	s.notifyLocked()
	return nil
}

// Profiles returns a copy of the loaded profiles
func (s *Synchronizer) Profiles() []api.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProfiles(s.profiles)
}

// DefaultProfile returns the profile flagged as default, if any
func (s *Synchronizer) DefaultProfile() (api.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.IsDefault {
			return p.Clone(), true
		}
	}
	return api.Profile{}, false
}

// Actions reports which actions apply to profile id. The default profile can
// be edited but neither deleted nor set as default again.
func (s *Synchronizer) Actions(id string) ProfileActions {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findLocked(id)
	if !ok {
		return ProfileActions{}
	}
	return ProfileActions{
		CanEdit:       true,
		CanDelete:     !p.IsDefault,
		CanSetDefault: !p.IsDefault,
	}
}

// DeleteProfile removes a non-default profile and reloads the list
func (s *Synchronizer) DeleteProfile(ctx context.Context, id string) error {
	if err := s.checkMutable(id); err != nil {
		return err
	}
	if err := s.svc.DeleteProfile(ctx, id); err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", id, err)
	}
	log.Printf("[ConfigSync] Deleted profile %s", id)
	return s.LoadProfiles(ctx)
}

// SetDefaultProfile makes a non-default profile the default and reloads
func (s *Synchronizer) SetDefaultProfile(ctx context.Context, id string) error {
	if err := s.checkMutable(id); err != nil {
		return err
	}
	if err := s.svc.SetDefaultProfile(ctx, id); err != nil {
		return fmt.Errorf("failed to set default profile %s: %w", id, err)
	}
	log.Printf("[ConfigSync] Default profile is now %s", id)
	return s.LoadProfiles(ctx)
}

func (s *Synchronizer) checkMutable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.findLocked(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProfile, id)
	}
	if p.IsDefault {
		return ErrDefaultProfileLocked
	}
	return nil
}

func (s *Synchronizer) findLocked(id string) (api.Profile, bool) {
	for _, p := range s.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return api.Profile{}, false
}

// ===================
// Drafts
// ===================

// NewDraft starts editing a profile that does not exist yet
func (s *Synchronizer) NewDraft() api.Profile {
	s.mu.Lock()
	draft := api.Profile{
		ID:     api.NewProfileID,
		Name:   "My New Profile",
		Fields: []string{"name", "address"},
	}
	s.draft = &draft
	out := draft.Clone()
	s.notifyLocked()
	return out
}

// EditDraft starts editing a copy of an existing profile
func (s *Synchronizer) EditDraft(id string) (api.Profile, error) {
	s.mu.Lock()
	p, ok := s.findLocked(id)
	if !ok {
		s.mu.Unlock()
		return api.Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, id)
	}
	draft := p.Clone()
	s.draft = &draft
	out := draft.Clone()
	s.notifyLocked()
	return out, nil
}

// Draft returns the profile being edited, if any
func (s *Synchronizer) Draft() (api.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return api.Profile{}, false
	}
	return s.draft.Clone(), true
}

// RenameDraft sets the draft's name
func (s *Synchronizer) RenameDraft(name string) error {
	s.mu.Lock()
	if s.draft == nil {
		s.mu.Unlock()
		return ErrNoDraft
	}
	s.draft.Name = name
	s.notifyLocked()
	return nil
}

// ToggleDraftField adds or removes an output field on the draft
func (s *Synchronizer) ToggleDraftField(field string) error {
	if !api.IsProfileField(field) {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	s.mu.Lock()
	if s.draft == nil {
		s.mu.Unlock()
		return ErrNoDraft
	}
	fields := make([]string, 0, len(s.draft.Fields)+1)
	found := false
	for _, f := range s.draft.Fields {
		if f == field {
			found = true
			continue
		}
		fields = append(fields, f)
	}
	if !found {
		fields = append(fields, field)
	}
	s.draft.Fields = fields
	s.notifyLocked()
	return nil
}

// CancelDraft drops the draft without saving
func (s *Synchronizer) CancelDraft() {
	s.mu.Lock()
	s.draft = nil
	s.notifyLocked()
}

// SaveDraft creates the draft when its id is not among the loaded profiles
// and updates it otherwise, then reloads. A failed save keeps the draft.
func (s *Synchronizer) SaveDraft(ctx context.Context) error {
	s.mu.Lock()
	if s.draft == nil {
		s.mu.Unlock()
		return ErrNoDraft
	}
	draft := s.draft.Clone()
	_, exists := s.findLocked(draft.ID)
	s.mu.Unlock()

	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return ErrEmptyProfileName
	}
	req := api.ProfileRequest{Name: name, Fields: draft.Fields}
	if req.Fields == nil {
		req.Fields = []string{}
	}

	var err error
	if exists {
		err = s.svc.UpdateProfile(ctx, draft.ID, req)
	} else {
		err = s.svc.CreateProfile(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	log.Printf("[ConfigSync] Saved profile %q (update=%v)", name, exists)

	s.mu.Lock()
	s.draft = nil
	s.notifyLocked()

	return s.LoadProfiles(ctx)
}
