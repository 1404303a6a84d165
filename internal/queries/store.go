package queries

import (
	"sync"

	"mapscraper-desktop/internal/api"
)

// State is the saved query set together with the current selection
type State struct {
	Saved    []api.SavedQuery `json:"saved"`
	Selected []string         `json:"selected"`
}

// Store holds the saved search terms and which of them are selected for the
// next job. Selection is keyed by query text and keeps toggle order, since the
// service processes keywords in the order they are submitted.
type Store struct {
	mu       sync.Mutex
	saved    []api.SavedQuery
	selected []string
	onChange func(State)
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{}
}

// OnChange registers a callback invoked with the full state after every mutation
func (s *Store) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// ReplaceSaved swaps in a freshly loaded saved set. Selections whose text no
// longer exists are dropped in the same step.
func (s *Store) ReplaceSaved(list []api.SavedQuery) {
	s.mu.Lock()
	s.saved = append([]api.SavedQuery(nil), list...)

	kept := s.selected[:0:0]
	for _, text := range s.selected {
		if s.hasTextLocked(text) {
			kept = append(kept, text)
		}
	}
	s.selected = kept
	s.notifyLocked()
}

// Toggle flips the selection of a saved query text and reports whether the
// text is a saved query. Unknown texts are ignored.
func (s *Store) Toggle(text string) bool {
	s.mu.Lock()
	if !s.hasTextLocked(text) {
		s.mu.Unlock()
		return false
	}

	if i := indexOf(s.selected, text); i >= 0 {
		s.selected = append(s.selected[:i:i], s.selected[i+1:]...)
	} else {
		s.selected = append(s.selected, text)
	}
	s.notifyLocked()
	return true
}

// Forget removes a saved entry and its selection together
func (s *Store) Forget(id string) {
	s.mu.Lock()
	removed := ""
	found := false
	kept := s.saved[:0:0]
	for _, q := range s.saved {
		if q.ID == id && !found {
			removed, found = q.Query, true
			continue
		}
		kept = append(kept, q)
	}
	if !found {
		s.mu.Unlock()
		return
	}
	s.saved = kept
	if !s.hasTextLocked(removed) {
		s.selected = without(s.selected, removed)
	}
	s.notifyLocked()
}

// Deselect removes the given texts from the selection
func (s *Store) Deselect(texts ...string) {
	s.mu.Lock()
	for _, t := range texts {
		s.selected = without(s.selected, t)
	}
	s.notifyLocked()
}

// ClearSelection empties the selection
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = nil
	s.notifyLocked()
}

// Selected returns the selected texts in selection order
func (s *Store) Selected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.selected...)
}

// IsSelected reports whether text is part of the selection
func (s *Store) IsSelected(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.selected, text) >= 0
}

// Saved returns a copy of the saved query set
func (s *Store) Saved() []api.SavedQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.SavedQuery{}, s.saved...)
}

// Snapshot returns saved set and selection read under one lock
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	return State{
		Saved:    append([]api.SavedQuery{}, s.saved...),
		Selected: append([]string{}, s.selected...),
	}
}

// notifyLocked releases the lock before calling out
func (s *Store) notifyLocked() {
	state, cb := s.stateLocked(), s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(state)
	}
}

func (s *Store) hasTextLocked(text string) bool {
	for _, q := range s.saved {
		if q.Query == text {
			return true
		}
	}
	return false
}

func indexOf(list []string, text string) int {
	for i, v := range list {
		if v == text {
			return i
		}
	}
	return -1
}

func without(list []string, text string) []string {
	i := indexOf(list, text)
	if i < 0 {
		return list
	}
	out := make([]string, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}
