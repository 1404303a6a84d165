package configsync

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mapscraper-desktop/internal/api"
	"mapscraper-desktop/internal/queries"
	"mapscraper-desktop/internal/snapshot"
)

// DefaultSelectorCheckDelay is the minimum time a selector check appears to take
const DefaultSelectorCheckDelay = time.Second

var (
	ErrDefaultProfileLocked = errors.New("the default profile cannot be deleted or re-defaulted")
	ErrUnknownProfile       = errors.New("profile not found")
	ErrUnknownField         = errors.New("unknown profile field")
	ErrNoDraft              = errors.New("no profile is being edited")
	ErrEmptyProfileName     = errors.New("profile name is required")
	ErrInvalidPerformance   = errors.New("invalid performance settings")
)

// Service is the part of the scraping service the synchronizer talks to
type Service interface {
	ListQueries(ctx context.Context) ([]api.SavedQuery, error)
	AddQuery(ctx context.Context, query string) error
	UpdateQuery(ctx context.Context, id, query string) error
	RemoveQuery(ctx context.Context, id string) error

	ListProfiles(ctx context.Context) ([]api.Profile, error)
	CreateProfile(ctx context.Context, req api.ProfileRequest) error
	UpdateProfile(ctx context.Context, id string, req api.ProfileRequest) error
	SetDefaultProfile(ctx context.Context, id string) error
	DeleteProfile(ctx context.Context, id string) error

	GetPerformance(ctx context.Context) (*api.PerformanceConfig, error)
	UpdatePerformance(ctx context.Context, cfg api.PerformanceConfig) error
	GetSelectors(ctx context.Context) (*api.Selectors, error)
	UpdateSelectors(ctx context.Context, sel *api.Selectors) error

	SystemCheck(ctx context.Context) (*api.SystemCheck, error)
	SystemSetup(ctx context.Context, req api.SetupRequest) error
	SystemStatus(ctx context.Context) (*api.SystemStatus, error)
	SystemHealth(ctx context.Context) (*api.SystemHealth, error)
}

// Snapshot is the server-held configuration as last loaded
type Snapshot struct {
	Profiles    []api.Profile         `json:"profiles"`
	Performance api.PerformanceConfig `json:"performance"`
	Selectors   *api.Selectors        `json:"selectors"`
	Draft       *api.Profile          `json:"draft,omitempty"`
}

// Synchronizer keeps local copies of the service's configuration.
// Every write is followed by a reload; local copies are replaced whole.
type Synchronizer struct {
	svc           Service
	queries       *queries.Store
	health        *snapshot.Store[*api.SystemHealth]
	selectorDelay time.Duration

	mu          sync.Mutex
	profiles    []api.Profile
	draft       *api.Profile
	performance api.PerformanceConfig
	selectors   *api.Selectors
	onChange    func(Snapshot)
}

// New creates a synchronizer that loads saved queries into qs
func New(svc Service, qs *queries.Store) *Synchronizer {
	return &Synchronizer{
		svc:           svc,
		queries:       qs,
		health:        snapshot.New[*api.SystemHealth](nil),
		selectorDelay: DefaultSelectorCheckDelay,
		performance:   api.DefaultPerformance(),
		selectors:     api.NewSelectors(),
	}
}

// SetSelectorCheckDelay overrides the minimum selector check duration
func (s *Synchronizer) SetSelectorCheckDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectorDelay = d
}

// OnChange registers a callback invoked whenever profiles, performance,
// selectors or the draft change
func (s *Synchronizer) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Snapshot returns a copy of the loaded configuration
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	snap := Snapshot{
		Profiles:    cloneProfiles(s.profiles),
		Performance: s.performance,
		Selectors:   s.selectors.Clone(),
	}
	if s.draft != nil {
		d := s.draft.Clone()
		snap.Draft = &d
	}
	return snap
}

// notifyLocked releases the lock before calling out
func (s *Synchronizer) notifyLocked() {
	snap, cb := s.snapshotLocked(), s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(snap)
	}
}

// LoadAll loads saved queries, profiles, performance and selectors
// concurrently. Each part that loads is applied even if another fails.
func (s *Synchronizer) LoadAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.LoadQueries(ctx) })
	g.Go(func() error { return s.LoadProfiles(ctx) })
	g.Go(func() error { return s.LoadPerformance(ctx) })
	g.Go(func() error { return s.LoadSelectors(ctx) })

	if err := g.Wait(); err != nil {
		log.Printf("[ConfigSync] Settings load incomplete: %v", err)
		return err
	}
	return nil
}

func cloneProfiles(list []api.Profile) []api.Profile {
	out := make([]api.Profile, len(list))
	for i, p := range list {
		out[i] = p.Clone()
	}
	return out
}
