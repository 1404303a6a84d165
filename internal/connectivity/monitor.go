package connectivity

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"mapscraper-desktop/internal/api"
)

// Request sources tracked by the monitor
const (
	SourceJobs   = "jobs"
	SourceHealth = "health"
)

// Event describes a change in reachability of the service for one source
type Event struct {
	Timestamp time.Time `json:"timestamp" ts_type:"string"`
	Source    string    `json:"source"`
	Failures  int       `json:"failures"` // consecutive failures so far
	Message   string    `json:"message"`  // user-friendly message
}

// State is the current standing of one source
type State struct {
	Source      string    `json:"source"`
	Reachable   bool      `json:"reachable"`
	Failures    int       `json:"failures"`
	LastError   string    `json:"lastError,omitempty"`
	LastSuccess time.Time `json:"lastSuccess" ts_type:"string"`
}

// Monitor tracks poll outcomes per source. Polls are never retried or backed
// off; the monitor only turns failure streaks into offline/recovered notices
// while the last good snapshot stays on screen.
type Monitor struct {
	mu            sync.RWMutex
	sources       map[string]*State
	onUnreachable func(event Event)
	onRecovered   func(event Event)
	now           func() time.Time
}

// NewMonitor creates a monitor where every source starts out reachable
func NewMonitor() *Monitor {
	return &Monitor{
		sources: make(map[string]*State),
		now:     time.Now,
	}
}

// SetOnUnreachable sets the callback for the first failure of a streak
func (m *Monitor) SetOnUnreachable(callback func(event Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUnreachable = callback
}

// SetOnRecovered sets the callback for the first success after a streak
func (m *Monitor) SetOnRecovered(callback func(event Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRecovered = callback
}

// Record feeds the outcome of one request. A nil err counts as success.
func (m *Monitor) Record(source string, err error) {
	if err == nil {
		m.recordSuccess(source)
		return
	}
	m.recordFailure(source, err)
}

func (m *Monitor) recordFailure(source string, err error) {
	m.mu.Lock()
	st := m.stateLocked(source)
	st.Failures++
	st.LastError = err.Error()

	first := st.Reachable
	st.Reachable = false

	event := Event{
		Timestamp: m.now(),
		Source:    source,
		Failures:  st.Failures,
		Message:   buildMessage(source, err),
	}
	cb := m.onUnreachable
	m.mu.Unlock()

	if !first {
		return
	}
	log.Printf("[Connectivity] %s requests failing: %v", source, err)
	if cb != nil {
		cb(event)
	}
}

func (m *Monitor) recordSuccess(source string) {
	m.mu.Lock()
	st := m.stateLocked(source)
	wasDown := !st.Reachable
	failures := st.Failures

	st.Reachable = true
	st.Failures = 0
	st.LastError = ""
	st.LastSuccess = m.now()

	event := Event{
		Timestamp: st.LastSuccess,
		Source:    source,
		Failures:  failures,
		Message:   "Connection to the scraping service restored.",
	}
	cb := m.onRecovered
	m.mu.Unlock()

	if !wasDown {
		return
	}
	log.Printf("[Connectivity] %s recovered after %d failed requests", source, failures)
	if cb != nil {
		cb(event)
	}
}

// IsReachable reports whether the last request for source succeeded
func (m *Monitor) IsReachable(source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sources[source]
	return !ok || st.Reachable
}

// CurrentState returns a copy of the state for source
func (m *Monitor) CurrentState(source string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.sources[source]; ok {
		return *st
	}
	return State{Source: source, Reachable: true}
}

// Reset forgets the streak for source without emitting anything
func (m *Monitor) Reset(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, source)
}

func (m *Monitor) stateLocked(source string) *State {
	st, ok := m.sources[source]
	if !ok {
		st = &State{Source: source, Reachable: true}
		m.sources[source] = st
	}
	return st
}

// buildMessage creates a user-friendly message
func buildMessage(source string, err error) string {
	what := "Job updates"
	if source == SourceHealth {
		what = "System health"
	}

	switch {
	case errors.Is(err, api.ErrTimeout):
		return fmt.Sprintf("%s paused: the scraping service is not responding. Showing the last known data.", what)
	case errors.Is(err, api.ErrUnreachable):
		return fmt.Sprintf("%s paused: cannot reach the scraping service. Showing the last known data.", what)
	case errors.Is(err, api.ErrStatus):
		return fmt.Sprintf("%s paused: the scraping service returned an error. Showing the last known data.", what)
	default:
		return fmt.Sprintf("%s paused: %v", what, err)
	}
}
