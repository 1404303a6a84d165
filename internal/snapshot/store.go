package snapshot

import (
	"errors"
	"sync"
)

// ErrDetached reports a result dropped because its view generation is no
// longer live
var ErrDetached = errors.New("view detached")

// Store holds a server-owned value that is only ever replaced whole.
//
// A view that owns the value attaches to get a generation and detaches when
// it goes away. Apply writes only while its generation is the live one, so a
// response that resolves after the view was torn down cannot touch state.
type Store[T any] struct {
	mu       sync.Mutex
	value    T
	gen      uint64
	live     bool
	onChange func(T)
}

// New returns a store seeded with initial
func New[T any](initial T) *Store[T] {
	return &Store[T]{value: initial}
}

// OnChange registers a callback invoked after every accepted Apply
func (s *Store[T]) OnChange(fn func(T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Attach starts a new generation and returns it. Any previous generation
// stops being live.
func (s *Store[T]) Attach() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.live = true
	return s.gen
}

// Detach ends gen if it is still the live generation
func (s *Store[T]) Detach(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live && s.gen == gen {
		s.live = false
	}
}

// Live reports whether gen is the current attached generation
func (s *Store[T]) Live(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live && s.gen == gen
}

// Apply replaces the value when gen is live and reports whether it did.
// Among applies of the same generation the last one to arrive wins.
func (s *Store[T]) Apply(gen uint64, v T) bool {
	s.mu.Lock()
	if !s.live || s.gen != gen {
		s.mu.Unlock()
		return false
	}
	s.value = v
	cb := s.onChange
	s.mu.Unlock()

	if cb != nil {
		cb(v)
	}
	return true
}

// Get returns the current value
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}
