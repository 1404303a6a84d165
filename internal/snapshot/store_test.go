package snapshot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyWhileLive(t *testing.T) {
	s := New([]int{})
	gen := s.Attach()

	assert.True(t, s.Apply(gen, []int{1, 2}))
	assert.Equal(t, []int{1, 2}, s.Get())

	assert.True(t, s.Apply(gen, []int{3}))
	assert.Equal(t, []int{3}, s.Get(), "full replace, never merged")
}

func TestApplyAfterDetachIsDiscarded(t *testing.T) {
	s := New("initial")
	gen := s.Attach()
	s.Apply(gen, "first")

	s.Detach(gen)

	assert.False(t, s.Apply(gen, "late"))
	assert.Equal(t, "first", s.Get())
}

func TestReattachInvalidatesOldGeneration(t *testing.T) {
	s := New(0)
	old := s.Attach()
	s.Detach(old)
	current := s.Attach()

	assert.False(t, s.Apply(old, 1))
	assert.True(t, s.Apply(current, 2))
	assert.Equal(t, 2, s.Get())

	// detaching a stale generation leaves the live one alone
	s.Detach(old)
	assert.True(t, s.Live(current))
}

func TestApplyBeforeAttachIsDiscarded(t *testing.T) {
	s := New(5)
	assert.False(t, s.Apply(0, 9))
	assert.Equal(t, 5, s.Get())
}

func TestOnChangeOnlyForAcceptedApply(t *testing.T) {
	s := New(0)
	var seen []int
	s.OnChange(func(v int) { seen = append(seen, v) })

	gen := s.Attach()
	s.Apply(gen, 1)
	s.Detach(gen)
	s.Apply(gen, 2)

	assert.Equal(t, []int{1}, seen)
}

// A slow response issued first but resolved last overwrites a newer one
// within the same generation. Ordering by issue time is not enforced.
func TestLastResolvedWinsWithinGeneration(t *testing.T) {
	s := New("")
	gen := s.Attach()

	slowIssued := make(chan struct{})
	fastDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		close(slowIssued)
		<-fastDone
		s.Apply(gen, "tick-1 (slow)")
	}()
	go func() {
		defer wg.Done()
		<-slowIssued
		s.Apply(gen, "tick-2 (fast)")
		close(fastDone)
	}()
	wg.Wait()

	assert.Equal(t, "tick-1 (slow)", s.Get())
}
