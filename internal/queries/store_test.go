package queries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapscraper-desktop/internal/api"
)

func seeded() *Store {
	s := NewStore()
	s.ReplaceSaved([]api.SavedQuery{
		{ID: "1", Query: "coffee shops"},
		{ID: "2", Query: "bakeries"},
		{ID: "3", Query: "gyms"},
	})
	return s
}

func TestToggleTwiceRestoresSelection(t *testing.T) {
	s := seeded()
	s.Toggle("gyms")
	before := s.Selected()

	assert.True(t, s.Toggle("bakeries"))
	assert.True(t, s.IsSelected("bakeries"))
	assert.True(t, s.Toggle("bakeries"))

	assert.Equal(t, before, s.Selected())
}

func TestToggleKeepsSelectionOrder(t *testing.T) {
	s := seeded()
	s.Toggle("gyms")
	s.Toggle("coffee shops")
	s.Toggle("bakeries")

	assert.Equal(t, []string{"gyms", "coffee shops", "bakeries"}, s.Selected())
}

func TestToggleUnknownTextIgnored(t *testing.T) {
	s := seeded()
	assert.False(t, s.Toggle("nope"))
	assert.Empty(t, s.Selected())
}

func TestForgetRemovesEntryAndSelection(t *testing.T) {
	s := seeded()
	s.Toggle("bakeries")
	s.Toggle("gyms")

	s.Forget("2")

	state := s.Snapshot()
	assert.Len(t, state.Saved, 2)
	for _, q := range state.Saved {
		assert.NotEqual(t, "bakeries", q.Query)
	}
	assert.Equal(t, []string{"gyms"}, state.Selected)
}

func TestForgetUnknownIDIsNoop(t *testing.T) {
	s := seeded()
	s.Toggle("gyms")
	calls := 0
	s.OnChange(func(State) { calls++ })

	s.Forget("99")

	assert.Len(t, s.Saved(), 3)
	assert.Equal(t, []string{"gyms"}, s.Selected())
	assert.Equal(t, 0, calls)
}

func TestReplaceSavedPrunesSelection(t *testing.T) {
	s := seeded()
	s.Toggle("coffee shops")
	s.Toggle("gyms")

	s.ReplaceSaved([]api.SavedQuery{
		{ID: "1", Query: "coffee shops"},
		{ID: "4", Query: "florists"},
	})

	assert.Equal(t, []string{"coffee shops"}, s.Selected())
	assert.False(t, s.IsSelected("gyms"))
}

func TestDeselectAndClear(t *testing.T) {
	s := seeded()
	s.Toggle("coffee shops")
	s.Toggle("bakeries")
	s.Toggle("gyms")

	s.Deselect("bakeries", "not-there")
	assert.Equal(t, []string{"coffee shops", "gyms"}, s.Selected())

	s.ClearSelection()
	assert.Empty(t, s.Selected())
}

func TestOnChangeReceivesFullState(t *testing.T) {
	s := seeded()
	var last State
	s.OnChange(func(st State) { last = st })

	s.Toggle("gyms")

	require.Len(t, last.Saved, 3)
	assert.Equal(t, []string{"gyms"}, last.Selected)
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	s := seeded()
	s.Toggle("gyms")

	sel := s.Selected()
	sel[0] = "mutated"
	saved := s.Saved()
	saved[0].Query = "mutated"

	assert.Equal(t, []string{"gyms"}, s.Selected())
	assert.Equal(t, "coffee shops", s.Saved()[0].Query)
}
