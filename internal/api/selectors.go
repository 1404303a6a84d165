package api

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Selectors is the service's selector definition map. Keys keep the order the
// service sent them in and values are carried as raw JSON, never interpreted.
type Selectors struct {
	m *orderedmap.OrderedMap[string, json.RawMessage]
}

// NewSelectors returns an empty selector map
func NewSelectors() *Selectors {
	return &Selectors{m: orderedmap.New[string, json.RawMessage]()}
}

// Set stores a raw JSON value under key, keeping the key's original position
// if it already exists
func (s *Selectors) Set(key string, value json.RawMessage) {
	s.ensure()
	s.m.Set(key, value)
}

// Get returns the raw value stored under key
func (s *Selectors) Get(key string) (json.RawMessage, bool) {
	if s == nil || s.m == nil {
		return nil, false
	}
	return s.m.Get(key)
}

// Keys returns the selector names in order
func (s *Selectors) Keys() []string {
	if s == nil || s.m == nil {
		return nil
	}
	keys := make([]string, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of selector entries
func (s *Selectors) Len() int {
	if s == nil || s.m == nil {
		return 0
	}
	return s.m.Len()
}

// Clone returns an independent copy
func (s *Selectors) Clone() *Selectors {
	out := NewSelectors()
	if s == nil || s.m == nil {
		return out
	}
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		out.m.Set(pair.Key, append(json.RawMessage(nil), pair.Value...))
	}
	return out
}

func (s *Selectors) ensure() {
	if s.m == nil {
		s.m = orderedmap.New[string, json.RawMessage]()
	}
}

// MarshalJSON writes the map in its original key order
func (s *Selectors) MarshalJSON() ([]byte, error) {
	if s == nil || s.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.m)
}

// UnmarshalJSON reads a JSON object, keeping key order
func (s *Selectors) UnmarshalJSON(data []byte) error {
	m := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("selectors must be a JSON object: %w", err)
	}
	s.m = m
	return nil
}
