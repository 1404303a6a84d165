package configsync

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// LoadQueries replaces the saved query set with the service's list
func (s *Synchronizer) LoadQueries(ctx context.Context) error {
	list, err := s.svc.ListQueries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load saved queries: %w", err)
	}
	s.queries.ReplaceSaved(list)
	return nil
}

// AddQuery saves a new search term. Blank input is ignored without a request.
func (s *Synchronizer) AddQuery(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := s.svc.AddQuery(ctx, text); err != nil {
		return fmt.Errorf("failed to save query: %w", err)
	}
	log.Printf("[ConfigSync] Saved query %q", text)
	return s.LoadQueries(ctx)
}

// UpdateQuery changes the text of a saved term. Blank input is ignored.
func (s *Synchronizer) UpdateQuery(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := s.svc.UpdateQuery(ctx, id, text); err != nil {
		return fmt.Errorf("failed to update query %s: %w", id, err)
	}
	return s.LoadQueries(ctx)
}

// RemoveQuery deletes a saved term; its selection goes with it
func (s *Synchronizer) RemoveQuery(ctx context.Context, id string) error {
	if err := s.svc.RemoveQuery(ctx, id); err != nil {
		return fmt.Errorf("failed to delete query %s: %w", id, err)
	}
	s.queries.Forget(id)
	return s.LoadQueries(ctx)
}
