package configsync

import (
	"context"
	"fmt"
	"time"

	"mapscraper-desktop/internal/api"
)

// LoadPerformance replaces the pacing settings with the service's
func (s *Synchronizer) LoadPerformance(ctx context.Context) error {
	cfg, err := s.svc.GetPerformance(ctx)
	if err != nil {
		return fmt.Errorf("failed to load performance settings: %w", err)
	}

	s.mu.Lock()
	s.performance = *cfg
	s.notifyLocked()
	return nil
}

// Performance returns the loaded pacing settings
func (s *Synchronizer) Performance() api.PerformanceConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.performance
}

// UpdatePerformance validates and writes the pacing settings, then reloads.
// Out-of-range values are rejected before any request.
func (s *Synchronizer) UpdatePerformance(ctx context.Context, cfg api.PerformanceConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPerformance, err)
	}
	if err := s.svc.UpdatePerformance(ctx, cfg); err != nil {
		return fmt.Errorf("failed to save performance settings: %w", err)
	}
	return s.LoadPerformance(ctx)
}

// LoadSelectors replaces the selector definitions with the service's
func (s *Synchronizer) LoadSelectors(ctx context.Context) error {
	sel, err := s.svc.GetSelectors(ctx)
	if err != nil {
		return fmt.Errorf("failed to load selectors: %w", err)
	}

	s.mu.Lock()
	s.selectors = sel.Clone()
	s.notifyLocked()
	return nil
}

// Selectors returns a copy of the selector definitions
func (s *Synchronizer) Selectors() *api.Selectors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectors.Clone()
}

// UpdateSelectors writes the selector definitions as given, then reloads
func (s *Synchronizer) UpdateSelectors(ctx context.Context, sel *api.Selectors) error {
	if err := s.svc.UpdateSelectors(ctx, sel); err != nil {
		return fmt.Errorf("failed to save selectors: %w", err)
	}
	return s.LoadSelectors(ctx)
}

// CheckSelectorUpdates reloads the selectors, taking at least the configured
// selector check delay so the check is visible to the operator
func (s *Synchronizer) CheckSelectorUpdates(ctx context.Context) error {
	s.mu.Lock()
	delay := s.selectorDelay
	s.mu.Unlock()

	started := time.Now()
	err := s.LoadSelectors(ctx)

	if remaining := delay - time.Since(started); remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
	}
	return err
}
