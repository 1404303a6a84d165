package configsync

import (
	"context"
	"fmt"
	"log"
	"strings"

	"mapscraper-desktop/internal/api"
	"mapscraper-desktop/internal/snapshot"
)

// SystemStatus reports whether first-run setup is done. When the service
// cannot be asked the client treats it as not configured.
func (s *Synchronizer) SystemStatus(ctx context.Context) api.SystemStatus {
	status, err := s.svc.SystemStatus(ctx)
	if err != nil {
		log.Printf("[ConfigSync] System status unavailable, assuming setup is required: %v", err)
		return api.SystemStatus{Configured: false}
	}
	return *status
}

// SystemCheck runs the service's environment checks
func (s *Synchronizer) SystemCheck(ctx context.Context) (*api.SystemCheck, error) {
	check, err := s.svc.SystemCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run system check: %w", err)
	}
	return check, nil
}

// CompleteSetup stores the CAPTCHA key and proxies, then writes the initial
// pacing settings. proxiesText holds one proxy per line.
func (s *Synchronizer) CompleteSetup(ctx context.Context, captchaKey, proxiesText string, perf api.PerformanceConfig) error {
	if err := perf.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPerformance, err)
	}

	req := api.SetupRequest{
		TwoCaptchaKey: strings.TrimSpace(captchaKey),
		Proxies:       ParseProxies(proxiesText),
	}
	if err := s.svc.SystemSetup(ctx, req); err != nil {
		return fmt.Errorf("failed to complete setup: %w", err)
	}
	log.Printf("[ConfigSync] Setup stored with %d proxies", len(req.Proxies))

	return s.UpdatePerformance(ctx, perf)
}

// ParseProxies splits newline-separated proxy text, dropping blank lines
func ParseProxies(text string) []string {
	proxies := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			proxies = append(proxies, line)
		}
	}
	return proxies
}

// ===================
// Health
// ===================

// AttachHealth marks the health view active and returns its generation
func (s *Synchronizer) AttachHealth() uint64 {
	return s.health.Attach()
}

// DetachHealth marks the health view inactive
func (s *Synchronizer) DetachHealth(gen uint64) {
	s.health.Detach(gen)
}

// OnHealth registers a callback for every accepted health sample
func (s *Synchronizer) OnHealth(fn func(*api.SystemHealth)) {
	s.health.OnChange(fn)
}

// Health returns the last accepted health sample, nil before the first one
func (s *Synchronizer) Health() *api.SystemHealth {
	return s.health.Get()
}

// RefreshHealth samples the service host. When gen was detached before or
// during the request the sample is dropped and snapshot.ErrDetached returned.
func (s *Synchronizer) RefreshHealth(ctx context.Context, gen uint64) error {
	if !s.health.Live(gen) {
		return snapshot.ErrDetached
	}
	h, err := s.svc.SystemHealth(ctx)
	if err != nil {
		if !s.health.Live(gen) {
			return snapshot.ErrDetached
		}
		return fmt.Errorf("failed to sample system health: %w", err)
	}
	if !s.health.Apply(gen, h) {
		return snapshot.ErrDetached
	}
	return nil
}
