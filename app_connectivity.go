package main

import (
	"fmt"

	"mapscraper-desktop/internal/connectivity"
)

// Connectivity Functions (Wails-exported)

var knownSources = map[string]bool{
	connectivity.SourceJobs:   true,
	connectivity.SourceHealth: true,
}

// GetConnectivityState returns the reachability state of a polling source ("jobs" or "health")
func (a *App) GetConnectivityState(source string) connectivity.State {
	return a.connectivity.CurrentState(source)
}

// IsBackendReachable reports whether both polling sources last reached the service
func (a *App) IsBackendReachable() bool {
	return a.connectivity.IsReachable(connectivity.SourceJobs) &&
		a.connectivity.IsReachable(connectivity.SourceHealth)
}

// RetryConnection calls the service root on behalf of source and records
// the outcome, so a recovered service clears the offline notice at once
func (a *App) RetryConnection(source string) error {
	if !knownSources[source] {
		return fmt.Errorf("unknown source: %s", source)
	}
	_, err := a.client.Health(a.lifetime)
	a.connectivity.Record(source, err)
	if err != nil {
		return fmt.Errorf("service still unreachable: %w", err)
	}
	return nil
}

// ResetConnectivity clears the failure history of a source without emitting anything
func (a *App) ResetConnectivity(source string) {
	a.connectivity.Reset(source)
}
