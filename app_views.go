package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"mapscraper-desktop/internal/common"
	"mapscraper-desktop/internal/connectivity"
	"mapscraper-desktop/internal/poller"
	"mapscraper-desktop/internal/snapshot"
)

// Modals the frontend can open on top of the active tab
const (
	ModalSettings = "settings"
	ModalExport   = "export"
	ModalSetup    = "setup"
)

var knownTabs = map[string]bool{
	common.TabMap:      true,
	common.TabJobs:     true,
	common.TabResults:  true,
	common.TabSettings: true,
}

var knownModals = map[string]bool{
	ModalSettings: true,
	ModalExport:   true,
	ModalSetup:    true,
}

// ViewState is the window's UI state held on the Go side
type ViewState struct {
	ActiveTab  string          `json:"activeTab"`
	OpenModals map[string]bool `json:"openModals"`
}

func newViewState() ViewState {
	return ViewState{OpenModals: make(map[string]bool)}
}

func (v ViewState) clone() ViewState {
	out := ViewState{ActiveTab: v.ActiveTab, OpenModals: make(map[string]bool, len(v.OpenModals))}
	for k, open := range v.OpenModals {
		out.OpenModals[k] = open
	}
	return out
}

// viewScope is the lifetime of one tab: its polling loop and snapshot attachment
type viewScope struct {
	tab    string
	handle *poller.Handle
	detach func()

	mu     sync.Mutex
	closed bool
}

// whileOpen runs fn unless the scope has been closed. close waits for a
// running fn, so nothing from fn lands after teardown.
func (s *viewScope) whileOpen(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		fn()
	}
}

// close detaches first so results of ticks still in flight are discarded
func (s *viewScope) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.detach != nil {
		s.detach()
	}
	if s.handle != nil {
		s.handle.Stop()
	}
	log.Printf("[Views] %s scope closed", s.tab)
}

// record reports a tick outcome to the connectivity monitor while the scope
// is open. Results dropped for a detached view are not outcomes.
func (a *App) record(scope *viewScope, source string, err error) error {
	if errors.Is(err, snapshot.ErrDetached) {
		return nil
	}
	scope.whileOpen(func() {
		a.connectivity.Record(source, err)
	})
	return err
}

// GetViewState returns the active tab and open modals
func (a *App) GetViewState() ViewState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view.clone()
}

// SetActiveTab tears down the previous tab's scope and starts the new one.
// Jobs polls the job list; map polls system health and loads saved queries.
// Switches are serialized so exactly one scope is ever open.
func (a *App) SetActiveTab(tab string) error {
	if !knownTabs[tab] {
		return fmt.Errorf("unknown tab: %s", tab)
	}

	a.tabMu.Lock()
	defer a.tabMu.Unlock()

	if a.lifetime.Err() != nil {
		return fmt.Errorf("app is shutting down")
	}

	a.mu.Lock()
	if a.view.ActiveTab == tab && a.scope != nil {
		a.mu.Unlock()
		return nil
	}
	previous := a.scope
	a.scope = nil
	a.view.ActiveTab = tab
	a.mu.Unlock()

	if previous != nil {
		previous.close()
	}

	scope := a.openScope(tab)

	a.mu.Lock()
	a.scope = scope
	a.mu.Unlock()

	a.emit(common.EventViewState, a.GetViewState())
	return nil
}

func (a *App) openScope(tab string) *viewScope {
	settings := a.currentSettings()
	scope := &viewScope{tab: tab}

	switch tab {
	case common.TabJobs:
		gen := a.jobs.Attach()
		scope.detach = func() { a.jobs.Detach(gen) }
		scope.handle = poller.Start(a.lifetime, poller.Options{
			Name:        "jobs",
			Interval:    settings.JobsPollInterval(),
			MaxInFlight: settings.MaxInFlightTicks,
		}, func(ctx context.Context) error {
			return a.record(scope, connectivity.SourceJobs, a.jobs.Refresh(ctx, gen))
		})

	case common.TabMap:
		gen := a.sync.AttachHealth()
		scope.detach = func() { a.sync.DetachHealth(gen) }
		scope.handle = poller.Start(a.lifetime, poller.Options{
			Name:        "health",
			Interval:    settings.HealthPollInterval(),
			MaxInFlight: settings.MaxInFlightTicks,
		}, func(ctx context.Context) error {
			return a.record(scope, connectivity.SourceHealth, a.sync.RefreshHealth(ctx, gen))
		})
		go func() {
			if err := a.sync.LoadQueries(a.lifetime); err != nil {
				a.logError(fmt.Sprintf("Failed to load saved queries: %v", err))
			}
		}()

	case common.TabSettings:
		go a.loadServerSettings()
	}
	return scope
}

// OpenModal marks a modal as open. Opening settings reloads server settings.
func (a *App) OpenModal(name string) error {
	if !knownModals[name] {
		return fmt.Errorf("unknown modal: %s", name)
	}
	a.mu.Lock()
	a.view.OpenModals[name] = true
	a.mu.Unlock()

	if name == ModalSettings {
		go a.loadServerSettings()
	}
	a.emit(common.EventViewState, a.GetViewState())
	return nil
}

// CloseModal marks a modal as closed. Closing settings drops an unsaved draft.
func (a *App) CloseModal(name string) {
	a.mu.Lock()
	delete(a.view.OpenModals, name)
	a.mu.Unlock()

	if name == ModalSettings {
		a.sync.CancelDraft()
	}
	a.emit(common.EventViewState, a.GetViewState())
}

func (a *App) loadServerSettings() {
	if err := a.sync.LoadAll(a.lifetime); err != nil {
		a.logError(fmt.Sprintf("Failed to load settings from service: %v", err))
	}
}
