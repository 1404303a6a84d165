package main

import (
	"encoding/json"
	"fmt"
	"log"

	"mapscraper-desktop/internal/api"
	"mapscraper-desktop/internal/common"
	"mapscraper-desktop/internal/config"
	"mapscraper-desktop/internal/configsync"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings saves user settings to disk and updates app state
func (a *App) SaveSettings(settings *config.UserSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	// Save to disk
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	saved := *settings
	a.mu.Lock()
	previous := a.settings
	a.settings = &saved
	a.mu.Unlock()

	a.sync.SetSelectorCheckDelay(saved.SelectorCheckDelay())

	// Note: connection and polling settings require app restart to take effect
	if saved.APIBaseURL != previous.APIBaseURL || saved.RequestTimeoutSec != previous.RequestTimeoutSec {
		log.Printf("Settings saved. Service connection will apply on next restart.")
	} else {
		log.Printf("Settings saved. Poll intervals apply the next time a tab is opened.")
	}
	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// ===================
// Server Settings
// ===================

// LoadServerSettings reloads queries, profiles, performance and selectors.
// Sections that load are applied even when others fail.
func (a *App) LoadServerSettings() error {
	return a.sync.LoadAll(a.lifetime)
}

// GetServerSettings returns the last loaded server configuration
func (a *App) GetServerSettings() configsync.Snapshot {
	return a.sync.Snapshot()
}

// ===================
// Extraction Profiles
// ===================

// GetProfiles returns the loaded extraction profiles
func (a *App) GetProfiles() []api.Profile {
	return a.sync.Profiles()
}

// GetProfileFields returns the output fields a profile can select
func (a *App) GetProfileFields() []string {
	return append([]string(nil), api.ProfileFields...)
}

// GetProfileActions reports which actions the profile list offers for id
func (a *App) GetProfileActions(id string) configsync.ProfileActions {
	return a.sync.Actions(id)
}

// DeleteProfile removes a non-default profile
func (a *App) DeleteProfile(id string) error {
	if err := a.sync.DeleteProfile(a.lifetime, id); err != nil {
		a.notify("Error", fmt.Sprintf("Failed to delete profile: %v", err), common.NotifyError)
		return err
	}
	return nil
}

// SetDefaultProfile makes id the default profile
func (a *App) SetDefaultProfile(id string) error {
	if err := a.sync.SetDefaultProfile(a.lifetime, id); err != nil {
		a.notify("Error", fmt.Sprintf("Failed to set default profile: %v", err), common.NotifyError)
		return err
	}
	return nil
}

// NewProfileDraft starts editing a profile that does not exist yet
func (a *App) NewProfileDraft() api.Profile {
	return a.sync.NewDraft()
}

// EditProfileDraft starts editing a copy of an existing profile
func (a *App) EditProfileDraft(id string) (api.Profile, error) {
	return a.sync.EditDraft(id)
}

// RenameProfileDraft sets the name of the profile being edited
func (a *App) RenameProfileDraft(name string) error {
	return a.sync.RenameDraft(name)
}

// ToggleProfileDraftField adds or removes an output field on the draft
func (a *App) ToggleProfileDraftField(field string) error {
	return a.sync.ToggleDraftField(field)
}

// CancelProfileDraft drops unsaved profile edits
func (a *App) CancelProfileDraft() {
	a.sync.CancelDraft()
}

// SaveProfileDraft creates or updates the draft on the service
func (a *App) SaveProfileDraft() error {
	if err := a.sync.SaveDraft(a.lifetime); err != nil {
		a.notify("Error", fmt.Sprintf("Failed to save profile: %v", err), common.NotifyError)
		return err
	}
	a.notify("Saved", "Profile saved.", common.NotifySuccess)
	return nil
}

// ===================
// Performance & Selectors
// ===================

// GetPerformance returns the loaded pacing configuration
func (a *App) GetPerformance() api.PerformanceConfig {
	return a.sync.Performance()
}

// UpdatePerformance validates and stores the pacing configuration
func (a *App) UpdatePerformance(cfg api.PerformanceConfig) error {
	if err := a.sync.UpdatePerformance(a.lifetime, cfg); err != nil {
		a.notify("Error", err.Error(), common.NotifyError)
		return err
	}
	a.notify("Saved", "Performance settings updated.", common.NotifySuccess)
	return nil
}

// GetSelectors returns the selector definitions as JSON in service order
func (a *App) GetSelectors() (string, error) {
	data, err := json.Marshal(a.sync.Selectors())
	if err != nil {
		return "", fmt.Errorf("failed to encode selectors: %w", err)
	}
	return string(data), nil
}

// UpdateSelectors replaces the selector definitions with the given JSON object
func (a *App) UpdateSelectors(raw string) error {
	sel := api.NewSelectors()
	if err := json.Unmarshal([]byte(raw), sel); err != nil {
		return fmt.Errorf("invalid selectors: %w", err)
	}
	if err := a.sync.UpdateSelectors(a.lifetime, sel); err != nil {
		a.notify("Error", "Failed to update selectors.", common.NotifyError)
		return err
	}
	a.notify("Saved", "Selectors updated.", common.NotifySuccess)
	return nil
}

// CheckSelectorUpdates reloads selectors from the service
func (a *App) CheckSelectorUpdates() error {
	if err := a.sync.CheckSelectorUpdates(a.lifetime); err != nil {
		return err
	}
	a.notify("Selectors", "Selectors are up to date.", common.NotifyInfo)
	return nil
}

// ===================
// System Setup & Health
// ===================

// GetSystemStatus reports whether the service has completed first-run setup
func (a *App) GetSystemStatus() api.SystemStatus {
	return a.sync.SystemStatus(a.lifetime)
}

// RunSystemCheck runs the service's environment checks
func (a *App) RunSystemCheck() (*api.SystemCheck, error) {
	return a.sync.SystemCheck(a.lifetime)
}

// CompleteSetup stores the CAPTCHA key, proxies and initial pacing on the service
func (a *App) CompleteSetup(captchaKey, proxies string, perf api.PerformanceConfig) error {
	if err := a.sync.CompleteSetup(a.lifetime, captchaKey, proxies, perf); err != nil {
		a.notify("Setup Failed", err.Error(), common.NotifyError)
		return err
	}

	a.CloseModal(ModalSetup)
	a.notify("Setup Complete", "The scraping service is ready.", common.NotifySuccess)
	a.TrackEvent("setup_completed", map[string]interface{}{
		"proxies": len(configsync.ParseProxies(proxies)),
	})
	return nil
}

// GetSystemHealth returns the last health sample, nil before the first poll
func (a *App) GetSystemHealth() *api.SystemHealth {
	return a.sync.Health()
}
