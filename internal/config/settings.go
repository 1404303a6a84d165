package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mapscraper-desktop/internal/api"
)

// Environment variables that override the settings file
const (
	EnvAPIURL         = "MAPSCRAPER_API_URL"
	EnvRequestTimeout = "MAPSCRAPER_REQUEST_TIMEOUT" // Go duration, e.g. "45s"
)

// UserSettings represents persistent client preferences.
// Server-held configuration (profiles, performance, selectors) is not stored here.
type UserSettings struct {
	// Service connection
	APIBaseURL        string `json:"apiBaseUrl"`
	RequestTimeoutSec int    `json:"requestTimeoutSec"`

	// Polling
	JobsPollIntervalMs   int `json:"jobsPollIntervalMs"`
	HealthPollIntervalMs int `json:"healthPollIntervalMs"`
	MaxInFlightTicks     int `json:"maxInFlightTicks"`

	// Export
	ExportDirectory string `json:"exportDirectory"`

	// UI preferences
	SelectorCheckDelayMs int    `json:"selectorCheckDelayMs"`
	NotifyOnJobCreated   bool   `json:"notifyOnJobCreated"`
	Theme                string `json:"theme"` // "light", "dark", "system"
}

// DefaultSettings returns default user settings
func DefaultSettings() *UserSettings {
	homeDir, _ := os.UserHomeDir()
	exportDir := filepath.Join(homeDir, "Downloads", "mapscraper")

	return &UserSettings{
		APIBaseURL:           api.DefaultBaseURL,
		RequestTimeoutSec:    30,
		JobsPollIntervalMs:   2000,
		HealthPollIntervalMs: 5000,
		MaxInFlightTicks:     2,
		ExportDirectory:      exportDir,
		SelectorCheckDelayMs: 1000,
		NotifyOnJobCreated:   true,
		Theme:                "system",
	}
}

// RequestTimeout returns the per-request timeout
func (s *UserSettings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec) * time.Second
}

// JobsPollInterval returns the jobs dashboard polling interval
func (s *UserSettings) JobsPollInterval() time.Duration {
	return time.Duration(s.JobsPollIntervalMs) * time.Millisecond
}

// HealthPollInterval returns the system health polling interval
func (s *UserSettings) HealthPollInterval() time.Duration {
	return time.Duration(s.HealthPollIntervalMs) * time.Millisecond
}

// SelectorCheckDelay returns the minimum selector check duration
func (s *UserSettings) SelectorCheckDelay() time.Duration {
	return time.Duration(s.SelectorCheckDelayMs) * time.Millisecond
}

// Validate checks values that would leave the client unusable
func (s *UserSettings) Validate() error {
	if s.APIBaseURL == "" {
		return fmt.Errorf("apiBaseUrl is required")
	}
	if !strings.HasPrefix(s.APIBaseURL, "http://") && !strings.HasPrefix(s.APIBaseURL, "https://") {
		return fmt.Errorf("apiBaseUrl must start with http:// or https://, got %q", s.APIBaseURL)
	}
	if s.RequestTimeoutSec <= 0 {
		return fmt.Errorf("requestTimeoutSec must be positive, got %d", s.RequestTimeoutSec)
	}
	if s.JobsPollIntervalMs <= 0 || s.HealthPollIntervalMs <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if s.MaxInFlightTicks <= 0 {
		return fmt.Errorf("maxInFlightTicks must be positive, got %d", s.MaxInFlightTicks)
	}
	if s.SelectorCheckDelayMs < 0 {
		return fmt.Errorf("selectorCheckDelayMs must not be negative")
	}
	return nil
}

// ApplyEnv overrides connection settings from the environment.
// Unparseable values are ignored.
func (s *UserSettings) ApplyEnv() {
	s.APIBaseURL = strings.TrimRight(envString(EnvAPIURL, s.APIBaseURL), "/")
	timeout := envDuration(EnvRequestTimeout, s.RequestTimeout())
	if secs := int(timeout / time.Second); secs > 0 {
		s.RequestTimeoutSec = secs
	}
}

// Effective returns a copy with the environment overrides applied. The
// receiver keeps the file values so saving never persists an override.
func (s *UserSettings) Effective() *UserSettings {
	out := *s
	out.ApplyEnv()
	return &out
}

// GetSettingsPath returns the OS-specific settings file path
func GetSettingsPath() string {
	homeDir, _ := os.UserHomeDir()

	// ~/.mapscraper/desktop/settings/
	baseDir := filepath.Join(homeDir, ".mapscraper", "desktop", "settings")

	// Ensure directory exists
	os.MkdirAll(baseDir, 0755)

	return filepath.Join(baseDir, "settings.json")
}

// LoadSettings loads user settings from disk. Environment overrides are not
// applied; see Effective.
func LoadSettings() (*UserSettings, error) {
	return LoadSettingsFrom(GetSettingsPath())
}

// LoadSettingsFrom loads settings from path, merging missing fields with defaults
func LoadSettingsFrom(settingsPath string) (*UserSettings, error) {
	// If file doesn't exist, return defaults
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		return DefaultSettings(), nil
	}

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	// Fields absent from the file keep their default
	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	// Merge with defaults for any zeroed fields
	defaults := DefaultSettings()
	if settings.APIBaseURL == "" {
		settings.APIBaseURL = defaults.APIBaseURL
	}
	if settings.RequestTimeoutSec == 0 {
		settings.RequestTimeoutSec = defaults.RequestTimeoutSec
	}
	if settings.JobsPollIntervalMs == 0 {
		settings.JobsPollIntervalMs = defaults.JobsPollIntervalMs
	}
	if settings.HealthPollIntervalMs == 0 {
		settings.HealthPollIntervalMs = defaults.HealthPollIntervalMs
	}
	if settings.MaxInFlightTicks == 0 {
		settings.MaxInFlightTicks = defaults.MaxInFlightTicks
	}
	if settings.ExportDirectory == "" {
		settings.ExportDirectory = defaults.ExportDirectory
	}
	if settings.Theme == "" {
		settings.Theme = defaults.Theme
	}

	return settings, nil
}

// SaveSettings saves user settings to disk
func SaveSettings(settings *UserSettings) error {
	return SaveSettingsTo(GetSettingsPath(), settings)
}

// SaveSettingsTo writes settings to path
func SaveSettingsTo(settingsPath string, settings *UserSettings) error {
	// Ensure directory exists
	dir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(settingsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
