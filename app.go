package main

import (
	"context"
	"fmt"
	"log"
	goruntime "runtime"
	"sync"

	"github.com/posthog/posthog-go"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"mapscraper-desktop/internal/api"
	"mapscraper-desktop/internal/common"
	"mapscraper-desktop/internal/config"
	"mapscraper-desktop/internal/configsync"
	"mapscraper-desktop/internal/connectivity"
	"mapscraper-desktop/internal/geometry"
	"mapscraper-desktop/internal/jobs"
	"mapscraper-desktop/internal/queries"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// Notification is the payload of a system-notification event
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"` // "success", "error", "info"
}

// App struct
type App struct {
	ctx      context.Context // Wails runtime context, nil until startup
	lifetime context.Context // parent of every polling loop
	cancel   context.CancelFunc

	settings     *config.UserSettings
	client       *api.Client
	zones        *geometry.Builder
	queries      *queries.Store
	jobs         *jobs.Repository
	sync         *configsync.Synchronizer
	connectivity *connectivity.Monitor
	phClient     posthog.Client
	devMode      bool // Enable verbose logging in dev mode only

	// listener observes every emitted event, runtime or not. Set before startup.
	listener func(event string, data interface{})

	tabMu sync.Mutex // serializes tab switches and shutdown

	mu    sync.Mutex
	view  ViewState
	scope *viewScope // polling scope of the active tab
}

// NewApp creates a new App application struct
func NewApp() *App {
	// Load user settings
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		log.Printf("Invalid settings, using defaults: %v", err)
		settings = config.DefaultSettings()
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	// Initialize PostHog
	var phClient posthog.Client
	if PostHogKey != "" {
		phConfig := posthog.Config{
			Endpoint: PostHogHost,
		}
		client, err := posthog.NewWithConfig(PostHogKey, phConfig)
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = client
		}
	}

	app := newAppWithSettings(settings)
	app.phClient = phClient
	return app
}

// newAppWithSettings wires the components against the configured service.
// settings holds the file values; the connection uses them with env overrides.
func newAppWithSettings(settings *config.UserSettings) *App {
	conn := settings.Effective()
	client := api.NewClient(conn.APIBaseURL, conn.RequestTimeout())
	log.Printf("Scraping service at %s (timeout %s)", client.BaseURL(), conn.RequestTimeout())

	zones := geometry.NewBuilder()
	qs := queries.NewStore()
	syncer := configsync.New(client, qs)
	syncer.SetSelectorCheckDelay(settings.SelectorCheckDelay())

	lifetime, cancel := context.WithCancel(context.Background())

	a := &App{
		lifetime:     lifetime,
		cancel:       cancel,
		settings:     settings,
		client:       client,
		zones:        zones,
		queries:      qs,
		jobs:         jobs.NewRepository(client, zones, qs),
		sync:         syncer,
		connectivity: connectivity.NewMonitor(),
		view:         newViewState(),
	}
	a.wireEvents()
	return a
}

// wireEvents forwards component changes to the frontend
func (a *App) wireEvents() {
	a.zones.SetOnChange(func(z []geometry.Zone) {
		a.emit(common.EventZonesChanged, z)
	})
	a.queries.OnChange(func(st queries.State) {
		a.emit(common.EventQueriesChanged, st)
	})
	a.jobs.OnChange(func(list []api.Job) {
		a.emit(common.EventJobsUpdated, list)
	})
	a.sync.OnHealth(func(h *api.SystemHealth) {
		a.emit(common.EventSystemHealth, h)
	})
	a.sync.OnChange(func(snap configsync.Snapshot) {
		a.emit(common.EventSettingsChanged, snap)
	})
	a.connectivity.SetOnUnreachable(func(e connectivity.Event) {
		a.emit(common.EventBackendUnreachable, e)
	})
	a.connectivity.SetOnRecovered(func(e connectivity.Event) {
		a.emit(common.EventBackendRecovered, e)
	})
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	// The map tab is shown first
	if err := a.SetActiveTab(common.TabMap); err != nil {
		a.logError(fmt.Sprintf("Failed to activate map view: %v", err))
	}

	go a.checkService()

	// Track app start
	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
	})
}

// checkService calls the service root, then opens setup when the service
// does not report itself configured
func (a *App) checkService() {
	if info, err := a.client.Health(a.lifetime); err != nil {
		a.logError(fmt.Sprintf("Scraping service at %s is not answering: %v", a.client.BaseURL(), err))
	} else {
		a.logInfo(fmt.Sprintf("Scraping service is up: %s", info.Message))
	}

	status := a.sync.SystemStatus(a.lifetime)
	if !status.Configured {
		a.logInfo("Scraping service is not configured, opening setup")
		a.OpenModal(ModalSetup)
	}
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: "backend_user",
			Event:      event,
			Properties: props,
		})
	}
}

// Shutdown stops every polling scope and releases resources
func (a *App) Shutdown(ctx context.Context) {
	a.tabMu.Lock()
	defer a.tabMu.Unlock()

	a.mu.Lock()
	scope := a.scope
	a.scope = nil
	a.mu.Unlock()

	if scope != nil {
		scope.close()
	}
	a.cancel()

	if a.phClient != nil {
		a.phClient.Close()
	}
	log.Printf("Shutdown complete")
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// GetServiceURL returns the scraping service base URL in use
func (a *App) GetServiceURL() string {
	return a.client.BaseURL()
}

// currentSettings returns the settings in effect
func (a *App) currentSettings() *config.UserSettings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// runtimeCtx returns the Wails context, nil before startup
func (a *App) runtimeCtx() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctx
}

// emit sends an event to the frontend. Before startup it only logs in dev mode.
func (a *App) emit(event string, data interface{}) {
	if a.listener != nil {
		a.listener(event, data)
	}
	ctx := a.runtimeCtx()
	if ctx == nil {
		if a.devMode {
			log.Printf("[Events] %s (no runtime yet)", event)
		}
		return
	}
	wailsRuntime.EventsEmit(ctx, event, data)
}

// notify shows a non-blocking toast in the frontend
func (a *App) notify(title, message, notifType string) {
	a.emit(common.EventSystemNotification, Notification{
		Title:   title,
		Message: message,
		Type:    notifType,
	})
}

// emitLog sends a log message to the frontend (only in dev mode)
func (a *App) emitLog(message string) {
	if a.devMode {
		a.emit("log", message)
	}
}

func (a *App) logInfo(message string) {
	log.Print(message)
	if ctx := a.runtimeCtx(); ctx != nil {
		wailsRuntime.LogInfo(ctx, message)
	}
	a.emitLog(message)
}

func (a *App) logError(message string) {
	log.Print(message)
	if ctx := a.runtimeCtx(); ctx != nil {
		wailsRuntime.LogError(ctx, message)
	}
	a.emitLog(message)
}
