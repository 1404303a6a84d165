package common

// Frontend event names emitted through the Wails runtime
const (
	EventJobsUpdated        = "jobs-updated"
	EventSystemHealth       = "system-health"
	EventQueriesChanged     = "queries-changed"
	EventZonesChanged       = "zones-changed"
	EventSettingsChanged    = "settings-changed"
	EventSystemNotification = "system-notification"
	EventBackendUnreachable = "backend-unreachable"
	EventBackendRecovered   = "backend-recovered"
	EventViewState          = "view-state"
)

// Notification types understood by the frontend toast component
const (
	NotifySuccess = "success"
	NotifyError   = "error"
	NotifyInfo    = "info"
)

// Tabs of the main window
const (
	TabMap      = "map"
	TabJobs     = "jobs"
	TabResults  = "results"
	TabSettings = "settings"
)
