package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"mapscraper-desktop/internal/api"
	"mapscraper-desktop/internal/common"
	"mapscraper-desktop/internal/geometry"
	"mapscraper-desktop/internal/jobs"
	"mapscraper-desktop/internal/queries"
)

// ===================
// Zones
// ===================

// AddDrawnZone adds a polygon drawn on the map, given as a GeoJSON feature
func (a *App) AddDrawnZone(featureJSON string) (geometry.Zone, error) {
	zone, err := a.zones.AddDrawn([]byte(featureJSON))
	if err != nil {
		return geometry.Zone{}, fmt.Errorf("failed to add drawn zone: %w", err)
	}
	log.Printf("[Zones] Added drawn zone %d", zone.ID)
	return zone, nil
}

// AddManualZone adds a square area around a center point typed by the user
func (a *App) AddManualZone(lat, lon, radiusKm string) (geometry.Zone, error) {
	zone, err := a.zones.AddManual(lat, lon, radiusKm)
	if err != nil {
		a.notify("Invalid Area", err.Error(), common.NotifyError)
		return geometry.Zone{}, err
	}
	log.Printf("[Zones] Added manual zone %d: %s", zone.ID, zone.Label)
	return zone, nil
}

// RemoveZone removes one zone, reporting whether it existed
func (a *App) RemoveZone(id int) bool {
	return a.zones.Remove(id)
}

// ClearZones removes every pending zone
func (a *App) ClearZones() {
	a.zones.Clear()
}

// GetZones returns the pending zones in insertion order
func (a *App) GetZones() []geometry.Zone {
	return a.zones.Zones()
}

// GetZonesGeoJSON returns the pending zones as the FeatureCollection a job would carry
func (a *App) GetZonesGeoJSON() (string, error) {
	data, err := geometry.FeatureCollection(a.zones.Zones()).MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode zones: %w", err)
	}
	return string(data), nil
}

// ===================
// Search Terms
// ===================

// GetQueryState returns the saved queries and the current selection
func (a *App) GetQueryState() queries.State {
	return a.queries.Snapshot()
}

// ToggleQuery flips the selection of a saved query, returning whether it is now selected.
// Texts that are not saved queries are ignored.
func (a *App) ToggleQuery(text string) bool {
	a.queries.Toggle(text)
	return a.queries.IsSelected(text)
}

// ReloadQueries fetches the saved queries from the service
func (a *App) ReloadQueries() error {
	if err := a.sync.LoadQueries(a.lifetime); err != nil {
		return fmt.Errorf("failed to load saved queries: %w", err)
	}
	return nil
}

// AddQuery saves a new search term on the service
func (a *App) AddQuery(text string) error {
	if err := a.sync.AddQuery(a.lifetime, text); err != nil {
		a.notify("Error", "Failed to save search term.", common.NotifyError)
		return err
	}
	return nil
}

// UpdateQuery renames a saved search term
func (a *App) UpdateQuery(id, text string) error {
	if err := a.sync.UpdateQuery(a.lifetime, id, text); err != nil {
		a.notify("Error", "Failed to update search term.", common.NotifyError)
		return err
	}
	return nil
}

// RemoveQuery deletes a saved search term
func (a *App) RemoveQuery(id string) error {
	if err := a.sync.RemoveQuery(a.lifetime, id); err != nil {
		a.notify("Error", "Failed to delete search term.", common.NotifyError)
		return err
	}
	return nil
}

// ===================
// Jobs
// ===================

// CreateJob submits the pending zones and selected terms as a new job.
// An empty name gets a generated one.
func (a *App) CreateJob(name string) (*api.CreatedJob, error) {
	created, err := a.jobs.Submit(a.lifetime, name)
	if err != nil {
		var verr *jobs.ValidationError
		switch {
		case errors.As(err, &verr):
			a.notify("Missing Input", verr.Message, common.NotifyError)
		case errors.Is(err, jobs.ErrSubmitInProgress):
			a.notify("Please Wait", "A job is already being created.", common.NotifyInfo)
		default:
			a.logError(fmt.Sprintf("Failed to create job: %v", err))
			a.notify("Error", "Failed to create job.", common.NotifyError)
		}
		return nil, err
	}

	if a.currentSettings().NotifyOnJobCreated {
		a.notify("Job Created", "Background scraping active.", common.NotifySuccess)
	}

	a.TrackEvent("job_submitted", map[string]interface{}{
		"job_id": created.ID,
	})
	return created, nil
}

// GetJobs returns the last job list fetched by the dashboard
func (a *App) GetJobs() []api.Job {
	return a.jobs.Jobs()
}

// GetJob fetches one job from the service
func (a *App) GetJob(id int) (*api.Job, error) {
	return a.jobs.Get(a.lifetime, id)
}

// GetJobResults fetches the places scraped for a job, for the results tab
func (a *App) GetJobResults(id int) ([]api.PlaceResult, error) {
	results, err := a.jobs.Results(a.lifetime, id)
	if err != nil {
		a.notify("Error", fmt.Sprintf("Failed to load results of job %d.", id), common.NotifyError)
		return nil, err
	}
	return results, nil
}

// StartJob asks the service to (re)start a job
func (a *App) StartJob(id int) error {
	if err := a.jobs.Start(a.lifetime, id); err != nil {
		a.notify("Error", fmt.Sprintf("Failed to start job %d.", id), common.NotifyError)
		return err
	}
	a.TrackEvent("job_started", map[string]interface{}{
		"job_id": id,
	})
	return nil
}

// ExportJob downloads a job's results and writes them to a file the user picks.
// Without a window the file goes to the export directory. Returns the written path,
// or "" when the user cancels the dialog.
func (a *App) ExportJob(id int, jobName, format string, normalizePhones bool) (string, error) {
	exportFormat, err := common.ParseExportFormat(format)
	if err != nil {
		return "", err
	}

	artifact, err := a.jobs.Export(a.lifetime, id, jobName, exportFormat, normalizePhones)
	if err != nil {
		a.notify("Error", "Failed to export results.", common.NotifyError)
		return "", err
	}

	exportDir := a.currentSettings().ExportDirectory
	path := filepath.Join(exportDir, artifact.FileName)

	if ctx := a.runtimeCtx(); ctx != nil {
		path, err = wailsRuntime.SaveFileDialog(ctx, wailsRuntime.SaveDialogOptions{
			Title:            "Export Results",
			DefaultDirectory: exportDir,
			DefaultFilename:  artifact.FileName,
		})
		if err != nil {
			return "", fmt.Errorf("failed to open save dialog: %w", err)
		}
		if path == "" {
			return "", nil
		}
	}

	if err := writeArtifact(path, artifact); err != nil {
		a.notify("Error", "Failed to save export file.", common.NotifyError)
		return "", err
	}

	a.logInfo(fmt.Sprintf("Exported job %d to %s", id, path))
	a.notify("Export Complete", fmt.Sprintf("Saved %s", filepath.Base(path)), common.NotifySuccess)
	a.TrackEvent("job_exported", map[string]interface{}{
		"job_id": id,
		"format": string(exportFormat),
	})
	return path, nil
}

func writeArtifact(path string, artifact *jobs.Artifact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(path, artifact.Data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
