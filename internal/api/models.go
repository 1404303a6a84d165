package api

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"mapscraper-desktop/internal/common"
)

// JobStatus represents the server-reported lifecycle state of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusRunning    JobStatus = "RUNNING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusPaused     JobStatus = "PAUSED"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// ParseJobStatus maps a status string to a JobStatus.
// Unknown values are shown as pending, matching the dashboard badge fallback.
func ParseJobStatus(s string) JobStatus {
	switch JobStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case JobStatusRunning:
		return JobStatusRunning
	case JobStatusProcessing:
		return JobStatusProcessing
	case JobStatusPaused:
		return JobStatusPaused
	case JobStatusCompleted:
		return JobStatusCompleted
	case JobStatusFailed:
		return JobStatusFailed
	default:
		return JobStatusPending
	}
}

// Job is a server-tracked unit of scraping work
type Job struct {
	ID             int                        `json:"id"`
	Name           string                     `json:"name"`
	Keywords       []string                   `json:"keywords,omitempty"`
	Polygon        *geojson.FeatureCollection `json:"polygon,omitempty"`
	Status         JobStatus                  `json:"status"`
	TotalGrids     int                        `json:"total_grids"`
	CompletedGrids int                        `json:"completed_grids"`
	ResultsCount   int                        `json:"results_count"`
	CreatedAt      time.Time                  `json:"created_at"`
}

// Progress returns the completed fraction of the job's grids in [0, 1].
// A job without grids has zero progress.
func (j Job) Progress() float64 {
	if j.TotalGrids <= 0 {
		return 0
	}
	p := float64(j.CompletedGrids) / float64(j.TotalGrids)
	return math.Max(0, math.Min(1, p))
}

// IsActive reports whether the server is currently working on the job
func (j Job) IsActive() bool {
	return j.Status == JobStatusRunning || j.Status == JobStatusProcessing
}

type jobWire struct {
	ID             int                        `json:"id"`
	Name           string                     `json:"name"`
	Keywords       []string                   `json:"keywords,omitempty"`
	Polygon        *geojson.FeatureCollection `json:"polygon,omitempty"`
	Status         string                     `json:"status"`
	TotalGrids     int                        `json:"total_grids"`
	CompletedGrids int                        `json:"completed_grids"`
	ResultsCount   *int                       `json:"results_count,omitempty"`
	Results        *int                       `json:"results,omitempty"`
	CreatedAt      string                     `json:"created_at"`
}

// UnmarshalJSON accepts both the list shape (results_count) and the
// single-job shape (results) returned by the service.
func (j *Job) UnmarshalJSON(data []byte) error {
	var w jobWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*j = Job{
		ID:             w.ID,
		Name:           w.Name,
		Keywords:       w.Keywords,
		Polygon:        w.Polygon,
		Status:         ParseJobStatus(w.Status),
		TotalGrids:     w.TotalGrids,
		CompletedGrids: w.CompletedGrids,
	}
	switch {
	case w.ResultsCount != nil:
		j.ResultsCount = *w.ResultsCount
	case w.Results != nil:
		j.ResultsCount = *w.Results
	}

	if w.CreatedAt != "" {
		ts, err := common.ParseTimestamp(w.CreatedAt)
		if err != nil {
			return fmt.Errorf("job %d: %w", w.ID, err)
		}
		j.CreatedAt = ts
	}
	return nil
}

// MarshalJSON renders the job for the frontend, including derived fields
func (j Job) MarshalJSON() ([]byte, error) {
	type view struct {
		ID             int                        `json:"id"`
		Name           string                     `json:"name"`
		Keywords       []string                   `json:"keywords,omitempty"`
		Polygon        *geojson.FeatureCollection `json:"polygon,omitempty"`
		Status         JobStatus                  `json:"status"`
		TotalGrids     int                        `json:"total_grids"`
		CompletedGrids int                        `json:"completed_grids"`
		ResultsCount   int                        `json:"results_count"`
		CreatedAt      string                     `json:"created_at"`
		CreatedLabel   string                     `json:"created_label"`
		Progress       float64                    `json:"progress"`
		Active         bool                       `json:"active"`
	}
	v := view{
		ID:             j.ID,
		Name:           j.Name,
		Keywords:       j.Keywords,
		Polygon:        j.Polygon,
		Status:         j.Status,
		TotalGrids:     j.TotalGrids,
		CompletedGrids: j.CompletedGrids,
		ResultsCount:   j.ResultsCount,
		CreatedLabel:   common.FormatDisplay(j.CreatedAt),
		Progress:       j.Progress(),
		Active:         j.IsActive(),
	}
	if !j.CreatedAt.IsZero() {
		v.CreatedAt = j.CreatedAt.Format(time.RFC3339)
	}
	return json.Marshal(v)
}

// PlaceResult is one scraped place as listed by GET /jobs/{id}/results.
// Values the service has not scraped arrive as null and decode to zero.
type PlaceResult struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Category  string  `json:"category"`
	Rating    float64 `json:"rating"`
	Reviews   int     `json:"reviews"`
	Phone     string  `json:"phone"`
	PlaceType string  `json:"place_type"`
	Website   string  `json:"website"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// CreateJobRequest is the body of POST /jobs
type CreateJobRequest struct {
	Name     string                     `json:"name"`
	Keywords []string                   `json:"keywords"`
	Polygon  *geojson.FeatureCollection `json:"polygon"`
}

// CreatedJob identifies the job the service created.
// Job is set only when the service echoes the full object.
type CreatedJob struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
	Job    *Job   `json:"job,omitempty"`
}

// SavedQuery is a reusable search term stored by the service
type SavedQuery struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

// UnmarshalJSON accepts the text under "query" or "term"; the service
// persists it as "term" while the request body uses "query".
func (q *SavedQuery) UnmarshalJSON(data []byte) error {
	var w struct {
		ID    json.RawMessage `json:"id"`
		Query string          `json:"query"`
		Term  string          `json:"term"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	q.ID = rawID(w.ID)
	q.Query = w.Query
	if q.Query == "" {
		q.Query = w.Term
	}
	return nil
}

// rawID renders a JSON string or number id as a plain string
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// NewProfileID marks a profile draft that does not exist on the server yet
const NewProfileID = "new"

// ProfileFields is the fixed vocabulary of extractable output fields
var ProfileFields = []string{
	"name", "address", "phone", "rating", "reviews",
	"website", "category", "opening_hours", "images",
	"price_level", "coordinates",
}

// IsProfileField reports whether name belongs to the field vocabulary
func IsProfileField(name string) bool {
	for _, f := range ProfileFields {
		if f == name {
			return true
		}
	}
	return false
}

// Profile is a named, reusable selection of output fields
type Profile struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	IsDefault bool     `json:"is_default"`
	Fields    []string `json:"fields"`
}

// Clone returns a deep copy so drafts never alias the loaded set
func (p Profile) Clone() Profile {
	p.Fields = append([]string(nil), p.Fields...)
	return p
}

// ProfileRequest is the body of profile create/update calls
type ProfileRequest struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// PerformanceConfig holds the scraper pacing settings (server singleton)
type PerformanceConfig struct {
	MaxConcurrency int     `json:"max_concurrency"`
	RequestDelay   float64 `json:"request_delay"`
	RandomDelay    bool    `json:"random_delay"`
}

// DefaultPerformance mirrors the service's initial performance block
func DefaultPerformance() PerformanceConfig {
	return PerformanceConfig{MaxConcurrency: 2, RequestDelay: 2.0, RandomDelay: true}
}

// Validate checks the ranges the settings sliders allow
func (p PerformanceConfig) Validate() error {
	if p.MaxConcurrency < 1 || p.MaxConcurrency > 10 {
		return fmt.Errorf("max_concurrency must be between 1 and 10, got %d", p.MaxConcurrency)
	}
	if math.IsNaN(p.RequestDelay) || p.RequestDelay < 0.5 || p.RequestDelay > 10 {
		return fmt.Errorf("request_delay must be between 0.5 and 10 seconds, got %v", p.RequestDelay)
	}
	if steps := p.RequestDelay / 0.5; math.Abs(steps-math.Round(steps)) > 1e-9 {
		return fmt.Errorf("request_delay must be a multiple of 0.5 seconds, got %v", p.RequestDelay)
	}
	return nil
}

// SystemCheck reports the service's environment checks
type SystemCheck struct {
	Internet     bool `json:"internet"`
	ChromeDriver bool `json:"chrome_driver"`
}

// SystemStatus reports whether first-run setup has been completed
type SystemStatus struct {
	Configured bool `json:"configured"`
}

// SystemHealth is a resource usage sample of the service host
type SystemHealth struct {
	CPUPercent     float64 `json:"cpu_percent"`
	RAMPercent     float64 `json:"ram_percent"`
	RAMAvailableGB float64 `json:"ram_available_gb"`
	RAMTotalGB     float64 `json:"ram_total_gb"`
}

// HighLoad reports whether CPU or RAM usage is above 80%
func (h SystemHealth) HighLoad() bool {
	return h.CPUPercent > 80 || h.RAMPercent > 80
}

// SetupRequest is the body of POST /system/setup
type SetupRequest struct {
	TwoCaptchaKey string   `json:"two_captcha_key"`
	Proxies       []string `json:"proxies"`
}

// ServiceInfo is the payload of the root health endpoint
type ServiceInfo struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ExportFormat is an export artifact format understood by the service
type ExportFormat = common.ExportFormat
