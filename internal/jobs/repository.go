package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"mapscraper-desktop/internal/api"
	"mapscraper-desktop/internal/common"
	"mapscraper-desktop/internal/geometry"
	"mapscraper-desktop/internal/queries"
	"mapscraper-desktop/internal/snapshot"
	"mapscraper-desktop/internal/utils/naming"
)

// ErrSubmitInProgress is returned while a previous submission has not resolved
var ErrSubmitInProgress = errors.New("a job submission is already in progress")

// ValidationError reports a submission that was rejected locally, before any
// request was made
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Service is the part of the scraping service the repository talks to
type Service interface {
	ListJobs(ctx context.Context) ([]api.Job, error)
	GetJob(ctx context.Context, id int) (*api.Job, error)
	JobResults(ctx context.Context, id int) ([]api.PlaceResult, error)
	CreateJob(ctx context.Context, req api.CreateJobRequest) (*api.CreatedJob, error)
	StartJob(ctx context.Context, id int) error
	ExportJob(ctx context.Context, id int, format api.ExportFormat, cleanPhones bool) ([]byte, error)
}

// Artifact is an exported result file ready to be written to disk
type Artifact struct {
	FileName string
	Data     []byte
}

// Repository owns the job list snapshot and the job lifecycle calls.
// The list is server-owned: it is only ever replaced whole by Refresh.
type Repository struct {
	svc     Service
	zones   *geometry.Builder
	queries *queries.Store
	store   *snapshot.Store[[]api.Job]
	now     func() time.Time

	mu         sync.Mutex
	submitting bool
	liveGen    uint64
}

// NewRepository wires the repository to the service and the local pending state
func NewRepository(svc Service, zones *geometry.Builder, qs *queries.Store) *Repository {
	return &Repository{
		svc:     svc,
		zones:   zones,
		queries: qs,
		store:   snapshot.New([]api.Job{}),
		now:     time.Now,
	}
}

// OnChange registers a callback invoked with every accepted job list
func (r *Repository) OnChange(fn func([]api.Job)) {
	r.store.OnChange(fn)
}

// Attach marks the jobs view active and returns its generation
func (r *Repository) Attach() uint64 {
	gen := r.store.Attach()
	r.mu.Lock()
	r.liveGen = gen
	r.mu.Unlock()
	return gen
}

// Detach marks the jobs view inactive. Responses for gen are discarded from now on.
func (r *Repository) Detach(gen uint64) {
	r.store.Detach(gen)
}

// Jobs returns a copy of the current job list
func (r *Repository) Jobs() []api.Job {
	return append([]api.Job{}, r.store.Get()...)
}

// Refresh fetches the job list and replaces the snapshot, newest id first.
// When gen is no longer live, before the request or when the response
// arrives, nothing is written and snapshot.ErrDetached is returned.
func (r *Repository) Refresh(ctx context.Context, gen uint64) error {
	if !r.store.Live(gen) {
		return snapshot.ErrDetached
	}

	list, err := r.svc.ListJobs(ctx)
	if err != nil {
		if !r.store.Live(gen) {
			log.Printf("[Jobs] Dropped failed refresh for detached view (gen %d): %v", gen, err)
			return snapshot.ErrDetached
		}
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	sorted := append([]api.Job{}, list...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	if !r.store.Apply(gen, sorted) {
		log.Printf("[Jobs] Discarded job list for detached view (gen %d)", gen)
		return snapshot.ErrDetached
	}
	return nil
}

// Submit creates a job from the pending zones and selected keywords.
//
// On success exactly the submitted zones and keywords are cleared, so edits
// made while the request was in flight are kept. On failure nothing changes
// and the caller may retry.
func (r *Repository) Submit(ctx context.Context, name string) (*api.CreatedJob, error) {
	r.mu.Lock()
	if r.submitting {
		r.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	r.submitting = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.submitting = false
		r.mu.Unlock()
	}()

	mark, zones := r.zones.Mark()
	keywords := r.queries.Selected()
	if len(zones) == 0 || len(keywords) == 0 {
		return nil, &ValidationError{Message: "Please select at least one area and one search term."}
	}

	if name == "" {
		name = DefaultJobName(r.now(), len(keywords))
	}

	req := api.CreateJobRequest{
		Name:     name,
		Keywords: keywords,
		Polygon:  geometry.FeatureCollection(zones),
	}

	log.Printf("[Jobs] Submitting %q: %d zones, %d keywords", name, len(zones), len(keywords))
	created, err := r.svc.CreateJob(ctx, req)
	if err != nil {
		log.Printf("[Jobs] Submission failed: %v", err)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	log.Printf("[Jobs] Created job %d (%s)", created.ID, created.Status)

	r.zones.DiscardMarked(mark)
	r.queries.Deselect(keywords...)

	r.refreshLive(ctx)
	return created, nil
}

// refreshLive reloads the list for the attached view, if there is one
func (r *Repository) refreshLive(ctx context.Context) {
	r.mu.Lock()
	gen := r.liveGen
	r.mu.Unlock()

	if !r.store.Live(gen) {
		return
	}
	if err := r.Refresh(ctx, gen); err != nil && !errors.Is(err, snapshot.ErrDetached) {
		log.Printf("[Jobs] Refresh after submit failed: %v", err)
	}
}

// Get reads a single job from the service without touching the snapshot
func (r *Repository) Get(ctx context.Context, id int) (*api.Job, error) {
	job, err := r.svc.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job %d: %w", id, err)
	}
	return job, nil
}

// Results reads the places scraped for a job. Like Get it bypasses the snapshot.
func (r *Repository) Results(ctx context.Context, id int) ([]api.PlaceResult, error) {
	results, err := r.svc.JobResults(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load results of job %d: %w", id, err)
	}
	return results, nil
}

// Start asks the service to begin processing a job
func (r *Repository) Start(ctx context.Context, id int) error {
	if err := r.svc.StartJob(ctx, id); err != nil {
		return fmt.Errorf("failed to start job %d: %w", id, err)
	}
	log.Printf("[Jobs] Started job %d", id)
	r.refreshLive(ctx)
	return nil
}

// Export downloads a job's results. The artifact is named after the job.
func (r *Repository) Export(ctx context.Context, id int, jobName string, format api.ExportFormat, normalizePhones bool) (*Artifact, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}

	data, err := r.svc.ExportJob(ctx, id, format, normalizePhones)
	if err != nil {
		log.Printf("[Jobs] Export of job %d failed: %v", id, err)
		return nil, fmt.Errorf("failed to export job %d: %w", id, err)
	}

	return &Artifact{
		FileName: naming.ExportFilename(jobName, format),
		Data:     data,
	}, nil
}

// DefaultJobName names a job after the submission time and keyword count
func DefaultJobName(t time.Time, terms int) string {
	return fmt.Sprintf("Job %s (%d terms)", t.Format(common.JobNameClock), terms)
}
