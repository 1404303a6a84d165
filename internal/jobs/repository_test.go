package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapscraper-desktop/internal/api"
	"mapscraper-desktop/internal/geometry"
	"mapscraper-desktop/internal/queries"
	"mapscraper-desktop/internal/snapshot"
)

type fakeService struct {
	mu sync.Mutex

	jobs      []api.Job
	listErr   error
	createErr error
	exportErr error
	export    []byte
	results   map[int][]api.PlaceResult

	creates    []api.CreateJobRequest
	lists      int
	starts     []int
	exports    []exportCall
	beforeDone func() // runs inside CreateJob before it returns
	duringList func() // runs inside ListJobs before it returns
}

type exportCall struct {
	id     int
	format api.ExportFormat
	clean  bool
}

func (f *fakeService) ListJobs(context.Context) ([]api.Job, error) {
	f.mu.Lock()
	f.lists++
	hook, err, list := f.duringList, f.listErr, append([]api.Job{}, f.jobs...)
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (f *fakeService) GetJob(_ context.Context, id int) (*api.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.ID == id {
			job := j
			return &job, nil
		}
	}
	return nil, &api.StatusError{Code: 404, Detail: "Job not found"}
}

func (f *fakeService) JobResults(_ context.Context, id int) ([]api.PlaceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, ok := f.results[id]
	if !ok {
		return nil, &api.StatusError{Code: 404, Detail: "Job not found"}
	}
	return list, nil
}

func (f *fakeService) CreateJob(_ context.Context, req api.CreateJobRequest) (*api.CreatedJob, error) {
	f.mu.Lock()
	f.creates = append(f.creates, req)
	hook, err := f.beforeDone, f.createErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return &api.CreatedJob{ID: 42, Status: "created"}, nil
}

func (f *fakeService) StartJob(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, id)
	return nil
}

func (f *fakeService) ExportJob(_ context.Context, id int, format api.ExportFormat, clean bool) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports = append(f.exports, exportCall{id, format, clean})
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return f.export, nil
}

func fixture(svc Service) (*Repository, *geometry.Builder, *queries.Store) {
	zones := geometry.NewBuilder()
	qs := queries.NewStore()
	qs.ReplaceSaved([]api.SavedQuery{
		{ID: "1", Query: "coffee"},
		{ID: "2", Query: "tea"},
	})
	return NewRepository(svc, zones, qs), zones, qs
}

func TestSubmit_NoRequestWithoutZones(t *testing.T) {
	svc := &fakeService{}
	repo, _, qs := fixture(svc)
	qs.Toggle("coffee")

	_, err := repo.Submit(context.Background(), "")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, svc.creates)
}

func TestSubmit_NoRequestWithoutKeywords(t *testing.T) {
	svc := &fakeService{}
	repo, zones, _ := fixture(svc)
	zones.AddCircle(10, 10, 1)

	_, err := repo.Submit(context.Background(), "")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, svc.creates)
	assert.Equal(t, 1, zones.Len())
}

func TestSubmit_PayloadAndClearOnSuccess(t *testing.T) {
	svc := &fakeService{}
	repo, zones, qs := fixture(svc)
	repo.now = func() time.Time { return time.Date(2024, 5, 1, 14, 3, 9, 0, time.Local) }

	zones.AddCircle(10, 10, 1)
	zones.AddCircle(20, 20, 2)
	zones.AddCircle(30, 30, 3)
	qs.Toggle("tea")
	qs.Toggle("coffee")

	created, err := repo.Submit(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 42, created.ID)

	require.Len(t, svc.creates, 1)
	req := svc.creates[0]
	assert.Equal(t, "Job 14:03:09 (2 terms)", req.Name)
	assert.Equal(t, []string{"tea", "coffee"}, req.Keywords)
	require.NotNil(t, req.Polygon)
	assert.Len(t, req.Polygon.Features, 3)
	for _, f := range req.Polygon.Features {
		assert.Empty(t, f.Properties)
	}

	assert.Equal(t, 0, zones.Len())
	assert.Empty(t, qs.Selected())
	assert.Len(t, qs.Saved(), 2, "saved queries are not touched by submit")
}

func TestSubmit_FailureKeepsState(t *testing.T) {
	svc := &fakeService{createErr: api.ErrUnreachable}
	repo, zones, qs := fixture(svc)
	zones.AddCircle(10, 10, 1)
	qs.Toggle("coffee")

	_, err := repo.Submit(context.Background(), "My job")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnreachable)

	assert.Equal(t, 1, zones.Len())
	assert.Equal(t, []string{"coffee"}, qs.Selected())

	// retry is allowed and resubmits the same payload
	svc.createErr = nil
	_, err = repo.Submit(context.Background(), "My job")
	require.NoError(t, err)
	require.Len(t, svc.creates, 2)
	assert.Equal(t, svc.creates[0].Keywords, svc.creates[1].Keywords)
}

func TestSubmit_EditsDuringFlightSurvive(t *testing.T) {
	svc := &fakeService{}
	repo, zones, qs := fixture(svc)
	zones.AddCircle(10, 10, 1)
	qs.Toggle("coffee")

	svc.beforeDone = func() {
		zones.AddCircle(50, 50, 1)
		qs.Toggle("tea")
	}

	_, err := repo.Submit(context.Background(), "x")
	require.NoError(t, err)

	assert.Equal(t, 1, zones.Len())
	assert.Equal(t, []string{"tea"}, qs.Selected())
}

func TestSubmit_OneAtATime(t *testing.T) {
	svc := &fakeService{}
	repo, zones, qs := fixture(svc)
	zones.AddCircle(10, 10, 1)
	qs.Toggle("coffee")

	var second error
	svc.beforeDone = func() {
		_, second = repo.Submit(context.Background(), "again")
	}

	_, err := repo.Submit(context.Background(), "first")
	require.NoError(t, err)
	assert.ErrorIs(t, second, ErrSubmitInProgress)
	assert.Len(t, svc.creates, 1)
}

func TestRefresh_SortsByIDDescending(t *testing.T) {
	svc := &fakeService{jobs: []api.Job{{ID: 3}, {ID: 7}, {ID: 1}}}
	repo, _, _ := fixture(svc)
	gen := repo.Attach()

	require.NoError(t, repo.Refresh(context.Background(), gen))

	var ids []int
	for _, j := range repo.Jobs() {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []int{7, 3, 1}, ids)
}

func TestRefresh_FailureKeepsStaleList(t *testing.T) {
	svc := &fakeService{jobs: []api.Job{{ID: 1, Status: api.JobStatusRunning}}}
	repo, _, _ := fixture(svc)
	gen := repo.Attach()
	require.NoError(t, repo.Refresh(context.Background(), gen))

	svc.listErr = api.ErrTimeout
	err := repo.Refresh(context.Background(), gen)
	assert.ErrorIs(t, err, api.ErrTimeout)
	assert.Len(t, repo.Jobs(), 1)
}

func TestRefresh_NoMutationAfterDetach(t *testing.T) {
	svc := &fakeService{jobs: []api.Job{{ID: 1}}}
	repo, _, _ := fixture(svc)

	var pushes int
	repo.OnChange(func([]api.Job) { pushes++ })

	gen := repo.Attach()
	require.NoError(t, repo.Refresh(context.Background(), gen))
	repo.Detach(gen)

	svc.jobs = []api.Job{{ID: 1}, {ID: 2}}
	assert.ErrorIs(t, repo.Refresh(context.Background(), gen), snapshot.ErrDetached)

	assert.Len(t, repo.Jobs(), 1)
	assert.Equal(t, 1, pushes)
	assert.Equal(t, 1, svc.lists, "detached generation issues no request")
}

func TestRefresh_DetachedDuringRequest(t *testing.T) {
	tests := []struct {
		name    string
		listErr error
	}{
		{"success", nil},
		{"failure", &api.StatusError{Code: 500, Detail: "boom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{jobs: []api.Job{{ID: 5}}, listErr: tt.listErr}
			repo, _, _ := fixture(svc)

			var pushes int
			repo.OnChange(func([]api.Job) { pushes++ })

			gen := repo.Attach()
			svc.duringList = func() { repo.Detach(gen) }

			err := repo.Refresh(context.Background(), gen)
			assert.ErrorIs(t, err, snapshot.ErrDetached)
			assert.Empty(t, repo.Jobs())
			assert.Zero(t, pushes)
		})
	}
}

func TestSubmit_RefreshesAttachedView(t *testing.T) {
	svc := &fakeService{jobs: []api.Job{{ID: 42}}}
	repo, zones, qs := fixture(svc)
	repo.Attach()
	zones.AddCircle(1, 1, 1)
	qs.Toggle("coffee")

	_, err := repo.Submit(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.lists)
	assert.Len(t, repo.Jobs(), 1)
}

func TestExport_NamesArtifactAfterJob(t *testing.T) {
	svc := &fakeService{export: []byte("a,b\n")}
	repo, _, _ := fixture(svc)

	tests := []struct {
		format api.ExportFormat
		want   string
	}{
		{api.ExportFormat("excel"), "Night_Run_results.xlsx"},
		{api.ExportFormat("csv"), "Night_Run_results.csv"},
		{api.ExportFormat("json"), "Night_Run_results.json"},
	}
	for _, tt := range tests {
		art, err := repo.Export(context.Background(), 9, "Night Run", tt.format, true)
		require.NoError(t, err)
		assert.Equal(t, tt.want, art.FileName)
		assert.Equal(t, []byte("a,b\n"), art.Data)
	}
	assert.Equal(t, exportCall{9, "json", true}, svc.exports[2])
}

func TestExport_Failure(t *testing.T) {
	svc := &fakeService{exportErr: &api.StatusError{Code: 500}}
	repo, _, _ := fixture(svc)

	art, err := repo.Export(context.Background(), 9, "x", "csv", false)
	assert.Nil(t, art)
	assert.ErrorIs(t, err, api.ErrStatus)
}

func TestExport_RejectsUnknownFormat(t *testing.T) {
	svc := &fakeService{}
	repo, _, _ := fixture(svc)

	_, err := repo.Export(context.Background(), 9, "x", "pdf", false)
	assert.Error(t, err)
	assert.Empty(t, svc.exports)
}

func TestStartAndGet(t *testing.T) {
	svc := &fakeService{jobs: []api.Job{{ID: 5, Name: "five"}}}
	repo, _, _ := fixture(svc)

	require.NoError(t, repo.Start(context.Background(), 5))
	assert.Equal(t, []int{5}, svc.starts)

	job, err := repo.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "five", job.Name)

	_, err = repo.Get(context.Background(), 6)
	assert.ErrorIs(t, err, api.ErrStatus)
}

func TestSubmitOverHTTP(t *testing.T) {
	var body map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/jobs":
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, &body)
			w.Write([]byte(`{"job_id": 11, "status": "created"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	repo, zones, qs := fixture(api.NewClient(srv.URL, time.Second))
	zones.AddCircle(30.0444, 31.2357, 2)
	qs.Toggle("coffee")

	created, err := repo.Submit(context.Background(), "Cairo")
	require.NoError(t, err)
	assert.Equal(t, 11, created.ID)

	assert.JSONEq(t, `"Cairo"`, string(body["name"]))
	assert.JSONEq(t, `["coffee"]`, string(body["keywords"]))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Type       string                 `json:"type"`
			Properties map[string]interface{} `json:"properties"`
			Geometry   struct {
				Type        string          `json:"type"`
				Coordinates [][][2]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(body["polygon"], &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.Type)
	assert.Len(t, fc.Features[0].Geometry.Coordinates[0], 5)
	assert.Empty(t, fc.Features[0].Properties)
}

func TestSubmitOverHTTP_ServerErrorKeepsState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "boom"}`))
	}))
	defer srv.Close()

	repo, zones, qs := fixture(api.NewClient(srv.URL, time.Second))
	zones.AddCircle(1, 1, 1)
	qs.Toggle("tea")

	_, err := repo.Submit(context.Background(), "")
	var serr *api.StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 500, serr.Code)
	assert.Equal(t, "boom", serr.Detail)
	assert.Equal(t, 1, zones.Len())
	assert.Equal(t, []string{"tea"}, qs.Selected())
}

func TestResults(t *testing.T) {
	svc := &fakeService{results: map[int][]api.PlaceResult{
		4: {{Name: "Cafe Riche", Rating: 4.4}, {Name: "Kiosk"}},
	}}
	repo, _, _ := fixture(svc)

	results, err := repo.Results(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cafe Riche", "Kiosk"}, []string{results[0].Name, results[1].Name})

	_, err = repo.Results(context.Background(), 5)
	var serr *api.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 404, serr.Code)
	assert.Empty(t, repo.Jobs(), "results never touch the job list")
}
