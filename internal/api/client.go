package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is where the scraping service listens when run locally
const DefaultBaseURL = "http://localhost:8000"

// Sentinel errors for service request failures
var (
	ErrUnreachable = errors.New("service unreachable")
	ErrTimeout     = errors.New("service request timed out")
	ErrStatus      = errors.New("service returned an error")
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", ErrStatus, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", ErrStatus, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Client talks to the scraping service over its HTTP/JSON interface
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a service client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the service root the client is bound to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health calls the service root
func (c *Client) Health(ctx context.Context) (*ServiceInfo, error) {
	var info ServiceInfo
	if err := c.doJSON(ctx, http.MethodGet, "/", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ===================
// Jobs
// ===================

// ListJobs returns every job the service knows about, in server order
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := c.doJSON(ctx, http.MethodGet, "/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []Job{}
	}
	return jobs, nil
}

// GetJob returns a single job
func (c *Client) GetJob(ctx context.Context, id int) (*Job, error) {
	var job Job
	if err := c.doJSON(ctx, http.MethodGet, "/jobs/"+strconv.Itoa(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// JobResults returns the places scraped so far for a job
func (c *Client) JobResults(ctx context.Context, id int) ([]PlaceResult, error) {
	var results []PlaceResult
	if err := c.doJSON(ctx, http.MethodGet, "/jobs/"+strconv.Itoa(id)+"/results", nil, &results); err != nil {
		return nil, err
	}
	if results == nil {
		results = []PlaceResult{}
	}
	return results, nil
}

// CreateJob submits a new job. The service answers either with the created
// job or with a {job_id, status} acknowledgement; both are accepted.
func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (*CreatedJob, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/jobs", req, &raw); err != nil {
		return nil, err
	}

	var ack struct {
		JobID  *int   `json:"job_id"`
		ID     *int   `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		return nil, fmt.Errorf("decoding create job response: %w", err)
	}

	created := &CreatedJob{Status: ack.Status}
	switch {
	case ack.JobID != nil:
		created.ID = *ack.JobID
	case ack.ID != nil:
		var job Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, fmt.Errorf("decoding created job: %w", err)
		}
		created.ID = job.ID
		created.Status = string(job.Status)
		created.Job = &job
	default:
		return nil, fmt.Errorf("create job response carries no job id")
	}
	return created, nil
}

// StartJob asks the service to start processing a job
func (c *Client) StartJob(ctx context.Context, id int) error {
	return c.doJSON(ctx, http.MethodPost, "/jobs/"+strconv.Itoa(id)+"/start", nil, nil)
}

// ExportJob downloads a job's results as a file artifact
func (c *Client) ExportJob(ctx context.Context, id int, format ExportFormat, cleanPhones bool) ([]byte, error) {
	params := url.Values{
		"format":       {string(format)},
		"clean_phones": {strconv.FormatBool(cleanPhones)},
	}
	path := "/jobs/" + strconv.Itoa(id) + "/export?" + params.Encode()

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading export body: %w", err)
	}
	return data, nil
}

// ===================
// Saved queries
// ===================

// ListQueries returns the saved search terms
func (c *Client) ListQueries(ctx context.Context) ([]SavedQuery, error) {
	var queries []SavedQuery
	if err := c.doJSON(ctx, http.MethodGet, "/config/queries", nil, &queries); err != nil {
		return nil, err
	}
	if queries == nil {
		queries = []SavedQuery{}
	}
	return queries, nil
}

// AddQuery saves a new search term
func (c *Client) AddQuery(ctx context.Context, query string) error {
	return c.doJSON(ctx, http.MethodPost, "/config/queries", map[string]string{"query": query}, nil)
}

// UpdateQuery replaces the text of a saved search term
func (c *Client) UpdateQuery(ctx context.Context, id, query string) error {
	return c.doJSON(ctx, http.MethodPut, "/config/queries/"+url.PathEscape(id), map[string]string{"query": query}, nil)
}

// RemoveQuery deletes a saved search term
func (c *Client) RemoveQuery(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/config/queries/"+url.PathEscape(id), nil, nil)
}

// ===================
// Profiles
// ===================

// ListProfiles returns every extraction profile
func (c *Client) ListProfiles(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	if err := c.doJSON(ctx, http.MethodGet, "/config/profiles", nil, &profiles); err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []Profile{}
	}
	return profiles, nil
}

// CreateProfile creates a profile; the service assigns the id
func (c *Client) CreateProfile(ctx context.Context, req ProfileRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/config/profiles", req, nil)
}

// UpdateProfile replaces a profile's name and fields
func (c *Client) UpdateProfile(ctx context.Context, id string, req ProfileRequest) error {
	return c.doJSON(ctx, http.MethodPut, "/config/profiles/"+url.PathEscape(id), req, nil)
}

// SetDefaultProfile makes id the single default profile
func (c *Client) SetDefaultProfile(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPut, "/config/profiles/"+url.PathEscape(id)+"/default", nil, nil)
}

// DeleteProfile removes a profile
func (c *Client) DeleteProfile(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/config/profiles/"+url.PathEscape(id), nil, nil)
}

// ===================
// Performance & selectors
// ===================

// GetPerformance returns the scraper pacing settings
func (c *Client) GetPerformance(ctx context.Context) (*PerformanceConfig, error) {
	var cfg PerformanceConfig
	if err := c.doJSON(ctx, http.MethodGet, "/config/performance", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdatePerformance writes the scraper pacing settings
func (c *Client) UpdatePerformance(ctx context.Context, cfg PerformanceConfig) error {
	return c.doJSON(ctx, http.MethodPost, "/config/performance", cfg, nil)
}

// GetSelectors returns the selector definitions
func (c *Client) GetSelectors(ctx context.Context) (*Selectors, error) {
	sel := NewSelectors()
	if err := c.doJSON(ctx, http.MethodGet, "/config/selectors", nil, sel); err != nil {
		return nil, err
	}
	return sel, nil
}

// UpdateSelectors replaces the selector definitions
func (c *Client) UpdateSelectors(ctx context.Context, sel *Selectors) error {
	body := struct {
		Selectors *Selectors `json:"selectors"`
	}{Selectors: sel}
	return c.doJSON(ctx, http.MethodPost, "/config/selectors", body, nil)
}

// ===================
// System
// ===================

// SystemCheck runs the service's environment checks
func (c *Client) SystemCheck(ctx context.Context) (*SystemCheck, error) {
	var check SystemCheck
	if err := c.doJSON(ctx, http.MethodGet, "/system/check", nil, &check); err != nil {
		return nil, err
	}
	return &check, nil
}

// SystemSetup stores first-run credentials and proxies
func (c *Client) SystemSetup(ctx context.Context, req SetupRequest) error {
	if req.Proxies == nil {
		req.Proxies = []string{}
	}
	return c.doJSON(ctx, http.MethodPost, "/system/setup", req, nil)
}

// SystemStatus reports whether first-run setup has been done
func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var status SystemStatus
	if err := c.doJSON(ctx, http.MethodGet, "/system/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SystemHealth samples the service host's resource usage
func (c *Client) SystemHealth(ctx context.Context) (*SystemHealth, error) {
	var health SystemHealth
	if err := c.doJSON(ctx, http.MethodGet, "/system/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ===================
// Transport
// ===================

// doJSON sends body as JSON and decodes the response into out (when non-nil)
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, method, path, reader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// do issues the request and converts non-2xx responses to *StatusError.
// The caller must close the body of a successful response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	return resp, nil
}

// readDetail extracts the "detail" message the service puts in error bodies
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Detail interface{} `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(payload.Detail); err == nil {
			return string(b)
		}
	}
	return strings.TrimSpace(string(data))
}

// classifyError maps transport-level errors to sentinel errors
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
