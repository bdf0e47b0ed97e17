package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
	"github.com/rreenactt/AI-Videos-Tool/internal/infra"
)

const DefaultBaseURL = "http://127.0.0.1:8001"

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *infra.Logger
}

// Client talks to the storyboard backend over its JSON API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *infra.Logger
}

// APIError is returned for non-2xx responses. Detail carries the backend's
// "detail" message when one was sent.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("apiclient: %s %s: http %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("apiclient: %s %s: http %d", e.Method, e.Path, e.Status)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		logger:     logger,
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Home(ctx context.Context) (*HomeSummary, error) {
	var out HomeSummary
	if err := c.do(ctx, http.MethodGet, "/api/home", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) (*domain.ProjectMeta, error) {
	var out domain.ProjectMeta
	if err := c.do(ctx, http.MethodPost, "/api/projects", req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("apiclient: create project returned no id")
	}
	return &out, nil
}

func (c *Client) GetProject(ctx context.Context, projectID string) (*ProjectEnvelope, error) {
	path, err := projectPath(projectID)
	if err != nil {
		return nil, err
	}
	var out ProjectEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PatchProject sends a partial state update and returns the authoritative merged state.
func (c *Client) PatchProject(ctx context.Context, projectID string, patch domain.StatePatch) (*ProjectEnvelope, error) {
	path, err := projectPath(projectID)
	if err != nil {
		return nil, err
	}
	var out ProjectEnvelope
	if err := c.do(ctx, http.MethodPatch, path, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	path, err := projectPath(projectID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) DeriveStoryboard(ctx context.Context, req StoryboardRequest) (*StoryboardResponse, error) {
	var out StoryboardResponse
	if err := c.do(ctx, http.MethodPost, "/api/storyboard", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitImages(ctx context.Context, req ImageJobRequest) (*ImageJobResponse, error) {
	var out ImageJobResponse
	if err := c.do(ctx, http.MethodPost, "/api/images", req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.JobID) == "" {
		return nil, errors.New("apiclient: image submission returned no job id")
	}
	return &out, nil
}

func (c *Client) ImageProgress(ctx context.Context, jobID string) (*JobProgress, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errors.New("apiclient: job id required")
	}
	var out JobProgress
	if err := c.do(ctx, http.MethodGet, "/api/images/progress/"+url.PathEscape(jobID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RegenerateImage(ctx context.Context, req RegenerateRequest) (*RegenerateResponse, error) {
	var out RegenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/images/regenerate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func projectPath(projectID string) (string, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return "", domain.ErrInvalidProject
	}
	return "/api/projects/" + url.PathEscape(projectID), nil
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("apiclient: request done")

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode}
		var eb errorBody
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil && json.Unmarshal(data, &eb) == nil {
			apiErr.Detail = eb.Detail
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", method, path, err)
	}
	return nil
}
