// Package backend is the HTTP client for the workflow API the canvas
// saves to and executes through. Every call returns the server's
// {message} on a non-2xx response, falling back to a generic error when
// the body carries no structured message; network failures never panic.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/appforge/flowcanvas/pkg/compiler"
)

const defaultTimeoutSeconds = 30

// ErrRequestFailed wraps every non-2xx API response.
var ErrRequestFailed = errors.New("workflow API request failed")

// APIError carries the status code and the server-supplied message of a
// failed call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return ErrRequestFailed
}

// Workflow is the API's workflow resource.
type Workflow struct {
	ID          string    `json:"id"`
	LogicalName string    `json:"logical_name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	TriggerType string    `json:"trigger_type"`
	IsEnabled   bool      `json:"is_enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Run is one execution of a workflow.
type Run struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Attempt is one try of one step within a run.
type Attempt struct {
	ID            string     `json:"id"`
	RunID         string     `json:"run_id"`
	StepPath      []string   `json:"step_path"`
	AttemptNumber int        `json:"attempt_number"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// RetryStrategy selects how a retried step is rescheduled.
type RetryStrategy string

const (
	RetryImmediate RetryStrategy = "immediate"
	RetryBackoff   RetryStrategy = "backoff"
)

// RetryStepRequest retries one step of a run, addressed by its
// structural path within the step tree.
type RetryStepRequest struct {
	StepPath       []string      `json:"step_path"`
	Strategy       RetryStrategy `json:"strategy"`
	BackoffSeconds int           `json:"backoff_seconds,omitempty"`
}

// ExecutionResult is the response to an execute call.
type ExecutionResult struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// Client talks to one workflow API endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for
// tests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithClientLogger overrides the client logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a workflow API client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
		logger:     slog.Default().With("module", "backend_client"),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// CreateWorkflow creates a new workflow from a compiled save request.
func (c *Client) CreateWorkflow(ctx context.Context, request *compiler.SaveRequest) (*Workflow, error) {
	var workflow Workflow
	if err := c.do(ctx, http.MethodPost, "/workflows", request, &workflow); err != nil {
		return nil, err
	}

	return &workflow, nil
}

// SaveWorkflow replaces an existing workflow's definition.
func (c *Client) SaveWorkflow(ctx context.Context, workflowID string, request *compiler.SaveRequest) (*Workflow, error) {
	var workflow Workflow
	if err := c.do(ctx, http.MethodPut, "/workflows/"+url.PathEscape(workflowID), request, &workflow); err != nil {
		return nil, err
	}

	return &workflow, nil
}

// ListWorkflows returns every workflow visible to the caller.
func (c *Client) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	var workflows []Workflow
	if err := c.do(ctx, http.MethodGet, "/workflows", nil, &workflows); err != nil {
		return nil, err
	}

	return workflows, nil
}

// ExecuteWorkflow starts a run with the given trigger payload.
func (c *Client) ExecuteWorkflow(ctx context.Context, workflowID string, request *compiler.ExecuteRequest) (*ExecutionResult, error) {
	var result ExecutionResult

	path := "/workflows/" + url.PathEscape(workflowID) + "/execute"
	if err := c.do(ctx, http.MethodPost, path, request, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// ListRuns returns the runs of one workflow, newest first.
func (c *Client) ListRuns(ctx context.Context, workflowID string) ([]Run, error) {
	var runs []Run

	path := "/workflows/" + url.PathEscape(workflowID) + "/runs"
	if err := c.do(ctx, http.MethodGet, path, nil, &runs); err != nil {
		return nil, err
	}

	return runs, nil
}

// ListRunAttempts returns every step attempt of one run.
func (c *Client) ListRunAttempts(ctx context.Context, runID string) ([]Attempt, error) {
	var attempts []Attempt

	path := "/runs/" + url.PathEscape(runID) + "/attempts"
	if err := c.do(ctx, http.MethodGet, path, nil, &attempts); err != nil {
		return nil, err
	}

	return attempts, nil
}

// RetryRunStep retries a single step of a run.
func (c *Client) RetryRunStep(ctx context.Context, runID string, request RetryStepRequest) error {
	path := "/runs/" + url.PathEscape(runID) + "/retry"

	return c.do(ctx, http.MethodPost, path, request, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}

		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRequestFailed, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.apiError(ctx, resp.StatusCode, responseBody)
	}

	if out == nil || len(responseBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}

	return nil
}

// apiError surfaces the server's {message} when the error body carries
// one, otherwise a generic status-based message.
func (c *Client) apiError(ctx context.Context, statusCode int, body []byte) error {
	message := fmt.Sprintf("workflow API request failed with status %d", statusCode)

	var payload struct {
		Message string `json:"message"`
	}

	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		message = payload.Message
	}

	c.logger.WarnContext(ctx, "workflow API call failed", "status_code", statusCode, "message", message)

	return &APIError{StatusCode: statusCode, Message: message}
}
