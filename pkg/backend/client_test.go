package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/flowcanvas/pkg/backend"
	"github.com/appforge/flowcanvas/pkg/compiler"
)

func TestCreateWorkflow(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/workflows", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var request compiler.SaveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "order_followup", request.LogicalName)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           "wf-1",
			"logical_name": request.LogicalName,
			"is_enabled":   true,
		})
	}))
	defer server.Close()

	client := backend.NewClient(server.URL)

	workflow, err := client.CreateWorkflow(context.Background(), &compiler.SaveRequest{
		LogicalName: "order_followup",
		DisplayName: "Order follow-up",
		TriggerType: "manual",
		ActionType:  "log_message",
		MaxAttempts: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, "wf-1", workflow.ID)
	assert.True(t, workflow.IsEnabled)
}

func TestSaveWorkflow_ServerMessageSurfaces(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"message": "logical name already in use",
		})
	}))
	defer server.Close()

	client := backend.NewClient(server.URL)

	_, err := client.SaveWorkflow(context.Background(), "wf-1", &compiler.SaveRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrRequestFailed)

	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "logical name already in use", apiErr.Message)
}

func TestErrorWithoutStructuredBodyFallsBack(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := backend.NewClient(server.URL)

	_, err := client.ListWorkflows(context.Background())
	require.Error(t, err)

	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "workflow API request failed with status 502", apiErr.Message)
}

func TestListWorkflows(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/workflows", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": "wf-1", "logical_name": "a"},
			{"id": "wf-2", "logical_name": "b"},
		})
	}))
	defer server.Close()

	client := backend.NewClient(server.URL)

	workflows, err := client.ListWorkflows(context.Background())
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "wf-2", workflows[1].ID)
}

func TestExecuteWorkflow(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/workflows/wf-1/execute", r.URL.Path)

		var request compiler.ExecuteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, map[string]any{"order_id": "o-42"}, request.TriggerPayload)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"run_id": "run-1", "status": "queued"})
	}))
	defer server.Close()

	client := backend.NewClient(server.URL)

	result, err := client.ExecuteWorkflow(context.Background(), "wf-1", &compiler.ExecuteRequest{
		TriggerPayload: map[string]any{"order_id": "o-42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, "queued", result.Status)
}

func TestListRunsAndAttempts(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/workflows/wf-1/runs":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": "run-1", "workflow_id": "wf-1", "status": "failed"},
			})
		case "/runs/run-1/attempts":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": "att-1", "run_id": "run-1", "step_path": []string{"steps", "0"}, "attempt_number": 1, "status": "failed", "error": "boom"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := backend.NewClient(server.URL)

	runs, err := client.ListRuns(context.Background(), "wf-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status)

	attempts, err := client.ListRunAttempts(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, []string{"steps", "0"}, attempts[0].StepPath)
	assert.Equal(t, "boom", attempts[0].Error)
}

func TestRetryRunStep(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/runs/run-1/retry", r.URL.Path)

		var request backend.RetryStepRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, []string{"steps", "1", "then_steps", "0"}, request.StepPath)
		assert.Equal(t, backend.RetryBackoff, request.Strategy)
		assert.Equal(t, 30, request.BackoffSeconds)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := backend.NewClient(server.URL)

	err := client.RetryRunStep(context.Background(), "run-1", backend.RetryStepRequest{
		StepPath:       []string{"steps", "1", "then_steps", "0"},
		Strategy:       backend.RetryBackoff,
		BackoffSeconds: 30,
	})
	require.NoError(t, err)
}

func TestNetworkFailureWrapsSentinel(t *testing.T) {
	t.Parallel()

	// Point at a server that is already closed.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := backend.NewClient(server.URL)

	_, err := client.ListWorkflows(context.Background())
	assert.ErrorIs(t, err, backend.ErrRequestFailed)
}
