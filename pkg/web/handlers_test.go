package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/flowcanvas/pkg/backend"
	"github.com/appforge/flowcanvas/pkg/catalog"
	"github.com/appforge/flowcanvas/pkg/models"
	"github.com/appforge/flowcanvas/pkg/persistence/file"
	"github.com/appforge/flowcanvas/pkg/web"
)

func setupTestApp(t *testing.T, backendClient *backend.Client) *fiber.App {
	t.Helper()

	handlers := web.NewAPIHandlers(
		web.NewSessionStore(),
		file.NewPersistence(t.TempDir()),
		backendClient,
		nil,
		validator.New(validator.WithRequiredStructEnabled()),
		slog.Default(),
	)

	app := fiber.New()

	app.Get("/health", handlers.HealthCheck)
	app.Get("/templates", handlers.GetTemplates)

	d := app.Group("/drafts")
	d.Get("/", handlers.GetDrafts)
	d.Post("/", handlers.CreateDraft)
	d.Get("/:id", handlers.GetDraft)
	d.Delete("/:id", handlers.DeleteDraft)

	s := app.Group("/sessions")
	s.Post("/", handlers.OpenSession)
	s.Get("/:id", handlers.GetSession)
	s.Delete("/:id", handlers.CloseSession)
	s.Get("/:id/graph", handlers.GetGraph)
	s.Post("/:id/steps", handlers.InsertStep)
	s.Patch("/:id/steps/:stepId", handlers.UpdateStep)
	s.Delete("/:id/steps/:stepId", handlers.DeleteStep)
	s.Post("/:id/steps/:stepId/duplicate", handlers.DuplicateStep)
	s.Post("/:id/steps/:stepId/reroute", handlers.RerouteStep)
	s.Put("/:id/trigger", handlers.PutTrigger)
	s.Put("/:id/positions", handlers.MoveNodes)
	s.Post("/:id/selection", handlers.SelectNode)
	s.Post("/:id/selection/marquee", handlers.MarqueeSelect)
	s.Delete("/:id/selection", handlers.ClearSelection)
	s.Post("/:id/undo", handlers.Undo)
	s.Post("/:id/redo", handlers.Redo)
	s.Post("/:id/save", handlers.SaveSession)
	s.Post("/:id/submit", handlers.SubmitSession)
	s.Post("/:id/execute", handlers.ExecuteSession)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, payload
}

func createDraft(t *testing.T, app *fiber.App) string {
	t.Helper()

	resp, body := doJSON(t, app, http.MethodPost, "/drafts/", web.CreateDraftRequest{
		LogicalName: "order_followup",
		DisplayName: "Order follow-up",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var draft models.WorkflowDraft
	require.NoError(t, json.Unmarshal(body, &draft))
	require.NotEmpty(t, draft.ID)

	return draft.ID
}

func openSession(t *testing.T, app *fiber.App, draftID string) string {
	t.Helper()

	resp, body := doJSON(t, app, http.MethodPost, "/sessions/", web.OpenSessionRequest{DraftID: draftID})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var session web.SessionResponse
	require.NoError(t, json.Unmarshal(body, &session))
	require.NotEmpty(t, session.SessionID)

	return session.SessionID
}

func TestCreateDraft_Validation(t *testing.T) {
	app := setupTestApp(t, nil)

	resp, _ := doJSON(t, app, http.MethodPost, "/drafts/", web.CreateDraftRequest{LogicalName: "ab"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDraftLifecycle(t *testing.T) {
	app := setupTestApp(t, nil)

	draftID := createDraft(t, app)

	resp, body := doJSON(t, app, http.MethodGet, "/drafts/"+draftID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var draft models.WorkflowDraft
	require.NoError(t, json.Unmarshal(body, &draft))
	assert.Equal(t, "order_followup", draft.LogicalName)
	assert.Equal(t, models.TriggerTypeManual, draft.Trigger.Type)

	resp, _ = doJSON(t, app, http.MethodDelete, "/drafts/"+draftID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/drafts/"+draftID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOpenSession_UnknownDraft(t *testing.T) {
	app := setupTestApp(t, nil)

	resp, _ := doJSON(t, app, http.MethodPost, "/sessions/", web.OpenSessionRequest{DraftID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInsertStepAndGraph(t *testing.T) {
	app := setupTestApp(t, nil)

	sessionID := openSession(t, app, createDraft(t, app))

	resp, body := doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/steps", web.InsertStepRequest{
		TemplateID: catalog.TemplateStepLogMessage,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var inserted struct {
		StepID  string              `json:"step_id"`
		Session web.SessionResponse `json:"session"`
	}
	require.NoError(t, json.Unmarshal(body, &inserted))
	require.NotEmpty(t, inserted.StepID)
	assert.True(t, inserted.Session.Dirty)

	resp, body = doJSON(t, app, http.MethodGet, "/sessions/"+sessionID+"/graph", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var graph web.GraphResponse
	require.NoError(t, json.Unmarshal(body, &graph))
	require.Len(t, graph.Nodes, 2)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, models.TriggerNodeID, graph.Edges[0].From)
	assert.Equal(t, inserted.StepID, graph.Edges[0].To)
	assert.Contains(t, graph.Positions, inserted.StepID)
}

func TestUpdateStep(t *testing.T) {
	app := setupTestApp(t, nil)

	sessionID := openSession(t, app, createDraft(t, app))

	_, body := doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/steps", web.InsertStepRequest{
		TemplateID: catalog.TemplateStepLogMessage,
	})

	var inserted struct {
		StepID string `json:"step_id"`
	}
	require.NoError(t, json.Unmarshal(body, &inserted))

	message := "order received"
	resp, body := doJSON(t, app, http.MethodPatch, "/sessions/"+sessionID+"/steps/"+inserted.StepID, web.UpdateStepRequest{
		Message: &message,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var session web.SessionResponse
	require.NoError(t, json.Unmarshal(body, &session))
	require.Len(t, session.Steps, 1)
	assert.Equal(t, "order received", session.Steps[0].Message)

	// Unknown step id.
	resp, _ = doJSON(t, app, http.MethodPatch, "/sessions/"+sessionID+"/steps/missing", web.UpdateStepRequest{Message: &message})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Unknown operator.
	operator := "similar_to"
	resp, _ = doJSON(t, app, http.MethodPatch, "/sessions/"+sessionID+"/steps/"+inserted.StepID, web.UpdateStepRequest{Operator: &operator})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRerouteStep_RejectedTargetKeepsState(t *testing.T) {
	app := setupTestApp(t, nil)

	sessionID := openSession(t, app, createDraft(t, app))

	_, body := doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/steps", web.InsertStepRequest{
		TemplateID: catalog.TemplateStepCondition,
	})

	var inserted struct {
		StepID string `json:"step_id"`
	}
	require.NoError(t, json.Unmarshal(body, &inserted))

	// A self-targeted reroute is rejected.
	resp, body := doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/steps/"+inserted.StepID+"/reroute", web.RerouteStepRequest{
		Kind:     "after",
		TargetID: inserted.StepID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodGet, "/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session web.SessionResponse
	require.NoError(t, json.Unmarshal(body, &session))
	require.Len(t, session.Steps, 1, "rejected reroute leaves the tree untouched")
}

func TestTriggerAndUndoRedo(t *testing.T) {
	app := setupTestApp(t, nil)

	sessionID := openSession(t, app, createDraft(t, app))

	resp, body := doJSON(t, app, http.MethodPut, "/sessions/"+sessionID+"/trigger", web.TriggerRequest{
		Type:              "record_created",
		EntityLogicalName: "order",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var session web.SessionResponse
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, models.TriggerTypeRecordCreated, session.Trigger.Type)
	assert.True(t, session.CanUndo)

	var undone struct {
		Applied bool                `json:"applied"`
		Session web.SessionResponse `json:"session"`
	}

	_, body = doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/undo", nil)
	require.NoError(t, json.Unmarshal(body, &undone))
	assert.True(t, undone.Applied)
	assert.Equal(t, models.TriggerTypeManual, undone.Session.Trigger.Type)

	_, body = doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/redo", nil)
	require.NoError(t, json.Unmarshal(body, &undone))
	assert.True(t, undone.Applied)
	assert.Equal(t, models.TriggerTypeRecordCreated, undone.Session.Trigger.Type)
}

func TestMoveNodesAndSelection(t *testing.T) {
	app := setupTestApp(t, nil)

	sessionID := openSession(t, app, createDraft(t, app))

	_, body := doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/steps", web.InsertStepRequest{
		TemplateID: catalog.TemplateStepLogMessage,
	})

	var inserted struct {
		StepID string `json:"step_id"`
	}
	require.NoError(t, json.Unmarshal(body, &inserted))

	resp, body := doJSON(t, app, http.MethodPut, "/sessions/"+sessionID+"/positions", web.MoveNodesRequest{
		Positions: map[string]web.PositionDTO{inserted.StepID: {X: 300, Y: 200}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var session web.SessionResponse
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, models.CanvasPosition{X: 300, Y: 200}, session.Positions[inserted.StepID])

	resp, body = doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/selection", web.SelectNodeRequest{NodeID: inserted.StepID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, []string{inserted.StepID}, session.SelectedNodeIDs)

	resp, body = doJSON(t, app, http.MethodDelete, "/sessions/"+sessionID+"/selection", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Empty(t, session.SelectedNodeIDs)
}

func TestMoveNodes_UnknownNodeLeavesPositionsUntouched(t *testing.T) {
	app := setupTestApp(t, nil)

	sessionID := openSession(t, app, createDraft(t, app))

	_, body := doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/steps", web.InsertStepRequest{
		TemplateID: catalog.TemplateStepLogMessage,
	})

	var inserted struct {
		StepID  string              `json:"step_id"`
		Session web.SessionResponse `json:"session"`
	}
	require.NoError(t, json.Unmarshal(body, &inserted))
	before := inserted.Session.Positions[inserted.StepID]

	resp, _ := doJSON(t, app, http.MethodPut, "/sessions/"+sessionID+"/positions", web.MoveNodesRequest{
		Positions: map[string]web.PositionDTO{
			inserted.StepID: {X: 999, Y: 999},
			"missing":       {X: 1, Y: 1},
		},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, body = doJSON(t, app, http.MethodGet, "/sessions/"+sessionID, nil)

	var session web.SessionResponse
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, before, session.Positions[inserted.StepID], "failed batch must not move any node")
}

func TestMarqueeSelection(t *testing.T) {
	app := setupTestApp(t, nil)

	sessionID := openSession(t, app, createDraft(t, app))

	var first, second struct {
		StepID string `json:"step_id"`
	}

	_, body := doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/steps", web.InsertStepRequest{
		TemplateID: catalog.TemplateStepLogMessage,
	})
	require.NoError(t, json.Unmarshal(body, &first))

	_, body = doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/steps", web.InsertStepRequest{
		TemplateID: catalog.TemplateStepLogMessage,
	})
	require.NoError(t, json.Unmarshal(body, &second))

	// A sweep across the whole canvas selects every step node but never
	// the trigger.
	resp, body := doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/selection/marquee", web.MarqueeSelectRequest{
		From: web.PositionDTO{X: 0, Y: 0},
		To:   web.PositionDTO{X: 5000, Y: 5000},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var result struct {
		SelectedNodeIDs []string            `json:"selected_node_ids"`
		Session         web.SessionResponse `json:"session"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	assert.ElementsMatch(t, []string{first.StepID, second.StepID}, result.SelectedNodeIDs)
	assert.NotContains(t, result.SelectedNodeIDs, models.TriggerNodeID)
}

func TestSaveSession_PersistsDraft(t *testing.T) {
	app := setupTestApp(t, nil)

	draftID := createDraft(t, app)
	sessionID := openSession(t, app, draftID)

	_, _ = doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/steps", web.InsertStepRequest{
		TemplateID: catalog.TemplateStepLogMessage,
	})

	resp, body := doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodGet, "/drafts/"+draftID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var draft models.WorkflowDraft
	require.NoError(t, json.Unmarshal(body, &draft))
	assert.Len(t, draft.Steps, 1)

	// A saved session is no longer dirty.
	_, body = doJSON(t, app, http.MethodGet, "/sessions/"+sessionID, nil)

	var session web.SessionResponse
	require.NoError(t, json.Unmarshal(body, &session))
	assert.False(t, session.Dirty)
}

func TestSubmitSession_CompileFailure(t *testing.T) {
	backendServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("compile failures must not reach the backend")
	}))
	defer backendServer.Close()

	app := setupTestApp(t, backend.NewClient(backendServer.URL))

	sessionID := openSession(t, app, createDraft(t, app))

	// An empty canvas has no executable action step.
	resp, body := doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/submit", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "executable action step")
}

func TestSubmitAndExecute(t *testing.T) {
	backendServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPut:
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "wf-1", "logical_name": "order_followup"})
		case r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(map[string]string{"run_id": "run-1", "status": "queued"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer backendServer.Close()

	app := setupTestApp(t, backend.NewClient(backendServer.URL))

	sessionID := openSession(t, app, createDraft(t, app))

	_, _ = doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/steps", web.InsertStepRequest{
		TemplateID: catalog.TemplateStepLogMessage,
	})

	resp, body := doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var workflow backend.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))
	assert.Equal(t, "wf-1", workflow.ID)

	resp, body = doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/execute", web.ExecuteDraftRequest{
		PayloadText: `{"order_id": "o-42"}`,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "run-1")
}

func TestExecuteSession_MalformedPayload(t *testing.T) {
	backendServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("malformed payloads must fail before the network call")
	}))
	defer backendServer.Close()

	app := setupTestApp(t, backend.NewClient(backendServer.URL))

	sessionID := openSession(t, app, createDraft(t, app))

	resp, _ := doJSON(t, app, http.MethodPost, "/sessions/"+sessionID+"/execute", web.ExecuteDraftRequest{
		PayloadText: "{not json",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTemplates(t *testing.T) {
	app := setupTestApp(t, nil)

	resp, body := doJSON(t, app, http.MethodGet, "/templates?query=log", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var templates []catalog.Template
	require.NoError(t, json.Unmarshal(body, &templates))
	require.Len(t, templates, 1)
	assert.Equal(t, catalog.TemplateStepLogMessage, templates[0].ID)

	resp, body = doJSON(t, app, http.MethodGet, "/templates?category=triggers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &templates))
	assert.Len(t, templates, 4)
}

func TestCloseSessionDiscardsEdits(t *testing.T) {
	app := setupTestApp(t, nil)

	sessionID := openSession(t, app, createDraft(t, app))

	resp, _ := doJSON(t, app, http.MethodDelete, "/sessions/"+sessionID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/sessions/"+sessionID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	app := setupTestApp(t, nil)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")
}
