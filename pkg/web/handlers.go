package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/appforge/flowcanvas/pkg/backend"
	"github.com/appforge/flowcanvas/pkg/catalog"
	"github.com/appforge/flowcanvas/pkg/compiler"
	"github.com/appforge/flowcanvas/pkg/editor"
	"github.com/appforge/flowcanvas/pkg/eventbus"
	"github.com/appforge/flowcanvas/pkg/models"
	"github.com/appforge/flowcanvas/pkg/otelhelper"
	"github.com/appforge/flowcanvas/pkg/persistence"
)

// APIHandlers serves the canvas editor HTTP API.
type APIHandlers struct {
	store       *SessionStore
	persistence persistence.Persistence
	backend     *backend.Client
	eventBus    eventbus.EventBus
	validator   *validator.Validate
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewAPIHandlers wires the editor handlers.
func NewAPIHandlers(
	store *SessionStore,
	persistence persistence.Persistence,
	backendClient *backend.Client,
	eventBus eventbus.EventBus,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		store:       store,
		persistence: persistence,
		backend:     backendClient,
		eventBus:    eventBus,
		validator:   validator,
		logger:      logger,
		tracer:      otel.Tracer("flowcanvas.web"),
	}
}

// HealthCheck reports storage health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":        status,
		"open_sessions": h.store.Len(),
		"timestamp":     time.Now().UTC(),
	})
}

// GetDrafts lists every stored draft.
func (h *APIHandlers) GetDrafts(c fiber.Ctx) error {
	drafts, err := h.persistence.Drafts(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(drafts)
}

// CreateDraft stores a new empty draft with a manual trigger.
func (h *APIHandlers) CreateDraft(c fiber.Ctx) error {
	var req CreateDraftRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	draft := &models.WorkflowDraft{
		ID:          uuid.New().String(),
		LogicalName: req.LogicalName,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Trigger:     models.TriggerSummary{Type: models.TriggerTypeManual},
		Steps:       []*models.DraftStep{},
		MaxAttempts: 1,
	}

	if err := h.persistence.SaveDraft(c.Context(), draft); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(draft)
}

// GetDraft returns one stored draft.
func (h *APIHandlers) GetDraft(c fiber.Ctx) error {
	draft, err := h.persistence.DraftByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleEditorError(c, err)
	}

	return c.JSON(draft)
}

// DeleteDraft removes a stored draft.
func (h *APIHandlers) DeleteDraft(c fiber.Ctx) error {
	if err := h.persistence.DeleteDraft(c.Context(), c.Params("id")); err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// OpenSession loads a draft into a fresh edit session.
func (h *APIHandlers) OpenSession(c fiber.Ctx) error {
	var req OpenSessionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	draft, err := h.persistence.DraftByID(c.Context(), req.DraftID)
	if err != nil {
		return handleEditorError(c, err)
	}

	opts := []editor.Option{editor.WithLogger(h.logger)}
	if h.eventBus != nil {
		opts = append(opts, editor.WithPublisher(h.eventBus))
	}

	session := editor.NewSession(draft, opts...)
	session.SetGridSnap(req.GridSnap)
	h.store.Put(session)

	return c.Status(fiber.StatusCreated).JSON(TransformSessionResponse(session))
}

// GetSession returns the full editable state of a session.
func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	return c.JSON(TransformSessionResponse(session))
}

// CloseSession drops a session; unsaved edits are discarded.
func (h *APIHandlers) CloseSession(c fiber.Ctx) error {
	h.store.Delete(c.Params("id"))

	return c.SendStatus(fiber.StatusNoContent)
}

// GetGraph returns the derived canvas graph of a session.
func (h *APIHandlers) GetGraph(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	return c.JSON(TransformGraphResponse(session))
}

// GetTemplates resolves the insertion picker catalog.
func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	category := c.Query("category", catalog.CategoryAll)

	return c.JSON(catalog.Resolve(c.Query("query"), category))
}

// InsertStep materializes a template into the session.
func (h *APIHandlers) InsertStep(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	var req InsertStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	var at *models.CanvasPosition
	if req.At != nil {
		at = &models.CanvasPosition{X: req.At.X, Y: req.At.Y}
	}

	stepID, err := session.InsertTemplateStep(req.TemplateID, at)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"step_id": stepID,
		"session": TransformSessionResponse(session),
	})
}

// UpdateStep partially updates one step's fields.
func (h *APIHandlers) UpdateStep(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	var req UpdateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if req.Operator != nil && !models.ConditionOperator(*req.Operator).IsValid() {
		return badRequest(c, "unknown condition operator")
	}

	err := session.UpdateStep(c.Params("stepId"), func(step *models.DraftStep) {
		applyStepUpdate(step, req)
	})
	if err != nil {
		return handleEditorError(c, err)
	}

	return c.JSON(TransformSessionResponse(session))
}

func applyStepUpdate(step *models.DraftStep, req UpdateStepRequest) {
	if req.Message != nil {
		step.Message = *req.Message
	}

	if req.EntityLogicalName != nil {
		step.EntityLogicalName = *req.EntityLogicalName
	}

	if req.DataJSON != nil {
		step.DataJSON = *req.DataJSON
	}

	if req.FieldPath != nil {
		step.FieldPath = *req.FieldPath
	}

	if req.Operator != nil {
		step.Operator = models.ConditionOperator(*req.Operator)
	}

	if req.ValueJSON != nil {
		step.ValueJSON = *req.ValueJSON
	}

	if req.ThenLabel != nil {
		step.ThenLabel = *req.ThenLabel
	}

	if req.ElseLabel != nil {
		step.ElseLabel = *req.ElseLabel
	}
}

// DeleteStep removes a step from the session.
func (h *APIHandlers) DeleteStep(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	if err := session.RemoveStep(c.Params("stepId")); err != nil {
		return handleEditorError(c, err)
	}

	return c.JSON(TransformSessionResponse(session))
}

// DuplicateStep deep-copies a step subtree with fresh ids.
func (h *APIHandlers) DuplicateStep(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	duplicatedID, err := session.DuplicateStep(c.Params("stepId"))
	if err != nil {
		return handleEditorError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"duplicated_step_id": duplicatedID,
		"session":            TransformSessionResponse(session),
	})
}

// RerouteStep moves a step to a new structural location.
func (h *APIHandlers) RerouteStep(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	var req RerouteStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	target := models.RerouteTarget{
		Kind:     models.RerouteKind(req.Kind),
		TargetID: req.TargetID,
	}

	if err := session.ApplyRerouteTarget(c.Params("stepId"), target); err != nil {
		return handleEditorError(c, err)
	}

	return c.JSON(TransformSessionResponse(session))
}

// PutTrigger replaces the session's trigger configuration.
func (h *APIHandlers) PutTrigger(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	var req TriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session.ApplyTrigger(models.TriggerSummary{
		Type:              models.TriggerType(req.Type),
		EntityLogicalName: req.EntityLogicalName,
		CronExpression:    req.CronExpression,
	})

	return c.JSON(TransformSessionResponse(session))
}

// MoveNodes applies absolute canvas positions to nodes.
func (h *APIHandlers) MoveNodes(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	var req MoveNodesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	positions := make(map[string]models.CanvasPosition, len(req.Positions))
	for nodeID, pos := range req.Positions {
		positions[nodeID] = models.CanvasPosition{X: pos.X, Y: pos.Y}
	}

	if err := session.MoveNodes(positions); err != nil {
		return handleEditorError(c, err)
	}

	return c.JSON(TransformSessionResponse(session))
}

// SelectNode selects or toggles a canvas node.
func (h *APIHandlers) SelectNode(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	var req SelectNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session.SelectNode(req.NodeID, req.Additive)

	return c.JSON(TransformSessionResponse(session))
}

// MarqueeSelect runs a full marquee gesture over the canvas: press at
// one corner, sweep to the other, release. A gesture already in flight
// turns into a conflict response.
func (h *APIHandlers) MarqueeSelect(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	var req MarqueeSelectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	from := models.CanvasPosition{X: req.From.X, Y: req.From.Y}
	to := models.CanvasPosition{X: req.To.X, Y: req.To.Y}

	if err := session.BeginMarquee(from, req.Additive); err != nil {
		return handleEditorError(c, err)
	}

	if err := session.MarqueePointerMove(to); err != nil {
		return handleEditorError(c, err)
	}

	selected, err := session.EndMarquee(to)
	if err != nil {
		return handleEditorError(c, err)
	}

	return c.JSON(fiber.Map{
		"selected_node_ids": selected,
		"session":           TransformSessionResponse(session),
	})
}

// ClearSelection empties the selection.
func (h *APIHandlers) ClearSelection(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	session.ClearSelection()

	return c.JSON(TransformSessionResponse(session))
}

// Undo rewinds the session to the previous checkpoint.
func (h *APIHandlers) Undo(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	return c.JSON(fiber.Map{
		"applied": session.Undo(),
		"session": TransformSessionResponse(session),
	})
}

// Redo re-applies the most recently undone checkpoint.
func (h *APIHandlers) Redo(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	return c.JSON(fiber.Map{
		"applied": session.Redo(),
		"session": TransformSessionResponse(session),
	})
}

// SaveSession persists the session's current draft state.
func (h *APIHandlers) SaveSession(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	draft := session.Draft()
	if err := h.persistence.SaveDraft(c.Context(), draft); err != nil {
		return internalError(c, err)
	}

	session.MarkSaved()

	return c.JSON(draft)
}

// SubmitSession compiles the session's draft and pushes it to the
// workflow backend. The local draft state is untouched on failure.
func (h *APIHandlers) SubmitSession(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	if h.backend == nil {
		return badGateway(c, "no workflow backend configured")
	}

	draft := session.Draft()

	ctx, span := otelhelper.StartSpan(c.Context(), h.tracer, "session.submit",
		attribute.String(otelhelper.OperationKey, "submit"),
		attribute.String(otelhelper.SessionIDKey, session.ID()),
		attribute.String(otelhelper.DraftIDKey, draft.ID),
		attribute.String(otelhelper.LogicalNameKey, draft.LogicalName),
	)
	defer span.End()

	request, err := compiler.BuildSaveRequest(draft)
	if err != nil {
		otelhelper.SetError(span, err)

		return handleEditorError(c, err)
	}

	workflow, err := h.backend.SaveWorkflow(ctx, draft.ID, request)
	if err != nil {
		otelhelper.SetError(span, err)

		return handleEditorError(c, err)
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, workflow.ID))
	session.MarkSaved()

	return c.JSON(workflow)
}

// ExecuteSession parses the trigger payload text and starts a run.
func (h *APIHandlers) ExecuteSession(c fiber.Ctx) error {
	session, ok := h.store.Get(c.Params("id"))
	if !ok {
		return notFound(c, "session not found")
	}

	if h.backend == nil {
		return badGateway(c, "no workflow backend configured")
	}

	var req ExecuteDraftRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	draftID := session.Draft().ID

	ctx, span := otelhelper.StartSpan(c.Context(), h.tracer, "session.execute",
		attribute.String(otelhelper.OperationKey, "execute"),
		attribute.String(otelhelper.SessionIDKey, session.ID()),
		attribute.String(otelhelper.DraftIDKey, draftID),
	)
	defer span.End()

	payload, err := compiler.ParseExecutePayload(req.PayloadText)
	if err != nil {
		otelhelper.SetError(span, err)

		return handleEditorError(c, err)
	}

	result, err := h.backend.ExecuteWorkflow(ctx, draftID, payload)
	if err != nil {
		otelhelper.SetError(span, err)

		return handleEditorError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(result)
}
