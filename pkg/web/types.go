// Package web provides the HTTP surface of the canvas editor: draft
// CRUD, edit sessions, and the save/execute bridge to the workflow
// backend.
package web

import (
	"github.com/appforge/flowcanvas/pkg/editor"
	"github.com/appforge/flowcanvas/pkg/models"
)

// CreateDraftRequest creates a new empty workflow draft.
type CreateDraftRequest struct {
	LogicalName string `json:"logical_name" validate:"required,min=3"`
	DisplayName string `json:"display_name" validate:"required"`
	Description string `json:"description"`
}

// OpenSessionRequest opens an edit session over a stored draft.
type OpenSessionRequest struct {
	DraftID  string `json:"draft_id"  validate:"required"`
	GridSnap bool   `json:"grid_snap"`
}

// PositionDTO is a canvas position in a request body.
type PositionDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InsertStepRequest materializes a catalog template into the session.
type InsertStepRequest struct {
	TemplateID string       `json:"template_id" validate:"required"`
	At         *PositionDTO `json:"at,omitempty"`
}

// UpdateStepRequest is a partial update of one step's fields. Absent
// fields are left untouched.
type UpdateStepRequest struct {
	Message           *string `json:"message,omitempty"`
	EntityLogicalName *string `json:"entity_logical_name,omitempty"`
	DataJSON          *string `json:"data_json,omitempty"`
	FieldPath         *string `json:"field_path,omitempty"`
	Operator          *string `json:"operator,omitempty"`
	ValueJSON         *string `json:"value_json,omitempty"`
	ThenLabel         *string `json:"then_label,omitempty"`
	ElseLabel         *string `json:"else_label,omitempty"`
}

// RerouteStepRequest moves a step to a new structural location.
type RerouteStepRequest struct {
	Kind     string `json:"kind"      validate:"required,oneof=trigger_start before after then else"`
	TargetID string `json:"target_id"`
}

// TriggerRequest replaces the draft's trigger configuration.
type TriggerRequest struct {
	Type              string `json:"type"                validate:"required,oneof=manual scheduled record_created record_updated"`
	EntityLogicalName string `json:"entity_logical_name"`
	CronExpression    string `json:"cron_expression"`
}

// SelectNodeRequest selects a canvas node.
type SelectNodeRequest struct {
	NodeID   string `json:"node_id"  validate:"required"`
	Additive bool   `json:"additive"`
}

// MarqueeSelectRequest sweeps a selection rectangle from one corner to
// the other. Additive keeps the selection that existed when the sweep
// started.
type MarqueeSelectRequest struct {
	From     PositionDTO `json:"from"`
	To       PositionDTO `json:"to"`
	Additive bool        `json:"additive"`
}

// MoveNodesRequest applies absolute positions to canvas nodes.
type MoveNodesRequest struct {
	Positions map[string]PositionDTO `json:"positions" validate:"required,min=1"`
}

// ExecuteDraftRequest carries the free-form trigger payload text.
type ExecuteDraftRequest struct {
	PayloadText string `json:"payload_text"`
}

// SessionResponse is the full editable state of one session.
type SessionResponse struct {
	SessionID       string                           `json:"session_id"`
	DraftID         string                           `json:"draft_id"`
	Trigger         models.TriggerSummary            `json:"trigger"`
	Steps           []*models.DraftStep              `json:"steps"`
	Positions       map[string]models.CanvasPosition `json:"positions"`
	SelectedNodeIDs []string                         `json:"selected_node_ids"`
	Status          string                           `json:"status"`
	Dirty           bool                             `json:"dirty"`
	CanUndo         bool                             `json:"can_undo"`
	CanRedo         bool                             `json:"can_redo"`
}

// GraphResponse is the derived canvas graph plus node positions.
type GraphResponse struct {
	Nodes     []models.CanvasNode              `json:"nodes"`
	Edges     []models.CanvasEdge              `json:"edges"`
	Positions map[string]models.CanvasPosition `json:"positions"`
}

// TransformSessionResponse folds a session into its response shape.
func TransformSessionResponse(session *editor.Session) SessionResponse {
	draft := session.Draft()

	return SessionResponse{
		SessionID:       session.ID(),
		DraftID:         draft.ID,
		Trigger:         session.Trigger(),
		Steps:           session.Steps(),
		Positions:       session.Positions(),
		SelectedNodeIDs: session.SelectedNodeIDs(),
		Status:          session.StatusMessage(),
		Dirty:           session.Dirty(),
		CanUndo:         session.CanUndo(),
		CanRedo:         session.CanRedo(),
	}
}

// TransformGraphResponse folds the derived graph into its response
// shape.
func TransformGraphResponse(session *editor.Session) GraphResponse {
	graph := session.Graph()

	return GraphResponse{
		Nodes:     graph.Nodes,
		Edges:     graph.Edges,
		Positions: session.Positions(),
	}
}
