package models

import "time"

// WorkflowDraft is the editable unit the canvas works on: a trigger, a
// step tree, and the metadata the platform needs on save. NodePositions
// are editor display state; they are persisted with the draft so a
// reopened session restores its canvas, but they never enter the
// compiled transport payload.
type WorkflowDraft struct {
	ID            string                    `json:"id"            validate:"required"`
	LogicalName   string                    `json:"logical_name"  validate:"required"`
	DisplayName   string                    `json:"display_name"  validate:"required,min=3"`
	Description   string                    `json:"description"`
	Trigger       TriggerSummary            `json:"trigger"`
	Steps         []*DraftStep              `json:"steps"`
	NodePositions map[string]CanvasPosition `json:"node_positions,omitempty"`
	MaxAttempts   int                       `json:"max_attempts"`
	IsEnabled     bool                      `json:"is_enabled"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// Clone deep-copies the draft, including the step tree and positions.
func (d *WorkflowDraft) Clone() *WorkflowDraft {
	if d == nil {
		return nil
	}

	clone := *d
	clone.Steps = CloneSteps(d.Steps)

	if d.NodePositions != nil {
		clone.NodePositions = make(map[string]CanvasPosition, len(d.NodePositions))
		for id, pos := range d.NodePositions {
			clone.NodePositions[id] = pos
		}
	}

	return &clone
}
