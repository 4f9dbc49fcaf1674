// Package events defines the typed notifications an editor session
// publishes while a workflow draft is being edited.
package events

import (
	"time"

	"github.com/appforge/flowcanvas/pkg/models"
)

type EventType string

// Topic is the single bus topic carrying editor events.
const Topic = "flowcanvas.editor.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	StepInsertedEvent   EventType = "editor.step.inserted"
	StepUpdatedEvent    EventType = "editor.step.updated"
	StepRemovedEvent    EventType = "editor.step.removed"
	StepDuplicatedEvent EventType = "editor.step.duplicated"
	StepReroutedEvent   EventType = "editor.step.rerouted"
	TriggerUpdatedEvent EventType = "editor.trigger.updated"
	NodesMovedEvent     EventType = "editor.nodes.moved"
	CheckpointEvent     EventType = "editor.history.checkpoint"
	UndoAppliedEvent    EventType = "editor.history.undone"
	RedoAppliedEvent    EventType = "editor.history.redone"
	DraftSavedEvent     EventType = "editor.draft.saved"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	DraftID   string    `json:"draft_id,omitempty"`
}

type StepInserted struct {
	BaseEvent

	StepID     string          `json:"step_id"`
	StepType   models.StepType `json:"step_type"`
	TemplateID string          `json:"template_id,omitempty"`
}

func (e StepInserted) GetType() EventType { return StepInsertedEvent }

type StepUpdated struct {
	BaseEvent

	StepID string `json:"step_id"`
}

func (e StepUpdated) GetType() EventType { return StepUpdatedEvent }

type StepRemoved struct {
	BaseEvent

	StepID string `json:"step_id"`
}

func (e StepRemoved) GetType() EventType { return StepRemovedEvent }

type StepDuplicated struct {
	BaseEvent

	SourceStepID     string `json:"source_step_id"`
	DuplicatedStepID string `json:"duplicated_step_id"`
}

func (e StepDuplicated) GetType() EventType { return StepDuplicatedEvent }

type StepRerouted struct {
	BaseEvent

	StepID string               `json:"step_id"`
	Target models.RerouteTarget `json:"target"`
}

func (e StepRerouted) GetType() EventType { return StepReroutedEvent }

type TriggerUpdated struct {
	BaseEvent

	Trigger models.TriggerSummary `json:"trigger"`
}

func (e TriggerUpdated) GetType() EventType { return TriggerUpdatedEvent }

type NodesMoved struct {
	BaseEvent

	NodeIDs []string `json:"node_ids"`
}

func (e NodesMoved) GetType() EventType { return NodesMovedEvent }

type CheckpointRecorded struct {
	BaseEvent

	UndoDepth int `json:"undo_depth"`
}

func (e CheckpointRecorded) GetType() EventType { return CheckpointEvent }

type UndoApplied struct {
	BaseEvent
}

func (e UndoApplied) GetType() EventType { return UndoAppliedEvent }

type RedoApplied struct {
	BaseEvent
}

func (e RedoApplied) GetType() EventType { return RedoAppliedEvent }

type DraftSaved struct {
	BaseEvent

	LogicalName string `json:"logical_name"`
	StepCount   int    `json:"step_count"`
}

func (e DraftSaved) GetType() EventType { return DraftSavedEvent }
