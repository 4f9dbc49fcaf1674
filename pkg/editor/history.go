package editor

import (
	"github.com/appforge/flowcanvas/pkg/models"
	"github.com/appforge/flowcanvas/pkg/steps"
)

// historyCapacity bounds both stacks; the oldest checkpoint is dropped
// once a stack grows past it.
const historyCapacity = 50

// Snapshot is a full value copy of the editable state: trigger config,
// step tree (deep clone), node positions (map copy), and selection.
// Trees are tens of nodes, so full copies are cheap enough.
type Snapshot struct {
	Trigger         models.TriggerSummary
	Steps           []*models.DraftStep
	NodePositions   map[string]models.CanvasPosition
	SelectedNodeIDs []string
	InspectorNodeID string
}

// history keeps linear undo/redo semantics: a new checkpoint always
// clears the redo branch. The restoring flag suppresses checkpoint
// pushes while a snapshot is being applied, since restore drives the
// same setters as a normal edit.
type history struct {
	undo      []Snapshot
	redo      []Snapshot
	restoring bool
}

func (h *history) push(snapshot Snapshot) {
	if h.restoring {
		return
	}

	h.undo = append(h.undo, snapshot)
	if len(h.undo) > historyCapacity {
		h.undo = h.undo[1:]
	}

	h.redo = nil
}

// popUndo removes the most recent checkpoint and records the current
// state on the redo stack. Returns false when there is nothing to undo.
func (h *history) popUndo(current Snapshot) (Snapshot, bool) {
	if len(h.undo) == 0 {
		return Snapshot{}, false
	}

	snapshot := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]

	h.redo = append(h.redo, current)
	if len(h.redo) > historyCapacity {
		h.redo = h.redo[1:]
	}

	return snapshot, true
}

func (h *history) popRedo(current Snapshot) (Snapshot, bool) {
	if len(h.redo) == 0 {
		return Snapshot{}, false
	}

	snapshot := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]

	h.undo = append(h.undo, current)
	if len(h.undo) > historyCapacity {
		h.undo = h.undo[1:]
	}

	return snapshot, true
}

func (s *Session) snapshot() Snapshot {
	positions := make(map[string]models.CanvasPosition, len(s.positions))
	for id, pos := range s.positions {
		positions[id] = pos
	}

	selected := make([]string, len(s.selectedNodeIDs))
	copy(selected, s.selectedNodeIDs)

	return Snapshot{
		Trigger:         s.trigger,
		Steps:           steps.CloneWorkflowSteps(s.steps),
		NodePositions:   positions,
		SelectedNodeIDs: selected,
		InspectorNodeID: s.inspectorNodeID,
	}
}

func (s *Session) applySnapshot(snapshot Snapshot) {
	s.history.restoring = true
	defer func() { s.history.restoring = false }()

	s.trigger = snapshot.Trigger
	s.steps = snapshot.Steps
	s.positions = snapshot.NodePositions
	s.selectedNodeIDs = snapshot.SelectedNodeIDs
	s.inspectorNodeID = snapshot.InspectorNodeID
	s.rebuildGraph()
}

// pushCheckpoint records the current state onto the undo stack. Every
// structural or positional mutation calls this exactly once, before the
// mutation is applied.
func (s *Session) pushCheckpoint() {
	if s.history.restoring {
		return
	}

	s.history.push(s.snapshot())
	s.publish(s.checkpointEvent())
}

// Undo restores the most recent checkpoint. Returns false when the undo
// stack is empty.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.history.popUndo(s.snapshot())
	if !ok {
		return false
	}

	s.applySnapshot(snapshot)
	s.dirty = true
	s.publish(s.undoEvent())

	return true
}

// Redo re-applies the most recently undone checkpoint. A no-op after
// any new edit, which clears the redo branch.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, ok := s.history.popRedo(s.snapshot())
	if !ok {
		return false
	}

	s.applySnapshot(snapshot)
	s.dirty = true
	s.publish(s.redoEvent())

	return true
}

// CanUndo reports whether an undo checkpoint is available.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.history.undo) > 0
}

// CanRedo reports whether a redo checkpoint is available.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.history.redo) > 0
}
