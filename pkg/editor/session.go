// Package editor owns the live state of one workflow canvas edit
// session: the trigger, the step tree, node positions, selection, the
// gesture state machine, and undo/redo history. A session serializes
// all access through its own lock; there is no cross-session sharing.
package editor

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/flowcanvas/pkg/canvas"
	"github.com/appforge/flowcanvas/pkg/catalog"
	"github.com/appforge/flowcanvas/pkg/eventbus"
	"github.com/appforge/flowcanvas/pkg/events"
	"github.com/appforge/flowcanvas/pkg/models"
	"github.com/appforge/flowcanvas/pkg/steps"
)

var (
	ErrStepNotFound    = errors.New("step not found")
	ErrRerouteRejected = errors.New("unable to apply wire reroute target")
	ErrGestureActive   = errors.New("another canvas gesture is already active")
	ErrNoActiveGesture = errors.New("no canvas gesture is active")
)

// Session is the single owner of one workflow draft's editable state.
type Session struct {
	mu sync.Mutex

	id    string
	draft *models.WorkflowDraft

	trigger         models.TriggerSummary
	steps           []*models.DraftStep
	positions       map[string]models.CanvasPosition
	selectedNodeIDs []string
	inspectorNodeID string
	gridSnap        bool

	graph   models.CanvasGraph
	gesture gestureState
	history history
	dirty   bool
	status  string

	// Picker is the insertion picker state; it carries its own lock.
	Picker Picker

	logger    *slog.Logger
	publisher eventbus.EventPublisher
	idGen     steps.IDGenerator
}

// Option configures a Session.
type Option func(*Session)

// WithPublisher attaches an event publisher; mutations then emit
// editor events.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(s *Session) { s.publisher = publisher }
}

// WithLogger overrides the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithIDGenerator overrides step id generation, for deterministic
// tests.
func WithIDGenerator(idGen steps.IDGenerator) Option {
	return func(s *Session) { s.idGen = idGen }
}

// NewSession opens an edit session over a draft. The draft is cloned;
// the caller's copy is never mutated.
func NewSession(draft *models.WorkflowDraft, opts ...Option) *Session {
	draft = draft.Clone()

	session := &Session{
		id:        uuid.New().String(),
		draft:     draft,
		trigger:   draft.Trigger,
		steps:     draft.Steps,
		positions: draft.NodePositions,
		logger:    slog.Default(),
		idGen:     steps.NewID,
	}

	if session.positions == nil {
		session.positions = make(map[string]models.CanvasPosition)
	}

	for _, opt := range opts {
		opt(session)
	}

	session.logger = session.logger.With("session_id", session.id, "draft_id", draft.ID)
	session.rebuildGraph()

	return session
}

// ID returns the session identity.
func (s *Session) ID() string {
	return s.id
}

// Draft returns a deep copy of the draft with the session's current
// trigger, steps, and positions folded in.
func (s *Session) Draft() *models.WorkflowDraft {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.draft.Clone()
	draft.Trigger = s.trigger
	draft.Steps = steps.CloneWorkflowSteps(s.steps)
	draft.NodePositions = s.copyPositions()

	return draft
}

// Graph returns the current derived canvas graph.
func (s *Session) Graph() models.CanvasGraph {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.graph
}

// Steps returns a deep copy of the current step tree.
func (s *Session) Steps() []*models.DraftStep {
	s.mu.Lock()
	defer s.mu.Unlock()

	return steps.CloneWorkflowSteps(s.steps)
}

// Trigger returns the current trigger configuration.
func (s *Session) Trigger() models.TriggerSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.trigger
}

// Positions returns a copy of the node position map.
func (s *Session) Positions() map[string]models.CanvasPosition {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.copyPositions()
}

// SelectedNodeIDs returns the current selection, in selection order.
func (s *Session) SelectedNodeIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.selectedNodeIDs))
	copy(out, s.selectedNodeIDs)

	return out
}

// StatusMessage returns the last transient status line shown to the
// user ("Connection cancelled", reroute failures, and so on).
func (s *Session) StatusMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// Dirty reports whether the session has unsaved edits. Once dirty, a
// session stays dirty until an explicit save.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dirty
}

// MarkSaved records that the draft state was persisted: the dirty flag
// clears and a draft saved event goes out.
func (s *Session) MarkSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dirty = false
	s.publish(s.draftSavedEvent())
}

// SetGridSnap toggles grid snapping for drags and cursor placement.
func (s *Session) SetGridSnap(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gridSnap = on
}

// GridSnap reports whether grid snapping is on.
func (s *Session) GridSnap() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.gridSnap
}

// InsertTemplateStep materializes a catalog template into the session.
// Trigger templates rewrite the trigger and return an empty step id.
// Step templates insert after the single selected step, or append to
// the end of the root sequence; at, when given, places the new node at
// the cursor.
func (s *Session) InsertTemplateStep(templateID string, at *models.CanvasPosition) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tpl, ok := catalog.TemplateByID(templateID); ok && tpl.Target == catalog.TargetTrigger {
		s.pushCheckpoint()

		next, ok := catalog.ApplyTriggerTemplate(templateID, s.trigger)
		if !ok {
			return "", ErrRerouteRejected
		}

		s.trigger = next
		s.afterMutation()
		s.publish(s.triggerEvent())

		return "", nil
	}

	step, err := catalog.CreateTemplateStep(templateID, s.idGen)
	if err != nil {
		return "", err
	}

	s.pushCheckpoint()

	inserted := false
	if len(s.selectedNodeIDs) == 1 && s.selectedNodeIDs[0] != models.TriggerNodeID {
		s.steps, inserted = steps.InsertStepRelativeToTarget(s.steps, s.selectedNodeIDs[0], steps.PlaceAfter, step)
	}

	if !inserted {
		s.steps = append(steps.CloneWorkflowSteps(s.steps), step)
	}

	if at != nil {
		pos := canvas.ClampToCanvas(*at)
		if s.gridSnap {
			pos = canvas.SnapToGrid(pos, canvas.GridSize)
		}

		s.positions[step.ID] = pos
	}

	s.afterMutation()
	s.publish(s.stepInsertedEvent(step, templateID))

	return step.ID, nil
}

// UpdateStep rewrites one step in place via mutate. The tree path to
// the step is structurally copied.
func (s *Session) UpdateStep(id string, mutate func(*models.DraftStep)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if steps.FindStepByID(s.steps, id) == nil {
		return ErrStepNotFound
	}

	s.pushCheckpoint()

	s.steps = steps.UpdateStepByID(s.steps, id, func(step *models.DraftStep) *models.DraftStep {
		mutate(step)

		return step
	})

	s.afterMutation()
	s.publish(s.stepUpdatedEvent(id))

	return nil
}

// RemoveStep deletes a step wherever it sits. Its position and
// selection entries go with it; ids are never reused.
func (s *Session) RemoveStep(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if steps.FindStepByID(s.steps, id) == nil {
		return ErrStepNotFound
	}

	s.pushCheckpoint()

	s.steps = steps.RemoveStepByID(s.steps, id)
	s.selectedNodeIDs = removeString(s.selectedNodeIDs, id)

	if s.inspectorNodeID == id {
		s.inspectorNodeID = ""
	}

	s.afterMutation()
	s.publish(s.stepRemovedEvent(id))

	return nil
}

// DuplicateStep deep-clones the subtree rooted at id with fresh ids and
// inserts the copy right after the original.
func (s *Session) DuplicateStep(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if steps.FindStepByID(s.steps, id) == nil {
		return "", ErrStepNotFound
	}

	s.pushCheckpoint()

	tree, duplicatedID := steps.DuplicateStepByID(s.steps, id, s.idGen)
	if duplicatedID == "" {
		s.status = "Unable to duplicate step"

		return "", ErrStepNotFound
	}

	s.steps = tree
	s.afterMutation()
	s.publish(s.stepDuplicatedEvent(id, duplicatedID))

	return duplicatedID, nil
}

// ApplyTrigger replaces the trigger configuration.
func (s *Session) ApplyTrigger(trigger models.TriggerSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pushCheckpoint()
	s.trigger = trigger
	s.afterMutation()
	s.publish(s.triggerEvent())
}

// MoveNodes places nodes at absolute positions, clamped and optionally
// snapped exactly like a drag. Every id is validated before anything
// moves; an unknown id aborts the whole batch. The batch records a
// single checkpoint, so one undo rewinds the entire move.
func (s *Session) MoveNodes(positions map[string]models.CanvasPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(positions) == 0 {
		return nil
	}

	ids := make([]string, 0, len(positions))

	for id := range positions {
		if s.graph.NodeByID(id) == nil {
			return ErrStepNotFound
		}

		ids = append(ids, id)
	}

	sort.Strings(ids)

	s.pushCheckpoint()

	for _, id := range ids {
		pos := positions[id]
		if s.gridSnap {
			pos = canvas.SnapToGrid(pos, canvas.GridSize)
		}

		s.positions[id] = canvas.ClampToCanvas(pos)
	}

	s.dirty = true
	s.publish(s.nodesMovedEvent(ids))

	return nil
}

// SelectNode handles click selection: a plain click selects singly,
// additive (shift) toggles membership. The clicked node also becomes
// the inspector target.
func (s *Session) SelectNode(id string, additive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectNodeLocked(id, additive)
}

func (s *Session) selectNodeLocked(id string, additive bool) {
	if !additive {
		s.selectedNodeIDs = []string{id}
		s.inspectorNodeID = id

		return
	}

	for i, existing := range s.selectedNodeIDs {
		if existing == id {
			s.selectedNodeIDs = append(s.selectedNodeIDs[:i], s.selectedNodeIDs[i+1:]...)

			return
		}
	}

	s.selectedNodeIDs = append(s.selectedNodeIDs, id)
	s.inspectorNodeID = id
}

// ClearSelection empties the selection and closes the inspector.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectedNodeIDs = nil
	s.inspectorNodeID = ""
}

// ApplyRerouteTarget moves a step to a new structural location. The
// move is validated in full before anything is extracted, so a
// rejected reroute leaves the tree untouched.
func (s *Session) ApplyRerouteTarget(stepID string, target models.RerouteTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyRerouteLocked(stepID, target)
}

func (s *Session) applyRerouteLocked(stepID string, target models.RerouteTarget) error {
	source := steps.FindStepByID(s.steps, stepID)
	if source == nil {
		s.status = "Unable to apply wire reroute target"

		return ErrRerouteRejected
	}

	// Self and descendant targets would detach the step into its own
	// subtree; reject before any mutation.
	if target.TargetID != "" && steps.StepContainsID(source, target.TargetID) {
		s.status = "Unable to apply wire reroute target"

		return ErrRerouteRejected
	}

	switch target.Kind {
	case models.RerouteTriggerStart:
	case models.RerouteBefore, models.RerouteAfter:
		if steps.FindStepByID(s.steps, target.TargetID) == nil {
			s.status = "Unable to apply wire reroute target"

			return ErrRerouteRejected
		}
	case models.RerouteThenBranch, models.RerouteElseBranch:
		condition := steps.FindStepByID(s.steps, target.TargetID)
		if condition == nil || !condition.IsCondition() {
			s.status = "Unable to apply wire reroute target"

			return ErrRerouteRejected
		}
	default:
		s.status = "Unable to apply wire reroute target"

		return ErrRerouteRejected
	}

	s.pushCheckpoint()

	extracted, remaining := steps.ExtractStepByID(s.steps, stepID)

	switch target.Kind {
	case models.RerouteTriggerStart:
		s.steps = append([]*models.DraftStep{extracted}, remaining...)
	case models.RerouteBefore:
		s.steps, _ = steps.InsertStepRelativeToTarget(remaining, target.TargetID, steps.PlaceBefore, extracted)
	case models.RerouteAfter:
		s.steps, _ = steps.InsertStepRelativeToTarget(remaining, target.TargetID, steps.PlaceAfter, extracted)
	case models.RerouteThenBranch:
		s.steps = steps.PrependStepToBranch(remaining, target.TargetID, steps.BranchThen, extracted)
	case models.RerouteElseBranch:
		s.steps = steps.PrependStepToBranch(remaining, target.TargetID, steps.BranchElse, extracted)
	}

	s.afterMutation()
	s.status = "Step rewired"
	s.publish(s.stepReroutedEvent(stepID, target))

	return nil
}

// rebuildGraph recomputes the derived graph and reconciles positions:
// nodes without a position get the lane/depth default, positions of
// deleted nodes are dropped.
func (s *Session) rebuildGraph() {
	s.graph = canvas.BuildGraph(s.trigger, s.steps)

	defaults := canvas.DefaultPositions(s.steps)
	live := make(map[string]bool, len(s.graph.Nodes))

	for _, node := range s.graph.Nodes {
		live[node.ID] = true

		if _, ok := s.positions[node.ID]; !ok {
			s.positions[node.ID] = defaults[node.ID]
		}
	}

	for id := range s.positions {
		if !live[id] {
			delete(s.positions, id)
		}
	}
}

func (s *Session) afterMutation() {
	s.dirty = true
	s.rebuildGraph()
}

func (s *Session) copyPositions() map[string]models.CanvasPosition {
	positions := make(map[string]models.CanvasPosition, len(s.positions))
	for id, pos := range s.positions {
		positions[id] = pos
	}

	return positions
}

func removeString(list []string, value string) []string {
	out := list[:0]

	for _, item := range list {
		if item != value {
			out = append(out, item)
		}
	}

	return out
}

func (s *Session) publish(event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(context.Background(), s.id, event); err != nil {
		s.logger.Warn("failed to publish editor event", "event_type", event.GetType(), "error", err)
	}
}

func (s *Session) baseEvent(eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: s.id,
		DraftID:   s.draft.ID,
	}
}

func (s *Session) stepInsertedEvent(step *models.DraftStep, templateID string) eventbus.Event {
	return events.StepInserted{
		BaseEvent:  s.baseEvent(events.StepInsertedEvent),
		StepID:     step.ID,
		StepType:   step.Type,
		TemplateID: templateID,
	}
}

func (s *Session) stepUpdatedEvent(stepID string) eventbus.Event {
	return events.StepUpdated{BaseEvent: s.baseEvent(events.StepUpdatedEvent), StepID: stepID}
}

func (s *Session) stepRemovedEvent(stepID string) eventbus.Event {
	return events.StepRemoved{BaseEvent: s.baseEvent(events.StepRemovedEvent), StepID: stepID}
}

func (s *Session) stepDuplicatedEvent(sourceID, duplicatedID string) eventbus.Event {
	return events.StepDuplicated{
		BaseEvent:        s.baseEvent(events.StepDuplicatedEvent),
		SourceStepID:     sourceID,
		DuplicatedStepID: duplicatedID,
	}
}

func (s *Session) stepReroutedEvent(stepID string, target models.RerouteTarget) eventbus.Event {
	return events.StepRerouted{
		BaseEvent: s.baseEvent(events.StepReroutedEvent),
		StepID:    stepID,
		Target:    target,
	}
}

func (s *Session) triggerEvent() eventbus.Event {
	return events.TriggerUpdated{BaseEvent: s.baseEvent(events.TriggerUpdatedEvent), Trigger: s.trigger}
}

func (s *Session) nodesMovedEvent(nodeIDs []string) eventbus.Event {
	return events.NodesMoved{BaseEvent: s.baseEvent(events.NodesMovedEvent), NodeIDs: nodeIDs}
}

func (s *Session) draftSavedEvent() eventbus.Event {
	return events.DraftSaved{
		BaseEvent:   s.baseEvent(events.DraftSavedEvent),
		LogicalName: s.draft.LogicalName,
		StepCount:   steps.CountSteps(s.steps),
	}
}

func (s *Session) checkpointEvent() eventbus.Event {
	return events.CheckpointRecorded{
		BaseEvent: s.baseEvent(events.CheckpointEvent),
		UndoDepth: len(s.history.undo),
	}
}

func (s *Session) undoEvent() eventbus.Event {
	return events.UndoApplied{BaseEvent: s.baseEvent(events.UndoAppliedEvent)}
}

func (s *Session) redoEvent() eventbus.Event {
	return events.RedoApplied{BaseEvent: s.baseEvent(events.RedoAppliedEvent)}
}
