package editor

import (
	"math"

	"github.com/appforge/flowcanvas/pkg/canvas"
	"github.com/appforge/flowcanvas/pkg/models"
	"github.com/appforge/flowcanvas/pkg/steps"
)

// GestureKind names the states of the canvas interaction machine. Only
// one gesture may be active at a time; entry is guarded, and pointer-up
// always returns to idle.
type GestureKind string

const (
	GestureIdle     GestureKind = "idle"
	GestureDragging GestureKind = "dragging"
	GestureWiring   GestureKind = "wiring"
	GestureMarquee  GestureKind = "marquee"
)

// dragThreshold is the pointer travel, in canvas pixels, below which a
// press-and-release counts as a click. The drag checkpoint is pushed on
// the first move past it, so plain clicks never pollute history.
const dragThreshold = 1.0

type gestureState struct {
	kind GestureKind

	// dragging
	cohort         []string
	startPositions map[string]models.CanvasPosition
	startPointer   models.CanvasPosition
	moved          bool

	// marquee
	marqueeOrigin models.CanvasPosition
	additive      bool
	baseline      []string

	// wiring
	wireSourceID string
	wirePointer  models.CanvasPosition
	hoverTarget  *models.RerouteTarget
}

// Gesture returns the active interaction state.
func (s *Session) Gesture() GestureKind {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gesture.kind == "" {
		return GestureIdle
	}

	return s.gesture.kind
}

// BeginNodeDrag starts a move gesture on a node. An unselected node
// becomes the sole selection; a selected one drags the whole selection
// as a cohort. Fails when any gesture is already active.
func (s *Session) BeginNodeDrag(nodeID string, at models.CanvasPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardIdle(); err != nil {
		return err
	}

	if s.graph.NodeByID(nodeID) == nil {
		return ErrStepNotFound
	}

	if !containsString(s.selectedNodeIDs, nodeID) {
		s.selectNodeLocked(nodeID, false)
	}

	cohort := make([]string, len(s.selectedNodeIDs))
	copy(cohort, s.selectedNodeIDs)

	startPositions := make(map[string]models.CanvasPosition, len(cohort))
	for _, id := range cohort {
		startPositions[id] = s.positions[id]
	}

	s.gesture = gestureState{
		kind:           GestureDragging,
		cohort:         cohort,
		startPositions: startPositions,
		startPointer:   at,
	}

	return nil
}

// DragPointerMove applies the pointer delta uniformly to every cohort
// member, clamped to the canvas and optionally snapped to the grid. The
// history checkpoint is pushed exactly once, on the first move past the
// click threshold.
func (s *Session) DragPointerMove(at models.CanvasPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gesture.kind != GestureDragging {
		return ErrNoActiveGesture
	}

	dx := at.X - s.gesture.startPointer.X
	dy := at.Y - s.gesture.startPointer.Y

	if !s.gesture.moved {
		if math.Abs(dx) <= dragThreshold && math.Abs(dy) <= dragThreshold {
			return nil
		}

		s.pushCheckpoint()
		s.gesture.moved = true
	}

	for _, id := range s.gesture.cohort {
		start := s.gesture.startPositions[id]
		pos := models.CanvasPosition{X: start.X + dx, Y: start.Y + dy}

		if s.gridSnap {
			pos = canvas.SnapToGrid(pos, canvas.GridSize)
		}

		s.positions[id] = canvas.ClampToCanvas(pos)
	}

	s.dirty = true

	return nil
}

// EndNodeDrag finishes the move gesture. Returns the ids that actually
// moved (empty for a plain click).
func (s *Session) EndNodeDrag() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gesture.kind != GestureDragging {
		return nil, ErrNoActiveGesture
	}

	var moved []string
	if s.gesture.moved {
		moved = s.gesture.cohort
		s.publish(s.nodesMovedEvent(moved))
	}

	s.gesture = gestureState{kind: GestureIdle}

	return moved, nil
}

// BeginMarquee starts a rectangular selection drag over empty canvas.
// With additive true (shift held) the marquee extends the current
// selection instead of replacing it.
func (s *Session) BeginMarquee(at models.CanvasPosition, additive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardIdle(); err != nil {
		return err
	}

	var baseline []string
	if additive {
		baseline = make([]string, len(s.selectedNodeIDs))
		copy(baseline, s.selectedNodeIDs)
	}

	s.gesture = gestureState{
		kind:          GestureMarquee,
		marqueeOrigin: at,
		additive:      additive,
		baseline:      baseline,
	}

	return nil
}

// MarqueePointerMove recomputes the live selection from the marquee
// rectangle. The trigger node never enters a marquee selection.
func (s *Session) MarqueePointerMove(at models.CanvasPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gesture.kind != GestureMarquee {
		return ErrNoActiveGesture
	}

	rect := canvas.RectBetween(s.gesture.marqueeOrigin, at)
	hit := canvas.IntersectingNodeIDs(s.graph.Nodes, s.positions, rect)

	selection := make([]string, 0, len(s.gesture.baseline)+len(hit))
	selection = append(selection, s.gesture.baseline...)

	for _, id := range hit {
		if !containsString(selection, id) {
			selection = append(selection, id)
		}
	}

	s.selectedNodeIDs = selection

	return nil
}

// EndMarquee finishes the marquee gesture, keeping the final selection.
func (s *Session) EndMarquee(at models.CanvasPosition) ([]string, error) {
	if err := s.MarqueePointerMove(at); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gesture = gestureState{kind: GestureIdle}

	selected := make([]string, len(s.selectedNodeIDs))
	copy(selected, s.selectedNodeIDs)

	return selected, nil
}

// BeginWireDrag starts a free connection drag from a step's wire
// handle.
func (s *Session) BeginWireDrag(stepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardIdle(); err != nil {
		return err
	}

	if steps.FindStepByID(s.steps, stepID) == nil {
		return ErrStepNotFound
	}

	s.gesture = gestureState{
		kind:         GestureWiring,
		wireSourceID: stepID,
	}

	return nil
}

// WirePointerMove tracks the free line endpoint and the reroute-target
// marker currently under the pointer, nil when hovering empty canvas.
func (s *Session) WirePointerMove(at models.CanvasPosition, hover *models.RerouteTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gesture.kind != GestureWiring {
		return ErrNoActiveGesture
	}

	s.gesture.wirePointer = at
	s.gesture.hoverTarget = hover

	return nil
}

// HoverTarget returns the reroute target the wire drag is currently
// over, nil when none.
func (s *Session) HoverTarget() *models.RerouteTarget {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gesture.hoverTarget == nil {
		return nil
	}

	target := *s.gesture.hoverTarget

	return &target
}

// EndWireDrag commits the reroute when a valid target was hovered,
// otherwise cancels with a user-visible status. Either way the gesture
// ends.
func (s *Session) EndWireDrag() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gesture.kind != GestureWiring {
		return false, ErrNoActiveGesture
	}

	sourceID := s.gesture.wireSourceID
	target := s.gesture.hoverTarget
	s.gesture = gestureState{kind: GestureIdle}

	if target == nil {
		s.status = "Connection cancelled"

		return false, nil
	}

	if err := s.applyRerouteLocked(sourceID, *target); err != nil {
		return false, err
	}

	return true, nil
}

// AbandonGesture mirrors component unmount mid-gesture: listeners are
// torn down and whatever partial position or selection change already
// applied stays applied.
func (s *Session) AbandonGesture() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gesture = gestureState{kind: GestureIdle}
}

func (s *Session) guardIdle() error {
	if s.gesture.kind != "" && s.gesture.kind != GestureIdle {
		return ErrGestureActive
	}

	return nil
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}

	return false
}
