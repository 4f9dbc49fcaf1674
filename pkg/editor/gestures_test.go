package editor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/flowcanvas/pkg/editor"
	"github.com/appforge/flowcanvas/pkg/models"
)

func TestNodeDrag_MovesCohortUniformly(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", ""), logStep("b", "")})
	session.SelectNode("a", false)
	session.SelectNode("b", true)

	startA := session.Positions()["a"]
	startB := session.Positions()["b"]

	require.NoError(t, session.BeginNodeDrag("a", models.CanvasPosition{X: 10, Y: 10}))
	assert.Equal(t, editor.GestureDragging, session.Gesture())

	require.NoError(t, session.DragPointerMove(models.CanvasPosition{X: 40, Y: 25}))

	moved, err := session.EndNodeDrag()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, moved)

	positions := session.Positions()
	assert.Equal(t, models.CanvasPosition{X: startA.X + 30, Y: startA.Y + 15}, positions["a"])
	assert.Equal(t, models.CanvasPosition{X: startB.X + 30, Y: startB.Y + 15}, positions["b"])
	assert.Equal(t, editor.GestureIdle, session.Gesture())
}

func TestNodeDrag_UnselectedNodeBecomesSoleSelection(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", ""), logStep("b", "")})
	session.SelectNode("a", false)

	require.NoError(t, session.BeginNodeDrag("b", models.CanvasPosition{}))
	assert.Equal(t, []string{"b"}, session.SelectedNodeIDs())

	_, err := session.EndNodeDrag()
	require.NoError(t, err)
}

func TestNodeDrag_ClickBelowThresholdIsNotAMove(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", "")})
	start := session.Positions()["a"]

	require.NoError(t, session.BeginNodeDrag("a", models.CanvasPosition{X: 100, Y: 100}))
	require.NoError(t, session.DragPointerMove(models.CanvasPosition{X: 100.5, Y: 100.5}))

	moved, err := session.EndNodeDrag()
	require.NoError(t, err)

	assert.Empty(t, moved)
	assert.Equal(t, start, session.Positions()["a"])
	assert.False(t, session.CanUndo(), "a plain click never records a checkpoint")
}

func TestNodeDrag_CheckpointPushedExactlyOnce(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", "")})
	start := session.Positions()["a"]

	require.NoError(t, session.BeginNodeDrag("a", models.CanvasPosition{X: 0, Y: 0}))
	require.NoError(t, session.DragPointerMove(models.CanvasPosition{X: 10, Y: 0}))
	require.NoError(t, session.DragPointerMove(models.CanvasPosition{X: 20, Y: 0}))
	require.NoError(t, session.DragPointerMove(models.CanvasPosition{X: 30, Y: 0}))

	_, err := session.EndNodeDrag()
	require.NoError(t, err)

	// One undo rewinds the entire drag, not one intermediate move.
	require.True(t, session.Undo())
	assert.Equal(t, start, session.Positions()["a"])
	assert.False(t, session.CanUndo())
}

func TestNodeDrag_SnapsAndClamps(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", "")})
	session.SetGridSnap(true)

	require.NoError(t, session.BeginNodeDrag("a", models.CanvasPosition{X: 0, Y: 0}))
	// Drag far into negative space; the node pins to the canvas origin.
	require.NoError(t, session.DragPointerMove(models.CanvasPosition{X: -10000, Y: -10000}))

	_, err := session.EndNodeDrag()
	require.NoError(t, err)

	assert.Equal(t, models.CanvasPosition{X: 0, Y: 0}, session.Positions()["a"])
}

func TestGestureEntryIsGuarded(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", "")})

	require.NoError(t, session.BeginNodeDrag("a", models.CanvasPosition{}))

	assert.ErrorIs(t, session.BeginMarquee(models.CanvasPosition{}, false), editor.ErrGestureActive)
	assert.ErrorIs(t, session.BeginWireDrag("a"), editor.ErrGestureActive)
	assert.ErrorIs(t, session.BeginNodeDrag("a", models.CanvasPosition{}), editor.ErrGestureActive)

	_, err := session.EndNodeDrag()
	require.NoError(t, err)
}

func TestMoveWithoutGestureFails(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", "")})

	assert.ErrorIs(t, session.DragPointerMove(models.CanvasPosition{}), editor.ErrNoActiveGesture)
	assert.ErrorIs(t, session.MarqueePointerMove(models.CanvasPosition{}), editor.ErrNoActiveGesture)
	assert.ErrorIs(t, session.WirePointerMove(models.CanvasPosition{}, nil), editor.ErrNoActiveGesture)

	_, err := session.EndNodeDrag()
	assert.ErrorIs(t, err, editor.ErrNoActiveGesture)
	_, err = session.EndWireDrag()
	assert.ErrorIs(t, err, editor.ErrNoActiveGesture)
}

func TestMarquee_SelectsIntersectingNodes(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", ""), logStep("b", "")})

	posA := session.Positions()["a"]

	require.NoError(t, session.BeginMarquee(models.CanvasPosition{X: posA.X - 5, Y: posA.Y - 5}, false))
	require.NoError(t, session.MarqueePointerMove(models.CanvasPosition{X: posA.X + 10, Y: posA.Y + 10}))

	selected, err := session.EndMarquee(models.CanvasPosition{X: posA.X + 10, Y: posA.Y + 10})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, selected)
	assert.Equal(t, editor.GestureIdle, session.Gesture())
}

func TestMarquee_NeverSelectsTrigger(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", "")})

	// Sweep the whole canvas.
	require.NoError(t, session.BeginMarquee(models.CanvasPosition{X: 0, Y: 0}, false))

	selected, err := session.EndMarquee(models.CanvasPosition{X: 5000, Y: 5000})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, selected)
	assert.NotContains(t, selected, models.TriggerNodeID)
}

func TestMarquee_AdditiveExtendsSelection(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", ""), logStep("b", "")})
	session.SelectNode("a", false)

	posB := session.Positions()["b"]

	require.NoError(t, session.BeginMarquee(models.CanvasPosition{X: posB.X - 5, Y: posB.Y - 5}, true))

	selected, err := session.EndMarquee(models.CanvasPosition{X: posB.X + 10, Y: posB.Y + 10})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, selected)
}

func TestMarquee_ReplacingSelectionDropsBaseline(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", ""), logStep("b", "")})
	session.SelectNode("a", false)

	posB := session.Positions()["b"]

	require.NoError(t, session.BeginMarquee(models.CanvasPosition{X: posB.X - 5, Y: posB.Y - 5}, false))

	selected, err := session.EndMarquee(models.CanvasPosition{X: posB.X + 10, Y: posB.Y + 10})
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, selected)
}

func TestWireDrag_CommitsHoveredTarget(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", ""), logStep("b", "")})

	require.NoError(t, session.BeginWireDrag("b"))
	assert.Equal(t, editor.GestureWiring, session.Gesture())

	target := &models.RerouteTarget{Kind: models.RerouteBefore, TargetID: "a"}
	require.NoError(t, session.WirePointerMove(models.CanvasPosition{X: 50, Y: 50}, target))

	hover := session.HoverTarget()
	require.NotNil(t, hover)
	assert.Equal(t, *target, *hover)

	committed, err := session.EndWireDrag()
	require.NoError(t, err)
	assert.True(t, committed)

	assert.Equal(t, []string{"b", "a"}, stepIDs(session.Steps()))
	assert.Equal(t, editor.GestureIdle, session.Gesture())
}

func TestWireDrag_ReleaseOverEmptyCanvasCancels(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", ""), logStep("b", "")})
	before := session.Steps()

	require.NoError(t, session.BeginWireDrag("b"))
	require.NoError(t, session.WirePointerMove(models.CanvasPosition{X: 900, Y: 900}, nil))

	committed, err := session.EndWireDrag()
	require.NoError(t, err)
	assert.False(t, committed)

	assert.Equal(t, before, session.Steps())
	assert.Equal(t, "Connection cancelled", session.StatusMessage())
	assert.False(t, session.CanUndo(), "a cancelled wire drag records no checkpoint")
}

func TestWireDrag_InvalidTargetEndsGesture(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", ""), logStep("b", "")})

	require.NoError(t, session.BeginWireDrag("b"))
	target := &models.RerouteTarget{Kind: models.RerouteThenBranch, TargetID: "a"}
	require.NoError(t, session.WirePointerMove(models.CanvasPosition{}, target))

	committed, err := session.EndWireDrag()
	assert.ErrorIs(t, err, editor.ErrRerouteRejected)
	assert.False(t, committed)
	assert.Equal(t, editor.GestureIdle, session.Gesture())
}

func TestWireDrag_UnknownSourceFails(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", "")})

	assert.ErrorIs(t, session.BeginWireDrag("missing"), editor.ErrStepNotFound)
	assert.Equal(t, editor.GestureIdle, session.Gesture())
}

func TestAbandonGesture_KeepsPartialState(t *testing.T) {
	t.Parallel()

	session := newTestSession(t, []*models.DraftStep{logStep("a", "")})
	start := session.Positions()["a"]

	require.NoError(t, session.BeginNodeDrag("a", models.CanvasPosition{X: 0, Y: 0}))
	require.NoError(t, session.DragPointerMove(models.CanvasPosition{X: 60, Y: 0}))

	session.AbandonGesture()

	// Positions applied so far stay; only the gesture itself is gone.
	assert.Equal(t, editor.GestureIdle, session.Gesture())
	assert.Equal(t, models.CanvasPosition{X: start.X + 60, Y: start.Y}, session.Positions()["a"])

	// The checkpoint from the drag start still allows rewinding.
	require.True(t, session.Undo())
	assert.Equal(t, start, session.Positions()["a"])
}
