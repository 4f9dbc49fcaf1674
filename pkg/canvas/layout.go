package canvas

import (
	"math"

	"github.com/appforge/flowcanvas/pkg/models"
)

// Canvas layout constants, in canvas pixels.
const (
	GridSize   = 20
	NodeWidth  = 220
	NodeHeight = 72

	laneMargin = 40
	laneWidth  = 280
	rowMargin  = 40
	rowHeight  = 120
)

// DefaultPositions seeds a position for the trigger node and every step
// that lacks a user-placed one: lane index follows branch depth, row
// follows traversal order. Callers overlay user positions on top.
func DefaultPositions(tree []*models.DraftStep) map[string]models.CanvasPosition {
	positions := map[string]models.CanvasPosition{
		models.TriggerNodeID: positionAt(0, 0),
	}

	row := 1
	placeSequence(positions, tree, 0, &row)

	return positions
}

func placeSequence(positions map[string]models.CanvasPosition, sequence []*models.DraftStep, lane int, row *int) {
	for _, step := range sequence {
		positions[step.ID] = positionAt(lane, *row)
		*row++

		if step.IsCondition() {
			placeSequence(positions, step.ThenSteps, lane+1, row)
			placeSequence(positions, step.ElseSteps, lane+1, row)
		}
	}
}

func positionAt(lane, row int) models.CanvasPosition {
	return models.CanvasPosition{
		X: laneMargin + float64(lane)*laneWidth,
		Y: rowMargin + float64(row)*rowHeight,
	}
}

// SnapToGrid rounds a position to the nearest grid multiple.
func SnapToGrid(pos models.CanvasPosition, grid float64) models.CanvasPosition {
	if grid <= 0 {
		return pos
	}

	return models.CanvasPosition{
		X: math.Round(pos.X/grid) * grid,
		Y: math.Round(pos.Y/grid) * grid,
	}
}

// ClampToCanvas keeps a position inside non-negative canvas bounds.
func ClampToCanvas(pos models.CanvasPosition) models.CanvasPosition {
	return models.CanvasPosition{
		X: math.Max(0, pos.X),
		Y: math.Max(0, pos.Y),
	}
}

// BoundsFor is the fixed hit-box of a node placed at pos.
func BoundsFor(pos models.CanvasPosition) models.NodeBounds {
	return models.NodeBounds{
		X:      pos.X,
		Y:      pos.Y,
		Width:  NodeWidth,
		Height: NodeHeight,
	}
}

// RectBetween normalizes two corner points into a bounding box, in any
// drag direction.
func RectBetween(a, b models.CanvasPosition) models.NodeBounds {
	return models.NodeBounds{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(a.X - b.X),
		Height: math.Abs(a.Y - b.Y),
	}
}

// IntersectingNodeIDs returns, in node order, the ids of nodes whose
// bounds intersect the marquee rectangle. The trigger node is excluded:
// it is a structural singleton and never marquee-selected.
func IntersectingNodeIDs(nodes []models.CanvasNode, positions map[string]models.CanvasPosition, marquee models.NodeBounds) []string {
	selected := make([]string, 0, len(nodes))

	for _, node := range nodes {
		if node.ID == models.TriggerNodeID {
			continue
		}

		pos, ok := positions[node.ID]
		if !ok {
			continue
		}

		if BoundsFor(pos).Intersects(marquee) {
			selected = append(selected, node.ID)
		}
	}

	return selected
}
