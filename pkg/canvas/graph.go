// Package canvas derives the renderable graph for a workflow's trigger
// and step tree, and provides the geometry used for placement and
// hit-testing. The graph is visualization state only; the step tree
// stays the structural source of truth.
package canvas

import (
	"fmt"

	"github.com/appforge/flowcanvas/pkg/models"
)

// Branch labels fall back to these when the author left them blank.
const (
	DefaultThenLabel = "yes"
	DefaultElseLabel = "no"
)

var triggerTitles = map[models.TriggerType]string{
	models.TriggerTypeManual:        "Manual trigger",
	models.TriggerTypeScheduled:     "Scheduled trigger",
	models.TriggerTypeRecordCreated: "Record created",
	models.TriggerTypeRecordUpdated: "Record updated",
}

// BuildGraph recomputes the full canvas graph from the trigger and step
// tree in a single recursive pass. The trigger node is always emitted
// first and is the only node without a predecessor.
//
// Condition branches are wired sequentially like the root level, but a
// branch's last step never auto-connects to the condition's successor:
// branches dead-end visually. An empty branch simply emits no branch
// edge; the condition's own sequential edge carries the fall-through.
func BuildGraph(trigger models.TriggerSummary, tree []*models.DraftStep) models.CanvasGraph {
	graph := models.CanvasGraph{
		Nodes: []models.CanvasNode{triggerNode(trigger)},
		Edges: []models.CanvasEdge{},
	}

	appendSequence(&graph, models.TriggerNodeID, "", tree)

	return graph
}

// appendSequence emits nodes and edges for one tree level. The first
// step connects from predecessorID with firstLabel; siblings connect to
// each other unlabeled.
func appendSequence(graph *models.CanvasGraph, predecessorID, firstLabel string, sequence []*models.DraftStep) {
	previousID := predecessorID
	label := firstLabel

	for _, step := range sequence {
		graph.Nodes = append(graph.Nodes, stepNode(step))

		if previousID != "" {
			graph.Edges = append(graph.Edges, models.CanvasEdge{
				ID:    edgeID(previousID, step.ID, label),
				From:  previousID,
				To:    step.ID,
				Label: label,
			})
		}

		if step.IsCondition() {
			thenLabel := step.ThenLabel
			if thenLabel == "" {
				thenLabel = DefaultThenLabel
			}

			elseLabel := step.ElseLabel
			if elseLabel == "" {
				elseLabel = DefaultElseLabel
			}

			if len(step.ThenSteps) > 0 {
				appendSequence(graph, step.ID, thenLabel, step.ThenSteps)
			}

			if len(step.ElseSteps) > 0 {
				appendSequence(graph, step.ID, elseLabel, step.ElseSteps)
			}
		}

		previousID = step.ID
		label = ""
	}
}

func triggerNode(trigger models.TriggerSummary) models.CanvasNode {
	title, ok := triggerTitles[trigger.Type]
	if !ok {
		title = "Trigger"
	}

	return models.CanvasNode{
		ID:       models.TriggerNodeID,
		Kind:     models.NodeKindTrigger,
		Title:    title,
		Subtitle: trigger.EntityLogicalName,
		Tone:     "trigger",
	}
}

func stepNode(step *models.DraftStep) models.CanvasNode {
	switch step.Type {
	case models.StepTypeLogMessage:
		return models.CanvasNode{
			ID:       step.ID,
			Kind:     models.NodeKindStep,
			Title:    "Log message",
			Subtitle: step.Message,
			Tone:     "action",
		}
	case models.StepTypeCreateRuntimeRecord:
		return models.CanvasNode{
			ID:       step.ID,
			Kind:     models.NodeKindStep,
			Title:    "Create record",
			Subtitle: step.EntityLogicalName,
			Tone:     "action",
		}
	case models.StepTypeCondition:
		return models.CanvasNode{
			ID:       step.ID,
			Kind:     models.NodeKindCondition,
			Title:    "Condition",
			Subtitle: fmt.Sprintf("%s %s", step.FieldPath, step.Operator),
			Tone:     "condition",
		}
	default:
		return models.CanvasNode{
			ID:    step.ID,
			Kind:  models.NodeKindStep,
			Title: string(step.Type),
			Tone:  "action",
		}
	}
}

func edgeID(from, to, label string) string {
	if label == "" {
		return fmt.Sprintf("edge:%s:%s", from, to)
	}

	return fmt.Sprintf("edge:%s:%s:%s", from, to, label)
}

// MaxDepth returns the maximum branch nesting depth of the tree. A flat
// sequence has depth zero.
func MaxDepth(tree []*models.DraftStep) int {
	depth := 0

	for _, step := range tree {
		if !step.IsCondition() {
			continue
		}

		branchDepth := 1 + max(MaxDepth(step.ThenSteps), MaxDepth(step.ElseSteps))
		if branchDepth > depth {
			depth = branchDepth
		}
	}

	return depth
}

// LaneCount sizes the number of rendering lanes for a tree. At least
// three lanes are always drawn so a flat workflow does not collapse the
// canvas.
func LaneCount(tree []*models.DraftStep) int {
	return max(3, MaxDepth(tree)+1)
}
