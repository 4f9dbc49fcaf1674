// Package steps provides the pure operations over a workflow's step
// tree. Every function treats its input as immutable: nodes on the path
// to a change are structurally copied, untouched subtrees are shared.
// Operations fail soft (unchanged input, nil, or a false flag) instead
// of returning errors; callers surface a user-facing message when a
// soft failure means the user's intent was not satisfied.
package steps

import (
	"github.com/google/uuid"

	"github.com/appforge/flowcanvas/pkg/models"
)

// RelativePlacement positions an inserted step against a target
// sibling.
type RelativePlacement string

const (
	PlaceBefore RelativePlacement = "before"
	PlaceAfter  RelativePlacement = "after"
)

// BranchName selects one of a condition's two branches.
type BranchName string

const (
	BranchThen BranchName = "then"
	BranchElse BranchName = "else"
)

// IDGenerator mints step identities. NewID is the production generator;
// tests inject deterministic ones.
type IDGenerator func() string

// NewID returns a fresh step identity.
func NewID() string {
	return uuid.New().String()
}

// FindStepByID searches the tree depth-first, descending into both
// branches of every condition. Returns nil when the id is absent.
func FindStepByID(tree []*models.DraftStep, id string) *models.DraftStep {
	for _, step := range tree {
		if step.ID == id {
			return step
		}

		if step.IsCondition() {
			if found := FindStepByID(step.ThenSteps, id); found != nil {
				return found
			}

			if found := FindStepByID(step.ElseSteps, id); found != nil {
				return found
			}
		}
	}

	return nil
}

// UpdateStepByID rewrites exactly one node with updater(node), copying
// every ancestor on the path. The input tree is never mutated; if the
// id is absent the result is equivalent to the input.
func UpdateStepByID(tree []*models.DraftStep, id string, updater func(*models.DraftStep) *models.DraftStep) []*models.DraftStep {
	if len(tree) == 0 {
		return tree
	}

	result := make([]*models.DraftStep, 0, len(tree))

	for _, step := range tree {
		switch {
		case step.ID == id:
			result = append(result, updater(step.Clone()))
		case step.IsCondition():
			copied := *step
			copied.ThenSteps = UpdateStepByID(step.ThenSteps, id, updater)
			copied.ElseSteps = UpdateStepByID(step.ElseSteps, id, updater)
			result = append(result, &copied)
		default:
			result = append(result, step)
		}
	}

	return result
}

// RemoveStepByID removes the node wherever it sits, preserving sibling
// order. A parent condition left with an empty branch stays as-is;
// empty branches are valid.
func RemoveStepByID(tree []*models.DraftStep, id string) []*models.DraftStep {
	if len(tree) == 0 {
		return tree
	}

	result := make([]*models.DraftStep, 0, len(tree))

	for _, step := range tree {
		if step.ID == id {
			continue
		}

		if step.IsCondition() {
			copied := *step
			copied.ThenSteps = RemoveStepByID(step.ThenSteps, id)
			copied.ElseSteps = RemoveStepByID(step.ElseSteps, id)
			result = append(result, &copied)

			continue
		}

		result = append(result, step)
	}

	return result
}

// ExtractStepByID removes the node and also returns it, detached, so a
// rewire can reinsert it elsewhere. Extracted is nil when the id is
// absent, in which case the returned tree is equivalent to the input.
func ExtractStepByID(tree []*models.DraftStep, id string) (*models.DraftStep, []*models.DraftStep) {
	if len(tree) == 0 {
		return nil, tree
	}

	var extracted *models.DraftStep

	result := make([]*models.DraftStep, 0, len(tree))

	for _, step := range tree {
		if step.ID == id {
			extracted = step

			continue
		}

		if step.IsCondition() && extracted == nil {
			thenExtracted, thenSteps := ExtractStepByID(step.ThenSteps, id)
			if thenExtracted != nil {
				extracted = thenExtracted
				copied := *step
				copied.ThenSteps = thenSteps
				result = append(result, &copied)

				continue
			}

			elseExtracted, elseSteps := ExtractStepByID(step.ElseSteps, id)
			if elseExtracted != nil {
				extracted = elseExtracted
				copied := *step
				copied.ElseSteps = elseSteps
				result = append(result, &copied)

				continue
			}
		}

		result = append(result, step)
	}

	return extracted, result
}

// InsertStepRelativeToTarget inserts step before or after the target,
// wherever the target sits. Inserted=false means the target id was not
// found at any level; callers must treat that as a failed operation,
// not silently drop the step.
func InsertStepRelativeToTarget(tree []*models.DraftStep, targetID string, placement RelativePlacement, step *models.DraftStep) ([]*models.DraftStep, bool) {
	if len(tree) == 0 {
		return tree, false
	}

	inserted := false
	result := make([]*models.DraftStep, 0, len(tree)+1)

	for _, current := range tree {
		if current.ID == targetID {
			inserted = true

			if placement == PlaceBefore {
				result = append(result, step, current)
			} else {
				result = append(result, current, step)
			}

			continue
		}

		if current.IsCondition() && !inserted {
			thenSteps, ok := InsertStepRelativeToTarget(current.ThenSteps, targetID, placement, step)
			if ok {
				inserted = true
				copied := *current
				copied.ThenSteps = thenSteps
				result = append(result, &copied)

				continue
			}

			elseSteps, ok := InsertStepRelativeToTarget(current.ElseSteps, targetID, placement, step)
			if ok {
				inserted = true
				copied := *current
				copied.ElseSteps = elseSteps
				result = append(result, &copied)

				continue
			}
		}

		result = append(result, current)
	}

	return result, inserted
}

// AppendStepToBranch appends step to the named branch of the condition
// with the given id. No-op when the id does not resolve to a condition.
func AppendStepToBranch(tree []*models.DraftStep, conditionID string, branch BranchName, step *models.DraftStep) []*models.DraftStep {
	return UpdateStepByID(tree, conditionID, func(node *models.DraftStep) *models.DraftStep {
		if !node.IsCondition() {
			return node
		}

		if branch == BranchThen {
			node.ThenSteps = append(node.ThenSteps, step)
		} else {
			node.ElseSteps = append(node.ElseSteps, step)
		}

		return node
	})
}

// PrependStepToBranch inserts step as the first element of the named
// branch. Rewires land here so the moved step becomes the branch entry
// point. No-op when the id does not resolve to a condition.
func PrependStepToBranch(tree []*models.DraftStep, conditionID string, branch BranchName, step *models.DraftStep) []*models.DraftStep {
	return UpdateStepByID(tree, conditionID, func(node *models.DraftStep) *models.DraftStep {
		if !node.IsCondition() {
			return node
		}

		if branch == BranchThen {
			node.ThenSteps = append([]*models.DraftStep{step}, node.ThenSteps...)
		} else {
			node.ElseSteps = append([]*models.DraftStep{step}, node.ElseSteps...)
		}

		return node
	})
}

// StepContainsID reports whether id names the step itself or any
// descendant. Rewires into a step's own subtree are rejected with this
// check before anything is extracted.
func StepContainsID(step *models.DraftStep, id string) bool {
	if step == nil {
		return false
	}

	if step.ID == id {
		return true
	}

	if step.IsCondition() {
		return FindStepByID(step.ThenSteps, id) != nil ||
			FindStepByID(step.ElseSteps, id) != nil
	}

	return false
}

// CloneWorkflowSteps deep-copies a whole tree, preserving ids. Used
// before mutating a version destined for a history snapshot.
func CloneWorkflowSteps(tree []*models.DraftStep) []*models.DraftStep {
	return models.CloneSteps(tree)
}

// DuplicateStepByID deep-clones the subtree rooted at id, assigning
// fresh identities throughout, and inserts the copy immediately after
// the original among its siblings. The returned id is empty when the
// original was not found.
func DuplicateStepByID(tree []*models.DraftStep, id string, idGen IDGenerator) ([]*models.DraftStep, string) {
	original := FindStepByID(tree, id)
	if original == nil {
		return tree, ""
	}

	duplicate := reassignIDs(original.Clone(), idGen)

	result, inserted := InsertStepRelativeToTarget(tree, id, PlaceAfter, duplicate)
	if !inserted {
		return tree, ""
	}

	return result, duplicate.ID
}

func reassignIDs(step *models.DraftStep, idGen IDGenerator) *models.DraftStep {
	step.ID = idGen()

	for i, child := range step.ThenSteps {
		step.ThenSteps[i] = reassignIDs(child, idGen)
	}

	for i, child := range step.ElseSteps {
		step.ElseSteps[i] = reassignIDs(child, idGen)
	}

	return step
}

// CountSteps returns the total number of steps in the tree, including
// every nested branch step.
func CountSteps(tree []*models.DraftStep) int {
	total := 0

	for _, step := range tree {
		total++

		if step.IsCondition() {
			total += CountSteps(step.ThenSteps)
			total += CountSteps(step.ElseSteps)
		}
	}

	return total
}

// FirstExecutableAction returns the first non-condition step found by a
// depth-first scan, or nil. The save payload derives its legacy
// single-action fields from it.
func FirstExecutableAction(tree []*models.DraftStep) *models.DraftStep {
	for _, step := range tree {
		if step.IsExecutableAction() {
			return step
		}

		if step.IsCondition() {
			if found := FirstExecutableAction(step.ThenSteps); found != nil {
				return found
			}

			if found := FirstExecutableAction(step.ElseSteps); found != nil {
				return found
			}
		}
	}

	return nil
}
