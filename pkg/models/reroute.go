package models

// RerouteKind describes where an in-flight wire drag would land.
type RerouteKind string

const (
	RerouteTriggerStart RerouteKind = "trigger_start"
	RerouteBefore       RerouteKind = "before"
	RerouteAfter        RerouteKind = "after"
	RerouteThenBranch   RerouteKind = "then"
	RerouteElseBranch   RerouteKind = "else"
)

// RerouteTarget identifies the structural destination of a rewire.
// Equality is structural; TargetID is empty for trigger_start.
type RerouteTarget struct {
	Kind     RerouteKind `json:"kind"`
	TargetID string      `json:"target_id,omitempty"`
}

// IsBranch reports whether the target lands inside a condition branch.
func (t RerouteTarget) IsBranch() bool {
	return t.Kind == RerouteThenBranch || t.Kind == RerouteElseBranch
}
