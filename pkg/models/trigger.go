package models

// TriggerType identifies what starts a workflow.
type TriggerType string

const (
	TriggerTypeManual        TriggerType = "manual"
	TriggerTypeScheduled     TriggerType = "scheduled"
	TriggerTypeRecordCreated TriggerType = "record_created"
	TriggerTypeRecordUpdated TriggerType = "record_updated"
)

// TriggerSummary is the single entry condition paired with a step tree.
// It is not a tree node; the canvas renders it as one synthetic node
// with a reserved identity.
type TriggerSummary struct {
	Type              TriggerType `json:"type" validate:"required,oneof=manual scheduled record_created record_updated"`
	EntityLogicalName string      `json:"entity_logical_name,omitempty"`
	// CronExpression applies to scheduled triggers only and is
	// validated at compile time.
	CronExpression string `json:"cron_expression,omitempty"`
}

// RequiresEntity reports whether the trigger type is bound to an entity.
func (t TriggerType) RequiresEntity() bool {
	return t == TriggerTypeRecordCreated || t == TriggerTypeRecordUpdated
}
