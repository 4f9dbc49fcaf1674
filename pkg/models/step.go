// Package models defines the core domain models for the workflow canvas editor.
package models

// StepType discriminates the DraftStep tagged union.
type StepType string

const (
	StepTypeLogMessage          StepType = "log_message"
	StepTypeCreateRuntimeRecord StepType = "create_runtime_record"
	StepTypeCondition           StepType = "condition"
)

// ConditionOperator is the comparison applied by a condition step.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "eq"
	OperatorNotEquals   ConditionOperator = "neq"
	OperatorGreaterThan ConditionOperator = "gt"
	OperatorLessThan    ConditionOperator = "lt"
	OperatorContains    ConditionOperator = "contains"
	// OperatorExists is unary: the condition value is ignored and
	// compiled as null.
	OperatorExists ConditionOperator = "exists"
)

// ConditionOperators lists every supported operator in display order.
var ConditionOperators = []ConditionOperator{
	OperatorEquals,
	OperatorNotEquals,
	OperatorGreaterThan,
	OperatorLessThan,
	OperatorContains,
	OperatorExists,
}

// IsValid reports whether the operator is one of the supported set.
func (o ConditionOperator) IsValid() bool {
	for _, op := range ConditionOperators {
		if op == o {
			return true
		}
	}

	return false
}

// DraftStep is one node of a workflow's editable step tree. The struct
// is a closed tagged union keyed by Type; only the fields belonging to
// the active variant are meaningful.
//
// A step never appears under more than one parent. Tree operations in
// pkg/steps enforce this by construction: moving a step always extracts
// it before reinsertion.
type DraftStep struct {
	ID   string   `json:"id"   validate:"required"`
	Type StepType `json:"type" validate:"required,oneof=log_message create_runtime_record condition"`

	// log_message
	Message string `json:"message,omitempty"`

	// create_runtime_record. DataJSON is free-form text, validated only
	// when the step is compiled for save.
	EntityLogicalName string `json:"entity_logical_name,omitempty"`
	DataJSON          string `json:"data_json,omitempty"`

	// condition
	FieldPath string            `json:"field_path,omitempty"`
	Operator  ConditionOperator `json:"operator,omitempty"`
	ValueJSON string            `json:"value_json,omitempty"`
	ThenLabel string            `json:"then_label,omitempty"`
	ElseLabel string            `json:"else_label,omitempty"`
	ThenSteps []*DraftStep      `json:"then_steps,omitempty"`
	ElseSteps []*DraftStep      `json:"else_steps,omitempty"`
}

// IsCondition reports whether the step branches.
func (s *DraftStep) IsCondition() bool {
	return s.Type == StepTypeCondition
}

// IsExecutableAction reports whether the step performs a backend-side
// action when the workflow runs. Conditions only route.
func (s *DraftStep) IsExecutableAction() bool {
	return s.Type == StepTypeLogMessage || s.Type == StepTypeCreateRuntimeRecord
}

// Clone returns a deep copy of the step, including nested branches.
// IDs are preserved; use pkg/steps DuplicateStepByID for a copy with
// fresh identities.
func (s *DraftStep) Clone() *DraftStep {
	if s == nil {
		return nil
	}

	clone := *s
	clone.ThenSteps = CloneSteps(s.ThenSteps)
	clone.ElseSteps = CloneSteps(s.ElseSteps)

	return &clone
}

// CloneSteps deep-copies one tree level and everything below it.
func CloneSteps(steps []*DraftStep) []*DraftStep {
	if steps == nil {
		return nil
	}

	cloned := make([]*DraftStep, 0, len(steps))
	for _, step := range steps {
		cloned = append(cloned, step.Clone())
	}

	return cloned
}
