// Package compiler lowers a workflow draft into the transport payloads
// the backend workflow API consumes: compiled steps, the save request,
// and the execute request. All validation a draft must pass before a
// network call happens here; a compile failure leaves the draft
// untouched so the user can fix and retry.
package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/appforge/flowcanvas/pkg/catalog"
	"github.com/appforge/flowcanvas/pkg/models"
	"github.com/appforge/flowcanvas/pkg/steps"
)

var (
	// ErrNoActionStep carries the exact user-facing text the save
	// boundary shows when a draft has conditions but nothing to run.
	ErrNoActionStep = errors.New("Flow canvas must contain at least one executable action step")

	ErrStepInvalid    = errors.New("step failed validation")
	ErrTriggerInvalid = errors.New("trigger configuration is invalid")
	ErrPayloadInvalid = errors.New("trigger payload must be a valid JSON object")
)

var validate = validator.New()

// CompiledStep is the wire shape of one step. Branch slices are always
// present (possibly empty) on conditions and absent on everything else;
// MarshalJSON enforces that per-type field set.
type CompiledStep struct {
	Type              string
	Message           string
	EntityLogicalName string
	Data              map[string]any
	FieldPath         string
	Operator          string
	Value             any
	ThenLabel         string
	ElseLabel         string
	ThenSteps         []CompiledStep
	ElseSteps         []CompiledStep
}

// MarshalJSON emits exactly the fields belonging to the step's type, in
// the backend's snake_case contract.
func (s CompiledStep) MarshalJSON() ([]byte, error) {
	payload := map[string]any{"type": s.Type}

	switch models.StepType(s.Type) {
	case models.StepTypeLogMessage:
		payload["message"] = s.Message
	case models.StepTypeCreateRuntimeRecord:
		payload["entity_logical_name"] = s.EntityLogicalName
		payload["data"] = s.Data
	case models.StepTypeCondition:
		thenSteps := s.ThenSteps
		if thenSteps == nil {
			thenSteps = []CompiledStep{}
		}

		elseSteps := s.ElseSteps
		if elseSteps == nil {
			elseSteps = []CompiledStep{}
		}

		payload["field_path"] = s.FieldPath
		payload["operator"] = s.Operator
		payload["value"] = s.Value
		payload["then_label"] = s.ThenLabel
		payload["else_label"] = s.ElseLabel
		payload["then_steps"] = thenSteps
		payload["else_steps"] = elseSteps
	}

	return json.Marshal(payload)
}

// SaveRequest is the workflow save payload. The action_* fields mirror
// the first executable action step for the backend's legacy
// single-action shape; steps carries the full compiled tree.
type SaveRequest struct {
	LogicalName              string         `json:"logical_name"                validate:"required"`
	DisplayName              string         `json:"display_name"                validate:"required"`
	Description              string         `json:"description"`
	TriggerType              string         `json:"trigger_type"                validate:"required"`
	TriggerEntityLogicalName string         `json:"trigger_entity_logical_name"`
	TriggerCronExpression    string         `json:"trigger_cron_expression,omitempty"`
	ActionType               string         `json:"action_type"                 validate:"required"`
	ActionEntityLogicalName  string         `json:"action_entity_logical_name"`
	ActionPayload            map[string]any `json:"action_payload"`
	Steps                    []CompiledStep `json:"steps"`
	MaxAttempts              int            `json:"max_attempts"                validate:"min=1"`
	IsEnabled                bool           `json:"is_enabled"`
}

// ExecuteRequest is the workflow execute payload.
type ExecuteRequest struct {
	TriggerPayload map[string]any `json:"trigger_payload"`
}

// CompileStep lowers one draft step to its transport shape, validating
// the fields the backend requires. Conditions compile recursively.
func CompileStep(step *models.DraftStep) (CompiledStep, error) {
	if step == nil {
		return CompiledStep{}, fmt.Errorf("%w: step is missing", ErrStepInvalid)
	}

	switch step.Type {
	case models.StepTypeLogMessage:
		return compileLogMessage(step)
	case models.StepTypeCreateRuntimeRecord:
		return compileCreateRecord(step)
	case models.StepTypeCondition:
		return compileCondition(step)
	default:
		return CompiledStep{}, fmt.Errorf("%w: unknown step type %q", ErrStepInvalid, step.Type)
	}
}

func compileLogMessage(step *models.DraftStep) (CompiledStep, error) {
	message := strings.TrimSpace(step.Message)
	if message == "" {
		return CompiledStep{}, fmt.Errorf("%w: log step requires a message", ErrStepInvalid)
	}

	return CompiledStep{
		Type:    string(models.StepTypeLogMessage),
		Message: message,
	}, nil
}

func compileCreateRecord(step *models.DraftStep) (CompiledStep, error) {
	entity := strings.TrimSpace(step.EntityLogicalName)
	if entity == "" {
		return CompiledStep{}, fmt.Errorf("%w: create record step requires an entity", ErrStepInvalid)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(step.DataJSON), &data); err != nil {
		return CompiledStep{}, fmt.Errorf("%w: create record data must be a JSON object: %s", ErrStepInvalid, err)
	}

	return CompiledStep{
		Type:              string(models.StepTypeCreateRuntimeRecord),
		EntityLogicalName: entity,
		Data:              data,
	}, nil
}

func compileCondition(step *models.DraftStep) (CompiledStep, error) {
	fieldPath := strings.TrimSpace(step.FieldPath)
	if fieldPath == "" {
		return CompiledStep{}, fmt.Errorf("%w: condition requires a field path", ErrStepInvalid)
	}

	if !step.Operator.IsValid() {
		return CompiledStep{}, fmt.Errorf("%w: unknown condition operator %q", ErrStepInvalid, step.Operator)
	}

	// The unary exists operator ignores the comparison value entirely.
	var value any
	if step.Operator != models.OperatorExists {
		if err := json.Unmarshal([]byte(step.ValueJSON), &value); err != nil {
			return CompiledStep{}, fmt.Errorf("%w: condition value must be valid JSON: %s", ErrStepInvalid, err)
		}
	}

	thenSteps, err := CompileSteps(step.ThenSteps)
	if err != nil {
		return CompiledStep{}, err
	}

	elseSteps, err := CompileSteps(step.ElseSteps)
	if err != nil {
		return CompiledStep{}, err
	}

	if len(thenSteps) == 0 && len(elseSteps) == 0 {
		return CompiledStep{}, fmt.Errorf("%w: condition requires at least one step in a branch", ErrStepInvalid)
	}

	return CompiledStep{
		Type:      string(models.StepTypeCondition),
		FieldPath: fieldPath,
		Operator:  string(step.Operator),
		Value:     value,
		ThenLabel: step.ThenLabel,
		ElseLabel: step.ElseLabel,
		ThenSteps: thenSteps,
		ElseSteps: elseSteps,
	}, nil
}

// CompileSteps lowers a sequence of steps, failing on the first invalid
// one. The result is never nil.
func CompileSteps(tree []*models.DraftStep) ([]CompiledStep, error) {
	compiled := make([]CompiledStep, 0, len(tree))

	for _, step := range tree {
		lowered, err := CompileStep(step)
		if err != nil {
			return nil, err
		}

		compiled = append(compiled, lowered)
	}

	return compiled, nil
}

// ValidateCompiledStep checks a compiled step against the JSON schema
// for its type, recursively through condition branches.
func ValidateCompiledStep(step CompiledStep) error {
	schema := catalog.StepSchema(models.StepType(step.Type))
	if schema == nil {
		return fmt.Errorf("%w: no schema for step type %q", ErrStepInvalid, step.Type)
	}

	encoded, err := json.Marshal(step)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStepInvalid, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewStringLoader(string(encoded)),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStepInvalid, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return fmt.Errorf("%w: %s", ErrStepInvalid, strings.Join(details, "; "))
	}

	for _, branch := range [][]CompiledStep{step.ThenSteps, step.ElseSteps} {
		for _, nested := range branch {
			if err := ValidateCompiledStep(nested); err != nil {
				return err
			}
		}
	}

	return nil
}

// ValidateTrigger checks the trigger configuration: entity-scoped
// triggers need an entity, scheduled triggers need a parseable standard
// cron expression.
func ValidateTrigger(trigger models.TriggerSummary) error {
	switch trigger.Type {
	case models.TriggerTypeManual:
		return nil
	case models.TriggerTypeScheduled:
		expr := strings.TrimSpace(trigger.CronExpression)
		if expr == "" {
			return fmt.Errorf("%w: scheduled trigger requires a cron expression", ErrTriggerInvalid)
		}

		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("%w: %s", ErrTriggerInvalid, err)
		}

		return nil
	case models.TriggerTypeRecordCreated, models.TriggerTypeRecordUpdated:
		if strings.TrimSpace(trigger.EntityLogicalName) == "" {
			return fmt.Errorf("%w: %s trigger requires an entity", ErrTriggerInvalid, trigger.Type)
		}

		return nil
	default:
		return fmt.Errorf("%w: unknown trigger type %q", ErrTriggerInvalid, trigger.Type)
	}
}

// BuildSaveRequest compiles a whole draft into the save payload. The
// action_* fields are filled from the first executable action step
// found by a depth-first scan.
func BuildSaveRequest(draft *models.WorkflowDraft) (*SaveRequest, error) {
	if err := ValidateTrigger(draft.Trigger); err != nil {
		return nil, err
	}

	compiled, err := CompileSteps(draft.Steps)
	if err != nil {
		return nil, err
	}

	for _, step := range compiled {
		if err := ValidateCompiledStep(step); err != nil {
			return nil, err
		}
	}

	action := steps.FirstExecutableAction(draft.Steps)
	if action == nil {
		return nil, ErrNoActionStep
	}

	compiledAction, err := CompileStep(action)
	if err != nil {
		return nil, err
	}

	maxAttempts := draft.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	request := &SaveRequest{
		LogicalName:              draft.LogicalName,
		DisplayName:              draft.DisplayName,
		Description:              draft.Description,
		TriggerType:              string(draft.Trigger.Type),
		TriggerEntityLogicalName: draft.Trigger.EntityLogicalName,
		TriggerCronExpression:    draft.Trigger.CronExpression,
		ActionType:               compiledAction.Type,
		ActionEntityLogicalName:  compiledAction.EntityLogicalName,
		ActionPayload:            actionPayload(compiledAction),
		Steps:                    compiled,
		MaxAttempts:              maxAttempts,
		IsEnabled:                draft.IsEnabled,
	}

	if err := validate.Struct(request); err != nil {
		return nil, fmt.Errorf("save request failed validation: %w", err)
	}

	return request, nil
}

func actionPayload(action CompiledStep) map[string]any {
	switch models.StepType(action.Type) {
	case models.StepTypeLogMessage:
		return map[string]any{"message": action.Message}
	case models.StepTypeCreateRuntimeRecord:
		return map[string]any{"data": action.Data}
	default:
		return map[string]any{}
	}
}

// ParseExecutePayload parses the free-form JSON text entered in the
// run dialog. Blank input means an empty payload; anything else must
// parse to a JSON object before a network call is attempted.
func ParseExecutePayload(text string) (*ExecuteRequest, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return &ExecuteRequest{TriggerPayload: map[string]any{}}, nil
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPayloadInvalid, err)
	}

	return &ExecuteRequest{TriggerPayload: payload}, nil
}
