// Package catalog holds the static list of insertable step and trigger
// templates offered by the canvas picker, plus materialization of a
// template into a draft step or trigger rewrite.
package catalog

import (
	"fmt"
	"strings"

	"github.com/appforge/flowcanvas/pkg/models"
	"github.com/appforge/flowcanvas/pkg/steps"
)

// TemplateTarget tells whether applying a template produces a step or
// rewrites the workflow trigger.
type TemplateTarget string

const (
	TargetTrigger TemplateTarget = "trigger"
	TargetStep    TemplateTarget = "step"
)

// Template categories.
const (
	CategoryAll      = "all"
	CategoryTriggers = "triggers"
	CategoryActions  = "actions"
	CategoryLogic    = "logic"
)

// Template is one blueprint in the insertion picker.
type Template struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Target      TemplateTarget `json:"target"`
}

// Template identifiers.
const (
	TemplateTriggerManual        = "trigger-manual"
	TemplateTriggerScheduled     = "trigger-scheduled"
	TemplateTriggerRecordCreated = "trigger-record-created"
	TemplateTriggerRecordUpdated = "trigger-record-updated"
	TemplateStepLogMessage       = "step-log-message"
	TemplateStepCreateRecord     = "step-create-record"
	TemplateStepCondition        = "step-condition"
)

// templates is the full catalog, in declaration order. Resolve never
// re-ranks; the picker shows matches in this order.
var templates = []Template{
	{
		ID:          TemplateTriggerManual,
		Label:       "Manual trigger",
		Description: "Start the workflow on demand from the app",
		Category:    CategoryTriggers,
		Target:      TargetTrigger,
	},
	{
		ID:          TemplateTriggerScheduled,
		Label:       "Scheduled trigger",
		Description: "Start the workflow on a cron schedule",
		Category:    CategoryTriggers,
		Target:      TargetTrigger,
	},
	{
		ID:          TemplateTriggerRecordCreated,
		Label:       "Record created",
		Description: "Start the workflow when a record of an entity is created",
		Category:    CategoryTriggers,
		Target:      TargetTrigger,
	},
	{
		ID:          TemplateTriggerRecordUpdated,
		Label:       "Record updated",
		Description: "Start the workflow when a record of an entity is updated",
		Category:    CategoryTriggers,
		Target:      TargetTrigger,
	},
	{
		ID:          TemplateStepLogMessage,
		Label:       "Log message",
		Description: "Write a message to the workflow run log",
		Category:    CategoryActions,
		Target:      TargetStep,
	},
	{
		ID:          TemplateStepCreateRecord,
		Label:       "Create record",
		Description: "Create a runtime record for an entity with a JSON payload",
		Category:    CategoryActions,
		Target:      TargetStep,
	},
	{
		ID:          TemplateStepCondition,
		Label:       "Condition",
		Description: "Branch the workflow on a field comparison",
		Category:    CategoryLogic,
		Target:      TargetStep,
	},
}

// Templates returns a copy of the full catalog.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)

	return out
}

// Resolve filters the catalog by a case-insensitive substring match
// over label and description, and by exact category (CategoryAll
// matches everything). Ordering is catalog-declaration order.
func Resolve(query, category string) []Template {
	query = strings.ToLower(strings.TrimSpace(query))

	matched := make([]Template, 0, len(templates))

	for _, tpl := range templates {
		if category != "" && category != CategoryAll && tpl.Category != category {
			continue
		}

		if query != "" {
			haystack := strings.ToLower(tpl.Label + " " + tpl.Description)
			if !strings.Contains(haystack, query) {
				continue
			}
		}

		matched = append(matched, tpl)
	}

	return matched
}

// TemplateByID returns the template with the given id.
func TemplateByID(id string) (Template, bool) {
	for _, tpl := range templates {
		if tpl.ID == id {
			return tpl, true
		}
	}

	return Template{}, false
}

// CreateDraftStep materializes a raw step of the given type with
// template-independent defaults and a fresh id. Returns nil for an
// unknown type.
func CreateDraftStep(stepType models.StepType, idGen steps.IDGenerator) *models.DraftStep {
	switch stepType {
	case models.StepTypeLogMessage:
		return &models.DraftStep{
			ID:      idGen(),
			Type:    models.StepTypeLogMessage,
			Message: "New log message",
		}
	case models.StepTypeCreateRuntimeRecord:
		return &models.DraftStep{
			ID:       idGen(),
			Type:     models.StepTypeCreateRuntimeRecord,
			DataJSON: "{}",
		}
	case models.StepTypeCondition:
		return &models.DraftStep{
			ID:        idGen(),
			Type:      models.StepTypeCondition,
			Operator:  models.OperatorEquals,
			ValueJSON: "null",
			ThenLabel: "Yes",
			ElseLabel: "No",
			ThenSteps: []*models.DraftStep{},
			ElseSteps: []*models.DraftStep{},
		}
	default:
		return nil
	}
}

// CreateTemplateStep materializes a step-targeted template. Trigger
// templates never produce a step; applying one rewrites the trigger
// via ApplyTriggerTemplate instead.
func CreateTemplateStep(templateID string, idGen steps.IDGenerator) (*models.DraftStep, error) {
	tpl, ok := TemplateByID(templateID)
	if !ok {
		return nil, fmt.Errorf("template %q is not in the catalog", templateID)
	}

	if tpl.Target != TargetStep {
		return nil, fmt.Errorf("template %q targets the trigger, not a step", templateID)
	}

	switch templateID {
	case TemplateStepLogMessage:
		return CreateDraftStep(models.StepTypeLogMessage, idGen), nil
	case TemplateStepCreateRecord:
		return CreateDraftStep(models.StepTypeCreateRuntimeRecord, idGen), nil
	case TemplateStepCondition:
		return CreateDraftStep(models.StepTypeCondition, idGen), nil
	default:
		return nil, fmt.Errorf("template %q has no step materializer", templateID)
	}
}

// ApplyTriggerTemplate rewrites the trigger value for a trigger-targeted
// template, preserving the entity binding when the new type still needs
// one. The second return is false for unknown or step-targeted ids.
func ApplyTriggerTemplate(templateID string, current models.TriggerSummary) (models.TriggerSummary, bool) {
	tpl, ok := TemplateByID(templateID)
	if !ok || tpl.Target != TargetTrigger {
		return current, false
	}

	next := models.TriggerSummary{}

	switch templateID {
	case TemplateTriggerManual:
		next.Type = models.TriggerTypeManual
	case TemplateTriggerScheduled:
		next.Type = models.TriggerTypeScheduled
		next.CronExpression = current.CronExpression
	case TemplateTriggerRecordCreated:
		next.Type = models.TriggerTypeRecordCreated
		next.EntityLogicalName = current.EntityLogicalName
	case TemplateTriggerRecordUpdated:
		next.Type = models.TriggerTypeRecordUpdated
		next.EntityLogicalName = current.EntityLogicalName
	default:
		return current, false
	}

	return next, true
}
