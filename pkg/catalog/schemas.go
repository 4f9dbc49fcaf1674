package catalog

import "github.com/appforge/flowcanvas/pkg/models"

// StepSchema returns the JSON schema of a step's compiled transport
// shape. The compiler validates every compiled step against the schema
// for its type before the save payload leaves the editor.
func StepSchema(stepType models.StepType) map[string]any {
	switch stepType {
	case models.StepTypeLogMessage:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type":    map[string]any{"const": "log_message"},
				"message": map[string]any{"type": "string", "minLength": 1},
			},
			"required":             []string{"type", "message"},
			"additionalProperties": false,
		}
	case models.StepTypeCreateRuntimeRecord:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type":                map[string]any{"const": "create_runtime_record"},
				"entity_logical_name": map[string]any{"type": "string", "minLength": 1},
				"data":                map[string]any{"type": "object"},
			},
			"required":             []string{"type", "entity_logical_name", "data"},
			"additionalProperties": false,
		}
	case models.StepTypeCondition:
		operators := make([]string, 0, len(models.ConditionOperators))
		for _, op := range models.ConditionOperators {
			operators = append(operators, string(op))
		}

		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type":       map[string]any{"const": "condition"},
				"field_path": map[string]any{"type": "string", "minLength": 1},
				"operator":   map[string]any{"type": "string", "enum": operators},
				"value":      map[string]any{},
				"then_label": map[string]any{"type": "string"},
				"else_label": map[string]any{"type": "string"},
				"then_steps": map[string]any{"type": "array"},
				"else_steps": map[string]any{"type": "array"},
			},
			"required": []string{"type", "field_path", "operator", "then_steps", "else_steps"},
		}
	default:
		return nil
	}
}
