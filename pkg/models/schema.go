package models

// SchemaProvider defines an interface for components that can provide JSON Schema
type SchemaProvider interface {
	GetSchema() *JSONSchema
}

// JSONSchema represents a JSON Schema for step config validation
type JSONSchema struct {
	Type        string               `json:"type"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
}

// Property represents a JSON Schema property
type Property struct {
	Type        any                  `json:"type,omitempty"`
	Description string               `json:"description,omitempty"`
	Enum        []any                `json:"enum,omitempty"`
	Default     any                  `json:"default,omitempty"`
	Format      string               `json:"format,omitempty"`
	MinLength   *int                 `json:"minLength,omitempty"`
	MaxLength   *int                 `json:"maxLength,omitempty"`
	Minimum     *float64             `json:"minimum,omitempty"`
	Maximum     *float64             `json:"maximum,omitempty"`
	Pattern     string               `json:"pattern,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
}

// RegisteredComponent represents a step type available to workflow authors.
type RegisteredComponent struct {
	Type        StepType    `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Schema      *JSONSchema `json:"schema"`
}

func ptr[T any](v T) *T {
	return &v
}

// NonEmpty is a string property with a minimum length of one.
func NonEmpty(description string) *Property {
	return &Property{Type: "string", Description: description, MinLength: ptr(1)}
}

// ConditionOperators lists the structured comparison operators.
var ConditionOperators = []any{"eq", "neq", "gt", "lt", "gte", "lte", "contains"}

// ControlStepSchema returns the config schema of steps interpreted by the
// executor itself.
func ControlStepSchema(stepType StepType) (*JSONSchema, bool) {
	switch stepType {
	case StepWait:
		return &JSONSchema{
			Type:  "object",
			Title: "Wait",
			Properties: map[string]*Property{
				"minutes": {
					Type:        []any{"number", "string"},
					Description: "Whole minutes to suspend the run before the next step",
					Minimum:     ptr(0.0),
					Maximum:     ptr(float64(MaxWaitMinutes)),
				},
			},
			Required: []string{"minutes"},
		}, true
	case StepCondition:
		return &JSONSchema{
			Type:  "object",
			Title: "Condition",
			Properties: map[string]*Property{
				"field":      {Type: "string", Description: "Dot path into the run context, e.g. lead.score"},
				"operator":   {Type: "string", Enum: ConditionOperators},
				"value":      {Description: "Value compared against the field"},
				"expression": {Type: "string", Description: "Boolean expression, e.g. lead.score > 80 && lead.status == 'qualified'"},
			},
		}, true
	default:
		return nil, false
	}
}
