// Package payload validates task payloads and tool arguments against JSON
// Schemas before they are persisted. Garbage caught here never reaches the
// store or a tool.
package payload

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// taskSchema constrains the payload stored alongside a task. The payload is
// what the runner receives verbatim at fire time.
const taskSchema = `{
	"type": "object",
	"properties": {
		"message": {"type": "string", "minLength": 1},
		"tool": {"type": "string", "minLength": 1},
		"args": {"type": "object"}
	},
	"additionalProperties": false
}`

// Validator validates JSON documents against a compiled schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles a JSON Schema.
func NewValidator(schemaJSON string) (*Validator, error) {
	// jsonschema.UnmarshalJSON keeps numbers as json.Number, which the
	// validator requires.
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema JSON: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// TaskValidator returns a validator for task payloads.
func TaskValidator() (*Validator, error) {
	return NewValidator(taskSchema)
}

// Validate checks a JSON document against the schema. An empty document is
// accepted; tasks without payloads are legal.
func (v *Validator) Validate(doc string) error {
	if strings.TrimSpace(doc) == "" {
		return nil
	}
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.schema.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
