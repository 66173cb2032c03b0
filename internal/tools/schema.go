// Package tools implements the built-in Tool Registry entries (§4.3):
// read, write, update, ls, glob, grep, bash, todoRead, todoWrite. Every
// tool validates its input against a compiled JSON Schema before
// executing and reports progress through the agent package's
// pending→pending*→done|error event protocol.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func mustSchema(raw map[string]any) json.RawMessage {
	b, err := json.Marshal(raw)
	if err != nil {
		panic(fmt.Sprintf("tools: invalid literal schema: %v", err))
	}
	return b
}

// compileSchema compiles a JSON Schema document for repeated input
// validation. Panics on malformed literal schemas, which are a
// programming error, not a runtime condition.
func compileSchema(name string, raw json.RawMessage) *jsonschema.Schema {
	schema, err := jsonschema.CompileString(name, string(raw))
	if err != nil {
		panic(fmt.Sprintf("tools: compile schema %s: %v", name, err))
	}
	return schema
}

func validateInput(schema *jsonschema.Schema, input json.RawMessage) error {
	var v any
	if err := json.Unmarshal(input, &v); err != nil {
		return fmt.Errorf("invalid input json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("input validation: %w", err)
	}
	return nil
}

// jsonschemaSchema pairs a compiled schema with its raw JSON document,
// since Tool.InputSchema needs the raw bytes while Execute needs the
// compiled form.
type jsonschemaSchema struct {
	raw    json.RawMessage
	schema *jsonschema.Schema
}

func newSchema(name string, raw json.RawMessage) *jsonschemaSchema {
	return &jsonschemaSchema{raw: raw, schema: compileSchema(name, raw)}
}

func (s *jsonschemaSchema) validate(input json.RawMessage) error {
	return validateInput(s.schema, input)
}
