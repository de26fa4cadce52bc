package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const conformanceSchemaURL = "hzz://sanitized-document.schema.json"

// JSONSchema renders the JSON Schema every sanitized document must satisfy:
// every generated section and field present, no undeclared key, and each value
// shaped per its field kind.
func (r *Registry) JSONSchema() map[string]any {
	sections := make(map[string]any)
	sectionKeys := make([]string, 0, len(r.sections))
	for _, s := range r.Generated() {
		fields := make(map[string]any, len(s.Fields))
		fieldKeys := make([]string, 0, len(s.Fields))
		for _, f := range s.Fields {
			fields[f.Key] = fieldSchema(f)
			fieldKeys = append(fieldKeys, f.Key)
		}
		sections[s.Key] = map[string]any{
			"type":                 "object",
			"title":                s.Title,
			"properties":           fields,
			"required":             fieldKeys,
			"additionalProperties": false,
		}
		sectionKeys = append(sectionKeys, s.Key)
	}
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"$id":                  conformanceSchemaURL,
		"title":                "HZZ sanitized document " + r.version,
		"type":                 "object",
		"properties":           sections,
		"required":             sectionKeys,
		"additionalProperties": false,
	}
}

func fieldSchema(f Field) map[string]any {
	switch f.Kind {
	case KindSingleChoice:
		values := []any{""}
		for _, opt := range f.Options {
			values = append(values, opt.Value)
		}
		return map[string]any{"type": "string", "enum": values}
	case KindMultiChoice:
		values := make([]any, 0, len(f.Options))
		for _, opt := range f.Options {
			values = append(values, opt.Value)
		}
		return map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string", "enum": values},
			"uniqueItems": true,
		}
	case KindTable:
		columns := f.RowKind.Columns()
		props := make(map[string]any, len(columns))
		required := make([]string, 0, len(columns))
		for _, c := range columns {
			if c.Type == ColumnNumber {
				props[c.Key] = map[string]any{"type": "number"}
			} else {
				props[c.Key] = map[string]any{"type": "string"}
			}
			required = append(required, c.Key)
		}
		return map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"properties":           props,
				"required":             required,
				"additionalProperties": false,
			},
		}
	case KindComputedSummary, KindDecorative:
		return map[string]any{"const": ""}
	default:
		return map[string]any{"type": "string"}
	}
}

// Conformance validates plain JSON documents against the registry's JSON Schema.
type Conformance struct {
	schema *jsonschema.Schema
}

// CompileConformance compiles the registry's JSON Schema.
func (r *Registry) CompileConformance() (*Conformance, error) {
	raw, err := json.Marshal(r.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal conformance schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(conformanceSchemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(conformanceSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Conformance{schema: compiled}, nil
}

// Validate checks any JSON-marshalable value against the schema.
func (c *Conformance) Validate(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return c.ValidateJSON(raw)
}

// ValidateJSON checks raw JSON against the schema.
func (c *Conformance) ValidateJSON(raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	return c.schema.Validate(payload)
}
