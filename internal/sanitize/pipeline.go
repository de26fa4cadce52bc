package sanitize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

// Pipeline is the single entry point for sanitizing AI output against one
// registry. The zero value is not usable; build it with New.
type Pipeline struct {
	validator Validator
}

// New binds a pipeline to a registry.
func New(reg *schema.Registry) Pipeline {
	return Pipeline{validator: Validator{Registry: reg}}
}

// Registry returns the bound registry.
func (p Pipeline) Registry() *schema.Registry {
	return p.validator.Registry
}

// Run sanitizes a decoded JSON value.
func (p Pipeline) Run(raw any) document.Result {
	return p.validator.Validate(raw)
}

// RunSection sanitizes one section by key, including the reserved one.
// Unknown keys are reported as a structural issue.
func (p Pipeline) RunSection(key string, raw any) (document.Section, []document.Issue) {
	section, ok := p.validator.Registry.Section(key)
	if !ok {
		return nil, []document.Issue{{
			Section: key,
			Class:   document.IssueStructuralMismatch,
			Message: "unknown section",
		}}
	}
	return p.validator.ValidateSection(section, raw)
}

// RunJSON decodes and sanitizes a JSON payload. Undecodable input yields a
// fully defaulted document with one structural issue.
func (p Pipeline) RunJSON(payload []byte) document.Result {
	raw, err := Decode(payload)
	if err != nil {
		result := p.validator.Validate(map[string]any{})
		result.Issues = []document.Issue{{
			Class:   document.IssueStructuralMismatch,
			Message: fmt.Sprintf("payload is not valid JSON: %v", err),
		}}
		result.Success = false
		return result
	}
	return p.validator.Validate(raw)
}

// Run sanitizes raw against reg.
func Run(reg *schema.Registry, raw any) document.Result {
	return New(reg).Run(raw)
}

// Decode parses a JSON payload into the raw form Run accepts. Numbers are
// kept as json.Number so no precision is lost before coercion.
func Decode(payload []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return raw, nil
}
