package sanitize

import (
	"fmt"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

// Validator coerces a raw AI document into the registry's shape.
type Validator struct {
	Registry *schema.Registry
}

// Validate never fails: Data always holds every generated section and field,
// and every divergence is reported in Issues.
func (v Validator) Validate(raw any) document.Result {
	var issues []document.Issue
	root, ok := asObject(raw)
	if !ok {
		issues = append(issues, document.Issue{
			Class:   document.IssueStructuralMismatch,
			Message: fmt.Sprintf("document must be an object, got %s", describe(raw)),
		})
	}

	data := make(document.Document, len(v.Registry.Generated()))
	for _, section := range v.Registry.Generated() {
		var rawSection any
		if ok {
			rawSection = root[section.Key]
			if rawSection == nil {
				issues = append(issues, sectionIssue(section, "section is missing"))
			}
		}
		out, sectionIssues := v.ValidateSection(section, rawSection)
		data[section.Key] = out
		issues = append(issues, sectionIssues...)
	}

	return document.Result{
		Success: len(issues) == 0,
		Data:    data,
		Issues:  issues,
	}
}

// ValidateSection coerces one raw section. A nil raw section yields a fully
// defaulted section without issues; callers decide whether absence matters.
func (v Validator) ValidateSection(section schema.Section, raw any) (document.Section, []document.Issue) {
	var issues []document.Issue
	input, isObject := asObject(raw)
	if raw != nil && !isObject {
		issues = append(issues, sectionIssue(section, fmt.Sprintf("section must be an object, got %s", describe(raw))))
	}

	out := make(document.Section, len(section.Fields))
	for _, field := range section.Fields {
		value, fieldIssues := validateField(field, input[field.Key])
		out[field.Key] = value
		for _, fi := range fieldIssues {
			issues = append(issues, document.Issue{
				Section:    section.Key,
				Field:      field.Key,
				FieldLabel: field.Label,
				Class:      fi.class,
				Message:    fi.message,
			})
		}
	}
	return out, issues
}

func validateField(field schema.Field, raw any) (document.Value, []*fieldIssue) {
	switch field.Kind {
	case schema.KindText:
		s, issue := coerceText(raw)
		if issue != nil {
			return document.Text(""), []*fieldIssue{issue}
		}
		s, issue = clearBareAnswer(field, s)
		if issue != nil {
			return document.Text(s), []*fieldIssue{issue}
		}
		return document.Text(s), nil
	case schema.KindSingleChoice:
		value, issues := resolveSingle(field, raw)
		return document.Text(value), issues
	case schema.KindMultiChoice:
		values, issues := resolveMulti(field, raw)
		return document.List(values), issues
	case schema.KindTable:
		rows, issue := normalizeTable(field.RowKind, raw)
		if issue != nil {
			return document.Rows(rows), []*fieldIssue{issue}
		}
		return document.Rows(rows), nil
	case schema.KindComputedSummary, schema.KindDecorative:
		return document.Text(""), nil
	default:
		return document.Text(""), []*fieldIssue{typeMismatch(fmt.Sprintf("unsupported field kind %q", field.Kind))}
	}
}

func sectionIssue(section schema.Section, message string) document.Issue {
	return document.Issue{
		Section: section.Key,
		Class:   document.IssueStructuralMismatch,
		Message: message,
	}
}

func asObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case document.Section:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = value.Interface()
		}
		return out, true
	case document.Document:
		return v.Interface(), true
	default:
		return nil, false
	}
}

func describe(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		if _, ok := scalarString(raw); ok {
			return "number"
		}
		return fmt.Sprintf("%T", raw)
	}
}
