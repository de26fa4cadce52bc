package sanitize

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tiger/hzz-draft-assistant/api/document"
)

// fieldIssue is an issue not yet attached to a section and field.
type fieldIssue struct {
	class   document.IssueClass
	message string
}

func typeMismatch(message string) *fieldIssue {
	return &fieldIssue{class: document.IssueTypeMismatch, message: message}
}

// scalarString renders a JSON scalar in its canonical string form.
// ok is false for objects, arrays and any other non-scalar.
func scalarString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// coerceText converts a raw value to text. nil is unset and yields "".
func coerceText(raw any) (string, *fieldIssue) {
	if raw == nil {
		return "", nil
	}
	if s, ok := scalarString(raw); ok {
		return s, nil
	}
	return "", typeMismatch("cannot convert to text")
}

// coerceList converts a raw value to a list of trimmed, non-empty strings.
// Null, blank and non-scalar elements are dropped and flagged.
func coerceList(raw any) ([]string, *fieldIssue) {
	switch v := raw.(type) {
	case nil:
		return []string{}, nil
	case []any:
		out := make([]string, 0, len(v))
		dropped := false
		for _, item := range v {
			s, ok := scalarString(item)
			if s = strings.TrimSpace(s); !ok || s == "" {
				dropped = true
				continue
			}
			out = append(out, s)
		}
		if dropped {
			return out, typeMismatch("some list values are invalid")
		}
		return out, nil
	case []string:
		return coerceList(stringsToAny(v))
	case string:
		return splitList(v), nil
	default:
		if s, ok := scalarString(v); ok {
			return []string{s}, nil
		}
		return []string{}, typeMismatch("expected a list of options")
	}
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
