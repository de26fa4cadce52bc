package document

import (
	"encoding/json"
	"fmt"
)

// IssueClass is the divergence taxonomy reported by the sanitizer.
type IssueClass string

const (
	IssueTypeMismatch       IssueClass = "type_mismatch"
	IssueShapeMismatch      IssueClass = "shape_mismatch"
	IssueEnumMismatch       IssueClass = "enum_mismatch"
	IssueStructuralMismatch IssueClass = "structural_mismatch"
)

// Validate enforces supported issue classes.
func (c IssueClass) Validate() error {
	switch c {
	case IssueTypeMismatch, IssueShapeMismatch, IssueEnumMismatch, IssueStructuralMismatch:
		return nil
	default:
		return fmt.Errorf("unsupported issue class: %q", c)
	}
}

// Issue records one coercion failure or structural violation.
// Section and Field are empty for document-level issues; Field is empty for
// section-level issues.
type Issue struct {
	Section    string     `json:"section,omitempty"`
	Field      string     `json:"field,omitempty"`
	FieldLabel string     `json:"field_label,omitempty"`
	Class      IssueClass `json:"class"`
	Message    string     `json:"message"`
}

func (i Issue) String() string {
	switch {
	case i.Section == "":
		return i.Message
	case i.Field == "":
		return fmt.Sprintf("section %s: %s", i.Section, i.Message)
	case i.FieldLabel != "":
		return fmt.Sprintf("section %s field %q (%s): %s", i.Section, i.FieldLabel, i.Field, i.Message)
	default:
		return fmt.Sprintf("section %s field %s: %s", i.Section, i.Field, i.Message)
	}
}

// Result is the outcome of one sanitizer invocation. Data is always fully
// populated; Success is true iff Issues is empty.
type Result struct {
	Success bool
	Data    Document
	Issues  []Issue
}

// IssueStrings renders issues for the wire.
func (r Result) IssueStrings() []string {
	out := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		out = append(out, issue.String())
	}
	return out
}

// IssuesFor returns the issues attached to one section (and field, when non-empty).
func (r Result) IssuesFor(section, field string) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Section != section {
			continue
		}
		if field != "" && issue.Field != field {
			continue
		}
		out = append(out, issue)
	}
	return out
}

type resultView struct {
	Success      bool     `json:"success"`
	Data         Document `json:"data"`
	Issues       []string `json:"issues"`
	IssueDetails []Issue  `json:"issue_details,omitempty"`
}

// MarshalJSON emits {success, data, issues: string[], issue_details}.
func (r Result) MarshalJSON() ([]byte, error) {
	data := r.Data
	if data == nil {
		data = Document{}
	}
	return json.Marshal(resultView{
		Success:      r.Success,
		Data:         data,
		Issues:       r.IssueStrings(),
		IssueDetails: r.Issues,
	})
}
