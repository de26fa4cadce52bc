package schema

import (
	"fmt"
)

// Kind is the closed set of field kinds the sanitizer dispatches on.
type Kind string

const (
	KindText            Kind = "text"
	KindSingleChoice    Kind = "single_choice"
	KindMultiChoice     Kind = "multi_choice"
	KindTable           Kind = "table"
	KindComputedSummary Kind = "computed_summary"
	KindDecorative      Kind = "decorative"
)

// Validate enforces supported kinds.
func (k Kind) Validate() error {
	switch k {
	case KindText, KindSingleChoice, KindMultiChoice, KindTable, KindComputedSummary, KindDecorative:
		return nil
	default:
		return fmt.Errorf("unsupported field kind: %q", k)
	}
}

// Control is the form widget declared in the catalog. Every control maps onto
// exactly one Kind.
type Control string

const (
	ControlText          Control = "text"
	ControlTextarea      Control = "textarea"
	ControlDate          Control = "date"
	ControlNumber        Control = "number"
	ControlEmail         Control = "email"
	ControlRadio         Control = "radio"
	ControlSelect        Control = "select"
	ControlCheckbox      Control = "checkbox"
	ControlTable         Control = "table"
	ControlProfitSummary Control = "profit_summary"
	ControlHelperText    Control = "helper_text"
	ControlSectionLabel  Control = "section_label"
)

var controlKinds = map[Control]Kind{
	ControlText:          KindText,
	ControlTextarea:      KindText,
	ControlDate:          KindText,
	ControlNumber:        KindText,
	ControlEmail:         KindText,
	ControlRadio:         KindSingleChoice,
	ControlSelect:        KindSingleChoice,
	ControlCheckbox:      KindMultiChoice,
	ControlTable:         KindTable,
	ControlProfitSummary: KindComputedSummary,
	ControlHelperText:    KindDecorative,
	ControlSectionLabel:  KindDecorative,
}

// Kind returns the field kind for a control.
func (c Control) Kind() (Kind, error) {
	kind, ok := controlKinds[c]
	if !ok {
		return "", fmt.Errorf("unsupported field type: %q", c)
	}
	return kind, nil
}

// FreeText reports whether the control collects free prose.
func (c Control) FreeText() bool {
	return c == ControlText || c == ControlTextarea
}

// Option is one value/label pair of an enumerated field.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Field is one declared form field.
type Field struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Control  Control  `json:"type"`
	Kind     Kind     `json:"kind"`
	Options  []Option `json:"options,omitempty"`
	RowKind  RowKind  `json:"table_type,omitempty"`
	Required bool     `json:"required,omitempty"`
	// Intake names the intake questionnaire key that owns this field, if any.
	Intake string `json:"intake,omitempty"`
	// UserOwned fields are filled by the applicant and never taken from AI output.
	UserOwned bool `json:"user_owned,omitempty"`
}

// Drafted reports whether AI output may populate the field.
func (f Field) Drafted() bool {
	return !f.UserOwned && f.Intake == ""
}

// HasOption reports whether value is a declared option value.
func (f Field) HasOption(value string) bool {
	for _, opt := range f.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// OptionLabel returns the label for a canonical option value.
func (f Field) OptionLabel(value string) (string, bool) {
	for _, opt := range f.Options {
		if opt.Value == value {
			return opt.Label, true
		}
	}
	return "", false
}

// Section is a named, ordered group of fields.
type Section struct {
	ID       string  `json:"id"`
	Key      string  `json:"key"`
	Title    string  `json:"title"`
	Reserved bool    `json:"reserved,omitempty"`
	Fields   []Field `json:"fields"`
}

// Field looks up a field by key.
func (s Section) Field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Registry is the immutable catalog of sections and fields. It is safe for
// concurrent use; callers must not mutate the returned slices.
type Registry struct {
	version  string
	sections []Section
	index    map[string]int
	reserved int
}

// Version returns the catalog version string.
func (r *Registry) Version() string {
	return r.version
}

// Sections returns every section in catalog order, including the reserved one.
func (r *Registry) Sections() []Section {
	out := make([]Section, len(r.sections))
	copy(out, r.sections)
	return out
}

// Generated returns the sections the AI drafts and the sanitizer validates.
func (r *Registry) Generated() []Section {
	out := make([]Section, 0, len(r.sections)-1)
	for i, s := range r.sections {
		if i == r.reserved {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Reserved returns the personal-data section excluded from generation.
func (r *Registry) Reserved() Section {
	return r.sections[r.reserved]
}

// Section looks up a section by key.
func (r *Registry) Section(key string) (Section, bool) {
	i, ok := r.index[key]
	if !ok {
		return Section{}, false
	}
	return r.sections[i], true
}

// Field looks up a field by section and field key.
func (r *Registry) Field(sectionKey, fieldKey string) (Field, bool) {
	s, ok := r.Section(sectionKey)
	if !ok {
		return Field{}, false
	}
	return s.Field(fieldKey)
}

// Template returns the empty document the AI is asked to fill: every generated
// section with table fields as [] and every other field as "".
func (r *Registry) Template() map[string]any {
	out := make(map[string]any, len(r.sections))
	for _, s := range r.Generated() {
		fields := make(map[string]any, len(s.Fields))
		for _, f := range s.Fields {
			if f.Kind == KindTable {
				fields[f.Key] = []any{}
				continue
			}
			fields[f.Key] = ""
		}
		out[s.Key] = fields
	}
	return out
}
