package intake

import (
	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

// PersonalSection builds the reserved personal-data section: every declared
// field defaulted, intake-mapped fields filled from d.
func PersonalSection(reg *schema.Registry, d Data) document.Section {
	reserved := reg.Reserved()
	out := make(document.Section, len(reserved.Fields))
	for _, field := range reserved.Fields {
		out[field.Key] = zeroValue(field)
		if field.Intake == "" {
			continue
		}
		if v, ok := d.Value(field.Intake); ok && v != "" && field.Kind != schema.KindTable && field.Kind != schema.KindMultiChoice {
			out[field.Key] = document.Text(v)
		}
	}
	return out
}

// Apply rewrites the applicant-owned fields of a raw draft before it is
// sanitized: intake-mapped fields take the intake answer and user-owned
// fields are removed so they come back empty. Sections that are missing or
// not objects are left alone so the sanitizer still reports them.
func Apply(reg *schema.Registry, raw any, d Data) any {
	root, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	for _, section := range reg.Generated() {
		fields, ok := root[section.Key].(map[string]any)
		if !ok {
			continue
		}
		for _, field := range section.Fields {
			switch {
			case field.Intake != "":
				v, _ := d.Value(field.Intake)
				fields[field.Key] = v
			case field.UserOwned:
				delete(fields, field.Key)
			}
		}
	}
	return root
}

func zeroValue(field schema.Field) document.Value {
	switch field.Kind {
	case schema.KindTable:
		return document.Rows(nil)
	case schema.KindMultiChoice:
		return document.List(nil)
	default:
		return document.Text("")
	}
}
