package intake

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/tiger/hzz-draft-assistant/internal/drafting"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(promptFS, "prompts/*.tmpl"))

type choiceHint struct {
	Section string
	Field   string
	Values  []string
}

type tableHint struct {
	RowKind schema.RowKind
	Columns []string
}

type systemView struct {
	SectionKeys []string
	Reserved    string
	OwnedFields []string
	Choices     []choiceHint
	Tables      []tableHint
}

type userView struct {
	Data
	SectionKeys []string
	Template    string
}

// DraftTemplate returns the empty document providers are asked to fill: the
// fields of every generated section that AI output may populate, tables as
// [] and everything else as "".
func DraftTemplate(reg *schema.Registry) map[string]any {
	out := make(map[string]any)
	for _, section := range reg.Generated() {
		fields := make(map[string]any)
		for _, field := range section.Fields {
			if !draftable(field) {
				continue
			}
			if field.Kind == schema.KindTable {
				fields[field.Key] = []any{}
				continue
			}
			fields[field.Key] = ""
		}
		out[section.Key] = fields
	}
	return out
}

// BuildPrompt renders the system and user prompts for one intake.
func BuildPrompt(reg *schema.Registry, d Data) (drafting.Prompt, error) {
	tmpl := DraftTemplate(reg)
	templateJSON, err := json.MarshalIndent(tmpl, "", "  ")
	if err != nil {
		return drafting.Prompt{}, fmt.Errorf("marshal draft template: %w", err)
	}

	sys := systemView{Reserved: reg.Reserved().Key}
	seenKinds := map[schema.RowKind]bool{}
	for _, section := range reg.Generated() {
		sys.SectionKeys = append(sys.SectionKeys, section.Key)
		for _, field := range section.Fields {
			if !field.Drafted() {
				sys.OwnedFields = append(sys.OwnedFields, section.Key+"."+field.Key)
				continue
			}
			switch field.Kind {
			case schema.KindSingleChoice, schema.KindMultiChoice:
				hint := choiceHint{Section: section.Key, Field: field.Key}
				for _, opt := range field.Options {
					hint.Values = append(hint.Values, opt.Value)
				}
				sys.Choices = append(sys.Choices, hint)
			case schema.KindTable:
				if seenKinds[field.RowKind] {
					continue
				}
				seenKinds[field.RowKind] = true
				hint := tableHint{RowKind: field.RowKind}
				for _, col := range field.RowKind.Columns() {
					hint.Columns = append(hint.Columns, col.Key)
				}
				sys.Tables = append(sys.Tables, hint)
			}
		}
	}

	var system, user bytes.Buffer
	if err := prompts.ExecuteTemplate(&system, "system.tmpl", sys); err != nil {
		return drafting.Prompt{}, fmt.Errorf("render system prompt: %w", err)
	}
	if err := prompts.ExecuteTemplate(&user, "user.tmpl", userView{
		Data:        d.trimmed(),
		SectionKeys: sys.SectionKeys,
		Template:    string(templateJSON),
	}); err != nil {
		return drafting.Prompt{}, fmt.Errorf("render user prompt: %w", err)
	}

	return drafting.Prompt{
		System:   system.String(),
		User:     user.String(),
		Idea:     strings.TrimSpace(d.PoslovnaIdeja),
		Template: tmpl,
	}, nil
}

func draftable(field schema.Field) bool {
	if !field.Drafted() {
		return false
	}
	return field.Kind != schema.KindDecorative && field.Kind != schema.KindComputedSummary
}
