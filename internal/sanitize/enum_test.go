package sanitize

import (
	"reflect"
	"testing"

	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

func yesNoField() schema.Field {
	return schema.Field{
		Key:     "radionica",
		Label:   "Radionica",
		Control: schema.ControlRadio,
		Kind:    schema.KindSingleChoice,
		Options: []schema.Option{{Value: "da", Label: "Da"}, {Value: "ne", Label: "Ne"}},
	}
}

func TestResolveSingleYesNo(t *testing.T) {
	t.Parallel()

	field := yesNoField()
	cases := []struct {
		raw  any
		want string
	}{
		{raw: "da", want: "da"},
		{raw: "Da", want: "da"},
		{raw: "DA ", want: "da"},
		{raw: "yes", want: "da"},
		{raw: "Y", want: "da"},
		{raw: "true", want: "da"},
		{raw: true, want: "da"},
		{raw: float64(1), want: "da"},
		{raw: "potvrdan", want: "da"},
		{raw: "Ne", want: "ne"},
		{raw: "no", want: "ne"},
		{raw: false, want: "ne"},
		{raw: "0", want: "ne"},
		{raw: "", want: ""},
		{raw: nil, want: ""},
	}
	for _, tc := range cases {
		got, issues := resolveSingle(field, tc.raw)
		if got != tc.want || len(issues) != 0 {
			t.Fatalf("resolveSingle(%#v): expected %q without issues, got %q %+v", tc.raw, tc.want, got, issues)
		}
	}

	got, issues := resolveSingle(field, "maybe")
	if got != "" || len(issues) != 1 {
		t.Fatalf("expected unresolved maybe, got %q %+v", got, issues)
	}
	if issues[0].message != "unresolved enumerated value: maybe" {
		t.Fatalf("unexpected issue message: %q", issues[0].message)
	}

	if _, issues := resolveSingle(field, map[string]any{"da": true}); len(issues) != 1 || issues[0].message != "cannot convert to text" {
		t.Fatalf("expected type mismatch for object, got %+v", issues)
	}
}

func TestResolveSingleLabelsAndDiacritics(t *testing.T) {
	t.Parallel()

	field := schema.Field{
		Key:     "lokacija_poslovanja",
		Control: schema.ControlSelect,
		Kind:    schema.KindSingleChoice,
		Options: []schema.Option{
			{Value: "kod_kuce", Label: "Kod kuće"},
			{Value: "poslovni_prostor", Label: "Poslovni prostor"},
		},
	}
	cases := map[string]string{
		"Kod kuće":           "kod_kuce",
		"KOD KUĆE":           "kod_kuce",
		"kod kuce":           "kod_kuce",
		"  poslovni prostor": "poslovni_prostor",
		"Poslovni_Prostor":   "poslovni_prostor",
	}
	for raw, want := range cases {
		if got, issues := resolveSingle(field, raw); got != want || len(issues) != 0 {
			t.Fatalf("resolveSingle(%q): expected %q, got %q %+v", raw, want, got, issues)
		}
	}
	if got, issues := resolveSingle(field, "da"); got != "" || len(issues) != 1 {
		t.Fatalf("yes token must not resolve without a yes option, got %q %+v", got, issues)
	}
}

func TestResolveSingleCannotEstimate(t *testing.T) {
	t.Parallel()

	withUnsure := yesNoField()
	withUnsure.Options = append(withUnsure.Options, schema.Option{Value: "ne_mogu_procijeniti", Label: "Ne mogu procijeniti"})
	for _, raw := range []string{"ne_mogu_procijeniti", "Ne mogu procijeniti", "unclear", "Unknown"} {
		if got, issues := resolveSingle(withUnsure, raw); got != "ne_mogu_procijeniti" || len(issues) != 0 {
			t.Fatalf("resolveSingle(%q): expected ne_mogu_procijeniti, got %q %+v", raw, got, issues)
		}
	}

	for _, raw := range []string{"unclear", "ne mogu procijeniti"} {
		if got, issues := resolveSingle(yesNoField(), raw); got != "" || len(issues) != 1 {
			t.Fatalf("resolveSingle(%q) without option: expected unresolved, got %q %+v", raw, got, issues)
		}
	}
}

func TestResolveMulti(t *testing.T) {
	t.Parallel()

	field := schema.Field{
		Key:     "kanali_promocije",
		Control: schema.ControlCheckbox,
		Kind:    schema.KindMultiChoice,
		Options: []schema.Option{
			{Value: "posjetnice", Label: "Posjetnice"},
			{Value: "drustvene_mreze", Label: "Društvene mreže"},
			{Value: "oglasi", Label: "Plaćeni oglasi, print"},
		},
	}
	cases := []struct {
		name       string
		raw        any
		want       []string
		wantIssues int
	}{
		{name: "bare string", raw: "posjetnice", want: []string{"posjetnice"}},
		{name: "label string", raw: "Društvene mreže", want: []string{"drustvene_mreze"}},
		{name: "label containing comma", raw: "Plaćeni oglasi, print", want: []string{"oglasi"}},
		{name: "delimited string", raw: "Posjetnice; društvene mreže\nposjetnice", want: []string{"posjetnice", "drustvene_mreze"}},
		{name: "array with duplicates", raw: []any{"posjetnice", " Posjetnice ", "drustvene_mreze"}, want: []string{"posjetnice", "drustvene_mreze"}},
		{name: "unknown element", raw: []any{"posjetnice", "tv", "radio"}, want: []string{"posjetnice"}, wantIssues: 2},
		{name: "invalid element", raw: []any{"posjetnice", map[string]any{}}, want: []string{"posjetnice"}, wantIssues: 1},
		{name: "null and blank elements", raw: []any{"posjetnice", nil, "  "}, want: []string{"posjetnice"}, wantIssues: 1},
		{name: "object", raw: map[string]any{"a": 1}, want: []string{}, wantIssues: 1},
		{name: "null", raw: nil, want: []string{}},
		{name: "empty string", raw: "", want: []string{}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, issues := resolveMulti(field, tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if len(issues) != tc.wantIssues {
				t.Fatalf("expected %d issues, got %+v", tc.wantIssues, issues)
			}
		})
	}
}

func TestClearBareAnswer(t *testing.T) {
	t.Parallel()

	textarea := schema.Field{Key: "motivacija", Control: schema.ControlTextarea, Kind: schema.KindText}
	number := schema.Field{Key: "broj_zaposlenika", Control: schema.ControlNumber, Kind: schema.KindText}

	for _, s := range []string{"da", " Ne ", "YES", "1", "false"} {
		if got, issue := clearBareAnswer(textarea, s); got != "" || issue == nil {
			t.Fatalf("expected %q cleared, got %q %+v", s, got, issue)
		}
	}
	if got, issue := clearBareAnswer(textarea, "Da, želim raditi samostalno."); issue != nil || got == "" {
		t.Fatalf("expected prose kept, got %q %+v", got, issue)
	}
	if got, issue := clearBareAnswer(number, "1"); got != "1" || issue != nil {
		t.Fatalf("expected number control untouched, got %q %+v", got, issue)
	}
}

func TestFoldKey(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  Društvene   Mreže ": "drustvene mreze",
		"NE_MOGU_PROCIJENITI":  "ne mogu procijeniti",
		"ČŠŽĆ":                 "cszc",
		"":                     "",
	}
	for in, want := range cases {
		if got := foldKey(in); got != want {
			t.Fatalf("foldKey(%q): expected %q, got %q", in, want, got)
		}
	}
}
