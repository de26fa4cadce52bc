package policy

import (
	"strings"
	"testing"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/archive"
	"github.com/tiger/hzz-draft-assistant/internal/intake"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

func TestParseRecordingLevel(t *testing.T) {
	t.Parallel()

	if level, err := ParseRecordingLevel(""); err != nil || level != LevelRedacted {
		t.Fatalf("expected empty level to default to redacted, got %q err=%v", level, err)
	}
	if level, err := ParseRecordingLevel("minimal"); err != nil || level != LevelMinimal {
		t.Fatalf("expected minimal level, got %q err=%v", level, err)
	}
	if _, err := ParseRecordingLevel("L2"); err == nil {
		t.Fatalf("expected invalid level to fail")
	}
	if LevelMinimal.Replayable() || !LevelRedacted.Replayable() {
		t.Fatalf("unexpected replayable flags")
	}
}

func TestResolveAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		level    RecordingLevel
		class    PayloadClass
		expected RedactionAction
	}{
		{name: "full allows pii", level: LevelFull, class: PayloadPII, expected: RedactionAllow},
		{name: "redacted hashes pii", level: LevelRedacted, class: PayloadPII, expected: RedactionHash},
		{name: "redacted masks free text", level: LevelRedacted, class: PayloadFreeText, expected: RedactionMask},
		{name: "redacted keeps draft text", level: LevelRedacted, class: PayloadDraftText, expected: RedactionAllow},
		{name: "minimal drops draft text", level: LevelMinimal, class: PayloadDraftText, expected: RedactionDrop},
		{name: "minimal keeps metadata", level: LevelMinimal, class: PayloadMetadata, expected: RedactionAllow},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ResolveAction(tc.level, tc.class)
			if err != nil {
				t.Fatalf("unexpected resolve error: %v", err)
			}
			if got != tc.expected {
				t.Fatalf("expected action %s, got %s", tc.expected, got)
			}
		})
	}

	if _, err := ResolveAction(LevelRedacted, "audio"); err == nil {
		t.Fatalf("expected unknown class to fail")
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	if got := Apply(RedactionMask, "Živim od 2010."); got != "Ž***" {
		t.Fatalf("unexpected mask %q", got)
	}
	first, second := Apply(RedactionHash, "69435151530"), Apply(RedactionHash, "69435151530")
	if first != second || !strings.HasPrefix(first, "sha256:") || len(first) != len("sha256:")+16 {
		t.Fatalf("expected stable short hash, got %q and %q", first, second)
	}
	if Apply(RedactionHash, "") != "" || Apply(RedactionDrop, "x") != "" || Apply(RedactionAllow, "x") != "x" {
		t.Fatalf("unexpected empty/drop/allow handling")
	}
}

func sampleRecord() archive.Record {
	in := intake.Data{
		Ime:           "Ana",
		Prezime:       "Anić",
		OIB:           "69435151530",
		CVText:        "Deset godina iskustva.",
		PoslovnaIdeja: "Servis za čišćenje",
		Lokacija:      "Zagreb",
	}
	return archive.Record{
		RunID:         "run-1",
		ApplicationID: "app-1",
		Intake:        &in,
		RawText:       `{"2":{}}`,
		Result: &document.Result{
			Success: true,
			Data: document.Document{
				"1": {"ime": document.Text("Ana"), "podrucni_ured": document.Text("Zagreb")},
				"2": {"sjediste": document.Text("Zagreb")},
			},
		},
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	reg := schema.MustDefault()
	original := sampleRecord()

	full, err := Redact(reg, LevelFull, original)
	if err != nil || full.Intake.OIB != "69435151530" {
		t.Fatalf("expected full level untouched, got %+v err=%v", full.Intake, err)
	}

	redacted, err := Redact(reg, LevelRedacted, original)
	if err != nil {
		t.Fatalf("unexpected redact error: %v", err)
	}
	if redacted.Intake.OIB != Apply(RedactionHash, "69435151530") || redacted.Intake.CVText != "D***" {
		t.Fatalf("unexpected redacted intake %+v", redacted.Intake)
	}
	if redacted.Intake.PoslovnaIdeja != "Servis za čišćenje" || redacted.RawText != `{"2":{}}` {
		t.Fatalf("expected metadata and draft text kept, got %+v", redacted)
	}
	if got := redacted.Result.Data["1"]["ime"].Text; got != Apply(RedactionHash, "Ana") {
		t.Fatalf("expected hashed name in result, got %q", got)
	}
	if redacted.Result.Data["1"]["podrucni_ured"].Text != "Zagreb" {
		t.Fatalf("fields without an intake key must be kept")
	}
	if original.Intake.OIB != "69435151530" || original.Result.Data["1"]["ime"].Text != "Ana" {
		t.Fatalf("redaction modified the caller's record")
	}

	minimal, err := Redact(reg, LevelMinimal, original)
	if err != nil {
		t.Fatalf("unexpected redact error: %v", err)
	}
	if minimal.Intake != nil || minimal.RawText != "" || minimal.Result.Data["1"]["ime"].Text != "" {
		t.Fatalf("expected minimal record without applicant data, got %+v", minimal)
	}

	if _, err := Redact(reg, "L9", original); err == nil {
		t.Fatalf("expected invalid level error")
	}
}
