// Package policy decides how much applicant data an archived run record may
// carry and applies the matching redaction.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"unicode/utf8"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/archive"
	"github.com/tiger/hzz-draft-assistant/internal/intake"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

// RecordingLevel is the archive fidelity.
type RecordingLevel string

const (
	LevelFull     RecordingLevel = "full"
	LevelRedacted RecordingLevel = "redacted"
	LevelMinimal  RecordingLevel = "minimal"
)

// PayloadClass tags the kind of data a record field holds.
type PayloadClass string

const (
	// PayloadPII identifies the applicant: names, OIB, contact details.
	PayloadPII PayloadClass = "pii"
	// PayloadFreeText is applicant-written prose such as the CV.
	PayloadFreeText PayloadClass = "free_text"
	// PayloadDraftText is the raw provider response.
	PayloadDraftText PayloadClass = "draft_text"
	PayloadMetadata  PayloadClass = "metadata"
)

// RedactionAction is applied to one value.
type RedactionAction string

const (
	RedactionAllow RedactionAction = "allow"
	RedactionMask  RedactionAction = "mask"
	RedactionHash  RedactionAction = "hash"
	RedactionDrop  RedactionAction = "drop"
)

// ParseRecordingLevel parses/validates level strings. Empty selects
// LevelRedacted.
func ParseRecordingLevel(value string) (RecordingLevel, error) {
	if value == "" {
		return LevelRedacted, nil
	}
	level := RecordingLevel(value)
	if err := level.Validate(); err != nil {
		return "", err
	}
	return level, nil
}

// Validate enforces supported recording levels.
func (l RecordingLevel) Validate() error {
	switch l {
	case LevelFull, LevelRedacted, LevelMinimal:
		return nil
	default:
		return fmt.Errorf("invalid recording level: %q", l)
	}
}

// Replayable reports whether records kept at l still hold the draft text
// and intake needed to re-run the sanitizer.
func (l RecordingLevel) Replayable() bool {
	return l == LevelFull || l == LevelRedacted
}

// ClassifyIntakeKey returns the payload class of an intake answer.
func ClassifyIntakeKey(key string) PayloadClass {
	switch key {
	case "ime", "prezime", "oib", "kontakt_email", "kontakt_tel":
		return PayloadPII
	case "cv_text", "radno_iskustvo", "dodatne_informacije":
		return PayloadFreeText
	default:
		return PayloadMetadata
	}
}

// ResolveAction encodes the redaction matrix.
func ResolveAction(level RecordingLevel, class PayloadClass) (RedactionAction, error) {
	if err := level.Validate(); err != nil {
		return "", err
	}
	if class == PayloadMetadata || level == LevelFull {
		return RedactionAllow, nil
	}
	switch class {
	case PayloadPII:
		if level == LevelMinimal {
			return RedactionDrop, nil
		}
		return RedactionHash, nil
	case PayloadFreeText:
		if level == LevelMinimal {
			return RedactionDrop, nil
		}
		return RedactionMask, nil
	case PayloadDraftText:
		if level == LevelMinimal {
			return RedactionDrop, nil
		}
		return RedactionAllow, nil
	}
	return "", fmt.Errorf("unsupported redaction matrix entry for class=%s level=%s", class, level)
}

// Apply returns value transformed by action. Empty values stay empty so a
// redacted answer never looks like a provided one.
func Apply(action RedactionAction, value string) string {
	if value == "" {
		return ""
	}
	switch action {
	case RedactionMask:
		r, _ := utf8.DecodeRuneInString(value)
		return string(r) + "***"
	case RedactionHash:
		sum := sha256.Sum256([]byte(value))
		return "sha256:" + hex.EncodeToString(sum[:8])
	case RedactionDrop:
		return ""
	default:
		return value
	}
}

// Redact returns a copy of record reduced to level. The intake, the raw
// draft text and the personal section of the result are rewritten; the
// caller's record is not modified.
func Redact(reg *schema.Registry, level RecordingLevel, record archive.Record) (archive.Record, error) {
	if err := level.Validate(); err != nil {
		return archive.Record{}, err
	}
	if level == LevelFull {
		return record, nil
	}

	draftAction, err := ResolveAction(level, PayloadDraftText)
	if err != nil {
		return archive.Record{}, err
	}
	record.RawText = Apply(draftAction, record.RawText)

	if record.Intake != nil {
		redacted := *record.Intake
		for _, key := range intake.Keys() {
			action, err := ResolveAction(level, ClassifyIntakeKey(key))
			if err != nil {
				return archive.Record{}, err
			}
			value, _ := redacted.Value(key)
			redacted.Set(key, Apply(action, value))
		}
		if level == LevelMinimal {
			record.Intake = nil
		} else {
			record.Intake = &redacted
		}
	}

	if record.Result != nil {
		reserved := reg.Reserved()
		if personal, ok := record.Result.Data[reserved.Key]; ok {
			section := maps.Clone(personal)
			for _, field := range reserved.Fields {
				value, ok := section[field.Key]
				if !ok || field.Intake == "" || value.Shape != document.ShapeText {
					continue
				}
				action, err := ResolveAction(level, ClassifyIntakeKey(field.Intake))
				if err != nil {
					return archive.Record{}, err
				}
				section[field.Key] = document.Text(Apply(action, value.Text))
			}
			result := *record.Result
			result.Data = maps.Clone(record.Result.Data)
			result.Data[reserved.Key] = section
			record.Result = &result
		}
	}
	return record, nil
}
