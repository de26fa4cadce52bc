// Package replay re-runs archived generation records through the current
// sanitizer and reports where the result moved.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"reflect"
	"slices"
	"strconv"

	"github.com/tiger/hzz-draft-assistant/api/document"
	obs "github.com/tiger/hzz-draft-assistant/api/observability"
	"github.com/tiger/hzz-draft-assistant/internal/drafting"
	"github.com/tiger/hzz-draft-assistant/internal/intake"
	"github.com/tiger/hzz-draft-assistant/internal/observability/telemetry"
	"github.com/tiger/hzz-draft-assistant/internal/sanitize"
)

// ErrNotReplayable reports a record archived without the draft text,
// intake or result a replay needs.
var ErrNotReplayable = errors.New("record is not replayable")

// Record is the replay view of an archived run.
type Record struct {
	RunID         string       `json:"run_id"`
	ApplicationID string       `json:"application_id"`
	SchemaVersion string       `json:"schema_version"`
	Intake        *intake.Data `json:"intake,omitempty"`
	RawText       string       `json:"raw_text,omitempty"`
	Result        *WireResult  `json:"result,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// WireResult is a sanitized result in its JSON form.
type WireResult struct {
	Success      bool                      `json:"success"`
	Data         map[string]map[string]any `json:"data"`
	IssueDetails []document.Issue          `json:"issue_details,omitempty"`
}

// Report lists the divergences of one replayed record.
type Report struct {
	RunID               string                 `json:"run_id"`
	ApplicationID       string                 `json:"application_id"`
	SchemaVersion       string                 `json:"schema_version"`
	ReplaySchemaVersion string                 `json:"replay_schema_version"`
	Divergences         []obs.ReplayDivergence `json:"divergences"`
}

// Decode reads one archived record.
func Decode(r io.Reader) (Record, error) {
	var rec Record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("decode archive record: %w", err)
	}
	if rec.RunID == "" || rec.ApplicationID == "" {
		return Record{}, fmt.Errorf("decode archive record: run_id and application_id are required")
	}
	return rec, nil
}

// Replay sanitizes the archived draft text again, the way generation does,
// and compares the outcome with the archived result.
func Replay(pipeline sanitize.Pipeline, rec Record) (Report, error) {
	if rec.RawText == "" || rec.Intake == nil || rec.Result == nil {
		return Report{}, fmt.Errorf("%w: run %s", ErrNotReplayable, rec.RunID)
	}
	replayed, err := rerun(pipeline, rec)
	if err != nil {
		return Report{}, err
	}
	reg := pipeline.Registry()
	report := Report{
		RunID:               rec.RunID,
		ApplicationID:       rec.ApplicationID,
		SchemaVersion:       rec.SchemaVersion,
		ReplaySchemaVersion: reg.Version(),
		Divergences:         Compare(*rec.Result, replayed),
	}

	telemetry.DefaultEmitter().EmitMetric(
		telemetry.MetricReplayDivergences,
		float64(len(report.Divergences)),
		"count",
		map[string]string{"schema_changed": strconv.FormatBool(rec.SchemaVersion != reg.Version())},
		telemetry.Correlation{
			ApplicationID: rec.ApplicationID,
			RunID:         rec.RunID,
			SchemaVersion: reg.Version(),
			EmittedBy:     "replay",
		},
	)
	return report, nil
}

func rerun(pipeline sanitize.Pipeline, rec Record) (WireResult, error) {
	reg := pipeline.Registry()
	payload, err := drafting.ExtractJSON(rec.RawText)
	if err != nil {
		return WireResult{}, fmt.Errorf("%w: run %s: %v", ErrNotReplayable, rec.RunID, err)
	}

	var result document.Result
	if raw, decodeErr := sanitize.Decode(payload); decodeErr != nil {
		result = pipeline.RunJSON(payload)
	} else {
		result = pipeline.Run(intake.Apply(reg, raw, *rec.Intake))
	}
	result.Data[reg.Reserved().Key] = intake.PersonalSection(reg, *rec.Intake)
	return toWire(result)
}

func toWire(result document.Result) (WireResult, error) {
	body, err := json.Marshal(result)
	if err != nil {
		return WireResult{}, fmt.Errorf("encode replayed result: %w", err)
	}
	var out WireResult
	if err := json.Unmarshal(body, &out); err != nil {
		return WireResult{}, fmt.Errorf("decode replayed result: %w", err)
	}
	return out, nil
}

// Compare performs deterministic baseline/replay result comparison.
func Compare(baseline, replay WireResult) []obs.ReplayDivergence {
	divergences := make([]obs.ReplayDivergence, 0)

	if baseline.Success != replay.Success {
		divergences = append(divergences, obs.ReplayDivergence{
			Class:   obs.OutcomeDivergence,
			Scope:   "result",
			Message: fmt.Sprintf("success mismatch: baseline=%t replay=%t", baseline.Success, replay.Success),
		})
	}

	for _, sectionKey := range unionKeys(baseline.Data, replay.Data) {
		base, inBase := baseline.Data[sectionKey]
		next, inReplay := replay.Data[sectionKey]
		if inBase != inReplay {
			divergences = append(divergences, obs.ReplayDivergence{
				Class:   obs.DataDivergence,
				Scope:   sectionKey,
				Message: fmt.Sprintf("section presence mismatch: baseline=%t replay=%t", inBase, inReplay),
			})
			continue
		}
		for _, fieldKey := range unionKeys(base, next) {
			if reflect.DeepEqual(base[fieldKey], next[fieldKey]) {
				continue
			}
			divergences = append(divergences, obs.ReplayDivergence{
				Class:   obs.DataDivergence,
				Scope:   sectionKey + "." + fieldKey,
				Message: fmt.Sprintf("value mismatch: baseline=%s replay=%s", compact(base[fieldKey]), compact(next[fieldKey])),
			})
		}
	}

	baseIssues := issueTallies(baseline.IssueDetails)
	replayIssues := issueTallies(replay.IssueDetails)
	for _, text := range unionKeys(baseIssues, replayIssues) {
		base, next := baseIssues[text], replayIssues[text]
		scope := base.scope
		if scope == "" {
			scope = next.scope
		}
		switch {
		case next.count > base.count:
			divergences = append(divergences, obs.ReplayDivergence{
				Class:   obs.IssueDivergence,
				Scope:   scope,
				Message: "new issue: " + text,
			})
		case next.count < base.count:
			divergences = append(divergences, obs.ReplayDivergence{
				Class:   obs.IssueDivergence,
				Scope:   scope,
				Message: "issue no longer reported: " + text,
			})
		}
	}

	return divergences
}

type issueTally struct {
	scope string
	count int
}

func issueTallies(issues []document.Issue) map[string]issueTally {
	out := make(map[string]issueTally, len(issues))
	for _, issue := range issues {
		text := issue.String()
		tally := out[text]
		tally.scope = issueScope(issue)
		tally.count++
		out[text] = tally
	}
	return out
}

func issueScope(issue document.Issue) string {
	switch {
	case issue.Section == "":
		return "result"
	case issue.Field == "":
		return issue.Section
	default:
		return issue.Section + "." + issue.Field
	}
}

func unionKeys[V any](a, b map[string]V) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

func compact(v any) string {
	if v == nil {
		return "<missing>"
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(body)
}
