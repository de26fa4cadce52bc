// Package generation turns an applicant's intake answers into a sanitized,
// stored application draft.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/archive"
	"github.com/tiger/hzz-draft-assistant/internal/drafting"
	"github.com/tiger/hzz-draft-assistant/internal/intake"
	"github.com/tiger/hzz-draft-assistant/internal/observability/telemetry"
	"github.com/tiger/hzz-draft-assistant/internal/sanitize"
	"github.com/tiger/hzz-draft-assistant/internal/security/policy"
	"github.com/tiger/hzz-draft-assistant/internal/store"
)

// Drafter produces the raw AI document for a prompt.
type Drafter interface {
	Draft(ctx context.Context, in drafting.Input) (drafting.Result, error)
}

// Repository is the slice of the store generation writes through.
type Repository interface {
	GetApplication(ctx context.Context, id string) (store.Application, error)
	SaveSections(ctx context.Context, id string, doc document.Document) error
	SetStatus(ctx context.Context, id string, status store.Status) error
}

// Deps wires a Service.
type Deps struct {
	Pipeline   sanitize.Pipeline
	Drafter    Drafter
	Repository Repository
	Archive    archive.Archive
	// ArchiveLevel bounds the applicant data kept in archived records;
	// empty selects policy.LevelRedacted.
	ArchiveLevel      policy.RecordingLevel
	PreferredProvider string
}

// Service runs intake → prompt → draft → sanitize → persist.
type Service struct {
	deps     Deps
	newRunID func() string
	now      func() time.Time
}

// Outcome reports one generation run. Result is always populated when the
// draft step succeeded; Persisted is true only when Result.Success.
type Outcome struct {
	RunID         string          `json:"run_id"`
	ApplicationID string          `json:"application_id"`
	Result        document.Result `json:"result"`
	Draft         drafting.Result `json:"draft"`
	Persisted     bool            `json:"persisted"`
	ArchiveKey    string          `json:"archive_key,omitempty"`
}

// New validates deps and returns a Service.
func New(deps Deps) (*Service, error) {
	if deps.Pipeline.Registry() == nil {
		return nil, fmt.Errorf("generation: pipeline is required")
	}
	if deps.Drafter == nil || deps.Repository == nil {
		return nil, fmt.Errorf("generation: drafter and repository are required")
	}
	if deps.Archive == nil {
		deps.Archive = archive.Noop{}
	}
	level, err := policy.ParseRecordingLevel(string(deps.ArchiveLevel))
	if err != nil {
		return nil, fmt.Errorf("generation: %w", err)
	}
	deps.ArchiveLevel = level
	return &Service{deps: deps, newRunID: uuid.NewString, now: time.Now}, nil
}

// GenerateFromIntake drafts application appID from the intake answers. A
// draft whose sanitized result carries issues is returned but not persisted.
func (s *Service) GenerateFromIntake(ctx context.Context, appID string, in intake.Data) (Outcome, error) {
	reg := s.deps.Pipeline.Registry()
	startMS := telemetry.NowMS()
	if _, err := s.deps.Repository.GetApplication(ctx, appID); err != nil {
		return Outcome{}, err
	}
	normalized, err := in.Normalize(reg)
	if err != nil {
		return Outcome{}, err
	}
	prompt, err := intake.BuildPrompt(reg, normalized)
	if err != nil {
		return Outcome{}, fmt.Errorf("generation: %w", err)
	}

	out := Outcome{RunID: s.newRunID(), ApplicationID: appID}
	correlation := telemetry.Correlation{
		ApplicationID: appID,
		RunID:         out.RunID,
		SchemaVersion: reg.Version(),
		EmittedBy:     "generation",
	}

	draft, err := s.deps.Drafter.Draft(ctx, drafting.Input{
		RunID:             out.RunID,
		ApplicationID:     appID,
		PreferredProvider: s.deps.PreferredProvider,
		Prompt:            prompt,
	})
	out.Draft = draft
	if err != nil {
		out.ArchiveKey = s.archive(ctx, out, normalized, draft.Text, nil, err, correlation)
		telemetry.DefaultEmitter().EmitLog(
			"generation_failed",
			"error",
			"draft failed",
			map[string]string{"error": err.Error(), "outcome": string(draft.Outcome.Class)},
			correlation,
		)
		return out, fmt.Errorf("generate %s: %w", appID, err)
	}

	validationStartMS := telemetry.NowMS()
	var result document.Result
	raw, decodeErr := sanitize.Decode(draft.Document)
	if decodeErr != nil {
		result = s.deps.Pipeline.RunJSON(draft.Document)
	} else {
		result = s.deps.Pipeline.Run(intake.Apply(reg, raw, normalized))
	}
	RecordValidation(result, validationStartMS, telemetry.NowMS(), correlation)
	result.Data[reg.Reserved().Key] = intake.PersonalSection(reg, normalized)
	out.Result = result

	if result.Success {
		if err := s.deps.Repository.SaveSections(ctx, appID, result.Data); err != nil {
			return out, fmt.Errorf("generate %s: %w", appID, err)
		}
		if err := s.deps.Repository.SetStatus(ctx, appID, store.StatusValid); err != nil {
			return out, fmt.Errorf("generate %s: %w", appID, err)
		}
		out.Persisted = true
	}
	out.ArchiveKey = s.archive(ctx, out, normalized, draft.Text, &out.Result, nil, correlation)

	endMS := telemetry.NowMS()
	attributes := map[string]string{
		"provider_id": draft.SelectedProvider,
		"success":     strconv.FormatBool(result.Success),
	}
	telemetry.DefaultEmitter().EmitMetric(telemetry.MetricGenerationLatencyMS, float64(endMS-startMS), "ms", attributes, correlation)
	telemetry.DefaultEmitter().EmitLog(
		"generation_completed",
		"info",
		"generation completed",
		map[string]string{
			"provider_id": draft.SelectedProvider,
			"success":     strconv.FormatBool(result.Success),
			"issues":      strconv.Itoa(len(result.Issues)),
			"persisted":   strconv.FormatBool(out.Persisted),
		},
		correlation,
	)
	return out, nil
}

func (s *Service) archive(ctx context.Context, out Outcome, in intake.Data, rawText string, result *document.Result, runErr error, correlation telemetry.Correlation) string {
	record := archive.Record{
		RunID:         out.RunID,
		ApplicationID: out.ApplicationID,
		SchemaVersion: correlation.SchemaVersion,
		CreatedAt:     s.now().UTC(),
		Draft:         out.Draft,
		Intake:        &in,
		RawText:       rawText,
		Result:        result,
	}
	if runErr != nil {
		record.Error = runErr.Error()
	}
	record, err := policy.Redact(s.deps.Pipeline.Registry(), s.deps.ArchiveLevel, record)
	if err != nil {
		telemetry.DefaultEmitter().EmitLog("archive_failed", "warn", err.Error(), nil, correlation)
		return ""
	}
	key, err := s.deps.Archive.Put(ctx, record)
	if err != nil {
		retryable := false
		var archiveErr *archive.Error
		if errors.As(err, &archiveErr) {
			retryable = archiveErr.Retryable
		}
		attributes := map[string]string{"retryable": strconv.FormatBool(retryable)}
		telemetry.DefaultEmitter().EmitMetric(telemetry.MetricArchiveFailures, 1, "count", attributes, correlation)
		telemetry.DefaultEmitter().EmitLog("archive_failed", "warn", err.Error(), attributes, correlation)
		return ""
	}
	return key
}

// RecordValidation emits the issue count, per-class counts and latency of
// one sanitizer run.
func RecordValidation(result document.Result, startMS, endMS int64, correlation telemetry.Correlation) {
	emitter := telemetry.DefaultEmitter()
	byClass := map[document.IssueClass]int{}
	for _, issue := range result.Issues {
		byClass[issue.Class]++
	}
	emitter.EmitMetric(telemetry.MetricValidationIssues, float64(len(result.Issues)), "count",
		map[string]string{"class": "all", "success": strconv.FormatBool(result.Success)}, correlation)
	for class, n := range byClass {
		emitter.EmitMetric(telemetry.MetricValidationIssues, float64(n), "count",
			map[string]string{"class": string(class)}, correlation)
	}
	emitter.EmitMetric(telemetry.MetricValidationLatencyMS, float64(endMS-startMS), "ms", nil, correlation)
}
