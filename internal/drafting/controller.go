package drafting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tiger/hzz-draft-assistant/internal/observability/telemetry"
)

// Retry decisions recorded on a Result.
const (
	DecisionNone           = "none"
	DecisionRetry          = "retry"
	DecisionProviderSwitch = "provider_switch"
)

// Config controls retry and fallback behavior.
type Config struct {
	MaxAttemptsPerProvider int
	MaxCandidateProviders  int
	// MaxBackoff caps the wait a provider may request between attempts.
	MaxBackoff time.Duration
}

// Controller drafts through the catalog with retry and provider fallback.
type Controller struct {
	catalog Catalog
	cfg     Config
	sleep   func(context.Context, time.Duration) error
}

// Input carries one draft request.
type Input struct {
	RunID             string
	ApplicationID     string
	PreferredProvider string
	Prompt            Prompt
}

// Attempt records one provider attempt with normalized outcome.
type Attempt struct {
	ProviderID string  `json:"provider_id"`
	Attempt    int     `json:"attempt"`
	Outcome    Outcome `json:"outcome"`
	LatencyMS  int64   `json:"latency_ms"`
}

// Result summarizes a draft run. Document holds the extracted JSON object
// when Outcome is success.
type Result struct {
	RunID            string          `json:"run_id"`
	SelectedProvider string          `json:"selected_provider"`
	Model            string          `json:"model,omitempty"`
	Usage            Usage           `json:"usage"`
	Outcome          Outcome         `json:"outcome"`
	RetryDecision    string          `json:"retry_decision"`
	Attempts         []Attempt       `json:"attempts"`
	Text             string          `json:"-"`
	Document         json.RawMessage `json:"-"`
}

// NewController returns a controller with default limits.
func NewController(catalog Catalog) Controller {
	return NewControllerWithConfig(catalog, Config{})
}

// NewControllerWithConfig builds a controller with explicit limits.
func NewControllerWithConfig(catalog Catalog, cfg Config) Controller {
	if cfg.MaxAttemptsPerProvider < 1 {
		cfg.MaxAttemptsPerProvider = 2
	}
	if cfg.MaxCandidateProviders < 1 {
		cfg.MaxCandidateProviders = 5
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}
	return Controller{catalog: catalog, cfg: cfg, sleep: sleepContext}
}

// Draft runs attempts until one provider returns a JSON object. Retryable
// outcomes are retried on the same provider; anything else moves on to the
// next candidate. The returned Result is populated even when err is non-nil.
func (c Controller) Draft(ctx context.Context, in Input) (Result, error) {
	if in.RunID == "" {
		return Result{}, fmt.Errorf("run_id is required")
	}
	if err := in.Prompt.Validate(); err != nil {
		return Result{}, err
	}
	candidates, err := c.catalog.Candidates(in.PreferredProvider, c.cfg.MaxCandidateProviders)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		RunID:         in.RunID,
		RetryDecision: DecisionNone,
		Attempts:      make([]Attempt, 0, c.cfg.MaxAttemptsPerProvider*len(candidates)),
	}
	correlation := telemetry.Correlation{
		ApplicationID: in.ApplicationID,
		RunID:         in.RunID,
		EmittedBy:     "drafting",
	}

	for providerIndex, provider := range candidates {
		for attempt := 1; attempt <= c.cfg.MaxAttemptsPerProvider; attempt++ {
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.Outcome = Outcome{Class: OutcomeCancelled, Reason: "draft_cancelled"}
				telemetry.DefaultEmitter().EmitLog(
					"draft_cancelled",
					"info",
					"draft cancelled before attempt",
					map[string]string{"provider_id": provider.ID(), "attempt": strconv.Itoa(attempt)},
					correlation,
				)
				return result, fmt.Errorf("draft %s: %w", in.RunID, ctxErr)
			}

			startMS := telemetry.NowMS()
			completion, completeErr := provider.Complete(ctx, Request{
				RunID:      in.RunID,
				ProviderID: provider.ID(),
				Attempt:    attempt,
				Prompt:     in.Prompt,
			})
			endMS := telemetry.NowMS()
			outcome := completion.Outcome
			if completeErr != nil {
				outcome = Outcome{
					Class:     OutcomeInfrastructureFailure,
					Retryable: true,
					Reason:    "provider_complete_error",
				}
				if errors.Is(completeErr, context.Canceled) {
					outcome = Outcome{Class: OutcomeCancelled, Reason: "draft_cancelled"}
				}
			}
			if err := outcome.Validate(); err != nil {
				return result, fmt.Errorf("provider %s returned invalid outcome: %w", provider.ID(), err)
			}

			var document json.RawMessage
			if outcome.Class == OutcomeSuccess {
				document, err = ExtractJSON(completion.Text)
				if err != nil {
					outcome = Outcome{
						Class:     OutcomeInfrastructureFailure,
						Retryable: true,
						Reason:    "draft_not_json",
					}
				}
			}

			c.emitAttempt(provider.ID(), attempt, outcome, startMS, endMS, correlation)
			result.Attempts = append(result.Attempts, Attempt{
				ProviderID: provider.ID(),
				Attempt:    attempt,
				Outcome:    outcome,
				LatencyMS:  endMS - startMS,
			})
			result.SelectedProvider = provider.ID()
			result.Model = completion.Model
			result.Usage = completion.Usage
			result.Outcome = outcome

			if outcome.Class == OutcomeSuccess {
				result.Text = completion.Text
				result.Document = document
				return result, nil
			}
			if outcome.Class == OutcomeCancelled {
				return result, fmt.Errorf("draft %s: %w", in.RunID, context.Canceled)
			}

			if outcome.Retryable && attempt < c.cfg.MaxAttemptsPerProvider {
				result.RetryDecision = DecisionRetry
				if err := c.sleep(ctx, c.backoff(outcome)); err != nil {
					result.Outcome = Outcome{Class: OutcomeCancelled, Reason: "draft_cancelled"}
					return result, fmt.Errorf("draft %s: %w", in.RunID, err)
				}
				continue
			}
			break
		}

		if providerIndex < len(candidates)-1 {
			result.RetryDecision = DecisionProviderSwitch
			telemetry.DefaultEmitter().EmitLog(
				"draft_provider_switch",
				"warn",
				"switching draft provider",
				map[string]string{
					"from":   provider.ID(),
					"to":     candidates[providerIndex+1].ID(),
					"reason": result.Outcome.Reason,
				},
				correlation,
			)
		}
	}

	if result.Outcome.Reason == "draft_not_json" {
		return result, fmt.Errorf("%w: %w", ErrDraftFailed, ErrDraftRejected)
	}
	return result, fmt.Errorf("%w: last outcome %s (%s)", ErrDraftFailed, result.Outcome.Class, result.Outcome.Reason)
}

func (c Controller) backoff(outcome Outcome) time.Duration {
	d := time.Duration(outcome.BackoffMS) * time.Millisecond
	if d > c.cfg.MaxBackoff {
		return c.cfg.MaxBackoff
	}
	return d
}

func (c Controller) emitAttempt(providerID string, attempt int, outcome Outcome, startMS, endMS int64, correlation telemetry.Correlation) {
	attributes := map[string]string{
		"provider_id": providerID,
		"attempt":     strconv.Itoa(attempt),
		"outcome":     string(outcome.Class),
	}
	telemetry.DefaultEmitter().EmitMetric(telemetry.MetricProviderRTTMS, float64(endMS-startMS), "ms", attributes, correlation)
	telemetry.DefaultEmitter().EmitSpan("draft_provider_span", "draft_provider_span", startMS, endMS, attributes, correlation)

	severity := "info"
	if outcome.Class != OutcomeSuccess {
		severity = "warn"
	}
	telemetry.DefaultEmitter().EmitLog(
		"draft_provider_attempt",
		severity,
		"draft provider attempt completed",
		map[string]string{
			"provider_id": providerID,
			"attempt":     strconv.Itoa(attempt),
			"outcome":     string(outcome.Class),
			"retryable":   strconv.FormatBool(outcome.Retryable),
			"reason":      outcome.Reason,
		},
		correlation,
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
