package drafting

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoProviders reports an empty provider catalog or candidate list.
	ErrNoProviders = errors.New("no draft providers registered")
	// ErrDraftRejected reports provider output that carries no JSON object.
	ErrDraftRejected = errors.New("draft output is not a JSON object")
	// ErrDraftFailed reports that every candidate provider failed.
	ErrDraftFailed = errors.New("all draft providers failed")
)

// OutcomeClass is the normalized invocation-outcome taxonomy.
type OutcomeClass string

const (
	OutcomeSuccess               OutcomeClass = "success"
	OutcomeTimeout               OutcomeClass = "timeout"
	OutcomeOverload              OutcomeClass = "overload"
	OutcomeBlocked               OutcomeClass = "blocked"
	OutcomeInfrastructureFailure OutcomeClass = "infrastructure_failure"
	OutcomeCancelled             OutcomeClass = "cancelled"
)

// Validate enforces supported outcome classes.
func (o OutcomeClass) Validate() error {
	switch o {
	case OutcomeSuccess, OutcomeTimeout, OutcomeOverload, OutcomeBlocked, OutcomeInfrastructureFailure, OutcomeCancelled:
		return nil
	default:
		return fmt.Errorf("unsupported outcome_class: %q", o)
	}
}

// Outcome is a provider-normalized attempt result.
type Outcome struct {
	Class       OutcomeClass `json:"class"`
	Retryable   bool         `json:"retryable,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	CircuitOpen bool         `json:"circuit_open,omitempty"`
	BackoffMS   int64        `json:"backoff_ms,omitempty"`
	StatusCode  int          `json:"status_code,omitempty"`
}

// Validate enforces normalized outcome invariants.
func (o Outcome) Validate() error {
	if err := o.Class.Validate(); err != nil {
		return err
	}
	if o.Class != OutcomeSuccess && o.Reason == "" {
		return fmt.Errorf("reason is required for non-success outcomes")
	}
	if o.BackoffMS < 0 {
		return fmt.Errorf("backoff_ms must be >=0")
	}
	if o.CircuitOpen && o.Class == OutcomeSuccess {
		return fmt.Errorf("circuit_open cannot be true for success")
	}
	return nil
}

// Prompt is everything a provider needs to draft one application.
type Prompt struct {
	System string
	User   string
	// Idea and Template feed providers that take structured input instead of
	// chat messages.
	Idea     string
	Template map[string]any
}

// Validate enforces that a prompt carries something to send.
func (p Prompt) Validate() error {
	if p.User == "" && p.Idea == "" {
		return fmt.Errorf("prompt requires user text or idea")
	}
	return nil
}

// Request is passed to providers once per attempt.
type Request struct {
	RunID      string
	ProviderID string
	Attempt    int
	Prompt     Prompt
}

// Validate enforces required request fields.
func (r Request) Validate() error {
	if r.RunID == "" || r.ProviderID == "" {
		return fmt.Errorf("run_id and provider_id are required")
	}
	if r.Attempt < 1 {
		return fmt.Errorf("attempt must be >=1")
	}
	return r.Prompt.Validate()
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is one provider attempt: the normalized outcome plus the
// generated text on success.
type Completion struct {
	Outcome Outcome
	Text    string
	Model   string
	Usage   Usage
}

// Provider drafts application content from a prompt.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req Request) (Completion, error)
}

// StaticProvider is a small utility provider for tests and local runs.
type StaticProvider struct {
	ProviderID string
	CompleteFn func(context.Context, Request) (Completion, error)
	// Text is returned with a success outcome when CompleteFn is nil.
	Text string
}

func (p StaticProvider) ID() string {
	return p.ProviderID
}

func (p StaticProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	if p.CompleteFn != nil {
		return p.CompleteFn(ctx, req)
	}
	if err := req.Validate(); err != nil {
		return Completion{}, err
	}
	return Completion{Outcome: Outcome{Class: OutcomeSuccess}, Text: p.Text}, nil
}
