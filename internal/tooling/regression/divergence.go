// Package regression decides which replay divergences fail a schema or
// sanitizer change.
package regression

import (
	"fmt"

	obs "github.com/tiger/hzz-draft-assistant/api/observability"
)

// ExpectedDivergence declares approved divergences by class and scope.
type ExpectedDivergence struct {
	Class    obs.DivergenceClass `json:"class"`
	Scope    string              `json:"scope"`
	Approved bool                `json:"approved,omitempty"`
}

// DivergencePolicy defines fail criteria for replay divergences.
type DivergencePolicy struct {
	Expected []ExpectedDivergence `json:"expected,omitempty"`
	// AllowMissingExpected tolerates expectations no replayed record hit,
	// for policies shared across record sets.
	AllowMissingExpected bool `json:"allow_missing_expected,omitempty"`
}

// Validate enforces known classes and unique expectations.
func (p DivergencePolicy) Validate() error {
	seen := make(map[string]struct{}, len(p.Expected))
	for _, item := range p.Expected {
		if err := item.Class.Validate(); err != nil {
			return err
		}
		if item.Scope == "" {
			return fmt.Errorf("expected divergence scope is required")
		}
		k := key(item.Class, item.Scope)
		if _, ok := seen[k]; ok {
			return fmt.Errorf("duplicate expected divergence: class=%s scope=%s", item.Class, item.Scope)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// DivergenceEvaluation returns policy outcomes for replay divergences.
type DivergenceEvaluation struct {
	Failing         []obs.ReplayDivergence `json:"failing"`
	Unexplained     []obs.ReplayDivergence `json:"unexplained"`
	Explained       []obs.ReplayDivergence `json:"explained,omitempty"`
	MissingExpected []ExpectedDivergence   `json:"missing_expected,omitempty"`
}

// EvaluateDivergences applies policy. Outcome and issue divergences pass
// only when expected; data divergences additionally need approval.
func EvaluateDivergences(divergences []obs.ReplayDivergence, policy DivergencePolicy) DivergenceEvaluation {
	evaluation := DivergenceEvaluation{}

	expected := make(map[string]ExpectedDivergence, len(policy.Expected))
	for _, item := range policy.Expected {
		expected[key(item.Class, item.Scope)] = item
	}
	hit := make(map[string]struct{}, len(policy.Expected))

	for _, entry := range divergences {
		entryCopy := entry
		k := key(entry.Class, entry.Scope)
		expectedMatch, hasExpected := expected[k]
		if hasExpected {
			entryCopy.Expected = true
			hit[k] = struct{}{}
			evaluation.Explained = append(evaluation.Explained, entryCopy)
		} else {
			evaluation.Unexplained = append(evaluation.Unexplained, entryCopy)
		}

		switch entry.Class {
		case obs.OutcomeDivergence, obs.IssueDivergence:
			if !hasExpected {
				evaluation.Failing = append(evaluation.Failing, entryCopy)
			}
		case obs.DataDivergence:
			if !hasExpected || !expectedMatch.Approved {
				evaluation.Failing = append(evaluation.Failing, entryCopy)
			}
		default:
			evaluation.Failing = append(evaluation.Failing, entryCopy)
		}
	}

	if policy.AllowMissingExpected {
		return evaluation
	}
	for _, item := range policy.Expected {
		if _, ok := hit[key(item.Class, item.Scope)]; ok {
			continue
		}
		evaluation.MissingExpected = append(evaluation.MissingExpected, item)
		evaluation.Failing = append(evaluation.Failing, obs.ReplayDivergence{
			Class:   item.Class,
			Scope:   item.Scope,
			Message: fmt.Sprintf("expected divergence not observed: class=%s scope=%s", item.Class, item.Scope),
		})
	}

	return evaluation
}

func key(class obs.DivergenceClass, scope string) string {
	return string(class) + "|" + scope
}
