// Package observability holds the shared replay report types.
package observability

import "fmt"

// DivergenceClass names what differs between an archived run and its replay.
type DivergenceClass string

const (
	// OutcomeDivergence: the success flag flipped.
	OutcomeDivergence DivergenceClass = "OUTCOME_DIVERGENCE"
	// DataDivergence: a sanitized field value changed.
	DataDivergence DivergenceClass = "DATA_DIVERGENCE"
	// IssueDivergence: an issue appeared or disappeared.
	IssueDivergence DivergenceClass = "ISSUE_DIVERGENCE"
)

// Validate enforces supported classes.
func (c DivergenceClass) Validate() error {
	switch c {
	case OutcomeDivergence, DataDivergence, IssueDivergence:
		return nil
	default:
		return fmt.Errorf("invalid divergence class: %q", c)
	}
}

// ReplayDivergence captures a classified replay mismatch entry. Scope is
// "result", "<section>" or "<section>.<field>".
type ReplayDivergence struct {
	Class    DivergenceClass `json:"class"`
	Scope    string          `json:"scope"`
	Message  string          `json:"message"`
	Expected bool            `json:"expected,omitempty"`
}
