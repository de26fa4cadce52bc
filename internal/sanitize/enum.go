package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

const (
	optionYes    = "da"
	optionNo     = "ne"
	optionUnsure = "ne_mogu_procijeniti"
)

// Tokens are compared after foldKey.
var (
	yesTokens    = tokenSet("da", "yes", "y", "1", "true", "potvrdan")
	noTokens     = tokenSet("ne", "no", "n", "0", "false", "negativan")
	unsureTokens = tokenSet("ne mogu procijeniti", "unclear", "unknown")
	// bareTokens never form a meaningful free-text answer on their own.
	bareTokens = tokenSet("da", "ne", "yes", "no", "y", "n", "1", "0", "true", "false")
)

func tokenSet(tokens ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[foldKey(token)] = struct{}{}
	}
	return out
}

func hasToken(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// foldKey reduces s to a comparison key: trimmed, Unicode case folded,
// combining marks removed, underscores read as spaces and inner whitespace
// collapsed. Transformers are stateful, so each call builds its own.
func foldKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = stripped
	}
	s = cases.Fold().String(s)
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

func unresolved(original string) *fieldIssue {
	return &fieldIssue{class: document.IssueEnumMismatch, message: "unresolved enumerated value: " + original}
}

// resolveOption maps s to a declared option value. Empty input is unset and
// resolves to "" without an issue.
func resolveOption(field schema.Field, s string) (string, *fieldIssue) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	if field.HasOption(s) {
		return s, nil
	}

	key := foldKey(s)
	for _, opt := range field.Options {
		if foldKey(opt.Label) == key || foldKey(opt.Value) == key {
			return opt.Value, nil
		}
	}

	hasYesNo := field.HasOption(optionYes) && field.HasOption(optionNo)
	switch {
	case hasToken(yesTokens, key) && field.HasOption(optionYes):
		return optionYes, nil
	case hasToken(noTokens, key) && field.HasOption(optionNo):
		return optionNo, nil
	case field.Kind == schema.KindSingleChoice && hasYesNo && field.HasOption(optionUnsure) && hasToken(unsureTokens, key):
		return optionUnsure, nil
	}
	return "", unresolved(s)
}

// resolveSingle coerces a raw single-choice value.
func resolveSingle(field schema.Field, raw any) (string, []*fieldIssue) {
	s, issue := coerceText(raw)
	if issue != nil {
		return "", []*fieldIssue{issue}
	}
	value, issue := resolveOption(field, s)
	if issue != nil {
		return "", []*fieldIssue{issue}
	}
	return value, nil
}

// resolveMulti coerces a raw multi-choice value. A bare string is first tried
// as one option before it is split.
func resolveMulti(field schema.Field, raw any) ([]string, []*fieldIssue) {
	if s, ok := raw.(string); ok {
		if value, issue := resolveOption(field, s); issue == nil && value != "" {
			return []string{value}, nil
		}
	}

	items, listIssue := coerceList(raw)
	var issues []*fieldIssue
	if listIssue != nil {
		issues = append(issues, listIssue)
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		value, issue := resolveOption(field, item)
		if issue != nil {
			issues = append(issues, issue)
			continue
		}
		if _, dup := seen[value]; dup || value == "" {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out, issues
}

// clearBareAnswer empties a free-text answer that is only a yes/no token.
func clearBareAnswer(field schema.Field, s string) (string, *fieldIssue) {
	if !field.Control.FreeText() || !hasToken(bareTokens, foldKey(s)) {
		return s, nil
	}
	return "", typeMismatch("free-text answer is only a yes/no token: " + strings.TrimSpace(s))
}

// ResolveOption maps free input onto a declared option value of field using
// the same rules the sanitizer applies to AI output.
func ResolveOption(field schema.Field, s string) (string, bool) {
	value, issue := resolveOption(field, s)
	return value, issue == nil && value != ""
}
