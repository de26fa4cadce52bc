// Package validation runs the raw-AI and intake fixture sets through the
// sanitizer and intake checks.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tiger/hzz-draft-assistant/internal/intake"
	"github.com/tiger/hzz-draft-assistant/internal/sanitize"
)

// FixtureSummary reports fixture validation totals.
type FixtureSummary struct {
	Total    int
	Failed   int
	Failures []string
}

// fixtureCheck reports whether one payload is acceptable (accepted) and any
// error that must fail the fixture regardless of its expected validity.
type fixtureCheck func(raw []byte) (accepted bool, detail string, hardErr error)

// ValidateFixtures runs <root>/raw and <root>/intake, each split into valid/
// and invalid/ directories. Raw fixtures must sanitize into a
// schema-conformant document; valid ones additionally with zero issues.
func ValidateFixtures(pipeline sanitize.Pipeline, root string) (FixtureSummary, error) {
	conformance, err := pipeline.Registry().CompileConformance()
	if err != nil {
		return FixtureSummary{}, err
	}

	checks := []struct {
		name  string
		check fixtureCheck
	}{
		{name: "raw", check: rawCheck(pipeline, conformance.Validate)},
		{name: "intake", check: intakeCheck(pipeline)},
	}

	summary := FixtureSummary{}
	for _, entry := range checks {
		for _, validity := range []struct {
			dir        string
			shouldPass bool
		}{
			{dir: "valid", shouldPass: true},
			{dir: "invalid", shouldPass: false},
		} {
			dir := filepath.Join(root, entry.name, validity.dir)
			names, err := fixtureNames(dir)
			if err != nil {
				return summary, err
			}
			for _, name := range names {
				summary.Total++
				filePath := filepath.Join(dir, name)
				raw, readErr := os.ReadFile(filePath)
				if readErr != nil {
					summary.fail("%s: read error: %v", filePath, readErr)
					continue
				}

				accepted, detail, hardErr := entry.check(raw)
				switch {
				case hardErr != nil:
					summary.fail("%s: %v", filePath, hardErr)
				case validity.shouldPass && !accepted:
					summary.fail("%s: expected valid, got %s", filePath, detail)
				case !validity.shouldPass && accepted:
					summary.fail("%s: expected invalid, but it was accepted", filePath)
				}
			}
		}
	}
	return summary, nil
}

func (s *FixtureSummary) fail(format string, args ...any) {
	s.Failed++
	s.Failures = append(s.Failures, fmt.Sprintf(format, args...))
}

func fixtureNames(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixtures %s: %w", dir, err)
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		if !item.IsDir() && strings.HasSuffix(item.Name(), ".json") {
			names = append(names, item.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func rawCheck(pipeline sanitize.Pipeline, conform func(any) error) fixtureCheck {
	return func(raw []byte) (bool, string, error) {
		result := pipeline.RunJSON(raw)
		if err := conform(result.Data); err != nil {
			return false, "", fmt.Errorf("sanitized output does not conform: %w", err)
		}
		return result.Success, strings.Join(result.IssueStrings(), "; "), nil
	}
}

func intakeCheck(pipeline sanitize.Pipeline) fixtureCheck {
	return func(raw []byte) (bool, string, error) {
		var d intake.Data
		if err := strictUnmarshal(raw, &d); err != nil {
			return false, err.Error(), nil
		}
		if _, err := d.Normalize(pipeline.Registry()); err != nil {
			return false, err.Error(), nil
		}
		return true, "", nil
	}
}

// RenderSummary formats a summary for terminal output.
func RenderSummary(summary FixtureSummary) string {
	lines := []string{fmt.Sprintf("fixtures: total=%d failed=%d", summary.Total, summary.Failed)}
	if len(summary.Failures) > 0 {
		lines = append(lines, "failures:")
		for _, f := range summary.Failures {
			lines = append(lines, "- "+f)
		}
	}
	return strings.Join(lines, "\n")
}

func strictUnmarshal(data []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return err
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return fmt.Errorf("unexpected trailing JSON payload")
	}
	return nil
}
