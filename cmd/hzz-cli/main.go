package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tiger/hzz-draft-assistant/internal/config"
	"github.com/tiger/hzz-draft-assistant/internal/intake"
	"github.com/tiger/hzz-draft-assistant/internal/observability/replay"
	"github.com/tiger/hzz-draft-assistant/internal/sanitize"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
	"github.com/tiger/hzz-draft-assistant/internal/summary"
	"github.com/tiger/hzz-draft-assistant/internal/tooling/regression"
	"github.com/tiger/hzz-draft-assistant/internal/tooling/validation"
)

var errIssues = errors.New("document has issues")

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdin, os.Stdout, time.Now); err != nil {
		fmt.Fprintf(os.Stderr, "hzz-cli: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer, now func() time.Time) error {
	if len(args) == 0 {
		printUsage(stdout)
		return nil
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(stdout)
		return nil
	}

	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	pipeline := sanitize.New(reg)

	switch args[0] {
	case "validate":
		if len(args) < 2 {
			return fmt.Errorf("validate requires a file path or -")
		}
		payload, err := readInput(args[1], stdin)
		if err != nil {
			return err
		}
		result := pipeline.RunJSON(payload)
		if err := writeJSON(stdout, result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("%w: %d", errIssues, len(result.Issues))
		}
		return nil
	case "schema":
		return writeJSON(stdout, reg.JSONSchema())
	case "template":
		return writeJSON(stdout, intake.DraftTemplate(reg))
	case "prompt":
		if len(args) < 2 {
			return fmt.Errorf("prompt requires an intake file path or -")
		}
		payload, err := readInput(args[1], stdin)
		if err != nil {
			return err
		}
		var d intake.Data
		if err := json.Unmarshal(payload, &d); err != nil {
			return fmt.Errorf("decode intake: %w", err)
		}
		d, err = d.Normalize(reg)
		if err != nil {
			return err
		}
		prompt, err := intake.BuildPrompt(reg, d)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "--- system ---\n%s\n--- user ---\n%s\n", prompt.System, prompt.User)
		return nil
	case "summary":
		if len(args) < 2 {
			return fmt.Errorf("summary requires a file path or -")
		}
		payload, err := readInput(args[1], stdin)
		if err != nil {
			return err
		}
		result := pipeline.RunJSON(payload)
		_, _ = io.WriteString(stdout, renderSummary(summary.Compute(result.Data)))
		return nil
	case "validate-fixtures":
		fixtureRoot := filepath.Join("test", "fixtures")
		if len(args) >= 2 {
			fixtureRoot = args[1]
		}
		fixtures, err := validation.ValidateFixtures(pipeline, fixtureRoot)
		if err != nil {
			return fmt.Errorf("fixture validation failed to execute: %w", err)
		}
		_, _ = fmt.Fprintln(stdout, validation.RenderSummary(fixtures))
		if len(args) >= 3 {
			if err := writeFixtureReport(args[2], reg.Version(), fixtures, now); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "fixture report written: %s\n", args[2])
		}
		if fixtures.Failed > 0 {
			return fmt.Errorf("%d fixture(s) failed", fixtures.Failed)
		}
		return nil
	case "replay":
		if len(args) < 2 {
			return fmt.Errorf("replay requires an archived record path or -")
		}
		return runReplay(pipeline, args[1:], stdin, stdout)
	default:
		printUsage(stdout)
		return fmt.Errorf("unsupported command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "hzz-cli usage:")
	_, _ = fmt.Fprintln(w, "  hzz-cli validate <file|->")
	_, _ = fmt.Fprintln(w, "  hzz-cli schema")
	_, _ = fmt.Fprintln(w, "  hzz-cli template")
	_, _ = fmt.Fprintln(w, "  hzz-cli prompt <intake_file|->")
	_, _ = fmt.Fprintln(w, "  hzz-cli summary <file|->")
	_, _ = fmt.Fprintln(w, "  hzz-cli validate-fixtures [fixture_root] [report_path]")
	_, _ = fmt.Fprintln(w, "  hzz-cli replay <record_file|-> [divergence_policy_file]")
}

type replayOutput struct {
	Report     replay.Report                   `json:"report"`
	Evaluation regression.DivergenceEvaluation `json:"evaluation"`
}

// runReplay re-sanitizes one archived run and fails when the divergence
// policy does.
func runReplay(pipeline sanitize.Pipeline, args []string, stdin io.Reader, stdout io.Writer) error {
	payload, err := readInput(args[0], stdin)
	if err != nil {
		return err
	}
	record, err := replay.Decode(bytes.NewReader(payload))
	if err != nil {
		return err
	}

	var divergencePolicy regression.DivergencePolicy
	if len(args) >= 2 {
		raw, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &divergencePolicy); err != nil {
			return fmt.Errorf("decode divergence policy: %w", err)
		}
		if err := divergencePolicy.Validate(); err != nil {
			return err
		}
	}

	report, err := replay.Replay(pipeline, record)
	if err != nil {
		return err
	}
	out := replayOutput{Report: report, Evaluation: regression.EvaluateDivergences(report.Divergences, divergencePolicy)}
	if err := writeJSON(stdout, out); err != nil {
		return err
	}
	if len(out.Evaluation.Failing) > 0 {
		return fmt.Errorf("replay of run %s: %d failing divergence(s)", report.RunID, len(out.Evaluation.Failing))
	}
	return nil
}

func loadRegistry() (*schema.Registry, error) {
	if path := config.EnvString("HZZ_SCHEMA_PATH", ""); path != "" {
		return schema.LoadFile(path)
	}
	return schema.Default()
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderSummary(s summary.Summary) string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "%-70s %14s %14s\n", "", "1. godina", "2. godina")
	for _, line := range s.Lines() {
		values := append(line.Values, "", "")
		_, _ = fmt.Fprintf(&b, "%-70s %14s %14s\n", line.Label, values[0], values[1])
	}
	return b.String()
}

type fixtureReport struct {
	GeneratedAtUTC string   `json:"generated_at_utc"`
	SchemaVersion  string   `json:"schema_version"`
	Total          int      `json:"total"`
	Failed         int      `json:"failed"`
	Failures       []string `json:"failures"`
}

// writeFixtureReport writes the JSON report to outputPath and a markdown
// summary next to it.
func writeFixtureReport(outputPath string, schemaVersion string, fixtures validation.FixtureSummary, now func() time.Time) error {
	report := fixtureReport{
		GeneratedAtUTC: now().UTC().Format(time.RFC3339),
		SchemaVersion:  schemaVersion,
		Total:          fixtures.Total,
		Failed:         fixtures.Failed,
		Failures:       fixtures.Failures,
	}
	if report.Failures == nil {
		report.Failures = []string{}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	summaryPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".md"
	var b strings.Builder
	b.WriteString("# Fixture Validation\n\n")
	_, _ = fmt.Fprintf(&b, "- Generated: %s\n", report.GeneratedAtUTC)
	_, _ = fmt.Fprintf(&b, "- Schema version: %s\n", report.SchemaVersion)
	_, _ = fmt.Fprintf(&b, "- Total: %d\n", report.Total)
	_, _ = fmt.Fprintf(&b, "- Failed: %d\n", report.Failed)
	if len(report.Failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, f := range report.Failures {
			_, _ = fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	if err := os.WriteFile(summaryPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write report summary: %w", err)
	}
	return nil
}
