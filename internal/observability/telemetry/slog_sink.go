package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
)

// SlogSink writes telemetry events as structured log records.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink wraps logger; a nil logger falls back to slog.Default().
func NewSlogSink(logger *slog.Logger) SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return SlogSink{logger: logger}
}

// Export logs one event at the level implied by its severity.
func (s SlogSink) Export(ctx context.Context, event Event) error {
	attrs := []slog.Attr{
		slog.String("kind", string(event.Kind)),
		slog.Int64("timestamp_ms", event.TimestampMS),
	}
	attrs = append(attrs, correlationAttrs(event.Correlation)...)

	level := slog.LevelInfo
	msg := eventName(event)
	switch {
	case event.Metric != nil:
		attrs = append(attrs,
			slog.Float64("value", event.Metric.Value),
			slog.String("unit", event.Metric.Unit),
		)
		attrs = append(attrs, attributeGroup(event.Metric.Attributes)...)
	case event.Span != nil:
		attrs = append(attrs,
			slog.Int64("start_ms", event.Span.StartMS),
			slog.Int64("duration_ms", event.Span.EndMS-event.Span.StartMS),
		)
		attrs = append(attrs, attributeGroup(event.Span.Attributes)...)
	case event.Log != nil:
		level = severityLevel(event.Log.Severity)
		attrs = append(attrs, slog.String("message", event.Log.Message))
		attrs = append(attrs, attributeGroup(event.Log.Attributes)...)
	default:
		return errors.New("telemetry event carries no payload")
	}
	s.logger.LogAttrs(ctx, level, msg, attrs...)
	return nil
}

func correlationAttrs(c Correlation) []slog.Attr {
	var attrs []slog.Attr
	add := func(key, value string) {
		if value != "" {
			attrs = append(attrs, slog.String(key, value))
		}
	}
	add("application_id", c.ApplicationID)
	add("run_id", c.RunID)
	add("request_id", c.RequestID)
	add("schema_version", c.SchemaVersion)
	add("emitted_by", c.EmittedBy)
	return attrs
}

func attributeGroup(attributes map[string]string) []slog.Attr {
	if len(attributes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attributes))
	for k := range attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		args = append(args, slog.String(k, attributes[k]))
	}
	return []slog.Attr{slog.Group("attrs", args...)}
}

func severityLevel(severity string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FanoutSink exports each event to every sink and joins their errors.
type FanoutSink []Sink

// Export forwards the event to every sink.
func (f FanoutSink) Export(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Export(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
