package telemetry

import (
	"context"
	"sync"
)

// MemorySink is a deterministic in-memory sink used by tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{events: make([]Event, 0, 64)}
}

// Export appends an event in memory.
func (s *MemorySink) Export(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of all exported events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Named returns exported events whose metric, span or log name matches.
func (s *MemorySink) Named(name string) []Event {
	var out []Event
	for _, event := range s.Events() {
		if eventName(event) == name {
			out = append(out, event)
		}
	}
	return out
}

// MemoryEmitter exports synchronously into a MemorySink. Tests install it as
// the default emitter so emitted events are observable without a pipeline.
type MemoryEmitter struct {
	Sink *MemorySink
}

// NewMemoryEmitter returns an emitter backed by a fresh MemorySink.
func NewMemoryEmitter() MemoryEmitter {
	return MemoryEmitter{Sink: NewMemorySink()}
}

func (e MemoryEmitter) EmitMetric(name string, value float64, unit string, attributes map[string]string, correlation Correlation) {
	_ = e.Sink.Export(context.Background(), Event{
		Kind:        EventKindMetric,
		TimestampMS: eventTimestampMS(correlation),
		Correlation: normalizeCorrelation(correlation),
		Metric:      &MetricEvent{Name: name, Value: value, Unit: unit, Attributes: cloneAttributes(attributes)},
	})
}

func (e MemoryEmitter) EmitSpan(name, kind string, startMS, endMS int64, attributes map[string]string, correlation Correlation) {
	_ = e.Sink.Export(context.Background(), Event{
		Kind:        EventKindSpan,
		TimestampMS: eventTimestampMS(correlation),
		Correlation: normalizeCorrelation(correlation),
		Span:        &SpanEvent{Name: name, Kind: kind, StartMS: nonNegative(startMS), EndMS: nonNegative(endMS), Attributes: cloneAttributes(attributes)},
	})
}

func (e MemoryEmitter) EmitLog(name, severity, message string, attributes map[string]string, correlation Correlation) {
	_ = e.Sink.Export(context.Background(), Event{
		Kind:        EventKindLog,
		TimestampMS: eventTimestampMS(correlation),
		Correlation: normalizeCorrelation(correlation),
		Log:         &LogEvent{Name: name, Severity: severity, Message: message, Attributes: cloneAttributes(attributes)},
	})
}

func eventName(event Event) string {
	switch {
	case event.Metric != nil:
		return event.Metric.Name
	case event.Span != nil:
		return event.Span.Name
	case event.Log != nil:
		return event.Log.Name
	default:
		return ""
	}
}
