package telemetry

import (
	"context"
	"testing"
	"time"
)

type blockingSink struct {
	block <-chan struct{}
}

func (s blockingSink) Export(ctx context.Context, _ Event) error {
	select {
	case <-s.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestPipelineEmitIsNonBlockingWhenQueueIsFull(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	pipeline := NewPipeline(blockingSink{block: block}, Config{
		QueueCapacity: 1,
		ExportTimeout: 5 * time.Millisecond,
	})
	defer func() {
		close(block)
		_ = pipeline.Close()
	}()

	start := time.Now()
	for i := 0; i < 2000; i++ {
		pipeline.EmitLog("queue-pressure", "debug", "message", nil, Correlation{
			ApplicationID:      "app-1",
			RunID:              "run-1",
			SchemaVersion:      "2025.2",
			RuntimeTimestampMS: int64(i + 1),
			EmittedBy:          "generation",
		})
	}
	elapsed := time.Since(start)
	if elapsed > 200*time.Millisecond {
		t.Fatalf("expected non-blocking emit under pressure, took %s", elapsed)
	}

	stats := pipeline.Stats()
	if stats.Dropped == 0 {
		t.Fatalf("expected dropped events under queue pressure, got %+v", stats)
	}
}

func TestPipelineDeterministicDebugLogSampling(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink()
	pipeline := NewPipeline(sink, Config{
		QueueCapacity: 32,
		LogSampleRate: 3,
	})

	for i := 0; i < 10; i++ {
		pipeline.EmitLog("sampled-debug", "debug", "message", map[string]string{"idx": "x"}, Correlation{
			ApplicationID:      "app-sample",
			SchemaVersion:      "2025.2",
			RuntimeTimestampMS: int64(i + 1),
			EmittedBy:          "generation",
		})
	}
	if err := pipeline.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	events := sink.Events()
	if len(events) != 4 {
		t.Fatalf("expected deterministic sampled count 4, got %d", len(events))
	}
	stats := pipeline.Stats()
	if stats.SampledDropped != 6 {
		t.Fatalf("expected 6 sampled drops, got %+v", stats)
	}
}

func TestPipelineExportsMetricSpanAndLogEvents(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink()
	pipeline := NewPipeline(sink, Config{QueueCapacity: 16})

	correlation := Correlation{
		ApplicationID:      "app-7",
		RunID:              "run-7",
		RequestID:          "req-7",
		SchemaVersion:      "2025.2",
		RuntimeTimestampMS: 100,
		EmittedBy:          "generation",
	}
	pipeline.EmitMetric(MetricValidationIssues, 5, "count", map[string]string{"section": "3.5"}, correlation)
	pipeline.EmitSpan("generation_span", "generation_span", 100, 105, map[string]string{"result": "generated"}, correlation)
	pipeline.EmitLog("generation_completed", "info", "draft stored", map[string]string{"status": "generated"}, correlation)

	if err := pipeline.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	events := sink.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 exported events, got %d", len(events))
	}
	if events[0].Kind != EventKindMetric || events[0].Metric == nil || events[0].Metric.Name != MetricValidationIssues {
		t.Fatalf("unexpected metric event: %+v", events[0])
	}
	if events[1].Kind != EventKindSpan || events[1].Span == nil || events[1].Span.Name != "generation_span" {
		t.Fatalf("unexpected span event: %+v", events[1])
	}
	if events[2].Kind != EventKindLog || events[2].Log == nil || events[2].Log.Name != "generation_completed" {
		t.Fatalf("unexpected log event: %+v", events[2])
	}
	for _, event := range events {
		if event.Correlation.ApplicationID != "app-7" || event.Correlation.SchemaVersion != "2025.2" {
			t.Fatalf("unexpected correlation payload: %+v", event.Correlation)
		}
	}
}

func TestDefaultEmitterCanBeOverridden(t *testing.T) {
	sink := NewMemorySink()
	pipeline := NewPipeline(sink, Config{QueueCapacity: 8})
	defer func() {
		SetDefaultEmitter(nil)
		_ = pipeline.Close()
	}()

	SetDefaultEmitter(pipeline)
	DefaultEmitter().EmitMetric(MetricArchiveFailures, 1, "count", nil, Correlation{
		ApplicationID:      "app-default",
		SchemaVersion:      "2025.2",
		RuntimeTimestampMS: 1,
	})

	_ = pipeline.Close()
	events := sink.Events()
	if len(events) != 1 || events[0].Metric == nil || events[0].Metric.Name != MetricArchiveFailures {
		t.Fatalf("expected default emitter to route through pipeline, got %+v", events)
	}
}
