package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
)

type collectedExport struct {
	path     string
	auth     string
	envelope otlpEnvelope
}

func newCollector(t *testing.T, status int) (*httptest.Server, func() []collectedExport) {
	t.Helper()
	var (
		mu      sync.Mutex
		exports []collectedExport
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var env otlpEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		mu.Lock()
		exports = append(exports, collectedExport{path: r.URL.Path, auth: r.Header.Get("Authorization"), envelope: env})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, func() []collectedExport {
		mu.Lock()
		defer mu.Unlock()
		return append([]collectedExport(nil), exports...)
	}
}

func TestOTLPHTTPSinkRoutesByEventKind(t *testing.T) {
	t.Parallel()

	server, collected := newCollector(t, http.StatusAccepted)
	sink, err := NewOTLPHTTPSink(OTLPHTTPSinkConfig{
		Endpoint:    server.URL + "/collector/",
		ServiceName: "hzz-test",
		Headers:     map[string]string{"Authorization": "Bearer t0k"},
	})
	if err != nil {
		t.Fatalf("unexpected sink creation error: %v", err)
	}

	events := []Event{
		{Kind: EventKindMetric, Metric: &MetricEvent{Name: MetricValidationIssues}},
		{Kind: EventKindSpan, Span: &SpanEvent{Name: "generation_span"}},
		{Kind: EventKindLog, Log: &LogEvent{Name: "generation_completed"}},
		{Kind: "audit", Log: &LogEvent{Name: "unknown_kind"}},
	}
	for _, event := range events {
		if err := sink.Export(context.Background(), event); err != nil {
			t.Fatalf("unexpected export error: %v", err)
		}
	}

	exports := collected()
	var paths []string
	for _, export := range exports {
		paths = append(paths, export.path)
		if export.envelope.Resource["service.name"] != "hzz-test" || export.auth != "Bearer t0k" {
			t.Fatalf("unexpected export %+v", export)
		}
	}
	want := []string{"/collector/v1/metrics", "/collector/v1/traces", "/collector/v1/logs", "/collector/v1/logs"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("unexpected otlp paths: got %+v want %+v", paths, want)
	}
}

func TestOTLPHTTPSinkCarriesCorrelationAttributes(t *testing.T) {
	t.Parallel()

	server, collected := newCollector(t, http.StatusOK)
	sink, err := NewOTLPHTTPSink(OTLPHTTPSinkConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected sink creation error: %v", err)
	}

	correlation := Correlation{ApplicationID: "app-1", RunID: "run-1", SchemaVersion: "2025.1", EmittedBy: "generation"}
	if err := sink.Export(context.Background(), Event{Kind: EventKindLog, Correlation: correlation, Log: &LogEvent{Name: "draft_stored"}}); err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}
	if err := sink.Export(context.Background(), Event{Kind: EventKindLog, Log: &LogEvent{Name: "bare"}}); err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}

	exports := collected()
	if len(exports) != 2 {
		t.Fatalf("expected 2 exports, got %d", len(exports))
	}
	wantAttrs := map[string]string{
		"hzz.application_id": "app-1",
		"hzz.run_id":         "run-1",
		"hzz.schema_version": "2025.1",
		"hzz.emitted_by":     "generation",
	}
	if got := exports[0].envelope.Attributes; !reflect.DeepEqual(got, wantAttrs) {
		t.Fatalf("expected attributes %v, got %v", wantAttrs, got)
	}
	if exports[1].envelope.Attributes != nil {
		t.Fatalf("expected no attributes without correlation, got %v", exports[1].envelope.Attributes)
	}
	if exports[0].envelope.Resource["service.name"] != "hzz-server" {
		t.Fatalf("expected default service name, got %v", exports[0].envelope.Resource)
	}
}

func TestOTLPHTTPSinkExportErrorStatus(t *testing.T) {
	t.Parallel()

	server, _ := newCollector(t, http.StatusBadGateway)
	sink, err := NewOTLPHTTPSink(OTLPHTTPSinkConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected sink creation error: %v", err)
	}
	if err := sink.Export(context.Background(), Event{Kind: EventKindLog, Log: &LogEvent{Name: "x"}}); err == nil {
		t.Fatalf("expected non-2xx status to fail export")
	}
	var unconfigured *OTLPHTTPSink
	if err := unconfigured.Export(context.Background(), Event{Kind: EventKindLog}); err == nil {
		t.Fatalf("expected nil sink to fail export")
	}
}

func TestNewOTLPHTTPSinkValidatesEndpoint(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"", "   ", "localhost:4318", "http://"} {
		if _, err := NewOTLPHTTPSink(OTLPHTTPSinkConfig{Endpoint: endpoint}); err == nil {
			t.Fatalf("expected endpoint %q to be rejected", endpoint)
		}
	}
}
