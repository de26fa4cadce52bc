package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// OTLPHTTPSinkConfig configures export to an OTLP/HTTP collector.
type OTLPHTTPSinkConfig struct {
	Endpoint    string
	ServiceName string
	// Headers go out with every export, usually collector credentials.
	Headers map[string]string
	Client  *http.Client
}

// OTLPHTTPSink posts events to a collector's /v1/metrics, /v1/traces and
// /v1/logs routes. Correlation identifiers travel as event attributes so a
// collector can group by application, run and schema version.
type OTLPHTTPSink struct {
	routes   map[EventKind]string
	resource map[string]string
	headers  http.Header
	client   *http.Client
}

// NewOTLPHTTPSink creates an OTLP/HTTP sink.
func NewOTLPHTTPSink(cfg OTLPHTTPSinkConfig) (*OTLPHTTPSink, error) {
	raw := strings.TrimSpace(cfg.Endpoint)
	if raw == "" {
		return nil, fmt.Errorf("otlp endpoint is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse otlp endpoint: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("otlp endpoint must include scheme and host")
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "hzz-server"
	}
	headers := make(http.Header, len(cfg.Headers)+1)
	for name, value := range cfg.Headers {
		headers.Set(name, value)
	}
	headers.Set("Content-Type", "application/json")

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	routes := make(map[EventKind]string, 3)
	for kind, signal := range map[EventKind]string{
		EventKindMetric: "metrics",
		EventKindSpan:   "traces",
		EventKindLog:    "logs",
	} {
		u := *base
		u.RawPath = ""
		u.Path = path.Join("/", strings.TrimRight(base.Path, "/"), "v1", signal)
		routes[kind] = u.String()
	}

	return &OTLPHTTPSink{
		routes:   routes,
		resource: map[string]string{"service.name": serviceName},
		headers:  headers,
		client:   client,
	}, nil
}

type otlpEnvelope struct {
	Resource   map[string]string `json:"resource"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Event      Event             `json:"event"`
}

// Export sends one event to the route of its kind. Unknown kinds go to logs.
func (s *OTLPHTTPSink) Export(ctx context.Context, event Event) error {
	if s == nil || len(s.routes) == 0 {
		return fmt.Errorf("otlp sink is not configured")
	}
	target, ok := s.routes[event.Kind]
	if !ok {
		target = s.routes[EventKindLog]
	}

	payload, err := json.Marshal(otlpEnvelope{
		Resource:   s.resource,
		Attributes: correlationAttributes(event.Correlation),
		Event:      event,
	})
	if err != nil {
		return fmt.Errorf("marshal otlp event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build otlp request: %w", err)
	}
	req.Header = s.headers.Clone()

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("otlp export request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("otlp export status %d", resp.StatusCode)
	}
	return nil
}

// correlationAttributes names the set identifiers of c; nil when none are set.
func correlationAttributes(c Correlation) map[string]string {
	var attrs map[string]string
	for key, value := range map[string]string{
		"hzz.application_id": c.ApplicationID,
		"hzz.run_id":         c.RunID,
		"hzz.request_id":     c.RequestID,
		"hzz.schema_version": c.SchemaVersion,
		"hzz.emitted_by":     c.EmittedBy,
	} {
		if value == "" {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string, 5)
		}
		attrs[key] = value
	}
	return attrs
}
