package telemetry

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// EnvTelemetryEnabled toggles telemetry emission.
	EnvTelemetryEnabled = "HZZ_TELEMETRY_ENABLED"
	// EnvTelemetryOTLPHTTPEndpoint sets OTLP/HTTP endpoint base URL.
	EnvTelemetryOTLPHTTPEndpoint = "HZZ_TELEMETRY_OTLP_HTTP_ENDPOINT"
	// EnvTelemetryOTLPHeaders lists extra export headers as name=value pairs
	// separated by commas.
	EnvTelemetryOTLPHeaders = "HZZ_TELEMETRY_OTLP_HEADERS"
	// EnvTelemetryQueueCapacity sets in-memory queue capacity.
	EnvTelemetryQueueCapacity = "HZZ_TELEMETRY_QUEUE_CAPACITY"
	// EnvTelemetryDropSampleRate sets deterministic debug-log sample rate.
	EnvTelemetryDropSampleRate = "HZZ_TELEMETRY_DROP_SAMPLE_RATE"
	// EnvTelemetryExportTimeoutMS sets export timeout in milliseconds.
	EnvTelemetryExportTimeoutMS = "HZZ_TELEMETRY_EXPORT_TIMEOUT_MS"
	// EnvTelemetryLogEvents mirrors every event into the process logger.
	EnvTelemetryLogEvents = "HZZ_TELEMETRY_LOG_EVENTS"
)

// RuntimeConfig captures env-configured telemetry settings.
type RuntimeConfig struct {
	Enabled          bool
	OTLPHTTPEndpoint string
	OTLPHeaders      map[string]string
	QueueCapacity    int
	LogSampleRate    int
	ExportTimeoutMS  int
	LogEvents        bool
}

// RuntimeConfigFromEnv parses telemetry config from environment.
func RuntimeConfigFromEnv() (RuntimeConfig, error) {
	cfg := RuntimeConfig{
		Enabled:          true,
		OTLPHTTPEndpoint: strings.TrimSpace(os.Getenv(EnvTelemetryOTLPHTTPEndpoint)),
		QueueCapacity:    256,
		LogSampleRate:    1,
		ExportTimeoutMS:  200,
	}

	if raw := strings.TrimSpace(os.Getenv(EnvTelemetryEnabled)); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return RuntimeConfig{}, fmt.Errorf("%s parse error: %w", EnvTelemetryEnabled, err)
		}
		cfg.Enabled = enabled
	}
	if raw := strings.TrimSpace(os.Getenv(EnvTelemetryOTLPHeaders)); raw != "" {
		headers, err := parseHeaderList(raw)
		if err != nil {
			return RuntimeConfig{}, fmt.Errorf("%s: %w", EnvTelemetryOTLPHeaders, err)
		}
		cfg.OTLPHeaders = headers
	}
	if raw := strings.TrimSpace(os.Getenv(EnvTelemetryQueueCapacity)); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return RuntimeConfig{}, fmt.Errorf("%s must be integer >=1", EnvTelemetryQueueCapacity)
		}
		cfg.QueueCapacity = v
	}
	if raw := strings.TrimSpace(os.Getenv(EnvTelemetryDropSampleRate)); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return RuntimeConfig{}, fmt.Errorf("%s must be integer >=1", EnvTelemetryDropSampleRate)
		}
		cfg.LogSampleRate = v
	}
	if raw := strings.TrimSpace(os.Getenv(EnvTelemetryExportTimeoutMS)); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return RuntimeConfig{}, fmt.Errorf("%s must be integer >=1", EnvTelemetryExportTimeoutMS)
		}
		cfg.ExportTimeoutMS = v
	}
	if raw := strings.TrimSpace(os.Getenv(EnvTelemetryLogEvents)); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return RuntimeConfig{}, fmt.Errorf("%s parse error: %w", EnvTelemetryLogEvents, err)
		}
		cfg.LogEvents = v
	}

	return cfg, nil
}

// NewPipelineFromEnv creates a telemetry pipeline from environment settings.
// A nil pipeline means telemetry is disabled. logger receives events when
// HZZ_TELEMETRY_LOG_EVENTS is set or no OTLP endpoint is configured.
func NewPipelineFromEnv(logger *slog.Logger) (*Pipeline, error) {
	cfg, err := RuntimeConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, nil
	}

	var sinks []Sink
	if cfg.OTLPHTTPEndpoint != "" {
		httpSink, err := NewOTLPHTTPSink(OTLPHTTPSinkConfig{
			Endpoint: cfg.OTLPHTTPEndpoint,
			Headers:  cfg.OTLPHeaders,
			Client:   &http.Client{Timeout: time.Duration(cfg.ExportTimeoutMS) * time.Millisecond},
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, httpSink)
	}
	if logger != nil && (cfg.LogEvents || len(sinks) == 0) {
		sinks = append(sinks, NewSlogSink(logger))
	}

	return NewPipeline(FanoutSink(sinks), Config{
		QueueCapacity: cfg.QueueCapacity,
		LogSampleRate: cfg.LogSampleRate,
		ExportTimeout: time.Duration(cfg.ExportTimeoutMS) * time.Millisecond,
	}), nil
}

// parseHeaderList reads "name=value,name=value".
func parseHeaderList(raw string) (map[string]string, error) {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected name=value", strings.TrimSpace(pair))
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
