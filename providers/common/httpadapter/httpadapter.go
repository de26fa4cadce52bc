package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tiger/hzz-draft-assistant/internal/drafting"
)

const defaultMaxResponseBytes = 1 << 20

// ParseFunc extracts generated text and model name from a 2xx response body.
type ParseFunc func(body []byte) (ParsedResponse, error)

// ParsedResponse is what a provider-specific parser returns.
type ParsedResponse struct {
	Text  string
	Model string
	Usage drafting.Usage
}

// Config configures a generic JSON-over-HTTP draft provider.
type Config struct {
	ProviderID       string
	Endpoint         string
	Method           string
	APIKey           string
	APIKeyHeader     string
	APIKeyPrefix     string
	QueryAPIKeyParam string
	StaticHeaders    map[string]string
	Timeout          time.Duration
	MaxResponseBytes int64
	BuildBody        func(req drafting.Request) any
	Parse            ParseFunc
	Client           *http.Client
}

// Adapter implements drafting.Provider against a JSON-over-HTTP endpoint.
type Adapter struct {
	cfg    Config
	client *http.Client
}

// New constructs a generic HTTP adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.ProviderID == "" {
		return nil, fmt.Errorf("provider_id is required")
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}
	if cfg.BuildBody == nil {
		cfg.BuildBody = func(req drafting.Request) any {
			return map[string]any{"idea": req.Prompt.Idea, "template": req.Prompt.Template}
		}
	}
	if cfg.Parse == nil {
		cfg.Parse = RawBody
	}
	if cfg.StaticHeaders == nil {
		cfg.StaticHeaders = map[string]string{}
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Adapter{cfg: cfg, client: client}, nil
}

// ID returns provider identity.
func (a *Adapter) ID() string {
	return a.cfg.ProviderID
}

// Complete executes one provider attempt and normalizes the outcome.
// Transport and status failures are reported through Completion.Outcome;
// the error return is reserved for invalid requests.
func (a *Adapter) Complete(ctx context.Context, req drafting.Request) (drafting.Completion, error) {
	if err := req.Validate(); err != nil {
		return drafting.Completion{}, err
	}
	if ctx.Err() != nil {
		return drafting.Completion{Outcome: drafting.Outcome{Class: drafting.OutcomeCancelled, Reason: "provider_cancelled"}}, nil
	}
	if a.cfg.Endpoint == "" {
		return drafting.Completion{Outcome: drafting.Outcome{Class: drafting.OutcomeBlocked, Reason: "provider_endpoint_missing"}}, nil
	}

	body, err := json.Marshal(a.cfg.BuildBody(req))
	if err != nil {
		return drafting.Completion{}, fmt.Errorf("marshal %s request: %w", a.cfg.ProviderID, err)
	}

	endpoint := a.cfg.Endpoint
	if a.cfg.QueryAPIKeyParam != "" && a.cfg.APIKey != "" {
		endpoint, err = WithQuery(endpoint, a.cfg.QueryAPIKeyParam, a.cfg.APIKey)
		if err != nil {
			return drafting.Completion{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, a.cfg.Method, endpoint, bytes.NewReader(body))
	if err != nil {
		return drafting.Completion{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKeyHeader != "" && a.cfg.APIKey != "" {
		httpReq.Header.Set(a.cfg.APIKeyHeader, a.cfg.APIKeyPrefix+a.cfg.APIKey)
	}
	for key, value := range a.cfg.StaticHeaders {
		httpReq.Header.Set(key, value)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return drafting.Completion{Outcome: NormalizeNetworkError(err)}, nil
	}
	defer resp.Body.Close()

	outcome := NormalizeStatus(resp.StatusCode, resp.Header.Get("Retry-After"))
	if outcome.Class != drafting.OutcomeSuccess {
		return drafting.Completion{Outcome: outcome}, nil
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, a.cfg.MaxResponseBytes+1))
	if err != nil {
		out := NormalizeNetworkError(err)
		out.StatusCode = resp.StatusCode
		return drafting.Completion{Outcome: out}, nil
	}
	if int64(len(payload)) > a.cfg.MaxResponseBytes {
		return drafting.Completion{Outcome: drafting.Outcome{
			Class:      drafting.OutcomeInfrastructureFailure,
			Reason:     "provider_response_too_large",
			StatusCode: resp.StatusCode,
		}}, nil
	}

	parsed, err := a.cfg.Parse(payload)
	if err != nil || strings.TrimSpace(parsed.Text) == "" {
		return drafting.Completion{Outcome: drafting.Outcome{
			Class:      drafting.OutcomeInfrastructureFailure,
			Retryable:  true,
			Reason:     "provider_response_malformed",
			StatusCode: resp.StatusCode,
		}}, nil
	}
	return drafting.Completion{
		Outcome: outcome,
		Text:    parsed.Text,
		Model:   parsed.Model,
		Usage:   parsed.Usage,
	}, nil
}

// RawBody treats the whole response body as the generated text.
func RawBody(body []byte) (ParsedResponse, error) {
	return ParsedResponse{Text: string(body)}, nil
}

// WithQuery appends/overrides a query key on an endpoint URL.
func WithQuery(rawEndpoint string, key string, value string) (string, error) {
	u, err := url.Parse(rawEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NormalizeNetworkError maps transport-level errors to normalized outcomes.
func NormalizeNetworkError(err error) drafting.Outcome {
	if errors.Is(err, context.Canceled) {
		return drafting.Outcome{Class: drafting.OutcomeCancelled, Reason: "provider_cancelled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return drafting.Outcome{Class: drafting.OutcomeTimeout, Retryable: true, Reason: "provider_timeout"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return drafting.Outcome{Class: drafting.OutcomeTimeout, Retryable: true, Reason: "provider_timeout"}
	}
	return drafting.Outcome{Class: drafting.OutcomeInfrastructureFailure, Retryable: true, Reason: "provider_transport_error"}
}

// NormalizeStatus maps HTTP status and retry-after headers to normalized outcomes.
func NormalizeStatus(status int, retryAfter string) drafting.Outcome {
	outcome := drafting.Outcome{StatusCode: status}
	switch {
	case status >= 200 && status <= 299:
		outcome.Class = drafting.OutcomeSuccess
		return outcome
	case status == http.StatusTooManyRequests:
		outcome.Class = drafting.OutcomeOverload
		outcome.Retryable = true
		outcome.Reason = "provider_overload"
		outcome.BackoffMS = retryAfterToMS(retryAfter)
		outcome.CircuitOpen = true
		return outcome
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		outcome.Class = drafting.OutcomeTimeout
		outcome.Retryable = true
		outcome.Reason = "provider_timeout"
		return outcome
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		outcome.Class = drafting.OutcomeBlocked
		outcome.Reason = "provider_auth_or_policy_block"
		return outcome
	case status >= 400 && status <= 499:
		outcome.Class = drafting.OutcomeBlocked
		outcome.Reason = "provider_client_error"
		return outcome
	default:
		outcome.Class = drafting.OutcomeInfrastructureFailure
		outcome.Retryable = true
		outcome.Reason = "provider_server_error"
		outcome.CircuitOpen = status >= 500
		return outcome
	}
}

func retryAfterToMS(retryAfter string) int64 {
	if strings.TrimSpace(retryAfter) == "" {
		return 500
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter))
	if err != nil || seconds < 1 {
		return 500
	}
	return int64(seconds) * 1000
}
