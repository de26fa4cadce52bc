package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tiger/hzz-draft-assistant/internal/drafting"
)

func testRequest() drafting.Request {
	return drafting.Request{
		RunID:      "run-1",
		ProviderID: "provider-a",
		Attempt:    1,
		Prompt:     drafting.Prompt{User: "draft", Idea: "Kafić"},
	}
}

func TestCompleteMapsHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		expected  drafting.OutcomeClass
		retryable bool
	}{
		{name: "success", status: http.StatusOK, expected: drafting.OutcomeSuccess, retryable: false},
		{name: "timeout", status: http.StatusRequestTimeout, expected: drafting.OutcomeTimeout, retryable: true},
		{name: "overload", status: http.StatusTooManyRequests, expected: drafting.OutcomeOverload, retryable: true},
		{name: "blocked", status: http.StatusUnauthorized, expected: drafting.OutcomeBlocked, retryable: false},
		{name: "client", status: http.StatusBadRequest, expected: drafting.OutcomeBlocked, retryable: false},
		{name: "infra", status: http.StatusBadGateway, expected: drafting.OutcomeInfrastructureFailure, retryable: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"2":{}}`))
			}))
			defer ts.Close()

			adapter, err := New(Config{ProviderID: "provider-a", Endpoint: ts.URL})
			if err != nil {
				t.Fatalf("unexpected adapter error: %v", err)
			}
			completion, err := adapter.Complete(context.Background(), testRequest())
			if err != nil {
				t.Fatalf("unexpected complete error: %v", err)
			}
			if completion.Outcome.Class != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, completion.Outcome.Class)
			}
			if completion.Outcome.Retryable != tc.retryable {
				t.Fatalf("expected retryable=%v, got %v", tc.retryable, completion.Outcome.Retryable)
			}
			if completion.Outcome.StatusCode != tc.status {
				t.Fatalf("expected status %d recorded, got %d", tc.status, completion.Outcome.StatusCode)
			}
			if err := completion.Outcome.Validate(); err != nil {
				t.Fatalf("expected valid outcome, got %v", err)
			}
		})
	}
}

func TestCompleteSendsHeadersAndBody(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	var gotAuth, gotStatic, gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotStatic = r.Header.Get("X-Static")
		gotKey = r.URL.Query().Get("key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"text":"{\"2\":{}}","model":"m-1"}`))
	}))
	defer ts.Close()

	adapter, err := New(Config{
		ProviderID:       "provider-a",
		Endpoint:         ts.URL,
		APIKey:           "secret",
		APIKeyHeader:     "Authorization",
		APIKeyPrefix:     "Bearer ",
		QueryAPIKeyParam: "key",
		StaticHeaders:    map[string]string{"X-Static": "yes"},
		BuildBody: func(req drafting.Request) any {
			return map[string]any{"run": req.RunID, "user": req.Prompt.User}
		},
		Parse: func(body []byte) (ParsedResponse, error) {
			var decoded struct {
				Text  string `json:"text"`
				Model string `json:"model"`
			}
			err := json.Unmarshal(body, &decoded)
			return ParsedResponse{Text: decoded.Text, Model: decoded.Model}, err
		},
	})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	completion, err := adapter.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected complete error: %v", err)
	}
	if completion.Outcome.Class != drafting.OutcomeSuccess || completion.Text != `{"2":{}}` || completion.Model != "m-1" {
		t.Fatalf("unexpected completion: %+v", completion)
	}
	if gotAuth != "Bearer secret" || gotStatic != "yes" || gotKey != "secret" {
		t.Fatalf("unexpected headers auth=%q static=%q key=%q", gotAuth, gotStatic, gotKey)
	}
	if gotBody["run"] != "run-1" || gotBody["user"] != "draft" {
		t.Fatalf("unexpected body: %v", gotBody)
	}
}

func TestCompleteMalformedResponse(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer ts.Close()

	adapter, err := New(Config{
		ProviderID: "provider-a",
		Endpoint:   ts.URL,
		Parse: func(body []byte) (ParsedResponse, error) {
			var v map[string]any
			return ParsedResponse{}, json.Unmarshal(body, &v)
		},
	})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	completion, err := adapter.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected complete error: %v", err)
	}
	if completion.Outcome.Class != drafting.OutcomeInfrastructureFailure || completion.Outcome.Reason != "provider_response_malformed" || !completion.Outcome.Retryable {
		t.Fatalf("expected malformed outcome, got %+v", completion.Outcome)
	}
}

func TestCompleteResponseTooLarge(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer ts.Close()

	adapter, err := New(Config{ProviderID: "provider-a", Endpoint: ts.URL, MaxResponseBytes: 16})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	completion, err := adapter.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected complete error: %v", err)
	}
	if completion.Outcome.Reason != "provider_response_too_large" || completion.Outcome.Retryable {
		t.Fatalf("expected non-retryable too-large outcome, got %+v", completion.Outcome)
	}
}

func TestCompleteTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	adapter, err := New(Config{ProviderID: "provider-a", Endpoint: ts.URL, Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	completion, err := adapter.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected complete error: %v", err)
	}
	if completion.Outcome.Class != drafting.OutcomeTimeout || !completion.Outcome.Retryable {
		t.Fatalf("expected retryable timeout, got %+v", completion.Outcome)
	}
}

func TestCompleteCancelledShortCircuit(t *testing.T) {
	t.Parallel()

	adapter, err := New(Config{ProviderID: "provider-a", Endpoint: "https://example.com"})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	completion, err := adapter.Complete(ctx, testRequest())
	if err != nil {
		t.Fatalf("unexpected complete error: %v", err)
	}
	if completion.Outcome.Class != drafting.OutcomeCancelled {
		t.Fatalf("expected cancelled outcome, got %s", completion.Outcome.Class)
	}
}

func TestCompleteMissingEndpointAndInvalidRequest(t *testing.T) {
	t.Parallel()

	adapter, err := New(Config{ProviderID: "provider-a"})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	completion, err := adapter.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected complete error: %v", err)
	}
	if completion.Outcome.Class != drafting.OutcomeBlocked || completion.Outcome.Reason != "provider_endpoint_missing" {
		t.Fatalf("expected blocked outcome, got %+v", completion.Outcome)
	}
	if _, err := adapter.Complete(context.Background(), drafting.Request{}); err == nil {
		t.Fatalf("expected invalid request error")
	}
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected missing provider id error")
	}
}

func TestNormalizeHelpers(t *testing.T) {
	t.Parallel()

	overload := NormalizeStatus(http.StatusTooManyRequests, "3")
	if overload.BackoffMS != 3000 || !overload.CircuitOpen {
		t.Fatalf("expected retry-after backoff, got %+v", overload)
	}
	if got := NormalizeStatus(http.StatusTooManyRequests, "soon").BackoffMS; got != 500 {
		t.Fatalf("expected default backoff, got %d", got)
	}
	if got := NormalizeNetworkError(context.Canceled); got.Class != drafting.OutcomeCancelled {
		t.Fatalf("expected cancelled, got %+v", got)
	}
	if got := NormalizeNetworkError(errors.New("boom")); got.Reason != "provider_transport_error" {
		t.Fatalf("expected transport error, got %+v", got)
	}
	endpoint, err := WithQuery("https://example.com/v1?alt=json", "key", "abc")
	if err != nil || !strings.Contains(endpoint, "key=abc") || !strings.Contains(endpoint, "alt=json") {
		t.Fatalf("unexpected endpoint %q err=%v", endpoint, err)
	}
}
