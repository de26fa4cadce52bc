package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tiger/hzz-draft-assistant/internal/drafting"
)

func TestConfigFromEnvSecretRefs(t *testing.T) {
	t.Setenv("HZZ_LLM_GEMINI_API_KEY", "literal-key")
	t.Setenv("HZZ_LLM_GEMINI_API_KEY_REF", "env://HZZ_TEST_GEMINI_API_KEY")
	t.Setenv("HZZ_TEST_GEMINI_API_KEY", "secret-key")
	t.Setenv("HZZ_LLM_GEMINI_ENDPOINT", "https://literal.example.com")
	t.Setenv("HZZ_LLM_GEMINI_ENDPOINT_REF", "env://HZZ_TEST_GEMINI_ENDPOINT")
	t.Setenv("HZZ_TEST_GEMINI_ENDPOINT", "https://secret.example.com")

	cfg := ConfigFromEnv()
	if cfg.APIKey != "secret-key" {
		t.Fatalf("expected API key resolved from secret ref, got %q", cfg.APIKey)
	}
	if cfg.Endpoint != "https://secret.example.com" {
		t.Fatalf("expected endpoint resolved from secret ref, got %q", cfg.Endpoint)
	}
}

func TestAdapterGenerateContent(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-1.5-flash:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "key" {
			t.Errorf("expected key query, got %q", r.URL.RawQuery)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{
			"modelVersion": "gemini-1.5-flash-002",
			"candidates": [{"content": {"parts": [{"text": "{\"3.1\":"}, {"text": "{}}"}]}}],
			"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 2, "totalTokenCount": 6}
		}`))
	}))
	defer srv.Close()

	provider, err := NewAdapter(Config{
		APIKey:   "key",
		Endpoint: srv.URL + "/v1beta/models/gemini-1.5-flash:generateContent",
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	completion, err := provider.Complete(context.Background(), drafting.Request{
		RunID: "run-1", ProviderID: ProviderID, Attempt: 1, Prompt: drafting.Prompt{System: "sys", User: "usr"},
	})
	if err != nil {
		t.Fatalf("unexpected complete error: %v", err)
	}
	if completion.Text != `{"3.1":{}}` || completion.Model != "gemini-1.5-flash-002" || completion.Usage.TotalTokens != 6 {
		t.Fatalf("unexpected completion: %+v", completion)
	}
	if _, ok := body["systemInstruction"]; !ok {
		t.Fatalf("expected system instruction in body, got %v", body)
	}
	generation, _ := body["generationConfig"].(map[string]any)
	if generation["responseMimeType"] != "application/json" {
		t.Fatalf("expected json mime type, got %v", body["generationConfig"])
	}
}

func TestAdapterNoCandidates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	provider, err := NewAdapter(Config{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	completion, err := provider.Complete(context.Background(), drafting.Request{
		RunID: "run-1", ProviderID: ProviderID, Attempt: 1, Prompt: drafting.Prompt{User: "usr"},
	})
	if err != nil {
		t.Fatalf("unexpected complete error: %v", err)
	}
	if completion.Outcome.Reason != "provider_response_malformed" {
		t.Fatalf("expected malformed outcome, got %+v", completion.Outcome)
	}
}
