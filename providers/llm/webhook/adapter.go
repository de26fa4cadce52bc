// Package webhook drafts through an n8n-style workflow webhook that receives
// the business idea plus the empty template and answers with the document.
package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tiger/hzz-draft-assistant/internal/config"
	"github.com/tiger/hzz-draft-assistant/internal/drafting"
	"github.com/tiger/hzz-draft-assistant/providers/common/httpadapter"
)

const ProviderID = "webhook-n8n"

type Config struct {
	URL        string
	AuthHeader string
	AuthToken  string
	Timeout    time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		URL:        config.EnvString("HZZ_N8N_WEBHOOK_URL", ""),
		AuthHeader: config.EnvString("HZZ_N8N_AUTH_HEADER", "Authorization"),
		AuthToken:  config.EnvString("HZZ_N8N_AUTH_TOKEN", ""),
		Timeout:    120 * time.Second,
	}
}

func NewAdapter(cfg Config) (drafting.Provider, error) {
	return httpadapter.New(httpadapter.Config{
		ProviderID:   ProviderID,
		Endpoint:     cfg.URL,
		APIKey:       cfg.AuthToken,
		APIKeyHeader: cfg.AuthHeader,
		Timeout:      cfg.Timeout,
		BuildBody: func(req drafting.Request) any {
			return map[string]any{
				"idea":     req.Prompt.Idea,
				"template": req.Prompt.Template,
			}
		},
		Parse: parseWorkflowResponse,
	})
}

func NewAdapterFromEnv() (drafting.Provider, error) {
	return NewAdapter(ConfigFromEnv())
}

// parseWorkflowResponse accepts the document itself, a one-element array
// (the n8n "all items" response mode), {"data": {...}}, or a text field
// ("output" / "text") carrying the model's raw answer.
func parseWorkflowResponse(body []byte) (httpadapter.ParsedResponse, error) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return httpadapter.ParsedResponse{}, err
	}
	if items, ok := decoded.([]any); ok {
		if len(items) == 0 {
			return httpadapter.ParsedResponse{}, fmt.Errorf("workflow returned no items")
		}
		decoded = items[0]
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return httpadapter.ParsedResponse{}, fmt.Errorf("workflow response is %T, want object", decoded)
	}
	if len(obj) == 1 {
		if data, ok := obj["data"].(map[string]any); ok {
			obj = data
		}
	}
	for _, key := range []string{"output", "text"} {
		if text, ok := obj[key].(string); ok && len(obj) == 1 && strings.TrimSpace(text) != "" {
			return httpadapter.ParsedResponse{Text: text, Model: "n8n"}, nil
		}
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return httpadapter.ParsedResponse{}, err
	}
	return httpadapter.ParsedResponse{Text: string(raw), Model: "n8n"}, nil
}
