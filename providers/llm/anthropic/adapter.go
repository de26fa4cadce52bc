package anthropic

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tiger/hzz-draft-assistant/internal/config"
	"github.com/tiger/hzz-draft-assistant/internal/drafting"
	"github.com/tiger/hzz-draft-assistant/providers/common/httpadapter"
)

const ProviderID = "llm-anthropic"

type Config struct {
	APIKey           string
	Endpoint         string
	Model            string
	AnthropicVersion string
	MaxTokens        int
	Timeout          time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:           config.EnvString("HZZ_LLM_ANTHROPIC_API_KEY", ""),
		Endpoint:         config.EnvString("HZZ_LLM_ANTHROPIC_ENDPOINT", "https://api.anthropic.com/v1/messages"),
		Model:            defaultString(os.Getenv("HZZ_LLM_ANTHROPIC_MODEL"), "claude-3-5-haiku-latest"),
		AnthropicVersion: defaultString(os.Getenv("HZZ_LLM_ANTHROPIC_VERSION"), "2023-06-01"),
		MaxTokens:        8000,
		Timeout:          120 * time.Second,
	}
}

func NewAdapter(cfg Config) (drafting.Provider, error) {
	return httpadapter.New(httpadapter.Config{
		ProviderID:    ProviderID,
		Endpoint:      cfg.Endpoint,
		APIKey:        cfg.APIKey,
		APIKeyHeader:  "x-api-key",
		Timeout:       cfg.Timeout,
		StaticHeaders: map[string]string{"anthropic-version": cfg.AnthropicVersion},
		BuildBody: func(req drafting.Request) any {
			body := map[string]any{
				"model":      cfg.Model,
				"max_tokens": cfg.MaxTokens,
				"messages": []map[string]any{
					{"role": "user", "content": req.Prompt.User},
				},
			}
			if req.Prompt.System != "" {
				body["system"] = req.Prompt.System
			}
			return body
		},
		Parse: parseMessage,
	})
}

func NewAdapterFromEnv() (drafting.Provider, error) {
	return NewAdapter(ConfigFromEnv())
}

type message struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func parseMessage(body []byte) (httpadapter.ParsedResponse, error) {
	var resp message
	if err := json.Unmarshal(body, &resp); err != nil {
		return httpadapter.ParsedResponse{}, err
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return httpadapter.ParsedResponse{}, fmt.Errorf("message has no text content")
	}
	return httpadapter.ParsedResponse{
		Text:  text.String(),
		Model: resp.Model,
		Usage: drafting.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

func defaultString(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
