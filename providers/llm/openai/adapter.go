package openai

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tiger/hzz-draft-assistant/internal/config"
	"github.com/tiger/hzz-draft-assistant/internal/drafting"
	"github.com/tiger/hzz-draft-assistant/providers/common/httpadapter"
)

const ProviderID = "llm-openai"

type Config struct {
	APIKey      string
	Endpoint    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:      config.EnvString("HZZ_LLM_OPENAI_API_KEY", ""),
		Endpoint:    config.EnvString("HZZ_LLM_OPENAI_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
		Model:       defaultString(os.Getenv("HZZ_LLM_OPENAI_MODEL"), "gpt-4o"),
		Temperature: defaultFloat(os.Getenv("HZZ_LLM_OPENAI_TEMPERATURE"), 0.7),
		MaxTokens:   defaultInt(os.Getenv("HZZ_LLM_OPENAI_MAX_TOKENS"), 8000),
		Timeout:     120 * time.Second,
	}
}

func NewAdapter(cfg Config) (drafting.Provider, error) {
	return httpadapter.New(httpadapter.Config{
		ProviderID:   ProviderID,
		Endpoint:     cfg.Endpoint,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "Authorization",
		APIKeyPrefix: "Bearer ",
		Timeout:      cfg.Timeout,
		BuildBody: func(req drafting.Request) any {
			messages := make([]map[string]string, 0, 2)
			if req.Prompt.System != "" {
				messages = append(messages, map[string]string{"role": "system", "content": req.Prompt.System})
			}
			messages = append(messages, map[string]string{"role": "user", "content": req.Prompt.User})
			return map[string]any{
				"model":           cfg.Model,
				"messages":        messages,
				"response_format": map[string]string{"type": "json_object"},
				"temperature":     cfg.Temperature,
				"max_tokens":      cfg.MaxTokens,
			}
		},
		Parse: parseChatCompletion,
	})
}

func NewAdapterFromEnv() (drafting.Provider, error) {
	return NewAdapter(ConfigFromEnv())
}

type chatCompletion struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage drafting.Usage `json:"usage"`
}

func parseChatCompletion(body []byte) (httpadapter.ParsedResponse, error) {
	var resp chatCompletion
	if err := json.Unmarshal(body, &resp); err != nil {
		return httpadapter.ParsedResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return httpadapter.ParsedResponse{}, fmt.Errorf("chat completion has no choices")
	}
	return httpadapter.ParsedResponse{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: resp.Usage,
	}, nil
}

func defaultString(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultFloat(v string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func defaultInt(v string, fallback int) int {
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
