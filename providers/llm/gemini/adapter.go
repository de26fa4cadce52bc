package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tiger/hzz-draft-assistant/internal/config"
	"github.com/tiger/hzz-draft-assistant/internal/drafting"
	"github.com/tiger/hzz-draft-assistant/providers/common/httpadapter"
)

const ProviderID = "llm-gemini"

type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:   config.EnvString("HZZ_LLM_GEMINI_API_KEY", ""),
		Endpoint: config.EnvString("HZZ_LLM_GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"),
		Timeout:  120 * time.Second,
	}
}

func NewAdapter(cfg Config) (drafting.Provider, error) {
	return httpadapter.New(httpadapter.Config{
		ProviderID:       ProviderID,
		Endpoint:         cfg.Endpoint,
		APIKey:           cfg.APIKey,
		QueryAPIKeyParam: "key",
		Timeout:          cfg.Timeout,
		BuildBody: func(req drafting.Request) any {
			body := map[string]any{
				"contents": []map[string]any{
					{"role": "user", "parts": []map[string]any{{"text": req.Prompt.User}}},
				},
				"generationConfig": map[string]any{"responseMimeType": "application/json"},
			}
			if req.Prompt.System != "" {
				body["systemInstruction"] = map[string]any{
					"parts": []map[string]any{{"text": req.Prompt.System}},
				}
			}
			return body
		},
		Parse: parseGenerateContent,
	})
}

func NewAdapterFromEnv() (drafting.Provider, error) {
	return NewAdapter(ConfigFromEnv())
}

type generateContentResponse struct {
	ModelVersion string `json:"modelVersion"`
	Candidates   []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func parseGenerateContent(body []byte) (httpadapter.ParsedResponse, error) {
	var resp generateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return httpadapter.ParsedResponse{}, err
	}
	if len(resp.Candidates) == 0 {
		return httpadapter.ParsedResponse{}, fmt.Errorf("generateContent has no candidates")
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return httpadapter.ParsedResponse{
		Text:  text.String(),
		Model: resp.ModelVersion,
		Usage: drafting.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
