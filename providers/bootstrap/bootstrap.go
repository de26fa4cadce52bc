// Package bootstrap builds the draft provider catalog and controller from
// configuration.
package bootstrap

import (
	"fmt"
	"strings"

	"github.com/tiger/hzz-draft-assistant/internal/config"
	"github.com/tiger/hzz-draft-assistant/internal/drafting"
	llmanthropic "github.com/tiger/hzz-draft-assistant/providers/llm/anthropic"
	llmgemini "github.com/tiger/hzz-draft-assistant/providers/llm/gemini"
	llmopenai "github.com/tiger/hzz-draft-assistant/providers/llm/openai"
	llmwebhook "github.com/tiger/hzz-draft-assistant/providers/llm/webhook"
)

// Constructor builds one provider, usually from environment settings.
type Constructor func() (drafting.Provider, error)

// DefaultConstructors maps provider IDs to their env-driven constructors.
func DefaultConstructors() map[string]Constructor {
	return map[string]Constructor{
		llmopenai.ProviderID:    llmopenai.NewAdapterFromEnv,
		llmanthropic.ProviderID: llmanthropic.NewAdapterFromEnv,
		llmgemini.ProviderID:    llmgemini.NewAdapterFromEnv,
		llmwebhook.ProviderID:   llmwebhook.NewAdapterFromEnv,
	}
}

// DraftProviders contains initialized draft components.
type DraftProviders struct {
	Catalog    drafting.Catalog
	Controller drafting.Controller
}

// Build constructs the providers named in cfg, in order, with the webhook
// appended last when enabled.
func Build(cfg config.DraftConfig) (DraftProviders, error) {
	return BuildWithConstructors(cfg, DefaultConstructors())
}

// BuildWithConstructors is Build with an explicit constructor table.
func BuildWithConstructors(cfg config.DraftConfig, constructors map[string]Constructor) (DraftProviders, error) {
	ids := append([]string(nil), cfg.Providers...)
	if cfg.WebhookEnabled {
		ids = append(ids, llmwebhook.ProviderID)
	}

	providers := make([]drafting.Provider, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		constructor, ok := constructors[id]
		if !ok {
			return DraftProviders{}, fmt.Errorf("unknown draft provider %q", id)
		}
		provider, err := constructor()
		if err != nil {
			return DraftProviders{}, fmt.Errorf("build draft provider %s: %w", id, err)
		}
		providers = append(providers, provider)
	}
	return BuildWithProviders(providers, cfg)
}

// BuildWithProviders wires catalog+controller for a given provider set.
// Provider order is kept as fallback order.
func BuildWithProviders(providers []drafting.Provider, cfg config.DraftConfig) (DraftProviders, error) {
	if len(providers) == 0 {
		return DraftProviders{}, drafting.ErrNoProviders
	}
	order := make([]string, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			order = append(order, p.ID())
		}
	}
	catalog, err := drafting.NewCatalog(providers, order...)
	if err != nil {
		return DraftProviders{}, err
	}
	controller := drafting.NewControllerWithConfig(catalog, drafting.Config{
		MaxAttemptsPerProvider: cfg.MaxAttemptsPerProvider,
		MaxCandidateProviders:  len(providers),
		MaxBackoff:             cfg.MaxBackoff,
	})
	return DraftProviders{Catalog: catalog, Controller: controller}, nil
}

// Summary returns a deterministic one-line provider description.
func Summary(catalog drafting.Catalog) string {
	ids := catalog.ProviderIDs()
	return fmt.Sprintf("draft providers initialized: %d (%s)", len(ids), strings.Join(ids, ", "))
}
