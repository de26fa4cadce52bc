package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestFromLookupDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := FromLookup(mapLookup(nil))
	if err != nil {
		t.Fatalf("unexpected config error: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.DatabasePath != "hzz.db" || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Draft.Providers, []string{"llm-openai"}) || cfg.Draft.MaxAttemptsPerProvider != 2 {
		t.Fatalf("unexpected draft defaults: %+v", cfg.Draft)
	}
	if cfg.Archive.Enabled() || cfg.Archive.Prefix != "runs" || cfg.Archive.Level != "redacted" {
		t.Fatalf("expected archive disabled with default prefix, got %+v", cfg.Archive)
	}
}

func TestFromLookupOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := FromLookup(mapLookup(map[string]string{
		"HZZ_LISTEN_ADDR":              "127.0.0.1:9000",
		"HZZ_DRAFT_PROVIDERS":          "llm-anthropic,llm-openai",
		"HZZ_DRAFT_PREFERRED_PROVIDER": "llm-openai",
		"HZZ_DRAFT_MAX_BACKOFF_MS":     "100",
		"HZZ_N8N_GENERATE":             "true",
		"HZZ_N8N_WEBHOOK_URL":          "https://n8n.example.com/webhook/generate",
		"HZZ_ARCHIVE_BUCKET":           "hzz-runs",
		"HZZ_ARCHIVE_PREFIX":           "/archive/",
		"HZZ_ARCHIVE_LEVEL":            "minimal",
	}))
	if err != nil {
		t.Fatalf("unexpected config error: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" || cfg.Draft.PreferredProvider != "llm-openai" || cfg.Draft.MaxBackoff != 100*time.Millisecond {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if !cfg.Draft.WebhookEnabled || !cfg.Archive.Enabled() || cfg.Archive.Prefix != "archive" || cfg.Archive.Level != "minimal" {
		t.Fatalf("unexpected webhook/archive config: %+v", cfg)
	}
}

func TestArchiveDirEnablesArchive(t *testing.T) {
	t.Parallel()

	cfg, err := FromLookup(mapLookup(map[string]string{"HZZ_ARCHIVE_DIR": "/var/lib/hzz/archive"}))
	if err != nil {
		t.Fatalf("unexpected config error: %v", err)
	}
	if !cfg.Archive.Enabled() || cfg.Archive.Bucket != "" {
		t.Fatalf("expected directory archive enabled, got %+v", cfg.Archive)
	}
}

func TestFromLookupRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values map[string]string
		want   string
	}{
		{name: "webhook without url", values: map[string]string{"HZZ_N8N_GENERATE": "true"}, want: "HZZ_N8N_WEBHOOK_URL"},
		{name: "unknown preferred", values: map[string]string{"HZZ_DRAFT_PREFERRED_PROVIDER": "llm-x"}, want: "preferred provider"},
		{name: "zero attempts", values: map[string]string{"HZZ_DRAFT_MAX_ATTEMPTS": "0"}, want: "max attempts"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := FromLookup(mapLookup(tc.values))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
