// Package config loads service settings from HZZ_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the resolved service configuration.
type Config struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
	DatabasePath    string
	// SchemaPath overrides the embedded schema catalog when set.
	SchemaPath string
	Draft      DraftConfig
	Archive    ArchiveConfig
}

// DraftConfig selects and tunes draft providers.
type DraftConfig struct {
	Providers              []string
	PreferredProvider      string
	MaxAttemptsPerProvider int
	MaxBackoff             time.Duration
	// WebhookEnabled appends the webhook provider as the last fallback.
	WebhookEnabled bool
	WebhookURL     string
}

// ArchiveConfig points run archiving at an S3 bucket or, when no bucket is
// set, a local directory. Neither disables archiving.
type ArchiveConfig struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	Dir      string
	// Level is the recording level: full, redacted or minimal.
	Level string
}

// Enabled reports whether runs should be archived.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != "" || a.Dir != ""
}

// FromEnv reads configuration from the process environment.
func FromEnv() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup reads configuration through lookup.
func FromLookup(lookup Lookup) (Config, error) {
	cfg := Config{
		ListenAddr:      lookup.String("HZZ_LISTEN_ADDR", ":8080"),
		ShutdownTimeout: lookup.DurationMS("HZZ_SHUTDOWN_TIMEOUT_MS", 10*time.Second),
		DatabasePath:    lookup.String("HZZ_DATABASE_PATH", "hzz.db"),
		SchemaPath:      lookup.String("HZZ_SCHEMA_PATH", ""),
		Draft: DraftConfig{
			Providers:              lookup.List("HZZ_DRAFT_PROVIDERS", []string{"llm-openai"}),
			PreferredProvider:      lookup.String("HZZ_DRAFT_PREFERRED_PROVIDER", ""),
			MaxAttemptsPerProvider: lookup.Int("HZZ_DRAFT_MAX_ATTEMPTS", 2),
			MaxBackoff:             lookup.DurationMS("HZZ_DRAFT_MAX_BACKOFF_MS", 2*time.Second),
			WebhookEnabled:         lookup.Bool("HZZ_N8N_GENERATE", false),
			WebhookURL:             lookup.String("HZZ_N8N_WEBHOOK_URL", ""),
		},
		Archive: ArchiveConfig{
			Bucket:   lookup.String("HZZ_ARCHIVE_BUCKET", ""),
			Prefix:   strings.Trim(lookup.String("HZZ_ARCHIVE_PREFIX", "runs"), "/"),
			Region:   lookup.String("HZZ_ARCHIVE_REGION", ""),
			Endpoint: lookup.String("HZZ_ARCHIVE_ENDPOINT", ""),
			Dir:      lookup.String("HZZ_ARCHIVE_DIR", ""),
			Level:    lookup.String("HZZ_ARCHIVE_LEVEL", "redacted"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces cross-field constraints.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be >0")
	}
	if c.Draft.MaxAttemptsPerProvider < 1 {
		return fmt.Errorf("draft max attempts must be >=1")
	}
	if len(c.Draft.Providers) == 0 && !c.Draft.WebhookEnabled {
		return fmt.Errorf("at least one draft provider is required")
	}
	if c.Draft.WebhookEnabled && c.Draft.WebhookURL == "" {
		return fmt.Errorf("HZZ_N8N_WEBHOOK_URL is required when HZZ_N8N_GENERATE is set")
	}
	if c.Draft.PreferredProvider != "" && !contains(c.Draft.Providers, c.Draft.PreferredProvider) {
		return fmt.Errorf("preferred provider %q is not in HZZ_DRAFT_PROVIDERS", c.Draft.PreferredProvider)
	}
	return nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
