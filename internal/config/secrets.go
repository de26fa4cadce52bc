package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envSecretRefPrefix = "env://"
	// SecretRefSuffix names the companion variable holding a secret ref, so
	// HZZ_LLM_OPENAI_API_KEY may be supplied as HZZ_LLM_OPENAI_API_KEY_REF.
	SecretRefSuffix = "_REF"
)

// Lookup reads one environment variable. os.LookupEnv satisfies it.
type Lookup func(string) (string, bool)

// ResolveSecretRef resolves a secret reference using process environment lookup.
// Supported reference forms are "env://VARIABLE_NAME" and "VARIABLE_NAME".
func ResolveSecretRef(ref string) (string, error) {
	return Lookup(os.LookupEnv).ResolveSecretRef(ref)
}

// EnvString resolves name from the process environment, honoring NAME_REF.
func EnvString(name string, fallback string) string {
	return Lookup(os.LookupEnv).String(name, fallback)
}

// ResolveSecretRef resolves ref through l.
func (l Lookup) ResolveSecretRef(ref string) (string, error) {
	name, err := parseSecretRefName(ref)
	if err != nil {
		return "", err
	}
	if l == nil {
		return "", fmt.Errorf("secret lookup function is required")
	}
	value, ok := l(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("secret_ref %q resolved empty value", name)
	}
	return value, nil
}

// String returns the value of name. When NAME_REF is set and resolves, the
// referenced value wins; an unresolvable ref falls back to the literal.
func (l Lookup) String(name string, fallback string) string {
	literal := strings.TrimSpace(l.raw(name))
	if literal == "" {
		literal = fallback
	}
	ref := strings.TrimSpace(l.raw(name + SecretRefSuffix))
	if ref == "" {
		return literal
	}
	value, err := l.ResolveSecretRef(ref)
	if err != nil {
		return literal
	}
	return value
}

// Int parses name as an integer, returning fallback when unset or invalid.
func (l Lookup) Int(name string, fallback int) int {
	raw := strings.TrimSpace(l.raw(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// Bool parses name with strconv.ParseBool, returning fallback when unset or invalid.
func (l Lookup) Bool(name string, fallback bool) bool {
	raw := strings.TrimSpace(l.raw(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

// DurationMS reads name as milliseconds.
func (l Lookup) DurationMS(name string, fallback time.Duration) time.Duration {
	ms := l.Int(name, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

// List splits a comma-separated value, dropping empty entries.
func (l Lookup) List(name string, fallback []string) []string {
	raw := strings.TrimSpace(l.raw(name))
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (l Lookup) raw(name string) string {
	if l == nil {
		return ""
	}
	value, _ := l(name)
	return value
}

// RedactSecret returns a deterministic redacted marker for non-empty secret material.
func RedactSecret(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return "***redacted***"
}

func parseSecretRefName(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", fmt.Errorf("secret_ref is required")
	}
	if strings.HasPrefix(trimmed, envSecretRefPrefix) {
		name := strings.TrimSpace(strings.TrimPrefix(trimmed, envSecretRefPrefix))
		if name == "" {
			return "", fmt.Errorf("secret_ref %q is missing env var name", ref)
		}
		if strings.Contains(name, "/") {
			return "", fmt.Errorf("secret_ref %q contains unsupported path separator", ref)
		}
		return name, nil
	}
	if strings.Contains(trimmed, "://") {
		return "", fmt.Errorf("secret_ref %q uses unsupported scheme", ref)
	}
	if strings.Contains(trimmed, "/") {
		return "", fmt.Errorf("secret_ref %q contains unsupported path separator", ref)
	}
	return trimmed, nil
}
