package drafting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON returns the first JSON object in model output. Markdown code
// fences and any prose before the object are ignored; text after the object
// is discarded.
func ExtractJSON(text string) (json.RawMessage, error) {
	body := stripFence(strings.TrimSpace(text))
	for offset := 0; offset < len(body); {
		i := strings.IndexByte(body[offset:], '{')
		if i < 0 {
			break
		}
		start := offset + i
		dec := json.NewDecoder(strings.NewReader(body[start:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			return bytes.TrimSpace(raw), nil
		}
		offset = start + 1
	}
	return nil, fmt.Errorf("%w: %s", ErrDraftRejected, preview(text))
}

func stripFence(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the info string, e.g. ```json.
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "empty output"
	}
	const limit = 80
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}
