package sanitize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberToken = regexp.MustCompile(`[-+]?\d[\d.,]*`)
	// unitSuffix is the set of decorations tolerated around a plain amount.
	unitSuffix = strings.NewReplacer("€", "", "%", "", "EUR", "", "eur", "", "Eur", "", "kn", "", "HRK", "")
)

// parseNumber reads the first number in s, accepting Croatian and English
// grouping ("24.000,50", "24,000.50", "24 000 €", "15%"). ok is false when s
// holds no digits.
func parseNumber(s string) (float64, bool) {
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\u202f' || r == '\'' {
			return -1
		}
		return r
	}, s)
	token := numberToken.FindString(s)
	if token == "" {
		return 0, false
	}
	token = strings.TrimRight(token, ".,")
	v, err := strconv.ParseFloat(normalizeSeparators(token), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// isAmount reports whether s is nothing but a number with optional currency or
// percent decoration.
func isAmount(s string) bool {
	bare := strings.TrimSpace(unitSuffix.Replace(s))
	if bare == "" {
		return false
	}
	bare = strings.ReplaceAll(bare, " ", "")
	return numberToken.FindString(bare) == bare
}

func normalizeSeparators(token string) string {
	dot := strings.LastIndex(token, ".")
	comma := strings.LastIndex(token, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			token = strings.ReplaceAll(token, ".", "")
			return strings.Replace(token, ",", ".", 1)
		}
		return strings.ReplaceAll(token, ",", "")
	case comma >= 0:
		if strings.Count(token, ",") == 1 && len(token)-comma-1 != 3 {
			return strings.Replace(token, ",", ".", 1)
		}
		return strings.ReplaceAll(token, ",", "")
	case dot >= 0:
		if strings.Count(token, ".") > 1 || len(token)-dot-1 == 3 {
			return strings.ReplaceAll(token, ".", "")
		}
		return token
	default:
		return token
	}
}

// numberCell coerces a raw cell to a number. Unparsable values are 0; ok is
// false when raw holds a value outside the float64 range.
func numberCell(raw any) (float64, bool) {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil && !math.IsInf(f, 0) {
			f, _ = parseNumber(v.String())
		}
		n = f
	case string:
		n, _ = parseNumber(v)
	}
	return finite(n)
}

func finite(n float64) (float64, bool) {
	if math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// textCell coerces a raw cell to trimmed text. Non-scalars are "".
func textCell(raw any) string {
	s, ok := scalarString(raw)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// ParseAmount parses a user-entered amount such as "15.000,00 €".
func ParseAmount(s string) (float64, bool) {
	return parseNumber(s)
}
