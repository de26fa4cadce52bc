package sanitize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

var bulletPrefix = regexp.MustCompile(`^[-*•]\s+`)

type rowStatus int

const (
	rowKept rowStatus = iota
	rowEmpty
	rowUnclassified
	// rowOutOfRange is kept with its non-finite amounts set to 0.
	rowOutOfRange
)

// tableNormalizer converts raw table values for one row kind.
type tableNormalizer struct {
	kind    schema.RowKind
	columns []schema.Column
	spec    rowSpec
}

func newTableNormalizer(kind schema.RowKind) tableNormalizer {
	return tableNormalizer{kind: kind, columns: kind.Columns(), spec: rowSpecs[kind]}
}

// normalizeTable converts a raw table value into canonical rows, preserving
// order. Rows that cannot be classified are dropped and reported once.
func normalizeTable(kind schema.RowKind, raw any) ([]document.Row, *fieldIssue) {
	return newTableNormalizer(kind).normalize(raw)
}

func (n tableNormalizer) normalize(raw any) ([]document.Row, *fieldIssue) {
	var items []any
	switch v := raw.(type) {
	case nil:
		return []document.Row{}, nil
	case []any:
		items = v
	case []document.Row:
		items = make([]any, len(v))
		for i, row := range v {
			items[i] = map[string]any(row)
		}
	case map[string]any, document.Row:
		items = []any{v}
	case string:
		for _, line := range strings.Split(v, "\n") {
			items = append(items, line)
		}
	default:
		return []document.Row{}, &fieldIssue{class: document.IssueShapeMismatch, message: "expected a table"}
	}

	rows := make([]document.Row, 0, len(items))
	unclassified, outOfRange := 0, 0
	for _, item := range items {
		row, status := n.normalizeRow(item)
		switch status {
		case rowKept:
			rows = append(rows, row)
		case rowOutOfRange:
			rows = append(rows, row)
			outOfRange++
		case rowUnclassified:
			unclassified++
		}
	}

	var problems []string
	if unclassified > 0 {
		problems = append(problems, fmt.Sprintf("%d rows could not be classified", unclassified))
	}
	if outOfRange > 0 {
		problems = append(problems, fmt.Sprintf("%d rows had amounts out of range", outOfRange))
	}
	if len(problems) > 0 {
		return rows, &fieldIssue{class: document.IssueShapeMismatch, message: strings.Join(problems, "; ")}
	}
	return rows, nil
}

func (n tableNormalizer) normalizeRow(raw any) (document.Row, rowStatus) {
	switch v := raw.(type) {
	case nil:
		return nil, rowEmpty
	case string:
		return n.finish(n.parseLine(v))
	case map[string]any:
		if len(v) == 0 {
			return nil, rowEmpty
		}
		values, present, ok := n.mapObject(v)
		if !ok {
			return nil, rowUnclassified
		}
		return n.finish(values, present)
	case document.Row:
		return n.normalizeRow(map[string]any(v))
	default:
		return nil, rowUnclassified
	}
}

// parseLine maps one prose line through the first matching layout.
func (n tableNormalizer) parseLine(line string) (map[string]any, map[string]bool) {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	line = bulletPrefix.ReplaceAllString(line, "")
	if line == "" {
		return nil, nil
	}
	parts := strings.Split(line, segmentSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	for _, l := range n.spec.layouts {
		if len(parts) < l.minSegments || (l.match != nil && !l.match(parts)) {
			continue
		}
		scale := 1.0
		if l.scale != nil {
			scale = l.scale(parts)
		}
		values := make(map[string]any, len(l.columns))
		present := make(map[string]bool, len(l.columns))
		for i, key := range l.columns {
			if key == "" || i >= len(parts) {
				continue
			}
			segment := parts[i]
			if l.joinRest && i == len(l.columns)-1 {
				segment = strings.Join(parts[i:], segmentSeparator)
			}
			if col, ok := n.kind.Column(key); ok && col.Type == schema.ColumnNumber {
				amount, _ := parseNumber(segment)
				values[key] = amount * scale
			} else {
				values[key] = segment
			}
			present[key] = true
		}
		return values, present
	}
	return nil, nil
}

// mapObject collects canonical values from an object row: declared keys first,
// then case-folded and aliased keys, then the join rule. ok is false when no key
// is recognized.
func (n tableNormalizer) mapObject(obj map[string]any) (map[string]any, map[string]bool, bool) {
	values := make(map[string]any, len(n.columns))
	present := make(map[string]bool, len(n.columns))
	for _, col := range n.columns {
		if v, ok := obj[col.Key]; ok {
			values[col.Key] = v
			present[col.Key] = true
		}
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, declared := n.kind.Column(key); declared {
			continue
		}
		target := n.resolveKey(key)
		if target == "" || present[target] {
			continue
		}
		values[target] = obj[key]
		present[target] = true
	}

	if join := n.spec.join; join != nil && textCell(values[join.target]) == "" {
		parts := make([]string, 0, 2)
		for _, group := range [][]string{join.first, join.second} {
			if s := firstText(obj, group); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			values[join.target] = strings.Join(parts, segmentSeparator)
			present[join.target] = true
		}
	}
	return values, present, len(present) > 0
}

func (n tableNormalizer) resolveKey(key string) string {
	folded := foldKey(key)
	for _, col := range n.columns {
		if foldKey(col.Key) == folded {
			return col.Key
		}
	}
	return n.spec.aliases[folded]
}

func firstText(obj map[string]any, keys []string) string {
	for _, key := range keys {
		if s := textCell(obj[key]); s != "" {
			return s
		}
	}
	return ""
}

// finish builds the canonical row: every declared column, typed, with derived
// columns filled. All-empty rows are reported as empty. Amounts that are not
// finite, given or derived, become 0 and mark the row out of range.
func (n tableNormalizer) finish(values map[string]any, present map[string]bool) (document.Row, rowStatus) {
	if len(present) == 0 {
		return nil, rowEmpty
	}
	row := make(document.Row, len(n.columns))
	outOfRange := false
	for _, col := range n.columns {
		raw, ok := values[col.Key]
		switch {
		case !ok:
			row[col.Key] = col.Zero()
		case col.Type == schema.ColumnNumber:
			amount, inRange := numberCell(raw)
			row[col.Key] = amount
			outOfRange = outOfRange || !inRange
		default:
			row[col.Key] = textCell(raw)
		}
	}
	if n.spec.derive != nil {
		n.spec.derive(row, present)
	}
	for _, col := range n.columns {
		if col.Type != schema.ColumnNumber {
			continue
		}
		if _, inRange := finite(row.Number(col.Key)); !inRange {
			row[col.Key] = 0.0
			outOfRange = true
		}
	}
	if outOfRange {
		return row, rowOutOfRange
	}
	if rowIsEmpty(row) {
		return nil, rowEmpty
	}
	return row, rowKept
}

func rowIsEmpty(row document.Row) bool {
	for _, cell := range row {
		switch v := cell.(type) {
		case string:
			if v != "" {
				return false
			}
		case float64:
			if v != 0 {
				return false
			}
		}
	}
	return true
}
