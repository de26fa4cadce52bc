package summary

import (
	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

// ColumnOrder returns the columns a renderer should show for rows: declared
// columns holding data in at least one row, in declared order, followed by any
// undeclared columns with data. Empty tables have no columns.
func ColumnOrder(kind schema.RowKind, rows []document.Row) []string {
	if len(rows) == 0 {
		return []string{}
	}

	withData := make(map[string]bool)
	var extras []string
	for _, row := range rows {
		for _, column := range row.Columns() {
			if !hasData(row[column]) || withData[column] {
				continue
			}
			withData[column] = true
			if _, declared := kind.Column(column); !declared {
				extras = append(extras, column)
			}
		}
	}

	out := make([]string, 0, len(withData))
	for _, col := range kind.Columns() {
		if withData[col.Key] {
			out = append(out, col.Key)
		}
	}
	return append(out, extras...)
}

func hasData(cell any) bool {
	switch v := cell.(type) {
	case nil:
		return false
	case string:
		return v != ""
	default:
		return true
	}
}
