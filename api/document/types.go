package document

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Shape is the closed set of value shapes a sanitized field can hold.
type Shape string

const (
	ShapeText Shape = "text"
	ShapeList Shape = "list"
	ShapeRows Shape = "rows"
)

// Validate enforces supported shapes.
func (s Shape) Validate() error {
	switch s {
	case ShapeText, ShapeList, ShapeRows:
		return nil
	default:
		return fmt.Errorf("unsupported value shape: %q", s)
	}
}

// Row is one table line item keyed by column name. Canonical cells are
// string (text columns) or float64 (number columns).
type Row map[string]any

// Validate enforces canonical cell types.
func (r Row) Validate() error {
	for column, cell := range r {
		switch cell.(type) {
		case string, float64:
		default:
			return fmt.Errorf("row column %q holds non-canonical cell %T", column, cell)
		}
	}
	return nil
}

// Columns returns the row's column names in sorted order.
func (r Row) Columns() []string {
	out := make([]string, 0, len(r))
	for column := range r {
		out = append(out, column)
	}
	sort.Strings(out)
	return out
}

// Number returns a numeric cell, or 0 when the column is missing or textual.
func (r Row) Number(column string) float64 {
	if v, ok := r[column].(float64); ok {
		return v
	}
	return 0
}

// Text returns a text cell, or "" when the column is missing or numeric.
func (r Row) Text(column string) string {
	if v, ok := r[column].(string); ok {
		return v
	}
	return ""
}

// Value is the sanitized value of one field: exactly one of text, list or rows.
type Value struct {
	Shape Shape
	Text  string
	List  []string
	Rows  []Row
}

// Text builds a text value.
func Text(s string) Value {
	return Value{Shape: ShapeText, Text: s}
}

// List builds a list value; a nil slice is normalized to empty.
func List(items []string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{Shape: ShapeList, List: items}
}

// Rows builds a rows value; a nil slice is normalized to empty.
func Rows(rows []Row) Value {
	if rows == nil {
		rows = []Row{}
	}
	return Value{Shape: ShapeRows, Rows: rows}
}

// IsEmpty reports whether the value carries no data.
func (v Value) IsEmpty() bool {
	switch v.Shape {
	case ShapeList:
		return len(v.List) == 0
	case ShapeRows:
		return len(v.Rows) == 0
	default:
		return v.Text == ""
	}
}

// Validate enforces that the populated payload matches the declared shape.
func (v Value) Validate() error {
	if err := v.Shape.Validate(); err != nil {
		return err
	}
	switch v.Shape {
	case ShapeText:
		if v.List != nil || v.Rows != nil {
			return fmt.Errorf("text value carries list or rows payload")
		}
	case ShapeList:
		if v.Text != "" || v.Rows != nil {
			return fmt.Errorf("list value carries text or rows payload")
		}
	case ShapeRows:
		if v.Text != "" || v.List != nil {
			return fmt.Errorf("rows value carries text or list payload")
		}
		for i, row := range v.Rows {
			if err := row.Validate(); err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
		}
	}
	return nil
}

// Interface returns the plain JSON-compatible form (string, []any of strings,
// or []any of map[string]any).
func (v Value) Interface() any {
	switch v.Shape {
	case ShapeList:
		out := make([]any, 0, len(v.List))
		for _, item := range v.List {
			out = append(out, item)
		}
		return out
	case ShapeRows:
		out := make([]any, 0, len(v.Rows))
		for _, row := range v.Rows {
			cells := make(map[string]any, len(row))
			for column, cell := range row {
				cells[column] = cell
			}
			out = append(out, cells)
		}
		return out
	default:
		return v.Text
	}
}

// MarshalJSON emits exactly string | string[] | object[].
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Shape {
	case ShapeList:
		return json.Marshal(List(v.List).List)
	case ShapeRows:
		return json.Marshal(Rows(v.Rows).Rows)
	default:
		return json.Marshal(v.Text)
	}
}

// Section maps every declared field key to its sanitized value.
type Section map[string]Value

// Document maps every generated section key to its sanitized section.
type Document map[string]Section

// Interface returns the plain JSON-compatible form of the document.
func (d Document) Interface() map[string]any {
	out := make(map[string]any, len(d))
	for sectionKey, section := range d {
		fields := make(map[string]any, len(section))
		for fieldKey, value := range section {
			fields[fieldKey] = value.Interface()
		}
		out[sectionKey] = fields
	}
	return out
}

// SectionKeys returns the document's section keys in sorted order.
func (d Document) SectionKeys() []string {
	out := make([]string, 0, len(d))
	for key := range d {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Validate checks every value shape in the document.
func (d Document) Validate() error {
	for _, sectionKey := range d.SectionKeys() {
		for fieldKey, value := range d[sectionKey] {
			if err := value.Validate(); err != nil {
				return fmt.Errorf("section %s field %s: %w", sectionKey, fieldKey, err)
			}
		}
	}
	return nil
}
