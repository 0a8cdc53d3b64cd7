// Package table provides the in-memory tabular model shared by every
// pipeline stage: an ordered column schema plus ordered rows of string
// cells. Tables are treated as immutable inputs; operations return new
// tables rather than mutating their receiver.
package table

import (
	"fmt"
	"strings"
)

// Table is an ordered sequence of rows sharing a fixed column schema.
// Cells are strings; empty string represents a missing value.
type Table struct {
	Name    string   // source label for diagnostics (file name or role)
	Columns []string
	Rows    [][]string
}

// New creates an empty table with the given schema.
func New(name string, columns []string) *Table {
	return &Table{Name: name, Columns: columns}
}

// ColumnIndex returns the position of the named column, or -1 if absent.
// Column lookup is case-insensitive to tolerate export variations.
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// ColumnValues returns every cell of the named column in row order.
// Rows shorter than the column position contribute an empty string.
func (t *Table) ColumnValues(name string) []string {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			values = append(values, row[idx])
		} else {
			values = append(values, "")
		}
	}
	return values
}

// DistinctValues returns the non-empty distinct values of the named
// column, first-occurrence order preserved.
func (t *Table) DistinctValues(name string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range t.ColumnValues(name) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Subset returns a new table containing the rows for which keep returns
// true, in original order, sharing the receiver's schema.
func (t *Table) Subset(keep func(row []string) bool) *Table {
	out := New(t.Name, t.Columns)
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// RowsWhere returns the rows whose cell in the named column equals value.
func (t *Table) RowsWhere(column, value string) *Table {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return New(t.Name, t.Columns)
	}
	return t.Subset(func(row []string) bool {
		return idx < len(row) && row[idx] == value
	})
}

// SchemaError reports a column-schema disagreement between tables that
// are expected to share one.
type SchemaError struct {
	Name     string // offending table
	Expected []string
	Got      []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %q: column schema mismatch: expected %v, got %v",
		e.Name, e.Expected, e.Got)
}

// Concat unions same-role tables into one. All tables must carry an
// identical column schema; the first table defines it. Row order follows
// input order. Concat of zero tables returns nil.
func Concat(name string, tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	out := New(name, tables[0].Columns)
	for _, t := range tables {
		if !sameSchema(out.Columns, t.Columns) {
			return nil, &SchemaError{Name: t.Name, Expected: out.Columns, Got: t.Columns}
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out, nil
}

// Dedupe returns a copy with exact-duplicate rows removed, keeping the
// first occurrence. Equality is row-wise across all columns.
func (t *Table) Dedupe() *Table {
	out := New(t.Name, t.Columns)
	seen := make(map[string]bool, len(t.Rows))
	for _, row := range t.Rows {
		key := strings.Join(row, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Rows = append(out.Rows, row)
	}
	return out
}

func sameSchema(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
