package domain

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Table is an in-memory spreadsheet: a header row and string cells. Every row
// has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable builds a Table, padding or trimming rows to the header width.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{Columns: slices.Clone(columns), Rows: make([][]string, len(rows))}
	for i, row := range rows {
		r := make([]string, len(columns))
		copy(r, row)
		t.Rows[i] = r
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	return slices.Index(t.Columns, name)
}

// Column returns a copy of the named column's values.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	return NewTable(t.Columns, t.Rows)
}

// InsertColumn inserts a new column at position at (0-indexed). It fails if
// the position is out of range, the name already exists, or the number of
// values differs from the number of rows.
func (t *Table) InsertColumn(at int, name string, values []string) error {
	if at < 0 || at > len(t.Columns) {
		return fmt.Errorf("insert column %q: index %d out of range [0, %d]", name, at, len(t.Columns))
	}
	if t.ColumnIndex(name) >= 0 {
		return fmt.Errorf("insert column %q: column already exists", name)
	}
	if len(values) != len(t.Rows) {
		return fmt.Errorf("insert column %q: %d values for %d rows", name, len(values), len(t.Rows))
	}
	t.Columns = slices.Insert(t.Columns, at, name)
	for i := range t.Rows {
		t.Rows[i] = slices.Insert(t.Rows[i], at, values[i])
	}
	return nil
}

// SortedBy returns a copy of the table stably sorted by the named column
// using lexicographic order of the trimmed cell values.
func (t *Table) SortedBy(name string) (*Table, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("sort: column %q not found", name)
	}
	out := t.Clone()
	sort.SliceStable(out.Rows, func(i, j int) bool {
		return strings.TrimSpace(out.Rows[i][idx]) < strings.TrimSpace(out.Rows[j][idx])
	})
	return out, nil
}
