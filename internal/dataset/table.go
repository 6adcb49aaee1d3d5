// Package dataset implements the column-typed tables that listings and
// geometry rows are combined into before output.
package dataset

import (
	"github.com/rotisserie/eris"
)

// Kind is a column's value type.
type Kind int

// Column kinds. Values are nil, string, or float64.
const (
	KindString Kind = iota
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Column is a named, typed column.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Table is an ordered set of rows sharing one schema. Each row has exactly
// len(Columns) cells.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// ErrSchemaMismatch is returned when two tables carry the same column name
// with different kinds.
var ErrSchemaMismatch = eris.New("dataset: schema mismatch")

// NewTable returns an empty table with the given columns.
func NewTable(cols ...Column) *Table {
	return &Table{Columns: cols}
}

// Len returns the row count.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Append adds one row. The row must match the column count.
func (t *Table) Append(row ...any) error {
	if len(row) != len(t.Columns) {
		return eris.Errorf("dataset: row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Float returns the float64 cell at (row, col) and whether it is set.
func (t *Table) Float(row, col int) (float64, bool) {
	v, ok := t.Rows[row][col].(float64)
	return v, ok
}

// Union stacks tables vertically. The result columns are the union of all
// input columns in first-appearance order; a column missing from a table is
// null-filled for that table's rows. Rows keep participant order. A column
// that appears with two different kinds fails with ErrSchemaMismatch.
func Union(tables ...*Table) (*Table, error) {
	out := &Table{}
	pos := make(map[string]int)

	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			i, seen := pos[c.Name]
			if !seen {
				pos[c.Name] = len(out.Columns)
				out.Columns = append(out.Columns, c)
				continue
			}
			if out.Columns[i].Kind != c.Kind {
				return nil, eris.Wrapf(ErrSchemaMismatch, "column %q is %s and %s",
					c.Name, out.Columns[i].Kind, c.Kind)
			}
		}
	}

	total := 0
	for _, t := range tables {
		total += t.Len()
	}
	out.Rows = make([][]any, 0, total)

	for _, t := range tables {
		if t == nil {
			continue
		}
		mapping := make([]int, len(t.Columns))
		for i, c := range t.Columns {
			mapping[i] = pos[c.Name]
		}
		for _, r := range t.Rows {
			row := make([]any, len(out.Columns))
			for i, v := range r {
				row[mapping[i]] = v
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}
