// Package table is a minimal named-column string table. It is the shared
// shape for tool input, tool output and resume state: all three are the same
// CSV artifact.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ColumnNotFoundError reports a required column missing from a table header.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

// Table holds an ordered header and rows of string cells. Every row has
// exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// New returns an empty table with the given header.
func New(header ...string) Table {
	return Table{Header: append([]string(nil), header...)}
}

// Col resolves a column name to its index. Matching is case-insensitive and
// ignores surrounding whitespace.
func (t Table) Col(name string) (int, error) {
	for i, col := range t.Header {
		if strings.EqualFold(strings.TrimSpace(col), strings.TrimSpace(name)) {
			return i, nil
		}
	}
	return -1, &ColumnNotFoundError{Column: name}
}

// Append adds a row, padding or rejecting to keep the row width invariant.
func (t *Table) Append(row []string) error {
	if len(row) > len(t.Header) {
		return fmt.Errorf("row has %d columns, want at most %d", len(row), len(t.Header))
	}
	for len(row) < len(t.Header) {
		row = append(row, "")
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Filter returns the rows for which keep reports true, preserving order and
// all columns. The result is never nil-headed: an all-false keep yields an
// explicitly empty table with the same header.
func (t Table) Filter(keep func(row []string) bool) Table {
	out := New(t.Header...)
	out.Rows = make([][]string, 0)
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// WithColumn returns a copy of the table with the named column set to the
// given values. An existing column is overwritten in place; a new column is
// appended to the header. len(values) must equal the row count.
func (t Table) WithColumn(name string, values []string) (Table, error) {
	if len(values) != len(t.Rows) {
		return Table{}, fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.Rows))
	}
	idx, err := t.Col(name)
	out := New(t.Header...)
	if err != nil {
		idx = len(out.Header)
		out.Header = append(out.Header, name)
	}
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		nr := make([]string, len(out.Header))
		copy(nr, row)
		nr[idx] = values[i]
		out.Rows[i] = nr
	}
	return out, nil
}

// Column returns the values of the named column in row order.
func (t Table) Column(name string) ([]string, error) {
	idx, err := t.Col(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Read parses a CSV table with a header row. Short rows are padded with
// empty cells; rows wider than the header are an error.
func Read(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return Table{}, fmt.Errorf("read header: %w", err)
	}
	t := New(header...)
	t.Rows = make([][]string, 0)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row: %w", err)
		}
		if err := t.Append(rec); err != nil {
			return Table{}, err
		}
	}
	return t, nil
}

// Write emits the table as CSV, header first.
func Write(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
