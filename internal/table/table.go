// Package table holds the in-memory tabular representation shared by every
// stage, plus readers for CSV/TSV/XLSX and a CSV writer.
package table

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrColumnNotFound is returned when a named column is absent from the header.
var ErrColumnNotFound = errors.New("column not found")

// Table is a header plus string rows. Every row has exactly len(Header) cells;
// absent values are empty strings.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// New builds a table and normalizes row widths to the header.
func New(name string, header []string, rows [][]string) *Table {
	t := &Table{Name: name, Header: append([]string(nil), header...)}
	t.Rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.Header) }

// Index returns the position of the first column whose trimmed name equals
// name, or -1. Header names may repeat (placeholder columns); lookups resolve
// to the leftmost one.
func (t *Table) Index(name string) int {
	want := strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.TrimSpace(h) == want {
			return i
		}
	}
	return -1
}

// MustIndex is Index with an error wrapping ErrColumnNotFound.
func (t *Table) MustIndex(name string) (int, error) {
	idx := t.Index(name)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %q in %s", ErrColumnNotFound, name, t.label())
	}
	return idx, nil
}

// Column returns a copy of the named column's values.
func (t *Table) Column(name string) ([]string, error) {
	idx, err := t.MustIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, nil
}

// Append adds a row, padding or truncating it to the header width.
func (t *Table) Append(row []string) {
	n := len(t.Header)
	rec := make([]string, n)
	copy(rec, row)
	t.Rows = append(t.Rows, rec)
}

// Where returns a new table with the rows for which keep returns true.
// The header is always preserved.
func (t *Table) Where(keep func(row []string) bool) *Table {
	out := &Table{Name: t.Name, Header: append([]string(nil), t.Header...), Rows: [][]string{}}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Head returns up to n rows.
func (t *Table) Head(n int) [][]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n < 0 {
		n = 0
	}
	return t.Rows[:n]
}

func (t *Table) label() string {
	if t.Name == "" {
		return "table"
	}
	return filepath.Base(t.Name)
}
