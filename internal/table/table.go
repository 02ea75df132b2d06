// Package table implements the delimited-table importer that turns
// user-supplied text/CSV files into a normalized in-memory table for
// plotting and sonification.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Table is the normalized result of a successful import: ordered column
// labels plus a rectangular grid of cell values. Row order matches file
// order. A Table is built once by the importer and never mutated after.
type Table struct {
	// Labels holds the column names, sanitized to contain no spaces.
	Labels []string `json:"labels"`

	// Rows holds the data grid. Every row has exactly len(Labels) cells.
	Rows [][]string `json:"rows"`
}

// Columns returns the number of columns.
func (t *Table) Columns() int {
	return len(t.Labels)
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the column with the given label.
// Matching is case-insensitive. Returns -1 if no such column exists.
func (t *Table) ColumnIndex(label string) int {
	for i, l := range t.Labels {
		if strings.EqualFold(l, label) {
			return i
		}
	}
	return -1
}

// Float64Column parses column col as a numeric series. Empty cells become
// NaN so downstream transforms can skip them. A cell that is neither empty
// nor numeric is an error naming the offending row.
func (t *Table) Float64Column(col int) ([]float64, error) {
	if col < 0 || col >= len(t.Labels) {
		return nil, fmt.Errorf("column %d out of range (table has %d columns)", col, len(t.Labels))
	}

	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: not a number: %q", t.Labels[col], i, row[col])
		}
		out[i] = v
	}
	return out, nil
}

// WriteDelimited serializes the table using the given field separator, the
// label row first. Re-importing the output reproduces the same labels and
// values: labels are already sanitized, so a second import pass leaves
// them unchanged.
func (t *Table) WriteDelimited(w io.Writer, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma

	if err := cw.Write(t.Labels); err != nil {
		return fmt.Errorf("write labels: %w", err)
	}
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
