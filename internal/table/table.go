// Package table defines the uniform {headers, rows} result shape every
// analysis produces, and the codec mapping cell values to their wire
// representation.
package table

import (
	"encoding/json"
	"fmt"
	"regexp"

	"saistats/internal/faults"
)

// Cell is one result cell: string, float64, bool, or nil for missing.
type Cell = any

// Table is a tabular analysis result. Every row has exactly
// len(Headers) cells; Append and Validate enforce that at the boundary.
type Table struct {
	Headers []string
	Rows    [][]Cell
}

// New returns an empty table with the given headers.
func New(headers ...string) *Table {
	return &Table{Headers: headers}
}

// Append adds one row, rejecting it if the cell count does not match the
// header count.
func (t *Table) Append(cells ...Cell) error {
	if len(cells) != len(t.Headers) {
		return faults.Contractf(faults.CodeRowLengthMismatch,
			"row has %d cells, want %d", len(cells), len(t.Headers))
	}
	t.Rows = append(t.Rows, cells)
	return nil
}

// MustAppend is Append for rows whose width is fixed at the call site.
func (t *Table) MustAppend(cells ...Cell) {
	if err := t.Append(cells...); err != nil {
		panic(err)
	}
}

// Validate checks the row-length invariant over the whole table.
func (t *Table) Validate() error {
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return faults.Contractf(faults.CodeRowLengthMismatch,
				"row %d has %d cells, want %d", i, len(row), len(t.Headers))
		}
	}
	return nil
}

var sectionPattern = regexp.MustCompile(`^== .+ ==$`)

// SectionRow builds a labeled separator row of the given width. The
// first cell carries the marker, the rest are blank.
func SectionRow(label string, width int) []Cell {
	row := make([]Cell, width)
	row[0] = fmt.Sprintf("== %s ==", label)
	for i := 1; i < width; i++ {
		row[i] = ""
	}
	return row
}

// IsSectionMarker reports whether a cell is a section separator label.
func IsSectionMarker(c Cell) bool {
	s, ok := c.(string)
	return ok && sectionPattern.MatchString(s)
}

type wireTable struct {
	Headers []string `json:"headers"`
	Rows    [][]any  `json:"rows"`
}

// MarshalJSON writes the {"headers","rows"} wire shape, passing every
// cell through the value codec.
func (t *Table) MarshalJSON() ([]byte, error) {
	w := wireTable{Headers: t.Headers, Rows: make([][]any, len(t.Rows))}
	if w.Headers == nil {
		w.Headers = []string{}
	}
	for i, row := range t.Rows {
		cells := make([]any, len(row))
		for j, c := range row {
			cells[j] = EncodeCell(c)
		}
		w.Rows[i] = cells
	}
	if w.Rows == nil {
		w.Rows = [][]any{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the wire shape and decodes each cell. The
// row-length invariant is checked separately via Validate, so a shape
// violation is reported as such rather than as a parse error.
func (t *Table) UnmarshalJSON(data []byte) error {
	var w wireTable
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.Headers = w.Headers
	t.Rows = make([][]Cell, len(w.Rows))
	for i, row := range w.Rows {
		cells := make([]Cell, len(row))
		for j, v := range row {
			cells[j] = DecodeCell(v)
		}
		t.Rows[i] = cells
	}
	return nil
}
