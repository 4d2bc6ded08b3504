// Package dataset converts column selections into the ordered numeric
// payload the computation engine consumes, and restores column order on
// the far side of the process boundary.
package dataset

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"saistats/internal/faults"
)

// Dataset is an ordered mapping from column name to numeric values with
// nulls for non-parsable cells. Order is carried explicitly: map
// iteration order never decides anything on either side of the wire.
type Dataset struct {
	data  map[string][]*float64
	order []string
}

// Column is one restored column in its final position.
type Column struct {
	Name   string
	Values []*float64
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{data: map[string][]*float64{}}
}

// Set stores a column and appends it to the order hint if unseen.
func (d *Dataset) Set(name string, values []*float64) {
	if _, seen := d.data[name]; !seen {
		d.order = append(d.order, name)
	}
	d.data[name] = values
}

// Order returns the column-order hint.
func (d *Dataset) Order() []string {
	return append([]string(nil), d.order...)
}

// Column returns the raw values for one column.
func (d *Dataset) Column(name string) ([]*float64, bool) {
	v, ok := d.data[name]
	return v, ok
}

// Rows returns the longest column length.
func (d *Dataset) Rows() int {
	n := 0
	for _, col := range d.data {
		if len(col) > n {
			n = len(col)
		}
	}
	return n
}

// Columns restores the intended column order: hinted names that exist
// come first in hint order, data columns missing from the hint follow in
// data order, and hinted names with no backing data become all-null
// columns at the end rather than being dropped. Ragged columns are
// padded with nulls to the longest length.
func (d *Dataset) Columns() []Column {
	rows := d.Rows()
	hinted := make(map[string]bool, len(d.order))
	var present, absent []string
	for _, name := range d.order {
		if hinted[name] {
			continue
		}
		hinted[name] = true
		if _, ok := d.data[name]; ok {
			present = append(present, name)
		} else {
			absent = append(absent, name)
		}
	}
	// Unhinted columns only arrive via wire payloads, where the JSON
	// object carries no order; sort keeps restoration deterministic.
	var extra []string
	for name := range d.data {
		if !hinted[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	names := append(append(present, extra...), absent...)

	out := make([]Column, 0, len(names))
	for _, name := range names {
		col := d.data[name]
		padded := make([]*float64, rows)
		copy(padded, col)
		out = append(out, Column{Name: name, Values: padded})
	}
	return out
}

// Provider supplies raw column values by name.
type Provider interface {
	ColumnValues(name string) ([]any, error)
}

// Build fetches each selected column from the provider and coerces its
// raw cells to number-or-null. Output order is exactly the caller's
// selection order, carried as the explicit hint.
func Build(selection []string, provider Provider) (*Dataset, error) {
	if len(selection) == 0 {
		return nil, faults.Validationf(faults.CodeEmptySelection, "no columns selected")
	}
	d := New()
	for _, name := range selection {
		raw, err := provider.ColumnValues(name)
		if err != nil {
			return nil, err
		}
		values := make([]*float64, len(raw))
		for i, cell := range raw {
			values[i] = Coerce(cell)
		}
		d.Set(name, values)
	}
	return d, nil
}

// Coerce maps an arbitrary primitive to number-or-null. Strings are
// trimmed and parsed; anything non-parsable becomes null. Non-finite
// values become null too: the wire payload carries only finite numbers,
// and ParseFloat would otherwise let a literal "NaN" or "Inf" cell
// through.
func Coerce(raw any) *float64 {
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case bool:
		f := 0.0
		if v {
			f = 1.0
		}
		return &f
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return finite(f)
	}
	return nil
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

type wireDataset struct {
	Data  map[string][]*float64 `json:"__data"`
	Order []string              `json:"__order"`
}

// MarshalJSON writes the {"__data","__order"} request payload.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	w := wireDataset{Data: d.data, Order: d.order}
	if w.Data == nil {
		w.Data = map[string][]*float64{}
	}
	if w.Order == nil {
		w.Order = []string{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the request payload. The hint is taken as-is; data
// columns the hint does not mention stay reachable through Columns.
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var w wireDataset
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	d.data = w.Data
	if d.data == nil {
		d.data = map[string][]*float64{}
	}
	d.order = w.Order
	return nil
}
