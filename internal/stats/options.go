package stats

import (
	"saistats/internal/dataset"
	"saistats/internal/faults"
)

// MissingPolicy governs which rows or pairs contribute when values are
// absent.
type MissingPolicy string

const (
	// UseAllPresent requires a fully observed dataset; any missing value
	// is a validation failure.
	UseAllPresent MissingPolicy = "all-present"
	// UseRowComplete drops every row containing a missing value.
	UseRowComplete MissingPolicy = "row-complete"
	// UsePairwise keeps, per column pair, the rows where both sides are
	// observed.
	UsePairwise MissingPolicy = "pairwise-complete"
)

// Alternative is the sidedness of a significance test.
type Alternative string

const (
	AltTwoSided Alternative = "two-sided"
	AltGreater  Alternative = "greater"
	AltLess     Alternative = "less"
)

func (a Alternative) valid() bool {
	switch a {
	case AltTwoSided, AltGreater, AltLess:
		return true
	}
	return false
}

// checkAllPresent enforces the all-present policy over restored columns.
func checkAllPresent(cols []dataset.Column) error {
	for _, c := range cols {
		for _, v := range c.Values {
			if v == nil {
				return faults.Validationf(faults.CodeMissingNotAllowed,
					"column %q has missing values under all-present", c.Name)
			}
		}
	}
	return nil
}

// completeRows returns the row indices where every column is observed.
func completeRows(cols []dataset.Column, rows int) []int {
	var keep []int
row:
	for i := 0; i < rows; i++ {
		for _, c := range cols {
			if i >= len(c.Values) || c.Values[i] == nil {
				continue row
			}
		}
		keep = append(keep, i)
	}
	return keep
}
