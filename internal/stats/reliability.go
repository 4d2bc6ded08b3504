package stats

import (
	"gonum.org/v1/gonum/stat"

	"saistats/internal/dataset"
	"saistats/internal/faults"
	"saistats/internal/table"
)

// Reliability computes Cronbach's alpha over the complete rows of the
// selected item columns.
func Reliability(ds *dataset.Dataset) (*table.Table, error) {
	cols := ds.Columns()
	if len(cols) < 2 {
		return nil, faults.Validationf(faults.CodeTooFewColumns,
			"reliability needs at least 2 item columns, got %d", len(cols))
	}
	keep := completeRows(cols, ds.Rows())
	n := len(keep)
	if n < 2 {
		return nil, faults.Validationf(faults.CodeBadParameter,
			"reliability needs at least 2 complete cases, got %d", n)
	}

	k := float64(len(cols))
	itemVarSum := 0.0
	totals := make([]float64, n)
	for _, col := range cols {
		values := make([]float64, n)
		for i, row := range keep {
			values[i] = *col.Values[row]
			totals[i] += values[i]
		}
		itemVarSum += stat.Variance(values, nil)
	}
	totalVar := stat.Variance(totals, nil)

	out := table.New("Statistic", "Value")
	var alphaCell table.Cell
	if totalVar == 0 {
		// Constant total score: the coefficient is undefined, reported
		// in-row rather than failing the call.
		alphaCell = table.MarkerDivZero
	} else {
		alphaCell = Num(k / (k - 1) * (1 - itemVarSum/totalVar))
	}
	out.MustAppend("Cronbach's Alpha", alphaCell)
	out.MustAppend("Items", Count(k))
	out.MustAppend("Complete Cases", Count(float64(n)))
	return out, nil
}
