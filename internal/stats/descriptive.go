package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"saistats/internal/dataset"
	"saistats/internal/faults"
	"saistats/internal/table"
)

// SortOrder selects the row order of a descriptive table.
type SortOrder string

const (
	SortDefault SortOrder = "default"
	SortMean    SortOrder = "mean"
)

// DescriptiveOptions configures the descriptive engine.
type DescriptiveOptions struct {
	IgnoreMissing bool      `json:"ignore_missing"`
	Sort          SortOrder `json:"sort"`
	Descending    bool      `json:"descending"`
}

type descriptiveRow struct {
	name               string
	mean, sd, min, max float64
	missing            bool
	sdMissing          bool
}

// Descriptive computes mean, sample standard deviation, min and max per
// column. With ignore_missing false, a column containing any missing
// value reports missing throughout.
func Descriptive(ds *dataset.Dataset, opts DescriptiveOptions) (*table.Table, error) {
	cols := ds.Columns()
	if len(cols) == 0 {
		return nil, faults.Validationf(faults.CodeEmptySelection, "no columns selected")
	}
	switch opts.Sort {
	case "", SortDefault, SortMean:
	default:
		return nil, faults.Validationf(faults.CodeBadParameter, "unknown sort order %q", opts.Sort)
	}

	summaries := make([]descriptiveRow, 0, len(cols))
	for _, col := range cols {
		row := descriptiveRow{name: col.Name}
		var values []float64
		hasMissing := false
		for _, v := range col.Values {
			if v == nil {
				hasMissing = true
				continue
			}
			values = append(values, *v)
		}
		if len(values) == 0 || (hasMissing && !opts.IgnoreMissing) {
			row.missing = true
		} else {
			row.mean = stat.Mean(values, nil)
			if len(values) >= 2 {
				row.sd = stat.StdDev(values, nil)
			} else {
				row.sdMissing = true
			}
			row.min, row.max = values[0], values[0]
			for _, v := range values[1:] {
				row.min = math.Min(row.min, v)
				row.max = math.Max(row.max, v)
			}
		}
		summaries = append(summaries, row)
	}

	if opts.Sort == SortMean {
		sort.SliceStable(summaries, func(i, j int) bool {
			a, b := summaries[i], summaries[j]
			// Missing means sort last regardless of direction.
			if a.missing || b.missing {
				return !a.missing && b.missing
			}
			if opts.Descending {
				return a.mean > b.mean
			}
			return a.mean < b.mean
		})
	}

	out := table.New("Variable", "Mean", "SD", "Min", "Max")
	for _, row := range summaries {
		if row.missing {
			if err := out.Append(row.name, nil, nil, nil, nil); err != nil {
				return nil, err
			}
			continue
		}
		var sd table.Cell = Num(row.sd)
		if row.sdMissing {
			sd = nil
		}
		if err := out.Append(row.name, Num(row.mean), sd, Num(row.min), Num(row.max)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
