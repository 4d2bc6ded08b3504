package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"saistats/internal/dataset"
	"saistats/internal/faults"
	"saistats/internal/table"
)

// Method is a correlation coefficient family.
type Method string

const (
	MethodPearson  Method = "pearson"
	MethodSpearman Method = "spearman"
	MethodKendall  Method = "kendall"
)

func (m Method) label() string {
	switch m {
	case MethodPearson:
		return "Pearson"
	case MethodSpearman:
		return "Spearman"
	case MethodKendall:
		return "Kendall"
	}
	return string(m)
}

// CorrelationOptions configures the correlation engine.
type CorrelationOptions struct {
	Methods []Method      `json:"methods"`
	Use     MissingPolicy `json:"use"`
	Alt     Alternative   `json:"alt"`
}

// Correlation computes, per requested method, an upper-triangular
// correlation block with significance stars followed by a labeled
// p-value block. Method blocks share one header row.
func Correlation(ds *dataset.Dataset, opts CorrelationOptions) (*table.Table, error) {
	cols := ds.Columns()
	if len(cols) < 2 {
		return nil, faults.Validationf(faults.CodeTooFewColumns,
			"correlation needs at least 2 columns, got %d", len(cols))
	}
	methods := opts.Methods
	if len(methods) == 0 {
		methods = []Method{MethodPearson}
	}
	for _, m := range methods {
		switch m {
		case MethodPearson, MethodSpearman, MethodKendall:
		default:
			return nil, faults.Validationf(faults.CodeBadParameter, "unknown method %q", m)
		}
	}
	use := opts.Use
	if use == "" {
		use = UsePairwise
	}
	switch use {
	case UseAllPresent, UseRowComplete, UsePairwise:
	default:
		return nil, faults.Validationf(faults.CodeBadParameter, "unknown missing policy %q", use)
	}
	alt := opts.Alt
	if alt == "" {
		alt = AltTwoSided
	}
	if !alt.valid() {
		return nil, faults.Validationf(faults.CodeBadParameter, "unknown alternative %q", alt)
	}

	ns, err := sampleSizes(cols, ds.Rows(), use)
	if err != nil {
		return nil, err
	}

	k := len(cols)
	headers := make([]string, k+1)
	headers[0] = ""
	for i, c := range cols {
		headers[i+1] = c.Name
	}
	out := table.New(headers...)
	width := k + 1

	for _, method := range methods {
		rs := correlationMatrix(cols, ds.Rows(), use, method)
		if len(methods) > 1 {
			out.Rows = append(out.Rows, table.SectionRow(method.label(), width))
		}
		for i := 0; i < k; i++ {
			row := make([]table.Cell, width)
			row[0] = cols[i].Name
			for j := 0; j < k; j++ {
				switch {
				case j < i:
					row[j+1] = ""
				case j == i:
					row[j+1] = "1.000"
				default:
					r := rs[i][j]
					if math.IsNaN(r) {
						row[j+1] = nil
						continue
					}
					p := corrPValue(r, ns[i][j], alt)
					row[j+1] = Num(r) + Stars(p)
				}
			}
			out.Rows = append(out.Rows, row)
		}
		out.Rows = append(out.Rows, table.SectionRow("P-values", width))
		for i := 0; i < k; i++ {
			row := make([]table.Cell, width)
			row[0] = cols[i].Name
			for j := 0; j < k; j++ {
				switch {
				case j < i:
					row[j+1] = ""
				case j == i:
					row[j+1] = table.UndefinedMarker
				default:
					r := rs[i][j]
					p := corrPValue(r, ns[i][j], alt)
					if math.IsNaN(p) {
						row[j+1] = nil
						continue
					}
					row[j+1] = PValue(p)
				}
			}
			out.Rows = append(out.Rows, row)
		}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// sampleSizes derives the per-pair sample-size matrix for the policy:
// uniform counts for all-present and row-complete, joint non-missing
// counts for pairwise-complete.
func sampleSizes(cols []dataset.Column, rows int, use MissingPolicy) ([][]int, error) {
	k := len(cols)
	ns := make([][]int, k)
	for i := range ns {
		ns[i] = make([]int, k)
	}
	switch use {
	case UseAllPresent:
		if err := checkAllPresent(cols); err != nil {
			return nil, err
		}
		for i := range ns {
			for j := range ns[i] {
				ns[i][j] = rows
			}
		}
	case UseRowComplete:
		n := len(completeRows(cols, rows))
		for i := range ns {
			for j := range ns[i] {
				ns[i][j] = n
			}
		}
	case UsePairwise:
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				count := 0
				for row := 0; row < rows; row++ {
					if cols[i].Values[row] != nil && cols[j].Values[row] != nil {
						count++
					}
				}
				ns[i][j] = count
			}
		}
	}
	return ns, nil
}

// correlationMatrix computes the symmetric coefficient matrix. Pairs
// with fewer than two joint observations, or with zero variance, yield
// NaN and propagate as missing cells.
func correlationMatrix(cols []dataset.Column, rows int, use MissingPolicy, method Method) [][]float64 {
	k := len(cols)
	pairwise := use == UsePairwise
	var keep []int
	if !pairwise {
		keep = completeRows(cols, rows)
	}
	rs := make([][]float64, k)
	for i := range rs {
		rs[i] = make([]float64, k)
		rs[i][i] = 1
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			xs, ys := pairValues(cols[i], cols[j], rows, keep, pairwise)
			r := math.NaN()
			if len(xs) >= 2 {
				switch method {
				case MethodPearson:
					r = stat.Correlation(xs, ys, nil)
				case MethodSpearman:
					r = stat.Correlation(ranks(xs), ranks(ys), nil)
				case MethodKendall:
					r = kendallTauB(xs, ys)
				}
			}
			rs[i][j] = r
			rs[j][i] = r
		}
	}
	return rs
}

// pairValues extracts the jointly observed values of two columns, or
// the complete-row subset when the policy is not pairwise.
func pairValues(a, b dataset.Column, rows int, keep []int, pairwise bool) (xs, ys []float64) {
	if !pairwise {
		for _, i := range keep {
			xs = append(xs, *a.Values[i])
			ys = append(ys, *b.Values[i])
		}
		return xs, ys
	}
	for i := 0; i < rows; i++ {
		if a.Values[i] == nil || b.Values[i] == nil {
			continue
		}
		xs = append(xs, *a.Values[i])
		ys = append(ys, *b.Values[i])
	}
	return xs, ys
}

// corrPValue derives the p-value from r and n via the t transform
// t = r·sqrt((n-2)/(1-r²)). |r| = 1 maps to a signed infinite t with
// exact limit p per sidedness. Fewer than 3 observations leave p
// undefined.
func corrPValue(r float64, n int, alt Alternative) float64 {
	if n < 3 || math.IsNaN(r) {
		return math.NaN()
	}
	if r >= 1 || r <= -1 {
		positive := r > 0
		switch alt {
		case AltGreater:
			if positive {
				return 0
			}
			return 1
		case AltLess:
			if positive {
				return 1
			}
			return 0
		default:
			return 0
		}
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	switch alt {
	case AltGreater:
		return 1 - dist.CDF(t)
	case AltLess:
		return dist.CDF(t)
	default:
		return 2 * dist.CDF(-math.Abs(t))
	}
}

// ranks assigns average ranks, ties sharing their mean rank.
func ranks(x []float64) []float64 {
	n := len(x)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })
	out := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		rank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = rank
		}
		i = j + 1
	}
	return out
}

// kendallTauB computes Kendall's tau-b with tie correction.
func kendallTauB(x, y []float64) float64 {
	n := len(x)
	var conc, disc, tieX, tieY float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := x[i] - x[j]
			dy := y[i] - y[j]
			if dx == 0 {
				tieX++
			}
			if dy == 0 {
				tieY++
			}
			s := dx * dy
			switch {
			case s > 0:
				conc++
			case s < 0:
				disc++
			}
		}
	}
	n0 := float64(n*(n-1)) / 2
	denom := math.Sqrt((n0 - tieX) * (n0 - tieY))
	if denom == 0 {
		return math.NaN()
	}
	return (conc - disc) / denom
}
