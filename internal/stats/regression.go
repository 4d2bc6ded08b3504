package stats

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"saistats/internal/dataset"
	"saistats/internal/faults"
	"saistats/internal/table"
)

// RegressionOptions configures the regression engine.
type RegressionOptions struct {
	Dependent    string        `json:"dependent"`
	Independent  []string      `json:"independent"`
	Interactions [][2]string   `json:"interactions"`
	Intercept    bool          `json:"intercept"`
	Use          MissingPolicy `json:"use"`
	Weights      []float64     `json:"weights"`
	Center       bool          `json:"center"`
}

// Regression fits an ordinary (optionally weighted) least-squares model
// and reports Model Summary, Coefficients and ANOVA blocks in one table.
func Regression(ds *dataset.Dataset, opts RegressionOptions) (*table.Table, error) {
	if opts.Dependent == "" {
		return nil, faults.Validationf(faults.CodeBadParameter, "no dependent column")
	}
	if len(opts.Independent) == 0 {
		return nil, faults.Validationf(faults.CodeTooFewColumns, "no independent columns")
	}
	use := opts.Use
	if use == "" {
		use = UseRowComplete
	}
	switch use {
	case UseAllPresent, UseRowComplete:
	case UsePairwise:
		return nil, faults.Validationf(faults.CodeBadParameter,
			"pairwise-complete cannot fit a single model matrix")
	default:
		return nil, faults.Validationf(faults.CodeBadParameter, "unknown missing policy %q", use)
	}

	byName := map[string][]*float64{}
	for _, c := range ds.Columns() {
		byName[c.Name] = c.Values
	}
	rows := ds.Rows()

	y, ok := byName[opts.Dependent]
	if !ok {
		return nil, faults.Validationf(faults.CodeUnknownColumn, "column %q not found", opts.Dependent)
	}

	// Term columns: independents first, then pairwise products computed
	// from the raw named columns before any centering.
	type term struct {
		name   string
		values []*float64
	}
	var terms []term
	for _, name := range opts.Independent {
		col, ok := byName[name]
		if !ok {
			return nil, faults.Validationf(faults.CodeUnknownColumn, "column %q not found", name)
		}
		terms = append(terms, term{name: name, values: col})
	}
	for _, pair := range opts.Interactions {
		a, ok := byName[pair[0]]
		if !ok {
			return nil, faults.Validationf(faults.CodeUnknownColumn, "column %q not found", pair[0])
		}
		b, ok := byName[pair[1]]
		if !ok {
			return nil, faults.Validationf(faults.CodeUnknownColumn, "column %q not found", pair[1])
		}
		prod := make([]*float64, rows)
		for i := 0; i < rows; i++ {
			if a[i] == nil || b[i] == nil {
				continue
			}
			v := *a[i] * *b[i]
			prod[i] = &v
		}
		terms = append(terms, term{name: pair[0] + ":" + pair[1], values: prod})
	}

	if opts.Weights != nil && len(opts.Weights) != rows {
		return nil, faults.Validationf(faults.CodeBadParameter,
			"weights length %d does not match %d observations", len(opts.Weights), rows)
	}

	modelCols := make([]dataset.Column, 0, len(terms)+1)
	modelCols = append(modelCols, dataset.Column{Name: opts.Dependent, Values: y})
	for _, t := range terms {
		modelCols = append(modelCols, dataset.Column{Name: t.name, Values: t.values})
	}
	if use == UseAllPresent {
		if err := checkAllPresent(modelCols); err != nil {
			return nil, err
		}
	}
	keep := completeRows(modelCols, rows)
	n := len(keep)
	p := len(terms)
	if opts.Intercept {
		p++
	}
	if n <= p {
		return nil, faults.Validationf(faults.CodeBadParameter,
			"%d complete observations cannot fit %d parameters", n, p)
	}

	yv := make([]float64, n)
	w := make([]float64, n)
	for i, row := range keep {
		yv[i] = *y[row]
		w[i] = 1
		if opts.Weights != nil {
			w[i] = opts.Weights[row]
			if w[i] < 0 {
				return nil, faults.Validationf(faults.CodeBadParameter, "negative weight at row %d", row)
			}
		}
	}
	xcols := make([][]float64, len(terms))
	for t := range terms {
		xcols[t] = make([]float64, n)
		for i, row := range keep {
			xcols[t][i] = *terms[t].values[row]
		}
	}
	if opts.Center {
		for t := range xcols {
			mean := stat.Mean(xcols[t], w)
			for i := range xcols[t] {
				xcols[t][i] -= mean
			}
		}
	}

	fit, err := fitWLS(yv, xcols, w, opts.Intercept)
	if err != nil {
		return nil, err
	}

	termNames := make([]string, 0, p)
	if opts.Intercept {
		termNames = append(termNames, "(Intercept)")
	}
	for _, t := range terms {
		termNames = append(termNames, t.name)
	}

	out := table.New("", "Estimate", "Std. Coef.", "Std. Error", "t value", "p value", "VIF")
	width := len(out.Headers)

	out.Rows = append(out.Rows, table.SectionRow("Model Summary", width))
	summary := [][2]string{
		{"R-squared", Num(fit.r2)},
		{"Adj. R-squared", Num(fit.adjR2)},
		{"Residual Std. Error", Num(fit.rse)},
		{"Residual DF", Count(float64(fit.dfRes))},
		{"F-statistic", Num(fit.f)},
		{"p value", PValue(fit.fp)},
	}
	for _, s := range summary {
		out.Rows = append(out.Rows, []table.Cell{s[0], s[1], "", "", "", "", ""})
	}

	out.Rows = append(out.Rows, table.SectionRow("Coefficients", width))
	sdY := stat.StdDev(yv, w)
	for j, name := range termNames {
		est := fit.beta[j]
		var std table.Cell = ""
		var vif table.Cell = ""
		isIntercept := opts.Intercept && j == 0
		if !isIntercept {
			t := j
			if opts.Intercept {
				t--
			}
			if sdY > 0 {
				std = Num(est * stat.StdDev(xcols[t], w) / sdY)
			}
			vif = Num(varianceInflation(xcols, w, t))
		}
		se := fit.se[j]
		tv := est / se
		pv := math.NaN()
		if !math.IsNaN(tv) && !math.IsInf(tv, 0) {
			dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(fit.dfRes)}
			pv = 2 * dist.CDF(-math.Abs(tv))
		} else if math.IsInf(tv, 0) {
			pv = 0
		}
		out.Rows = append(out.Rows, []table.Cell{name, Num(est), std, Num(se), Num(tv), PValue(pv), vif})
	}

	out.Rows = append(out.Rows, table.SectionRow("ANOVA", width))
	out.Rows = append(out.Rows, []table.Cell{"Source", "SS", "DF", "MS", "F", "p", ""})
	msReg := fit.ssReg / float64(fit.dfModel)
	msRes := fit.ssRes / float64(fit.dfRes)
	out.Rows = append(out.Rows, []table.Cell{
		"Regression", Num(fit.ssReg), Count(float64(fit.dfModel)), Num(msReg), Num(fit.f), PValue(fit.fp), "",
	})
	out.Rows = append(out.Rows, []table.Cell{
		"Residual", Num(fit.ssRes), Count(float64(fit.dfRes)), Num(msRes), "", "", "",
	})
	out.Rows = append(out.Rows, []table.Cell{
		"Total", Num(fit.ssTot), Count(float64(fit.dfTot)), "", "", "", "",
	})

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

type wlsFit struct {
	beta, se              []float64
	ssReg, ssRes, ssTot   float64
	dfModel, dfRes, dfTot int
	r2, adjR2, rse, f, fp float64
}

// fitWLS solves the weighted least-squares problem by QR on the
// sqrt-weight scaled system and derives the summary statistics. The
// total sum of squares is centered about the weighted mean only when the
// model carries an intercept.
func fitWLS(y []float64, xcols [][]float64, w []float64, intercept bool) (*wlsFit, error) {
	n := len(y)
	p := len(xcols)
	if intercept {
		p++
	}
	X := mat.NewDense(n, p, nil)
	ys := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(w[i])
		col := 0
		if intercept {
			X.Set(i, 0, sw)
			col = 1
		}
		for t := range xcols {
			X.Set(i, col+t, sw*xcols[t][i])
		}
		ys.Set(i, 0, sw*y[i])
	}

	var qr mat.QR
	qr.Factorize(X)
	var bmat mat.Dense
	if err := qr.SolveTo(&bmat, false, ys); err != nil {
		return nil, faults.Validationf(faults.CodeBadParameter, "singular model matrix: %v", err)
	}
	beta := make([]float64, p)
	for j := 0; j < p; j++ {
		beta[j] = bmat.At(j, 0)
	}

	fit := &wlsFit{beta: beta, dfRes: n - p, dfModel: p, dfTot: n}
	if intercept {
		fit.dfModel = p - 1
		fit.dfTot = n - 1
	}

	// Sums of squares in the weighted metric.
	sumW, meanY := 0.0, 0.0
	for i := 0; i < n; i++ {
		sumW += w[i]
		meanY += w[i] * y[i]
	}
	if sumW == 0 {
		return nil, faults.Validationf(faults.CodeBadParameter, "all weights are zero")
	}
	meanY /= sumW
	for i := 0; i < n; i++ {
		pred := 0.0
		col := 0
		if intercept {
			pred = beta[0]
			col = 1
		}
		for t := range xcols {
			pred += beta[col+t] * xcols[t][i]
		}
		resid := y[i] - pred
		fit.ssRes += w[i] * resid * resid
		if intercept {
			fit.ssTot += w[i] * (y[i] - meanY) * (y[i] - meanY)
		} else {
			fit.ssTot += w[i] * y[i] * y[i]
		}
	}
	fit.ssReg = fit.ssTot - fit.ssRes

	if fit.ssTot > 0 {
		fit.r2 = 1 - fit.ssRes/fit.ssTot
	}
	fit.adjR2 = 1 - (1-fit.r2)*float64(fit.dfTot)/float64(fit.dfRes)
	fit.rse = math.Sqrt(fit.ssRes / float64(fit.dfRes))

	msRes := fit.ssRes / float64(fit.dfRes)
	if fit.dfModel > 0 {
		fit.f = (fit.ssReg / float64(fit.dfModel)) / msRes
	}
	if math.IsInf(fit.f, 1) || msRes == 0 {
		fit.f = math.Inf(1)
		fit.fp = 0
	} else {
		dist := distuv.F{D1: float64(fit.dfModel), D2: float64(fit.dfRes)}
		fit.fp = 1 - dist.CDF(fit.f)
	}

	// Standard errors from sigma^2 (X'X)^-1 in the scaled system.
	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, faults.Validationf(faults.CodeBadParameter, "singular model matrix: %v", err)
	}
	fit.se = make([]float64, p)
	for j := 0; j < p; j++ {
		fit.se[j] = math.Sqrt(msRes * inv.At(j, j))
	}
	return fit, nil
}

// varianceInflation regresses predictor t on the remaining predictors
// and transforms the resulting R². A single-predictor model has VIF 1.
// The auxiliary regression always carries an intercept, matching the
// usual VIF definition even for a no-intercept main model.
func varianceInflation(xcols [][]float64, w []float64, t int) float64 {
	if len(xcols) < 2 {
		return 1
	}
	others := make([][]float64, 0, len(xcols)-1)
	for j := range xcols {
		if j != t {
			others = append(others, xcols[j])
		}
	}
	fit, err := fitWLS(xcols[t], others, w, true)
	if err != nil {
		return math.NaN()
	}
	if fit.r2 >= 1 {
		return math.Inf(1)
	}
	return 1 / (1 - fit.r2)
}
