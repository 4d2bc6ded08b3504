package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"saistats/internal/faults"
	"saistats/internal/table"
)

// Family is a power-analysis test family.
type Family string

const (
	FamilyOneSampleT    Family = "one-sample-t"
	FamilyTwoSampleT    Family = "two-sample-t"
	FamilyPairedT       Family = "paired-t"
	FamilyANOVA         Family = "anova"
	FamilyGoodnessOfFit Family = "gof"
	FamilyGLM           Family = "glm"
)

// DesignOptions configures the sample-size engine. Effect sizes are not
// an input: each family uses its fixed conventional (medium) value.
type DesignOptions struct {
	Family     Family  `json:"family"`
	Alpha      float64 `json:"alpha"`
	Power      float64 `json:"power"`
	Groups     int     `json:"groups"`
	Categories int     `json:"categories"`
	Parameters int     `json:"parameters"`
}

const (
	effectD  = 0.5  // t families, Cohen's d
	effectF  = 0.25 // one-way ANOVA, Cohen's f
	effectW  = 0.3  // goodness of fit, Cohen's w
	effectF2 = 0.15 // general linear model, Cohen's f²
)

// solverLimit bounds the sample-size search; exceeding it embeds a
// numeric-overflow marker in the N cell instead of failing the call.
const solverLimit = 1_000_000

// Design solves the required sample size for the requested family at
// the given significance level and target power.
func Design(opts DesignOptions) (*table.Table, error) {
	if opts.Alpha <= 0 || opts.Alpha >= 1 {
		return nil, faults.Validationf(faults.CodeBadParameter, "alpha %v out of (0,1)", opts.Alpha)
	}
	if opts.Power <= 0 || opts.Power >= 1 {
		return nil, faults.Validationf(faults.CodeBadParameter, "power %v out of (0,1)", opts.Power)
	}

	var (
		label, effect, unit string
		n                   int
		converged           = true
	)
	switch opts.Family {
	case FamilyOneSampleT, FamilyPairedT:
		label, effect, unit = familyLabel(opts.Family), fmt.Sprintf("d = %s", Num(effectD)), "total"
		n = tSampleSize(effectD, opts.Alpha, opts.Power, 1)
	case FamilyTwoSampleT:
		label, effect, unit = familyLabel(opts.Family), fmt.Sprintf("d = %s", Num(effectD)), "per group"
		n = tSampleSize(effectD, opts.Alpha, opts.Power, 2)
	case FamilyANOVA:
		if opts.Groups < 2 {
			return nil, faults.Validationf(faults.CodeBadParameter, "anova needs >= 2 groups, got %d", opts.Groups)
		}
		label, effect, unit = familyLabel(opts.Family), fmt.Sprintf("f = %s", Num(effectF)), "per group"
		n, converged = anovaSampleSize(effectF, opts.Alpha, opts.Power, opts.Groups)
	case FamilyGoodnessOfFit:
		if opts.Categories < 2 {
			return nil, faults.Validationf(faults.CodeBadParameter, "goodness of fit needs >= 2 categories, got %d", opts.Categories)
		}
		label, effect, unit = familyLabel(opts.Family), fmt.Sprintf("w = %s", Num(effectW)), "total"
		n, converged = chiSquareSampleSize(effectW*effectW, opts.Alpha, opts.Power, opts.Categories-1)
	case FamilyGLM:
		if opts.Parameters < 1 {
			return nil, faults.Validationf(faults.CodeBadParameter, "glm needs >= 1 parameters, got %d", opts.Parameters)
		}
		label, effect, unit = familyLabel(opts.Family), fmt.Sprintf("f2 = %s", Num(effectF2)), "total"
		n, converged = glmSampleSize(effectF2, opts.Alpha, opts.Power, opts.Parameters)
	default:
		return nil, faults.Validationf(faults.CodeBadParameter, "unknown test family %q", opts.Family)
	}

	out := table.New("Test", "Effect Size", "Alpha", "Power", "N", "Unit")
	var nCell table.Cell
	if converged {
		nCell = Count(float64(n))
	} else {
		nCell = table.MarkerNum
	}
	out.MustAppend(label, effect, Num(opts.Alpha), Num(opts.Power), nCell, unit)
	return out, nil
}

func familyLabel(f Family) string {
	switch f {
	case FamilyOneSampleT:
		return "One-sample t"
	case FamilyTwoSampleT:
		return "Two-sample t"
	case FamilyPairedT:
		return "Paired t"
	case FamilyANOVA:
		return "One-way ANOVA"
	case FamilyGoodnessOfFit:
		return "Goodness of fit"
	case FamilyGLM:
		return "General linear model"
	}
	return string(f)
}

// tSampleSize solves the two-sided normal-approximation power relation
// n = groups·((z_{1-α/2} + z_{power}) / d)², rounded up.
func tSampleSize(d, alpha, power float64, groups int) int {
	norm := distuv.UnitNormal
	z := norm.Quantile(1-alpha/2) + norm.Quantile(power)
	return int(math.Ceil(float64(groups) * (z / d) * (z / d)))
}

// chiSquareSampleSize finds the smallest N whose noncentral chi-square
// power with noncentrality N·w² reaches the target.
func chiSquareSampleSize(w2, alpha, power float64, df int) (int, bool) {
	crit := distuv.ChiSquared{K: float64(df)}.Quantile(1 - alpha)
	for n := 2; n <= solverLimit; n++ {
		if noncentralChiSquareSurvival(crit, float64(df), float64(n)*w2) >= power {
			return n, true
		}
	}
	return 0, false
}

// anovaSampleSize finds the smallest per-group n for a one-way design
// with k groups, approximating the noncentral F tail by the noncentral
// chi-square with noncentrality k·n·f².
func anovaSampleSize(f, alpha, power float64, k int) (int, bool) {
	df := float64(k - 1)
	crit := distuv.ChiSquared{K: df}.Quantile(1 - alpha)
	for n := 2; n <= solverLimit; n++ {
		lambda := float64(k) * float64(n) * f * f
		if noncentralChiSquareSurvival(crit, df, lambda) >= power {
			return n, true
		}
	}
	return 0, false
}

// glmSampleSize finds the smallest total N = u + v + 1 whose noncentral
// power with noncentrality f²·(u+v+1) over u numerator df reaches the
// target.
func glmSampleSize(f2, alpha, power float64, u int) (int, bool) {
	crit := distuv.ChiSquared{K: float64(u)}.Quantile(1 - alpha)
	for v := 1; v <= solverLimit; v++ {
		lambda := f2 * float64(u+v+1)
		if noncentralChiSquareSurvival(crit, float64(u), lambda) >= power {
			return u + v + 1, true
		}
	}
	return 0, false
}

// noncentralChiSquareSurvival evaluates P(X > x) for a noncentral
// chi-square with the given df and noncentrality, via the Poisson
// mixture of central chi-square tails.
func noncentralChiSquareSurvival(x, df, lambda float64) float64 {
	if lambda == 0 {
		return 1 - distuv.ChiSquared{K: df}.CDF(x)
	}
	half := lambda / 2
	logWeight := -half // log Poisson(half) pmf at j=0
	total := 0.0
	cumulative := 0.0
	for j := 0; j < 2000; j++ {
		weight := math.Exp(logWeight)
		cumulative += weight
		total += weight * (1 - distuv.ChiSquared{K: df + 2*float64(j)}.CDF(x))
		if cumulative > 1-1e-12 {
			break
		}
		logWeight += math.Log(half) - math.Log(float64(j+1))
	}
	return total
}
