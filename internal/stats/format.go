// Package stats implements the analysis algorithms. Each engine is a
// pure function from a restored dataset and typed options to a tabular
// result; all numeric output passes through the half-up formatting
// rules here.
package stats

import (
	"fmt"
	"math"

	"saistats/internal/table"
)

// Round rounds half-up, ties away from zero.
func Round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	p := math.Pow(10, float64(places))
	if x >= 0 {
		return math.Floor(x*p+0.5) / p
	}
	return math.Ceil(x*p-0.5) / p
}

// Num formats an estimate to 3 decimals.
func Num(x float64) string {
	switch {
	case math.IsNaN(x):
		return table.SentinelNaN
	case math.IsInf(x, 1):
		return table.SentinelPosInf
	case math.IsInf(x, -1):
		return table.SentinelNegInf
	}
	return fmt.Sprintf("%.3f", Round(x, 3))
}

// Count formats a degrees-of-freedom or count value as an integer.
func Count(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Num(x)
	}
	return fmt.Sprintf("%d", int64(Round(x, 0)))
}

// PValue formats a p-value to 3 decimals. Values below the display
// resolution render as "<.001"; that includes the exact-zero limit of an
// infinite test statistic, which is a limit rather than a true zero.
func PValue(p float64) string {
	if math.IsNaN(p) {
		return table.SentinelNaN
	}
	if Round(p, 3) == 0 {
		return "<.001"
	}
	return fmt.Sprintf("%.3f", Round(p, 3))
}

// Stars returns the significance annotation for p.
func Stars(p float64) string {
	switch {
	case math.IsNaN(p):
		return ""
	case p < 0.001:
		return "***"
	case p < 0.01:
		return "**"
	case p < 0.05:
		return "*"
	}
	return ""
}
