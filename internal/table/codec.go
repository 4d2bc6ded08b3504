package table

import "math"

// Sentinel strings standing in for numeric states JSON cannot carry.
const (
	SentinelNaN    = "NaN"
	SentinelPosInf = "Infinity"
	SentinelNegInf = "-Infinity"

	// UndefinedMarker renders an explicitly-undefined cell, e.g. the
	// p-value diagonal of a correlation matrix.
	UndefinedMarker = "-"
)

// Domain error markers form a fixed closed set and pass through the
// codec verbatim. They may also be embedded in result rows, e.g. a
// non-convergent sample-size cell.
const (
	MarkerDivZero   = "#DIV/0!"
	MarkerNA        = "#N/A"
	MarkerName      = "#NAME?"
	MarkerNull      = "#NULL!"
	MarkerNum       = "#NUM!"
	MarkerRef       = "#REF!"
	MarkerValue     = "#VALUE!"
	MarkerCoercion  = "#COERCE!"
)

var errorMarkers = map[string]struct{}{
	MarkerDivZero:  {},
	MarkerNA:       {},
	MarkerName:     {},
	MarkerNull:     {},
	MarkerNum:      {},
	MarkerRef:      {},
	MarkerValue:    {},
	MarkerCoercion: {},
}

// IsErrorMarker reports whether s belongs to the closed error-marker set.
func IsErrorMarker(s string) bool {
	_, ok := errorMarkers[s]
	return ok
}

// EncodeCell maps a cell to its wire value: missing becomes null, NaN
// and the infinities become sentinel strings, everything else passes
// through (error markers are ordinary strings on the wire).
func EncodeCell(c Cell) any {
	switch v := c.(type) {
	case nil:
		return nil
	case float64:
		switch {
		case math.IsNaN(v):
			return SentinelNaN
		case math.IsInf(v, 1):
			return SentinelPosInf
		case math.IsInf(v, -1):
			return SentinelNegInf
		}
		return v
	case float32:
		return EncodeCell(float64(v))
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case bool, string:
		return v
	}
	// Unknown representations encode as missing.
	return nil
}

// DecodeCell maps a wire value back to a cell. Sentinel strings become
// their numeric states; error markers and all other strings pass through
// untouched; anything null-like or unrecognized decodes leniently to
// missing.
func DecodeCell(v any) Cell {
	switch w := v.(type) {
	case nil:
		return nil
	case float64, bool:
		return w
	case string:
		switch w {
		case SentinelNaN:
			return math.NaN()
		case SentinelPosInf:
			return math.Inf(1)
		case SentinelNegInf:
			return math.Inf(-1)
		}
		return w
	}
	return nil
}
