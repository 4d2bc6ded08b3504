package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundHalfUpAwayFromZero(t *testing.T) {
	assert.Equal(t, 3.0, Round(2.5, 0))
	assert.Equal(t, -3.0, Round(-2.5, 0))
	assert.Equal(t, 0.001, Round(0.0005, 3))
	assert.Equal(t, -0.001, Round(-0.0005, 3))
	assert.Equal(t, 1.234, Round(1.2344, 3))
	assert.Equal(t, 1.235, Round(1.2345, 3))
}

func TestNum(t *testing.T) {
	assert.Equal(t, "2.000", Num(2))
	assert.Equal(t, "0.707", Num(0.70710678))
	assert.Equal(t, "-1.500", Num(-1.4999999))
	assert.Equal(t, "Infinity", Num(math.Inf(1)))
	assert.Equal(t, "-Infinity", Num(math.Inf(-1)))
	assert.Equal(t, "NaN", Num(math.NaN()))
}

func TestCount(t *testing.T) {
	assert.Equal(t, "4", Count(3.6))
	assert.Equal(t, "3", Count(3))
	assert.Equal(t, "-2", Count(-2.4))
}

func TestPValue(t *testing.T) {
	assert.Equal(t, "<.001", PValue(0))
	assert.Equal(t, "<.001", PValue(0.0004))
	assert.Equal(t, "0.001", PValue(0.0006))
	assert.Equal(t, "0.050", PValue(0.05))
	assert.Equal(t, "1.000", PValue(1))
}

func TestStars(t *testing.T) {
	assert.Equal(t, "***", Stars(0.0009))
	assert.Equal(t, "**", Stars(0.001))
	assert.Equal(t, "**", Stars(0.009))
	assert.Equal(t, "*", Stars(0.049))
	assert.Equal(t, "", Stars(0.05))
	assert.Equal(t, "", Stars(math.NaN()))
}
