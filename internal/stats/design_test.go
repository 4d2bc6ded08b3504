package stats

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saistats/internal/faults"
)

func designN(t *testing.T, opts DesignOptions) int {
	t.Helper()
	out, err := Design(opts)
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	require.Len(t, out.Rows, 1)
	n, err := strconv.Atoi(out.Rows[0][4].(string))
	require.NoError(t, err)
	return n
}

func TestDesignTSampleSizes(t *testing.T) {
	n := designN(t, DesignOptions{Family: FamilyOneSampleT, Alpha: 0.05, Power: 0.8})
	assert.Equal(t, 32, n)

	n = designN(t, DesignOptions{Family: FamilyPairedT, Alpha: 0.05, Power: 0.8})
	assert.Equal(t, 32, n)

	n = designN(t, DesignOptions{Family: FamilyTwoSampleT, Alpha: 0.05, Power: 0.8})
	assert.Equal(t, 63, n)
}

func TestDesignRowShape(t *testing.T) {
	out, err := Design(DesignOptions{Family: FamilyTwoSampleT, Alpha: 0.05, Power: 0.8})
	require.NoError(t, err)
	require.Equal(t, []string{"Test", "Effect Size", "Alpha", "Power", "N", "Unit"}, out.Headers)
	row := out.Rows[0]
	assert.Equal(t, "Two-sample t", row[0])
	assert.Equal(t, "d = 0.500", row[1])
	assert.Equal(t, "0.050", row[2])
	assert.Equal(t, "0.800", row[3])
	assert.Equal(t, "per group", row[5])
}

func TestDesignAnovaSampleSize(t *testing.T) {
	n := designN(t, DesignOptions{Family: FamilyANOVA, Alpha: 0.05, Power: 0.8, Groups: 3})
	assert.GreaterOrEqual(t, n, 45)
	assert.LessOrEqual(t, n, 60)

	n5 := designN(t, DesignOptions{Family: FamilyANOVA, Alpha: 0.05, Power: 0.8, Groups: 5})
	assert.Greater(t, n5, 0)
}

func TestDesignGoodnessOfFitSampleSize(t *testing.T) {
	n := designN(t, DesignOptions{Family: FamilyGoodnessOfFit, Alpha: 0.05, Power: 0.8, Categories: 5})
	assert.GreaterOrEqual(t, n, 125)
	assert.LessOrEqual(t, n, 140)
}

func TestDesignGLMSampleSize(t *testing.T) {
	n := designN(t, DesignOptions{Family: FamilyGLM, Alpha: 0.05, Power: 0.8, Parameters: 3})
	assert.GreaterOrEqual(t, n, 65)
	assert.LessOrEqual(t, n, 85)
}

func TestDesignHigherPowerNeedsMoreCases(t *testing.T) {
	lo := designN(t, DesignOptions{Family: FamilyGoodnessOfFit, Alpha: 0.05, Power: 0.8, Categories: 4})
	hi := designN(t, DesignOptions{Family: FamilyGoodnessOfFit, Alpha: 0.05, Power: 0.95, Categories: 4})
	assert.Greater(t, hi, lo)
}

func TestDesignValidation(t *testing.T) {
	cases := []struct {
		name string
		opts DesignOptions
	}{
		{"alpha zero", DesignOptions{Family: FamilyOneSampleT, Alpha: 0, Power: 0.8}},
		{"alpha one", DesignOptions{Family: FamilyOneSampleT, Alpha: 1, Power: 0.8}},
		{"power zero", DesignOptions{Family: FamilyOneSampleT, Alpha: 0.05, Power: 0}},
		{"power one", DesignOptions{Family: FamilyOneSampleT, Alpha: 0.05, Power: 1}},
		{"unknown family", DesignOptions{Family: "z-test", Alpha: 0.05, Power: 0.8}},
		{"anova groups", DesignOptions{Family: FamilyANOVA, Alpha: 0.05, Power: 0.8, Groups: 1}},
		{"gof categories", DesignOptions{Family: FamilyGoodnessOfFit, Alpha: 0.05, Power: 0.8, Categories: 1}},
		{"glm parameters", DesignOptions{Family: FamilyGLM, Alpha: 0.05, Power: 0.8, Parameters: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Design(tc.opts)
			require.Error(t, err)
			f, ok := faults.As(err)
			require.True(t, ok)
			assert.Equal(t, faults.CodeBadParameter, f.Code)
		})
	}
}

func TestNoncentralChiSquareSurvival(t *testing.T) {
	// Zero noncentrality collapses to the central tail.
	central := noncentralChiSquareSurvival(3.841, 1, 0)
	assert.InDelta(t, 0.05, central, 1e-3)

	// Power is strictly increasing in the noncentrality parameter.
	prev := 0.0
	for _, lambda := range []float64{0.5, 2, 5, 10, 20} {
		p := noncentralChiSquareSurvival(3.841, 1, lambda)
		assert.Greater(t, p, prev)
		prev = p
	}
}
