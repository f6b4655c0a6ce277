package selection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	raw := []float64{2, 4, 8, 0}

	got, err := Normalize(raw)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, got[0], 1e-12)
	assert.InDelta(t, 0.5, got[1], 1e-12)
	assert.InDelta(t, 1.0, got[2], 1e-12)
	assert.Zero(t, got[3])

	// input untouched
	assert.Equal(t, []float64{2, 4, 8, 0}, raw)
}

func TestNormalizeSingle(t *testing.T) {
	got, err := Normalize([]float64{3.7})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got[0], 1e-12)
}

func TestNormalizeErrors(t *testing.T) {
	cases := []struct {
		name    string
		weights []float64
	}{
		{"empty", nil},
		{"all zero", []float64{0, 0, 0}},
		{"nan entry", []float64{1, math.NaN(), 2}},
		{"inf entry", []float64{1, math.Inf(1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.weights)
			assert.Error(t, err)
		})
	}
}

func TestTopFraction(t *testing.T) {
	weights := []float64{0.1, 1.0, 0.5, 0.25}

	mask, err := TopFraction(weights, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, mask.Indices())

	mask, err = TopFraction(weights, 0.6)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, mask.Indices())

	mask, err = TopFraction(weights, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 4, mask.Count())
}

func TestTopFractionRoundsUp(t *testing.T) {
	weights := []float64{0.9, 0.1, 0.5}

	// ceil(0.4 * 3) = 2
	mask, err := TopFraction(weights, 0.4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, mask.Indices())
}

func TestTopFractionTiesBreakByIndex(t *testing.T) {
	weights := []float64{0.5, 1.0, 0.5, 0.2}

	mask, err := TopFraction(weights, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, mask.Indices())
}

func TestTopFractionValidation(t *testing.T) {
	weights := []float64{0.5, 1.0}
	for _, frac := range []float64{0, -0.5, 1.5, math.NaN()} {
		_, err := TopFraction(weights, frac)
		assert.Error(t, err, "fraction %v", frac)
	}
	_, err := TopFraction(nil, 0.5)
	assert.Error(t, err)
}

func TestThreshold(t *testing.T) {
	weights := []float64{0, 0.3, 0.7, 1.0}

	mask, err := Threshold(weights, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, mask.Indices())

	// every weight clears a zero threshold
	mask, err = Threshold(weights, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, mask.Count())

	// above every weight: empty but not an error
	mask, err = Threshold(weights, 1.1)
	require.NoError(t, err)
	assert.True(t, mask.IsEmpty())
}

func TestThresholdBoundaryIsInclusive(t *testing.T) {
	mask, err := Threshold([]float64{0.5, 0.49}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, mask.Indices())
}

func TestThresholdValidation(t *testing.T) {
	_, err := Threshold([]float64{1}, math.NaN())
	assert.Error(t, err)
	_, err = Threshold(nil, 0.5)
	assert.Error(t, err)
}
