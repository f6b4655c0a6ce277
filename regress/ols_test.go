package regress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkbrgr/weighbor/weighting"
)

func TestOLSRecoversLine(t *testing.T) {
	// y = 1 + 2x, exactly determined by three collinear-free points.
	x := [][]float64{{0}, {1}, {2}}
	y := []float64{1, 3, 5}

	params, err := OLS{}.Fit(x, y)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.InDelta(t, 1, params[0], 1e-9, "intercept")
	assert.InDelta(t, 2, params[1], 1e-9, "slope")
}

func TestOLSRecoversPlane(t *testing.T) {
	// y = -0.5 + 2*x1 - 3*x2 over four well-spread points.
	plane := func(x1, x2 float64) float64 { return -0.5 + 2*x1 - 3*x2 }
	x := [][]float64{{0, 0}, {1, 0}, {0, 1}, {2, 1.5}}
	y := make([]float64, len(x))
	for i, row := range x {
		y[i] = plane(row[0], row[1])
	}

	params, err := OLS{}.Fit(x, y)
	require.NoError(t, err)
	require.Len(t, params, 3)
	assert.InDelta(t, -0.5, params[0], 1e-9)
	assert.InDelta(t, 2, params[1], 1e-9)
	assert.InDelta(t, -3, params[2], 1e-9)
}

func TestOLSLeastSquaresOverdetermined(t *testing.T) {
	// Noisy points around y = x; the fit must minimize squared residuals,
	// which for this symmetric sample keeps the slope at 1.
	x := [][]float64{{0}, {1}, {2}, {3}}
	y := []float64{0.1, 0.9, 2.1, 2.9}

	params, err := OLS{}.Fit(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 0, params[0], 0.2)
	assert.InDelta(t, 1, params[1], 0.1)
}

func TestOLSShortSampleIsRankDeficient(t *testing.T) {
	tests := []struct {
		name string
		x    [][]float64
		y    []float64
	}{
		{"one row two dims", [][]float64{{1, 2}}, []float64{3}},
		{"two rows two dims", [][]float64{{1, 2}, {3, 4}}, []float64{3, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OLS{}.Fit(tt.x, tt.y)
			assert.ErrorIs(t, err, weighting.ErrRankDeficient)
		})
	}
}

func TestOLSCollinearIsRankDeficient(t *testing.T) {
	// Second regressor duplicates the first, so the design matrix is
	// singular even though there are enough rows.
	x := [][]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}}
	y := []float64{1, 2, 3, 4}

	_, err := OLS{}.Fit(x, y)
	assert.ErrorIs(t, err, weighting.ErrRankDeficient)
}

func TestOLSInputValidation(t *testing.T) {
	_, err := OLS{}.Fit(nil, nil)
	assert.Error(t, err)

	_, err = OLS{}.Fit([][]float64{{1}, {2}}, []float64{1})
	assert.Error(t, err)

	_, err = OLS{}.Fit([][]float64{{1, 2}, {3}}, []float64{1, 2})
	assert.Error(t, err)
}

func TestOLSBehindNonlinearityScheme(t *testing.T) {
	// End to end through the dispatcher: a neighborhood on an exact plane
	// weighs zero, then bending one neighbor off the plane raises it.
	plane := func(x1, x2 float64) float64 { return 1 + 2*x1 - 3*x2 }
	onPlane := weighting.NewInstance([]float64{1, 1}, plane(1, 1))
	onPlane.Neighbors = []*weighting.Instance{
		weighting.NewInstance([]float64{0, 0}, plane(0, 0)),
		weighting.NewInstance([]float64{2, 0.5}, plane(2, 0.5)),
		weighting.NewInstance([]float64{-1, 2}, plane(-1, 2)),
		weighting.NewInstance([]float64{0.5, -1}, plane(0.5, -1)),
	}

	w := weighting.NewWeigher(OLS{})
	cfg := weighting.Config{Scheme: weighting.SchemeNonlinearity, Exponent: 2}

	weight, err := w.Weigh(onPlane, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 0, weight, 1e-9)

	bent := weighting.NewInstance([]float64{1, 1}, plane(1, 1)+4)
	bent.Neighbors = onPlane.Neighbors
	weight, err = w.Weigh(bent, cfg)
	require.NoError(t, err)
	assert.Greater(t, weight, 0.5)
}
