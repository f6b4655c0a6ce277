// Package regress provides the least-squares collaborator behind the
// nonlinearity weighting scheme.
package regress

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/mkbrgr/weighbor/weighting"
)

// OLS fits an ordinary least-squares linear regression through QR
// decomposition. It implements weighting.Regressor: Fit returns the D+1
// coefficients with the intercept first for x rows of D regressors. OLS is
// stateless; the zero value is ready to use and safe for concurrent calls.
type OLS struct{}

// Fit solves min ||y - [1 x] beta|| and returns beta, intercept first.
//
// Samples with fewer rows than coefficients are rejected as rank-deficient
// before factorization (QR factorization requires at least as many rows as
// columns). Collinear regressors surface the same way: the solve step
// reports an ill-conditioned system, which Fit wraps as
// weighting.ErrRankDeficient so callers can match either failure with a
// single errors.Is check.
func (OLS) Fit(x [][]float64, y []float64) ([]float64, error) {
	rows := len(x)
	if rows == 0 {
		return nil, fmt.Errorf("regress: empty sample")
	}
	if len(y) != rows {
		return nil, fmt.Errorf("regress: response length %d does not match %d sample rows", len(y), rows)
	}

	d := len(x[0])
	cols := d + 1
	if rows < cols {
		return nil, fmt.Errorf("%w: %d rows for %d coefficients", weighting.ErrRankDeficient, rows, cols)
	}

	a := mat.NewDense(rows, cols, nil)
	for i, row := range x {
		if len(row) != d {
			return nil, fmt.Errorf("regress: row %d has %d regressors, want %d", i, len(row), d)
		}
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}

	var qr mat.QR
	qr.Factorize(a)

	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, mat.NewVecDense(rows, y)); err != nil {
		return nil, fmt.Errorf("%w: %v", weighting.ErrRankDeficient, err)
	}

	out := make([]float64, cols)
	for i := range out {
		out[i] = coef.AtVec(i)
	}
	return out, nil
}
