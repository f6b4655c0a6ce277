// Package weighting computes a scalar weight for a labeled data instance
// from its k nearest neighbors. The weight expresses how informative the
// instance is for an instance-selection experiment: proximity schemes sum
// distances to the neighbors, surrounding schemes measure how one-sided the
// neighborhood is, and the nonlinearity scheme measures how far the
// instance sits from the least-squares hyperplane through its
// neighborhood.
//
// Every call is a pure function of the instance, its neighbor list, and
// the configuration. Nothing shared is written, so weighting different
// instances concurrently needs no synchronization beyond read-only sharing
// of the dataset and neighbor lists. Selecting instances, searching
// neighbors, normalizing weights across a dataset, and persisting results
// all happen outside this package.
package weighting

import (
	"errors"
	"fmt"
	"math"
)

// Regressor fits an ordinary least-squares linear regression of a response
// on a design matrix. Implementations must return the D+1 coefficients with
// the intercept first, for x rows of D regressors each. The rows passed to
// Fit are borrowed views into instance storage and must not be modified.
//
// Using an interface here avoids importing the concrete numeric package and
// lets tests substitute a canned fit.
type Regressor interface {
	Fit(x [][]float64, y []float64) ([]float64, error)
}

var (
	// ErrNilRegressor reports a nonlinearity weighing attempted without a
	// regression collaborator.
	ErrNilRegressor = errors.New("nonlinearity weighing requires a regressor")
	// ErrRankDeficient reports a regression sample with fewer independent
	// rows than unknowns, so no unique hyperplane exists. Callers decide
	// whether to skip the instance, retry with more neighbors, or abort.
	ErrRankDeficient = errors.New("rank-deficient regression sample")
	// ErrDegenerateFit reports fitted coefficients that cannot define a
	// hyperplane distance (non-finite values or a zero-norm vector).
	ErrDegenerateFit = errors.New("degenerate hyperplane fit")
)

// Weigher dispatches weighing calls to the scheme estimators. It carries no
// state between calls; the only field is the regression collaborator behind
// the nonlinearity scheme.
type Weigher struct {
	// Regressor solves the least-squares fit for the nonlinearity scheme.
	// It may be left nil when only distance-based schemes are used.
	Regressor Regressor
}

// NewWeigher creates a Weigher with the given regression collaborator.
// r may be nil if the nonlinearity scheme will never be requested.
func NewWeigher(r Regressor) *Weigher {
	return &Weigher{Regressor: r}
}

// Weigh computes the weight of one instance under the given configuration.
//
// The configuration is validated first: an unknown scheme or an invalid
// exponent fails before any computation, and the remoteness composites are
// rejected because they must be resolved to a concrete proximity or
// surrounding variant by the orchestrator, never weighed directly. The
// scheme then selects the vector space (input only for the -x variants,
// input+output for -xy and nonlinearity) and the estimator.
//
// Weigh is deterministic: identical inputs always produce the identical
// weight or the identical failure.
func (w *Weigher) Weigh(inst *Instance, cfg Config) (float64, error) {
	if inst == nil {
		return 0, errors.New("instance cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if cfg.Scheme.Composite() {
		return 0, fmt.Errorf("%w: %v must be resolved before weighing", ErrCompositeScheme, cfg.Scheme)
	}

	switch cfg.Scheme {
	case SchemeProximityX, SchemeProximityXY:
		return proximity(inst, cfg.Scheme.withOutput(), cfg.Exponent), nil
	case SchemeSurroundingX, SchemeSurroundingXY:
		return surrounding(inst, cfg.Scheme.withOutput(), cfg.Exponent), nil
	case SchemeNonlinearity:
		return w.nonlinearity(inst)
	}
	// Unreachable after Validate; kept so the dispatch stays exhaustive.
	return 0, fmt.Errorf("%w: %v", ErrUnknownScheme, cfg.Scheme)
}

// proximity sums the distance from the instance to each neighbor in the
// chosen space. There is no averaging over the neighbor count: weights are
// normalized across the whole dataset afterwards, so only the relative
// magnitude matters. The sum is order-independent, and it is zero only when
// the instance coincides with every neighbor in the chosen space.
func proximity(inst *Instance, withOutput bool, z float64) float64 {
	p, n := inst.space(withOutput)
	sum := 0.0
	for _, nb := range inst.Neighbors {
		q, _ := nb.space(withOutput)
		sum += Distance(p, q, n, z)
	}
	return sum
}

// surrounding accumulates the displacement vectors from each neighbor to
// the instance into a single resultant and returns the resultant's
// magnitude, measured with the same generalized distance against the zero
// vector.
//
// An instance deep inside a cluster has neighbors on all sides, the
// displacements cancel, and the resultant stays small; an instance near a
// boundary has its neighbors concentrated on one side and scores high. For
// z >= 1 the triangle inequality bounds the result by the proximity weight
// of the same space and exponent, with equality when every neighbor lies in
// the same direction.
func surrounding(inst *Instance, withOutput bool, z float64) float64 {
	p, n := inst.space(withOutput)
	resultant := make([]float64, n)
	for _, nb := range inst.Neighbors {
		q, _ := nb.space(withOutput)
		for i := 0; i < n; i++ {
			resultant[i] += p[i] - q[i]
		}
	}
	return Distance(resultant, make([]float64, n), n, z)
}

// nonlinearity measures how far the instance sits from the least-squares
// hyperplane through its neighborhood in the combined input+output space.
//
// The algorithm:
//  1. Build a sample of k+1 rows: row 0 is the instance's (input, output),
//     rows 1..k are the neighbors'. With rows <= D (more unknowns than
//     independent equations once the intercept is counted) the fit is
//     rank-deficient and fails up front.
//  2. Fit output on input with the regression collaborator, which returns
//     the intercept b0 followed by the D input coefficients b1..bD.
//  3. Lift the fit into the combined space of dimension D+1: coefficients
//     [b1..bD, -1] with constant term b0, so the plane equation
//     b1*x1 + ... + bD*xD - y + b0 = 0 matches y = b0 + sum bi*xi.
//  4. Return the perpendicular distance from the instance's full attribute
//     vector to that plane: |sum coeff[i]*attrs[i] + b0| / sqrt(sum coeff[i]^2).
//
// Instances inside a locally-linear neighborhood score near zero; instances
// in a nonlinear region of the response surface score high.
func (w *Weigher) nonlinearity(inst *Instance) (float64, error) {
	if w == nil || w.Regressor == nil {
		return 0, ErrNilRegressor
	}

	d := inst.Dim()
	rows := len(inst.Neighbors) + 1
	if rows <= d {
		return 0, fmt.Errorf("%w: %d sample rows for %d input dimensions", ErrRankDeficient, rows, d)
	}

	x := make([][]float64, 0, rows)
	y := make([]float64, 0, rows)
	x = append(x, inst.Input())
	y = append(y, inst.Output())
	for _, nb := range inst.Neighbors {
		x = append(x, nb.Input())
		y = append(y, nb.Output())
	}

	params, err := w.Regressor.Fit(x, y)
	if err != nil {
		return 0, fmt.Errorf("fit neighborhood hyperplane: %w", err)
	}
	if len(params) != d+1 {
		return 0, fmt.Errorf("regressor returned %d coefficients, want %d", len(params), d+1)
	}

	coeffs := make([]float64, d+1)
	copy(coeffs, params[1:])
	coeffs[d] = -1
	constant := params[0]

	point := inst.AllAttrs()
	num := constant
	norm := 0.0
	for i, c := range coeffs {
		num += c * point[i]
		norm += c * c
	}
	// The fixed -1 output coefficient makes a zero norm impossible for a
	// sane fit, so hitting this means the fit itself was degenerate.
	if norm == 0 || !isFinite(norm) || !isFinite(num) {
		return 0, fmt.Errorf("%w: |coeffs|=%v, deviation=%v", ErrDegenerateFit, norm, num)
	}
	return math.Abs(num) / math.Sqrt(norm), nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
