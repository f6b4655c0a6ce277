package weighting

import "math"

// Distance returns the generalized Minkowski distance between the first n
// components of p and q with exponent z:
//
//	( sum_i |p[i]-q[i]|^z )^(1/z)
//
// z=1 is the Manhattan distance and z=2 the Euclidean distance. Exponents in
// (0,1) give the fractional distance, which is not a metric but is a valid,
// deliberate proximity notion here. Zero, negative, or non-finite exponents
// are configuration errors rejected by Config.Validate before any call gets
// this far; Distance itself assumes z is valid and that n does not exceed
// the length of either slice.
//
// The result is always >= 0 and is 0 exactly when p and q agree on the
// first n components.
func Distance(p, q []float64, n int, z float64) float64 {
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += math.Pow(math.Abs(p[i]-q[i]), z)
	}
	return math.Pow(sum, 1/z)
}
