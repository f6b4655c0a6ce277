// Package selection turns raw instance weights into instance subsets. Raw
// weights are first normalized to [0, 1]; a subset is then chosen either by
// keeping the highest-weighted fraction of instances or by thresholding.
package selection

import (
	"fmt"
	"math"
	"sort"
)

// Normalize scales a vector of non-negative raw weights by its maximum so
// the result lies in [0, 1]. Zero weights stay zero and ratios between
// weights are preserved. The input is not modified.
//
// An empty vector, a non-finite entry, or an all-zero vector (nothing to
// scale by) is an error.
func Normalize(weights []float64) ([]float64, error) {
	if err := checkWeights(weights); err != nil {
		return nil, err
	}

	max := weights[0]
	for _, w := range weights[1:] {
		if w > max {
			max = w
		}
	}
	if max == 0 {
		return nil, fmt.Errorf("selection: all weights are zero")
	}

	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = w / max
	}
	return out, nil
}

// TopFraction selects the ceil(frac * n) highest-weighted indices. Ties
// break toward the lower index so repeated runs select the same subset.
// frac must lie in (0, 1].
func TopFraction(weights []float64, frac float64) (*Mask, error) {
	if err := checkWeights(weights); err != nil {
		return nil, err
	}
	if math.IsNaN(frac) || frac <= 0 || frac > 1 {
		return nil, fmt.Errorf("selection: fraction must be in (0, 1], got %v", frac)
	}

	n := len(weights)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if weights[order[a]] != weights[order[b]] {
			return weights[order[a]] > weights[order[b]]
		}
		return order[a] < order[b]
	})

	keep := int(math.Ceil(frac * float64(n)))
	if keep > n {
		keep = n
	}

	mask := NewMask()
	for _, idx := range order[:keep] {
		mask.Add(idx)
	}
	return mask, nil
}

// Threshold selects every index whose weight is at least min. An empty
// selection is a valid result, not an error.
func Threshold(weights []float64, min float64) (*Mask, error) {
	if err := checkWeights(weights); err != nil {
		return nil, err
	}
	if math.IsNaN(min) {
		return nil, fmt.Errorf("selection: threshold must not be NaN")
	}

	mask := NewMask()
	for i, w := range weights {
		if w >= min {
			mask.Add(i)
		}
	}
	return mask, nil
}

// checkWeights rejects vectors the selection functions cannot rank.
func checkWeights(weights []float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("selection: empty weight vector")
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("selection: weight %d is not finite: %v", i, w)
		}
	}
	return nil
}
