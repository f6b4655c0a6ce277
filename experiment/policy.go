package experiment

import (
	"math/rand"

	"github.com/mkbrgr/weighbor/weighting"
)

// AlternationPolicy resolves a composite remoteness scheme to a concrete
// scheme for one instance. Remoteness alternates between the proximity and
// surrounding variants of the same space across instances; how instances
// are assigned to a variant is the policy's choice.
//
// Run calls Resolve once per instance, in index order, before any weighting
// begins, so stateful policies stay deterministic even though the weighting
// itself runs in parallel.
type AlternationPolicy interface {
	Resolve(idx int, composite weighting.Scheme) weighting.Scheme
}

// RoundRobin alternates by instance index: even indices get the proximity
// variant, odd indices the surrounding variant of the same space.
type RoundRobin struct{}

// Resolve implements AlternationPolicy. Non-composite schemes pass through
// unchanged.
func (RoundRobin) Resolve(idx int, composite weighting.Scheme) weighting.Scheme {
	switch composite {
	case weighting.SchemeRemotenessX:
		if idx%2 == 0 {
			return weighting.SchemeProximityX
		}
		return weighting.SchemeSurroundingX
	case weighting.SchemeRemotenessXY:
		if idx%2 == 0 {
			return weighting.SchemeProximityXY
		}
		return weighting.SchemeSurroundingXY
	default:
		return composite
	}
}

// Random assigns each instance to the proximity or surrounding variant by a
// seeded coin flip. A fixed seed reproduces the same assignment.
type Random struct {
	rng *rand.Rand
}

// NewRandom creates a Random policy from the given seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Resolve implements AlternationPolicy. Non-composite schemes pass through
// unchanged without consuming randomness.
func (r *Random) Resolve(idx int, composite weighting.Scheme) weighting.Scheme {
	if !composite.Composite() {
		return composite
	}
	proximity := r.rng.Intn(2) == 0
	switch composite {
	case weighting.SchemeRemotenessX:
		if proximity {
			return weighting.SchemeProximityX
		}
		return weighting.SchemeSurroundingX
	default:
		if proximity {
			return weighting.SchemeProximityXY
		}
		return weighting.SchemeSurroundingXY
	}
}
