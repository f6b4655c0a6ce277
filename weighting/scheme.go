package weighting

import (
	"errors"
	"fmt"
	"math"
)

// Scheme identifies a weighting scheme. It is a closed enumeration so that
// an unrecognized identifier can never reach the estimators; ParseScheme is
// the only way a string enters, and it rejects anything it does not know.
type Scheme uint8

const (
	// SchemeUnknown is the zero value and is never valid for weighing.
	SchemeUnknown Scheme = iota

	// SchemeProximityX sums distances to the neighbors in input space.
	SchemeProximityX
	// SchemeProximityXY sums distances to the neighbors in the combined
	// input+output space.
	SchemeProximityXY
	// SchemeSurroundingX measures the resultant of the displacement vectors
	// to the neighbors in input space.
	SchemeSurroundingX
	// SchemeSurroundingXY measures the displacement resultant in the
	// combined input+output space.
	SchemeSurroundingXY
	// SchemeNonlinearity measures the deviation of the instance from the
	// least-squares hyperplane through it and its neighbors.
	SchemeNonlinearity

	// SchemeRemotenessX and SchemeRemotenessXY are composites: the
	// orchestrator alternates between the proximity and surrounding variants
	// of the same space across instances. The weighing dispatcher never
	// accepts them directly.
	SchemeRemotenessX
	SchemeRemotenessXY
)

var (
	// ErrUnknownScheme reports a scheme identifier outside the recognized set.
	ErrUnknownScheme = errors.New("unknown weighting scheme")
	// ErrBadExponent reports a distance exponent that is zero, negative, or
	// not finite.
	ErrBadExponent = errors.New("invalid distance exponent")
	// ErrCompositeScheme reports a remoteness scheme reaching the dispatcher
	// without having been resolved by the orchestrator.
	ErrCompositeScheme = errors.New("composite scheme")
)

// ParseScheme maps a scheme identifier string to its Scheme value. The
// recognized identifiers are proximity-x, proximity-xy, surrounding-x,
// surrounding-xy, nonlinearity, remoteness-x and remoteness-xy. Any other
// string is a configuration error, never a silent default.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "proximity-x":
		return SchemeProximityX, nil
	case "proximity-xy":
		return SchemeProximityXY, nil
	case "surrounding-x":
		return SchemeSurroundingX, nil
	case "surrounding-xy":
		return SchemeSurroundingXY, nil
	case "nonlinearity":
		return SchemeNonlinearity, nil
	case "remoteness-x":
		return SchemeRemotenessX, nil
	case "remoteness-xy":
		return SchemeRemotenessXY, nil
	}
	return SchemeUnknown, fmt.Errorf("%w: %q", ErrUnknownScheme, s)
}

// String returns the identifier form of the scheme, the same strings
// ParseScheme accepts.
func (s Scheme) String() string {
	switch s {
	case SchemeProximityX:
		return "proximity-x"
	case SchemeProximityXY:
		return "proximity-xy"
	case SchemeSurroundingX:
		return "surrounding-x"
	case SchemeSurroundingXY:
		return "surrounding-xy"
	case SchemeNonlinearity:
		return "nonlinearity"
	case SchemeRemotenessX:
		return "remoteness-x"
	case SchemeRemotenessXY:
		return "remoteness-xy"
	}
	return "unknown"
}

// Composite reports whether the scheme is one of the remoteness composites
// that must be resolved to a concrete proximity or surrounding variant
// before weighing.
func (s Scheme) Composite() bool {
	return s == SchemeRemotenessX || s == SchemeRemotenessXY
}

// withOutput reports whether the scheme works in the combined input+output
// space. Nonlinearity always does; for the others the -xy variants do.
func (s Scheme) withOutput() bool {
	switch s {
	case SchemeProximityXY, SchemeSurroundingXY, SchemeRemotenessXY, SchemeNonlinearity:
		return true
	}
	return false
}

// Config selects a scheme and the Minkowski exponent used for distances.
// It is immutable for the duration of a weighting run.
type Config struct {
	Scheme   Scheme
	Exponent float64
}

// Validate checks the configuration before any computation happens. The
// exponent must be finite and positive; fractional exponents in (0,1) are
// deliberately valid, they select the fractional (non-metric) distance.
func (c Config) Validate() error {
	switch c.Scheme {
	case SchemeProximityX, SchemeProximityXY, SchemeSurroundingX,
		SchemeSurroundingXY, SchemeNonlinearity, SchemeRemotenessX, SchemeRemotenessXY:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownScheme, c.Scheme)
	}
	if math.IsNaN(c.Exponent) || math.IsInf(c.Exponent, 0) || c.Exponent <= 0 {
		return fmt.Errorf("%w: must be a finite positive number, got %v", ErrBadExponent, c.Exponent)
	}
	return nil
}
