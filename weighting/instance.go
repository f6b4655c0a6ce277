package weighting

// Instance is one labeled data point: a feature vector plus a scalar target.
// The combined attribute view (features with the target appended) is built
// once at construction, so concurrent weighting calls share it read-only
// without any lazy-initialization races.
type Instance struct {
	// Neighbors holds borrowed references to the k nearest instances, wired
	// by the orchestrator after construction. Neighbor lists are read-only
	// during weighting and may be shared between instances and calls. An
	// instance is never its own neighbor; the neighbor search guarantees
	// that, not this package.
	Neighbors []*Instance

	// allAttrs is the feature vector followed by the target, length Dim()+1.
	// Input() and Output() are views into it, which keeps the combined view
	// and the parts consistent by construction.
	allAttrs []float64
}

// NewInstance builds an Instance from a feature vector and a target value.
// The input slice is copied; later changes to it do not affect the Instance.
func NewInstance(input []float64, output float64) *Instance {
	all := make([]float64, len(input)+1)
	copy(all, input)
	all[len(input)] = output
	return &Instance{allAttrs: all}
}

// Input returns the feature vector of length Dim(). The returned slice is a
// view into the Instance's backing storage and must not be modified.
func (in *Instance) Input() []float64 {
	return in.allAttrs[:len(in.allAttrs)-1]
}

// Output returns the target value.
func (in *Instance) Output() float64 {
	return in.allAttrs[len(in.allAttrs)-1]
}

// AllAttrs returns the feature vector with the target appended, length
// Dim()+1. The returned slice is a view into the Instance's backing storage
// and must not be modified.
func (in *Instance) AllAttrs() []float64 {
	return in.allAttrs
}

// Dim returns the number of input features.
func (in *Instance) Dim() int {
	return len(in.allAttrs) - 1
}

// space returns the reference vector and dimensionality selected by a
// scheme: the full attribute vector for the -xy variants, the input vector
// otherwise.
func (in *Instance) space(withOutput bool) ([]float64, int) {
	if withOutput {
		return in.allAttrs, len(in.allAttrs)
	}
	return in.Input(), len(in.allAttrs) - 1
}
