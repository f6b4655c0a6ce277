package selection

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Mask is a set of selected instance indices. It wraps a Roaring bitmap so
// large selections stay compact and set algebra stays cheap.
type Mask struct {
	rb *roaring.Bitmap
}

// NewMask creates a new empty mask.
func NewMask() *Mask {
	return &Mask{
		rb: roaring.New(),
	}
}

// Add marks index i as selected.
func (m *Mask) Add(i int) {
	m.rb.Add(uint32(i))
}

// Remove unmarks index i.
func (m *Mask) Remove(i int) {
	m.rb.Remove(uint32(i))
}

// Contains reports whether index i is selected.
func (m *Mask) Contains(i int) bool {
	return m.rb.Contains(uint32(i))
}

// IsEmpty returns true if nothing is selected.
func (m *Mask) IsEmpty() bool {
	return m.rb.IsEmpty()
}

// Count returns the number of selected indices.
func (m *Mask) Count() int {
	return int(m.rb.GetCardinality())
}

// Indices returns the selected indices in ascending order.
func (m *Mask) Indices() []int {
	raw := m.rb.ToArray()
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = int(v)
	}
	return out
}

// Complement returns the unselected indices of a universe of size n as a
// new mask. The receiver is not modified.
func (m *Mask) Complement(n int) *Mask {
	rb := m.rb.Clone()
	rb.Flip(0, uint64(n))
	return &Mask{rb: rb}
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	return &Mask{
		rb: m.rb.Clone(),
	}
}
