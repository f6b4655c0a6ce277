package weighting

import (
	"errors"
	"math"
	"testing"
)

// mockRegressor returns canned coefficients and records the sample it was
// handed, so tests can verify the dispatcher's row ordering without a real
// least-squares implementation.
type mockRegressor struct {
	params []float64
	err    error

	called bool
	gotX   [][]float64
	gotY   []float64
}

func (m *mockRegressor) Fit(x [][]float64, y []float64) ([]float64, error) {
	m.called = true
	m.gotX = x
	m.gotY = y
	if m.err != nil {
		return nil, m.err
	}
	return m.params, nil
}

// neighborhood builds an instance with the given neighbors wired in.
func neighborhood(input []float64, output float64, neighbors ...*Instance) *Instance {
	inst := NewInstance(input, output)
	inst.Neighbors = neighbors
	return inst
}

func TestInstanceAttrs(t *testing.T) {
	input := []float64{1, 2, 3}
	inst := NewInstance(input, 4)

	if inst.Dim() != 3 {
		t.Fatalf("Dim: expected 3, got %d", inst.Dim())
	}
	if got := inst.Output(); got != 4 {
		t.Fatalf("Output: expected 4, got %v", got)
	}
	all := inst.AllAttrs()
	if len(all) != 4 || all[0] != 1 || all[1] != 2 || all[2] != 3 || all[3] != 4 {
		t.Fatalf("AllAttrs: expected [1 2 3 4], got %v", all)
	}

	// The constructor copies; mutating the original slice must not leak in.
	input[0] = 99
	if inst.Input()[0] != 1 {
		t.Fatalf("Instance aliased the caller's input slice")
	}
}

func TestWeighProximityAndSurroundingScenario(t *testing.T) {
	// Two neighbors at [1,0] and [-1,0] around an instance at the origin:
	// displacements cancel, so surrounding-x is 0 while proximity-x is 2.
	inst := neighborhood([]float64{0, 0}, 0,
		NewInstance([]float64{1, 0}, 0),
		NewInstance([]float64{-1, 0}, 0),
	)
	w := NewWeigher(nil)

	prox, err := w.Weigh(inst, Config{Scheme: SchemeProximityX, Exponent: 2})
	if err != nil {
		t.Fatalf("proximity-x returned error: %v", err)
	}
	if !approxEqual(prox, 2, 1e-12) {
		t.Fatalf("proximity-x: expected 2, got %v", prox)
	}

	surr, err := w.Weigh(inst, Config{Scheme: SchemeSurroundingX, Exponent: 2})
	if err != nil {
		t.Fatalf("surrounding-x returned error: %v", err)
	}
	if !approxEqual(surr, 0, 1e-12) {
		t.Fatalf("surrounding-x: expected 0, got %v", surr)
	}
}

func TestWeighProximityOrderInvariant(t *testing.T) {
	a := NewInstance([]float64{1, 2}, 3)
	b := NewInstance([]float64{-2, 0.5}, 1)
	c := NewInstance([]float64{4, -1}, -2)

	fwd := neighborhood([]float64{0.5, 0.25}, 2, a, b, c)
	rev := neighborhood([]float64{0.5, 0.25}, 2, c, b, a)
	w := NewWeigher(nil)

	for _, scheme := range []Scheme{SchemeProximityX, SchemeProximityXY} {
		w1, err := w.Weigh(fwd, Config{Scheme: scheme, Exponent: 2})
		if err != nil {
			t.Fatalf("%v returned error: %v", scheme, err)
		}
		w2, err := w.Weigh(rev, Config{Scheme: scheme, Exponent: 2})
		if err != nil {
			t.Fatalf("%v returned error: %v", scheme, err)
		}
		if !approxEqual(w1, w2, 1e-12) {
			t.Fatalf("%v not order-invariant: %v vs %v", scheme, w1, w2)
		}
	}
}

func TestWeighSpaceSelection(t *testing.T) {
	// The neighbor matches the instance in input space but differs in the
	// output, so the -x variant sees distance 0 and the -xy variant does not.
	inst := neighborhood([]float64{0}, 0, NewInstance([]float64{0}, 5))
	w := NewWeigher(nil)

	px, err := w.Weigh(inst, Config{Scheme: SchemeProximityX, Exponent: 2})
	if err != nil {
		t.Fatalf("proximity-x returned error: %v", err)
	}
	if px != 0 {
		t.Fatalf("proximity-x: expected 0, got %v", px)
	}

	pxy, err := w.Weigh(inst, Config{Scheme: SchemeProximityXY, Exponent: 2})
	if err != nil {
		t.Fatalf("proximity-xy returned error: %v", err)
	}
	if !approxEqual(pxy, 5, 1e-12) {
		t.Fatalf("proximity-xy: expected 5, got %v", pxy)
	}
}

func TestSurroundingBoundedByProximity(t *testing.T) {
	inst := neighborhood([]float64{0.3, -1.2, 2}, 0.7,
		NewInstance([]float64{1, 0, -1}, 1.5),
		NewInstance([]float64{-2, 1, 0.5}, -0.25),
		NewInstance([]float64{0.1, 3, 1}, 2),
		NewInstance([]float64{-0.5, -0.5, -0.5}, 0),
	)
	w := NewWeigher(nil)

	for _, z := range []float64{1, 2, 3} {
		prox, err := w.Weigh(inst, Config{Scheme: SchemeProximityXY, Exponent: z})
		if err != nil {
			t.Fatalf("proximity-xy z=%v returned error: %v", z, err)
		}
		surr, err := w.Weigh(inst, Config{Scheme: SchemeSurroundingXY, Exponent: z})
		if err != nil {
			t.Fatalf("surrounding-xy z=%v returned error: %v", z, err)
		}
		if surr > prox+1e-9 {
			t.Fatalf("z=%v: surrounding %v exceeds proximity %v", z, surr, prox)
		}
	}
}

func TestSurroundingEqualsProximityOneSided(t *testing.T) {
	// All neighbors lie in the same direction from the instance, so the
	// displacement magnitudes add without cancellation.
	inst := neighborhood([]float64{0, 0}, 0,
		NewInstance([]float64{1, 1}, 0),
		NewInstance([]float64{2, 2}, 0),
	)
	w := NewWeigher(nil)

	prox, err := w.Weigh(inst, Config{Scheme: SchemeProximityX, Exponent: 2})
	if err != nil {
		t.Fatalf("proximity-x returned error: %v", err)
	}
	surr, err := w.Weigh(inst, Config{Scheme: SchemeSurroundingX, Exponent: 2})
	if err != nil {
		t.Fatalf("surrounding-x returned error: %v", err)
	}
	if !approxEqual(prox, 3*math.Sqrt2, 1e-12) {
		t.Fatalf("proximity-x: expected %v, got %v", 3*math.Sqrt2, prox)
	}
	if !approxEqual(surr, prox, 1e-12) {
		t.Fatalf("one-sided neighborhood: expected surrounding %v to equal proximity %v", surr, prox)
	}
}

func TestWeighRejectsComposite(t *testing.T) {
	inst := neighborhood([]float64{0}, 0, NewInstance([]float64{1}, 1))
	w := NewWeigher(nil)

	for _, scheme := range []Scheme{SchemeRemotenessX, SchemeRemotenessXY} {
		_, err := w.Weigh(inst, Config{Scheme: scheme, Exponent: 2})
		if !errors.Is(err, ErrCompositeScheme) {
			t.Fatalf("%v: expected ErrCompositeScheme, got %v", scheme, err)
		}
	}
}

func TestWeighRejectsInvalidConfig(t *testing.T) {
	inst := neighborhood([]float64{0}, 0, NewInstance([]float64{1}, 1))
	w := NewWeigher(nil)

	if _, err := w.Weigh(inst, Config{Scheme: SchemeUnknown, Exponent: 2}); !errors.Is(err, ErrUnknownScheme) {
		t.Fatalf("expected ErrUnknownScheme, got %v", err)
	}
	if _, err := w.Weigh(inst, Config{Scheme: SchemeProximityX, Exponent: -2}); !errors.Is(err, ErrBadExponent) {
		t.Fatalf("expected ErrBadExponent, got %v", err)
	}
}

func TestNonlinearityRowOrderAndExactPlane(t *testing.T) {
	// All points on y = 1 + 2*x1 - 3*x2. A regressor returning the exact
	// plane must produce weight 0, and the dispatcher must pass the instance
	// as row 0 followed by the neighbors in order.
	plane := func(x1, x2 float64) float64 { return 1 + 2*x1 - 3*x2 }

	inst := neighborhood([]float64{1, 1}, plane(1, 1),
		NewInstance([]float64{0, 0}, plane(0, 0)),
		NewInstance([]float64{2, 0.5}, plane(2, 0.5)),
		NewInstance([]float64{-1, 2}, plane(-1, 2)),
	)
	reg := &mockRegressor{params: []float64{1, 2, -3}}
	w := NewWeigher(reg)

	got, err := w.Weigh(inst, Config{Scheme: SchemeNonlinearity, Exponent: 2})
	if err != nil {
		t.Fatalf("nonlinearity returned error: %v", err)
	}
	if !approxEqual(got, 0, 1e-9) {
		t.Fatalf("on-plane nonlinearity: expected 0, got %v", got)
	}

	if len(reg.gotX) != 4 || len(reg.gotY) != 4 {
		t.Fatalf("regression sample size: expected 4 rows, got %d/%d", len(reg.gotX), len(reg.gotY))
	}
	if reg.gotX[0][0] != 1 || reg.gotX[0][1] != 1 || reg.gotY[0] != plane(1, 1) {
		t.Fatalf("row 0 must be the instance, got x=%v y=%v", reg.gotX[0], reg.gotY[0])
	}
	if reg.gotX[1][0] != 0 || reg.gotY[2] != plane(2, 0.5) {
		t.Fatalf("neighbor rows out of order: x=%v y=%v", reg.gotX[1:], reg.gotY[1:])
	}
}

func TestNonlinearityKnownDeviation(t *testing.T) {
	// Fit is the flat plane y = 0 in one input dimension. The lifted
	// coefficients are [0, -1] with constant 0, so the deviation of an
	// instance with output 2 is exactly 2.
	inst := neighborhood([]float64{1}, 2, NewInstance([]float64{3}, 0))
	w := NewWeigher(&mockRegressor{params: []float64{0, 0}})

	got, err := w.Weigh(inst, Config{Scheme: SchemeNonlinearity, Exponent: 2})
	if err != nil {
		t.Fatalf("nonlinearity returned error: %v", err)
	}
	if !approxEqual(got, 2, 1e-12) {
		t.Fatalf("expected deviation 2, got %v", got)
	}
}

func TestNonlinearityRankDeficientShortSample(t *testing.T) {
	// k=0 with two input dimensions: one sample row, three unknowns. The
	// failure must surface before the regressor is ever consulted.
	inst := neighborhood([]float64{1, 2}, 3)
	reg := &mockRegressor{params: []float64{0, 0, 0}}
	w := NewWeigher(reg)

	_, err := w.Weigh(inst, Config{Scheme: SchemeNonlinearity, Exponent: 2})
	if !errors.Is(err, ErrRankDeficient) {
		t.Fatalf("expected ErrRankDeficient, got %v", err)
	}
	if reg.called {
		t.Fatalf("regressor must not be called for an undersized sample")
	}
}

func TestNonlinearityFitErrorPropagates(t *testing.T) {
	inst := neighborhood([]float64{1}, 1,
		NewInstance([]float64{2}, 2),
		NewInstance([]float64{3}, 3),
	)
	fitErr := errors.New("singular matrix")
	w := NewWeigher(&mockRegressor{err: fitErr})

	_, err := w.Weigh(inst, Config{Scheme: SchemeNonlinearity, Exponent: 2})
	if !errors.Is(err, fitErr) {
		t.Fatalf("expected wrapped fit error, got %v", err)
	}
}

func TestNonlinearityNilRegressor(t *testing.T) {
	inst := neighborhood([]float64{1}, 1, NewInstance([]float64{2}, 2))
	w := NewWeigher(nil)

	_, err := w.Weigh(inst, Config{Scheme: SchemeNonlinearity, Exponent: 2})
	if !errors.Is(err, ErrNilRegressor) {
		t.Fatalf("expected ErrNilRegressor, got %v", err)
	}
}

func TestNonlinearityDegenerateFit(t *testing.T) {
	inst := neighborhood([]float64{1}, 1, NewInstance([]float64{2}, 2))
	w := NewWeigher(&mockRegressor{params: []float64{math.NaN(), math.NaN()}})

	_, err := w.Weigh(inst, Config{Scheme: SchemeNonlinearity, Exponent: 2})
	if !errors.Is(err, ErrDegenerateFit) {
		t.Fatalf("expected ErrDegenerateFit, got %v", err)
	}
}

func TestWeighNilInstance(t *testing.T) {
	w := NewWeigher(nil)
	if _, err := w.Weigh(nil, Config{Scheme: SchemeProximityX, Exponent: 2}); err == nil {
		t.Fatalf("expected error for nil instance, got nil")
	}
}
