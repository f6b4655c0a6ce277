package weighting

import (
	"errors"
	"math"
	"testing"
)

func TestParseSchemeRoundTrip(t *testing.T) {
	ids := []string{
		"proximity-x", "proximity-xy",
		"surrounding-x", "surrounding-xy",
		"nonlinearity",
		"remoteness-x", "remoteness-xy",
	}
	for _, id := range ids {
		s, err := ParseScheme(id)
		if err != nil {
			t.Fatalf("ParseScheme(%q) returned error: %v", id, err)
		}
		if s == SchemeUnknown {
			t.Fatalf("ParseScheme(%q) returned SchemeUnknown", id)
		}
		if got := s.String(); got != id {
			t.Fatalf("String round-trip for %q: got %q", id, got)
		}
	}
}

func TestParseSchemeRejectsUnknown(t *testing.T) {
	for _, id := range []string{"bogus", "", "proximity", "PROXIMITY-X", "remoteness"} {
		s, err := ParseScheme(id)
		if err == nil {
			t.Fatalf("ParseScheme(%q): expected error, got scheme %v", id, s)
		}
		if !errors.Is(err, ErrUnknownScheme) {
			t.Fatalf("ParseScheme(%q): expected ErrUnknownScheme, got %v", id, err)
		}
	}
}

func TestSchemeComposite(t *testing.T) {
	composites := map[Scheme]bool{
		SchemeProximityX:    false,
		SchemeProximityXY:   false,
		SchemeSurroundingX:  false,
		SchemeSurroundingXY: false,
		SchemeNonlinearity:  false,
		SchemeRemotenessX:   true,
		SchemeRemotenessXY:  true,
	}
	for s, want := range composites {
		if got := s.Composite(); got != want {
			t.Fatalf("Composite() for %v: expected %v, got %v", s, want, got)
		}
	}
}

func TestConfigValidateExponents(t *testing.T) {
	// Fractional, unit, and larger exponents are all valid.
	for _, z := range []float64{0.25, 0.5, 1, 2, 3, 10} {
		cfg := Config{Scheme: SchemeProximityX, Exponent: z}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate with z=%v: unexpected error %v", z, err)
		}
	}

	for _, z := range []float64{0, -1, -0.5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		cfg := Config{Scheme: SchemeProximityX, Exponent: z}
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("Validate with z=%v: expected error, got nil", z)
		}
		if !errors.Is(err, ErrBadExponent) {
			t.Fatalf("Validate with z=%v: expected ErrBadExponent, got %v", z, err)
		}
	}
}

func TestConfigValidateScheme(t *testing.T) {
	err := Config{Scheme: SchemeUnknown, Exponent: 2}.Validate()
	if !errors.Is(err, ErrUnknownScheme) {
		t.Fatalf("expected ErrUnknownScheme for zero scheme, got %v", err)
	}

	err = Config{Scheme: Scheme(250), Exponent: 2}.Validate()
	if !errors.Is(err, ErrUnknownScheme) {
		t.Fatalf("expected ErrUnknownScheme for out-of-range scheme, got %v", err)
	}

	// Composites are valid configuration; rejecting them is the
	// dispatcher's job, not Validate's.
	if err := (Config{Scheme: SchemeRemotenessX, Exponent: 2}).Validate(); err != nil {
		t.Fatalf("Validate for remoteness-x: unexpected error %v", err)
	}
}
