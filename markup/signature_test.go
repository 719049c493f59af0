package markup

import (
	"testing"

	"github.com/paulmach/orb"
)

func sigOf(t *testing.T, s *Signer, g orb.Geometry) Signature {
	t.Helper()
	sig, err := s.Sign(Feature{ID: "f", Geometry: g})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return sig
}

func TestSignPoint_RoundsToPrecision(t *testing.T) {
	s := NewSigner(6)

	// Differences below 1e-6 degrees must collapse to the same signature.
	a := sigOf(t, s, orb.Point{-114.6543211, 45.1234559})
	b := sigOf(t, s, orb.Point{-114.6543213, 45.1234561})
	if !a.Equal(b) {
		t.Errorf("points within rounding tolerance got different signatures: %v vs %v", a, b)
	}

	// A full 1e-6 step is a real difference.
	c := sigOf(t, s, orb.Point{-114.654322, 45.123456})
	if a.Equal(c) {
		t.Errorf("points a micro-degree apart should not share a signature")
	}
}

func TestSignLine_DirectionInvariant(t *testing.T) {
	s := NewSigner(6)
	fwd := orb.LineString{{0, 0}, {1, 1}, {2, 0}}
	rev := orb.LineString{{2, 0}, {1, 1}, {0, 0}}

	a := sigOf(t, s, fwd)
	b := sigOf(t, s, rev)
	if !a.Equal(b) {
		t.Errorf("reversed line got a different signature: %v vs %v", a, b)
	}

	// A genuinely different vertex order (not a reversal) must differ.
	shuffled := orb.LineString{{1, 1}, {0, 0}, {2, 0}}
	if a.Equal(sigOf(t, s, shuffled)) {
		t.Errorf("non-reversal reordering should change the signature")
	}
}

func TestSignPolygon_RotationAndWindingInvariant(t *testing.T) {
	s := NewSigner(6)

	base := orb.Polygon{{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}}
	rotated := orb.Polygon{{{4, 4}, {0, 4}, {0, 0}, {4, 0}, {4, 4}}}
	reversedWinding := orb.Polygon{{{0, 0}, {0, 4}, {4, 4}, {4, 0}, {0, 0}}}
	unclosed := orb.Polygon{{{0, 0}, {4, 0}, {4, 4}, {0, 4}}}

	want := sigOf(t, s, base)
	for name, poly := range map[string]orb.Polygon{
		"rotated start vertex": rotated,
		"reversed winding":     reversedWinding,
		"no closing vertex":    unclosed,
	} {
		if got := sigOf(t, s, poly); !got.Equal(want) {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
	}

	different := orb.Polygon{{{0, 0}, {5, 0}, {5, 4}, {0, 4}, {0, 0}}}
	if sigOf(t, s, different).Equal(want) {
		t.Errorf("different polygon should not share a signature")
	}
}

func TestSignPolygon_RingOrderIrrelevant(t *testing.T) {
	s := NewSigner(6)
	outer := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	hole := orb.Ring{{2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}}

	a := sigOf(t, s, orb.Polygon{outer, hole})
	b := sigOf(t, s, orb.Polygon{hole, outer})
	if !a.Equal(b) {
		t.Errorf("ring order changed the polygon signature")
	}
}

func TestSign_ClassesNeverCollide(t *testing.T) {
	s := NewSigner(6)

	// A degenerate single-vertex line and the same point: even if the
	// coordinate hashes agreed, the class must separate them.
	pt := sigOf(t, s, orb.Point{1, 2})
	ln := sigOf(t, s, orb.LineString{{1, 2}})
	if pt.Equal(ln) {
		t.Errorf("point and line signatures compared equal")
	}
	if pt.Class != ClassPoint || ln.Class != ClassLine {
		t.Errorf("unexpected classes: %v %v", pt.Class, ln.Class)
	}
}

func TestSign_UnsupportedGeometry(t *testing.T) {
	s := NewSigner(6)
	_, err := s.Sign(Feature{ID: "m-1", Geometry: orb.MultiPoint{{0, 0}}})
	ue, ok := err.(*UnsupportedGeometryClassError)
	if !ok {
		t.Fatalf("expected UnsupportedGeometryClassError, got %v", err)
	}
	if ue.FeatureID != "m-1" {
		t.Errorf("error should carry the feature id, got %q", ue.FeatureID)
	}
}

func TestRoundPoint(t *testing.T) {
	s := NewSigner(6)
	lon, lat := s.RoundPoint(orb.Point{-114.65432149, 45.12345651})
	if lon != -114.654321 || lat != 45.123457 {
		t.Errorf("RoundPoint = (%v, %v), want (-114.654321, 45.123457)", lon, lat)
	}
}

func TestSign_Deterministic(t *testing.T) {
	poly := orb.Polygon{
		{{-114.1, 45.1}, {-114.2, 45.1}, {-114.2, 45.2}, {-114.1, 45.2}, {-114.1, 45.1}},
		{{-114.15, 45.12}, {-114.17, 45.12}, {-114.17, 45.14}, {-114.15, 45.12}},
	}
	a := sigOf(t, NewSigner(6), poly)
	b := sigOf(t, NewSigner(6), poly)
	if !a.Equal(b) {
		t.Errorf("independent signers disagreed on the same polygon")
	}
}
