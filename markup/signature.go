package markup

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// GeometryClass partitions signatures: values of different classes never
// compare equal, even when their coordinate sequences would.
type GeometryClass string

const (
	ClassPoint   GeometryClass = "point"
	ClassLine    GeometryClass = "line"
	ClassPolygon GeometryClass = "polygon"
)

// Signature is a canonical, comparison-ready value for a geometry. Two
// features with equal signatures are geometry-equivalent at the signer's
// rounding precision.
type Signature struct {
	Class GeometryClass
	Hash  uint64
}

// Equal reports whether two signatures match. Class mismatch is never a match.
func (s Signature) Equal(o Signature) bool {
	return s.Class == o.Class && s.Hash == o.Hash
}

// UnsupportedGeometryClassError reports a geometry the signer cannot
// canonicalize. Fatal for that feature only.
type UnsupportedGeometryClassError struct {
	FeatureID string
	Geometry  orb.Geometry
}

func (e *UnsupportedGeometryClassError) Error() string {
	return fmt.Sprintf("feature %q: cannot sign geometry of type %T", e.FeatureID, e.Geometry)
}

// DefaultPrecision is the coordinate rounding applied before comparison:
// 6 decimal places, roughly 11 cm at the equator. This absorbs serialization
// rounding differences between export formats.
const DefaultPrecision = 6

// Signer converts geometries into Signatures. Canonicalization rules:
//
//   - every coordinate is rounded to the configured decimal precision
//   - polygon rings are normalized to clockwise winding and rotated so the
//     lexicographically smallest vertex comes first
//   - lines hash identically to their exact reverse (the same physical track
//     may be exported walked in either direction)
//   - multi-ring polygons hash as the sorted set of per-ring hashes, so ring
//     order is irrelevant
type Signer struct {
	scale float64
}

// NewSigner returns a signer rounding to the given number of decimal places.
func NewSigner(precision int) *Signer {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return &Signer{scale: math.Pow(10, float64(precision))}
}

// Sign computes the signature for a feature's geometry.
func (s *Signer) Sign(f Feature) (Signature, error) {
	switch g := f.Geometry.(type) {
	case orb.Point:
		return s.pointSignature(g), nil
	case orb.LineString:
		return s.lineSignature(g), nil
	case orb.Polygon:
		return s.polygonSignature(g), nil
	default:
		return Signature{}, &UnsupportedGeometryClassError{FeatureID: f.ID, Geometry: f.Geometry}
	}
}

// coord is a rounded coordinate in integer micro-units, safe for exact
// comparison and hashing.
type coord [2]int64

func (s *Signer) round(p orb.Point) coord {
	return coord{
		int64(math.Round(p[0] * s.scale)),
		int64(math.Round(p[1] * s.scale)),
	}
}

// RoundPoint returns the point snapped to the signer's precision, for callers
// that need the same tolerance outside of hashing (waypoint dedup keys).
func (s *Signer) RoundPoint(p orb.Point) (lon, lat float64) {
	c := s.round(p)
	return float64(c[0]) / s.scale, float64(c[1]) / s.scale
}

func (s *Signer) pointSignature(p orb.Point) Signature {
	return Signature{Class: ClassPoint, Hash: hashCoords([]coord{s.round(p)})}
}

func (s *Signer) lineSignature(ls orb.LineString) Signature {
	seq := make([]coord, len(ls))
	for i, p := range ls {
		seq[i] = s.round(p)
	}
	rev := reversed(seq)
	if lessCoords(rev, seq) {
		seq = rev
	}
	return Signature{Class: ClassLine, Hash: hashCoords(seq)}
}

func (s *Signer) polygonSignature(poly orb.Polygon) Signature {
	hashes := make([]uint64, 0, len(poly))
	for _, ring := range poly {
		hashes = append(hashes, s.ringHash(ring))
	}
	// Ring order within a multi-ring polygon must not affect the signature.
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	h := fnv.New64a()
	var buf [8]byte
	for _, rh := range hashes {
		binary.BigEndian.PutUint64(buf[:], rh)
		h.Write(buf[:])
	}
	return Signature{Class: ClassPolygon, Hash: h.Sum64()}
}

// ringHash canonicalizes one ring: closing vertex stripped, winding forced
// clockwise, then rotated to the lexicographically smallest start vertex.
func (s *Signer) ringHash(ring orb.Ring) uint64 {
	seq := make([]coord, len(ring))
	for i, p := range ring {
		seq[i] = s.round(p)
	}
	if len(seq) >= 2 && seq[0] == seq[len(seq)-1] {
		seq = seq[:len(seq)-1]
	}
	if len(seq) == 0 {
		return hashCoords(nil)
	}
	if ring.Orientation() == orb.CCW {
		seq = reversed(seq)
	}
	return hashCoords(minRotation(seq))
}

// minRotation returns the lexicographically smallest rotation of seq.
// Quadratic, but rings in consumer exports are small.
func minRotation(seq []coord) []coord {
	n := len(seq)
	best := seq
	for i := 1; i < n; i++ {
		rot := append(append(make([]coord, 0, n), seq[i:]...), seq[:i]...)
		if lessCoords(rot, best) {
			best = rot
		}
	}
	return best
}

func reversed(seq []coord) []coord {
	out := make([]coord, len(seq))
	for i, c := range seq {
		out[len(seq)-1-i] = c
	}
	return out
}

func lessCoords(a, b []coord) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i][0] != b[i][0] {
				return a[i][0] < b[i][0]
			}
			return a[i][1] < b[i][1]
		}
	}
	return len(a) < len(b)
}

func hashCoords(seq []coord) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, c := range seq {
		binary.BigEndian.PutUint64(buf[:], uint64(c[0]))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], uint64(c[1]))
		h.Write(buf[:])
	}
	return h.Sum64()
}
