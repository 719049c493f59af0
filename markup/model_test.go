package markup

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

func TestValidateFeature(t *testing.T) {
	valid := []Feature{
		{ID: "w", Kind: KindWaypoint, Geometry: orb.Point{-114.6, 45.1}},
		{ID: "t", Kind: KindTrack, Geometry: orb.LineString{{0, 0}, {1, 1}}},
		{ID: "s", Kind: KindShape, Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
		{ID: "f", Kind: KindFolderMarker}, // no geometry required
	}
	for _, f := range valid {
		if err := ValidateFeature(f); err != nil {
			t.Errorf("feature %s should validate: %v", f.ID, err)
		}
	}

	invalid := []Feature{
		{ID: "lon", Kind: KindWaypoint, Geometry: orb.Point{181, 0}},
		{ID: "lat", Kind: KindWaypoint, Geometry: orb.Point{0, -91}},
		{ID: "nogeom", Kind: KindWaypoint},
		{ID: "short", Kind: KindTrack, Geometry: orb.LineString{{0, 0}}},
		{ID: "badpt", Kind: KindTrack, Geometry: orb.LineString{{0, 0}, {200, 0}}},
		// Closed ring with only 2 distinct vertices.
		{ID: "thin", Kind: KindShape, Geometry: orb.Polygon{{{0, 0}, {1, 1}, {0, 0}}}},
	}
	for _, f := range invalid {
		err := ValidateFeature(f)
		if err == nil {
			t.Errorf("feature %s should fail validation", f.ID)
			continue
		}
		mfe, ok := err.(*MalformedFeatureError)
		if !ok {
			t.Errorf("feature %s: error type %T, want *MalformedFeatureError", f.ID, err)
			continue
		}
		if mfe.FeatureID != f.ID {
			t.Errorf("error feature id = %q, want %q", mfe.FeatureID, f.ID)
		}
	}
}

func TestMalformedFeatureError_CarriesPath(t *testing.T) {
	e := &MalformedFeatureError{FeatureID: "w-9", Name: "X", Reason: "latitude out of range", Path: "trip.gpx"}
	if !strings.Contains(e.Error(), "trip.gpx") {
		t.Errorf("Error() = %q, want the source path included", e.Error())
	}
	e.Path = ""
	if strings.Contains(e.Error(), " in ") {
		t.Errorf("Error() = %q, pathless errors should omit the location", e.Error())
	}
}

func TestValidateBatch_PartitionsNotFails(t *testing.T) {
	features := []Feature{
		{ID: "good", Kind: KindWaypoint, Geometry: orb.Point{1, 2}},
		{ID: "bad", Kind: KindWaypoint, Geometry: orb.Point{999, 2}},
		{ID: "also-good", Kind: KindTrack, Geometry: orb.LineString{{0, 0}, {1, 1}}},
	}
	valid, malformed := ValidateBatch(features)
	if len(valid) != 2 {
		t.Errorf("valid = %d, want 2", len(valid))
	}
	if len(malformed) != 1 || malformed[0].FeatureID != "bad" {
		t.Errorf("malformed = %+v", malformed)
	}
}

func TestFolderIndex(t *testing.T) {
	idx := NewFolderIndex([]Folder{
		{ID: "a", Name: "Trips"},
		{ID: "b", Name: "Areas", ParentRef: "a"},
	})
	if f, ok := idx.Lookup("b"); !ok || f.ParentRef != "a" {
		t.Errorf("Lookup(b) = %+v, %v", f, ok)
	}
	if _, ok := idx.Lookup("missing"); ok {
		t.Errorf("missing id resolved")
	}
}
