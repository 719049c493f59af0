package markup

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Kind identifies what a Feature represents on the map.
type Kind string

const (
	KindWaypoint     Kind = "waypoint"
	KindTrack        Kind = "track"
	KindShape        Kind = "shape"
	KindFolderMarker Kind = "folder_marker"
)

// SourceFormat identifies which export format a Feature was parsed from.
type SourceFormat string

const (
	FormatGPX     SourceFormat = "gpx"
	FormatKML     SourceFormat = "kml"
	FormatGeoJSON SourceFormat = "geojson"
)

// DropReason is the fixed vocabulary for why a duplicate was dropped.
type DropReason string

const (
	ReasonPolygonOverLine DropReason = "representation_preference_polygon_over_line"
	ReasonFuzzySignature  DropReason = "fuzzy_geometry_signature_match"
	ReasonExactWaypoint   DropReason = "exact_waypoint_duplicate"
)

// Feature is the canonical unit every component reads and writes.
//
// ID is stable within one export but may collide across formats when the same
// upstream object was exported twice (e.g. a GPX track and a KML polygon for
// the same area). That collision is intentional input to the dedup resolver,
// never an error.
//
// Geometry is nil only for folder markers. Track features may carry parallel
// Elevations/Times arrays aligned with the LineString points; both are
// optional and ignored by geometry comparison.
type Feature struct {
	ID          string
	Kind        Kind
	Name        string
	Description string
	FolderRef   string
	Geometry    orb.Geometry
	Elevations  []float64
	Times       []int64 // epoch ms, aligned with track points
	Source      SourceFormat
	RawColor    string
	RawSymbol   string

	// Reconciliation annotations, set by the orchestrator.
	Icon  *MappingResult
	Color *QuantizedColor

	// Set on dropped features only.
	GroupID    string
	DropReason DropReason
}

// Folder is an organizational container referenced weakly by Features.
// A Folder with no geometry is a valid placeholder, not an error.
type Folder struct {
	ID        string
	Name      string
	ParentRef string
}

// FolderIndex resolves weak folder references. Missing references are a
// data-quality condition reported by the caller, not a failure here.
type FolderIndex map[string]Folder

// NewFolderIndex builds a lookup index from all folders in a run.
func NewFolderIndex(folders []Folder) FolderIndex {
	idx := make(FolderIndex, len(folders))
	for _, f := range folders {
		idx[f.ID] = f
	}
	return idx
}

// Lookup returns the folder for id, if known.
func (idx FolderIndex) Lookup(id string) (Folder, bool) {
	f, ok := idx[id]
	return f, ok
}

// Batch is one provenance-tagged parser output: all features and folders
// recovered from a single source file.
type Batch struct {
	Source   SourceFormat
	Path     string
	Features []Feature
	Folders  []Folder
}

// MalformedFeatureError reports a feature the model constructor rejected.
// It is per-feature and non-fatal: callers collect these and continue. Path
// names the source file the feature came from, when known.
type MalformedFeatureError struct {
	FeatureID string
	Name      string
	Reason    string
	Path      string
}

func (e *MalformedFeatureError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("malformed feature %q (%s) in %s: %s", e.FeatureID, e.Name, e.Path, e.Reason)
	}
	return fmt.Sprintf("malformed feature %q (%s): %s", e.FeatureID, e.Name, e.Reason)
}

// ValidateFeature checks the model invariants for a single feature:
// non-folder kinds need geometry, and every coordinate must be a real
// lon/lat pair. It returns a *MalformedFeatureError on failure.
func ValidateFeature(f Feature) error {
	if f.Kind == KindFolderMarker {
		return nil
	}
	if f.Geometry == nil {
		return &MalformedFeatureError{FeatureID: f.ID, Name: f.Name, Reason: "missing geometry"}
	}

	check := func(p orb.Point) error {
		if p[0] < -180 || p[0] > 180 || p[1] < -90 || p[1] > 90 {
			return &MalformedFeatureError{
				FeatureID: f.ID,
				Name:      f.Name,
				Reason:    fmt.Sprintf("coordinate out of range: lon=%g lat=%g", p[0], p[1]),
			}
		}
		return nil
	}

	switch g := f.Geometry.(type) {
	case orb.Point:
		return check(g)
	case orb.LineString:
		if len(g) < 2 {
			return &MalformedFeatureError{FeatureID: f.ID, Name: f.Name, Reason: "track needs at least 2 points"}
		}
		for _, p := range g {
			if err := check(p); err != nil {
				return err
			}
		}
	case orb.Polygon:
		if len(g) == 0 {
			return &MalformedFeatureError{FeatureID: f.ID, Name: f.Name, Reason: "shape has no rings"}
		}
		for _, ring := range g {
			if len(distinctVertices(ring)) < 3 {
				return &MalformedFeatureError{FeatureID: f.ID, Name: f.Name, Reason: "ring needs at least 3 distinct vertices"}
			}
			for _, p := range ring {
				if err := check(p); err != nil {
					return err
				}
			}
		}
	default:
		return &MalformedFeatureError{
			FeatureID: f.ID,
			Name:      f.Name,
			Reason:    fmt.Sprintf("unsupported geometry type %T", f.Geometry),
		}
	}
	return nil
}

// ValidateBatch splits features into valid ones and per-feature errors.
// One bad feature never aborts the batch.
func ValidateBatch(features []Feature) ([]Feature, []*MalformedFeatureError) {
	valid := make([]Feature, 0, len(features))
	var errs []*MalformedFeatureError
	for _, f := range features {
		if err := ValidateFeature(f); err != nil {
			var mfe *MalformedFeatureError
			if me, ok := err.(*MalformedFeatureError); ok {
				mfe = me
			} else {
				mfe = &MalformedFeatureError{FeatureID: f.ID, Name: f.Name, Reason: err.Error()}
			}
			errs = append(errs, mfe)
			continue
		}
		valid = append(valid, f)
	}
	return valid, errs
}

func distinctVertices(ring orb.Ring) []orb.Point {
	seen := make(map[orb.Point]struct{}, len(ring))
	var out []orb.Point
	for _, p := range ring {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
