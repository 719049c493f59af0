package markup

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// GeoJSON adapter for the folder-capable platform's flavored exports.
// Feature type rides in properties.class: "Folder" features have null
// geometry and define the folder tree, "Marker" is a waypoint, "Shape"
// covers both lines and polygons (the geometry type disambiguates).
// Coordinate positions may carry two extra slots: [lon, lat, ele, epoch_ms].

type geoJSONCollection struct {
	Type     string            `json:"type"`
	Features []*geoJSONFeature `json:"features"`
}

type geoJSONFeature struct {
	Type       string           `json:"type"`
	ID         any              `json:"id,omitempty"`
	Geometry   *geoJSONGeometry `json:"geometry"`
	Properties map[string]any   `json:"properties"`
}

type geoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ParseGeoJSON reads a flavored GeoJSON export into a provenance-tagged
// batch.
func ParseGeoJSON(r io.Reader, path string) (Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Batch{}, fmt.Errorf("reading GeoJSON: %w", err)
	}
	if len(data) == 0 {
		return Batch{}, fmt.Errorf("GeoJSON file is empty: %s", path)
	}

	var fc geoJSONCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return Batch{}, fmt.Errorf("invalid GeoJSON file %s: %w", path, err)
	}

	batch := Batch{Source: FormatGeoJSON, Path: path}
	for _, gf := range fc.Features {
		if gf == nil {
			continue
		}
		props := gf.Properties
		id := stringID(gf.ID)
		if id == "" {
			id = uuid.NewString()
		}
		class := propString(props, "class")
		name := decodeEntities(propString(props, "title"))
		desc := decodeEntities(propString(props, "description"))
		folderRef := propString(props, "folderId")

		if strings.EqualFold(class, "Folder") || gf.Geometry == nil {
			batch.Folders = append(batch.Folders, Folder{
				ID:        id,
				Name:      name,
				ParentRef: folderRef,
			})
			batch.Features = append(batch.Features, Feature{
				ID:        id,
				Kind:      KindFolderMarker,
				Name:      name,
				FolderRef: folderRef,
				Source:    FormatGeoJSON,
			})
			continue
		}

		f := Feature{
			ID:          id,
			Name:        name,
			Description: desc,
			FolderRef:   folderRef,
			Source:      FormatGeoJSON,
			RawSymbol:   propString(props, "marker-symbol"),
		}

		switch gf.Geometry.Type {
		case "Point":
			var pos []float64
			if err := json.Unmarshal(gf.Geometry.Coordinates, &pos); err != nil || len(pos) < 2 {
				continue
			}
			f.Kind = KindWaypoint
			f.Geometry = orb.Point{pos[0], pos[1]}
			f.RawColor = propString(props, "marker-color")
		case "LineString":
			var positions [][]float64
			if err := json.Unmarshal(gf.Geometry.Coordinates, &positions); err != nil {
				continue
			}
			line, eles, times := positionsToLine(positions)
			f.Kind = KindTrack
			f.Geometry = line
			f.Elevations = eles
			f.Times = times
			f.RawColor = propString(props, "stroke")
		case "Polygon":
			var rings [][][]float64
			if err := json.Unmarshal(gf.Geometry.Coordinates, &rings); err != nil {
				continue
			}
			poly := make(orb.Polygon, 0, len(rings))
			for _, ring := range rings {
				line, _, _ := positionsToLine(ring)
				poly = append(poly, orb.Ring(line))
			}
			f.Kind = KindShape
			f.Geometry = poly
			f.RawColor = propString(props, "stroke")
		default:
			continue
		}
		batch.Features = append(batch.Features, f)
	}
	return batch, nil
}

// positionsToLine splits flavored positions into geometry and the optional
// elevation/time side arrays.
func positionsToLine(positions [][]float64) (orb.LineString, []float64, []int64) {
	if len(positions) == 0 {
		return nil, nil, nil
	}
	line := make(orb.LineString, 0, len(positions))
	var eles []float64
	var times []int64
	hasEle, hasTime := false, false
	for _, pos := range positions {
		if len(pos) >= 3 {
			hasEle = true
		}
		if len(pos) >= 4 {
			hasTime = true
		}
	}
	if hasEle {
		eles = make([]float64, 0, len(positions))
	}
	if hasTime {
		times = make([]int64, 0, len(positions))
	}
	for _, pos := range positions {
		if len(pos) < 2 {
			continue
		}
		line = append(line, orb.Point{pos[0], pos[1]})
		if hasEle {
			var e float64
			if len(pos) >= 3 {
				e = pos[2]
			}
			eles = append(eles, e)
		}
		if hasTime {
			var t int64
			if len(pos) >= 4 {
				t = int64(pos[3])
			}
			times = append(times, t)
		}
	}
	return line, eles, times
}

// WriteGeoJSON serializes features (plus the folder tree) as a flavored
// FeatureCollection the target platform can import. The same writer serves
// the primary and the dropped-feature documents.
func WriteGeoJSON(w io.Writer, features []Feature, folders []Folder) error {
	// Features starts non-nil so an empty document serializes as
	// "features": [], not null.
	fc := geoJSONCollection{Type: "FeatureCollection", Features: []*geoJSONFeature{}}

	for _, folder := range folders {
		props := map[string]any{"class": "Folder", "title": folder.Name}
		if folder.ParentRef != "" {
			props["folderId"] = folder.ParentRef
		}
		fc.Features = append(fc.Features, &geoJSONFeature{
			Type:       "Feature",
			ID:         folder.ID,
			Geometry:   nil,
			Properties: props,
		})
	}

	for _, f := range features {
		gf, ok := featureToGeoJSON(f)
		if !ok {
			continue
		}
		fc.Features = append(fc.Features, gf)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

func featureToGeoJSON(f Feature) (*geoJSONFeature, bool) {
	props := map[string]any{"title": f.Name}
	if f.Description != "" {
		props["description"] = f.Description
	}
	if f.FolderRef != "" {
		props["folderId"] = f.FolderRef
	}
	if f.DropReason != "" {
		props["cairn:dropReason"] = string(f.DropReason)
		props["cairn:groupId"] = f.GroupID
	}
	icon, color := finalIconColor(f)

	var geom *geoJSONGeometry
	switch f.Kind {
	case KindWaypoint:
		pt, ok := pointOf(f)
		if !ok {
			return nil, false
		}
		props["class"] = "Marker"
		if icon != "" {
			props["marker-symbol"] = icon
		}
		if color != "" {
			props["marker-color"] = colorToHex(color)
		}
		geom = rawGeometry("Point", []float64{pt[0], pt[1]})
	case KindTrack:
		line, ok := lineOf(f)
		if !ok {
			return nil, false
		}
		props["class"] = "Shape"
		if color != "" {
			props["stroke"] = colorToHex(color)
		}
		props["pattern"] = "solid"
		geom = rawGeometry("LineString", lineToPositions(line, f.Elevations, f.Times))
	case KindShape:
		poly, ok := polygonOf(f)
		if !ok {
			return nil, false
		}
		props["class"] = "Shape"
		if color != "" {
			props["stroke"] = colorToHex(color)
		}
		rings := make([][][]float64, len(poly))
		for i, ring := range poly {
			rings[i] = lineToPositions(orb.LineString(ring), nil, nil)
		}
		geom = rawGeometry("Polygon", rings)
	default:
		return nil, false
	}

	return &geoJSONFeature{Type: "Feature", ID: f.ID, Geometry: geom, Properties: props}, true
}

func lineToPositions(line orb.LineString, eles []float64, times []int64) [][]float64 {
	out := make([][]float64, len(line))
	for i, p := range line {
		pos := []float64{p[0], p[1]}
		if i < len(eles) {
			pos = append(pos, eles[i])
			if i < len(times) {
				pos = append(pos, float64(times[i]))
			}
		}
		out[i] = pos
	}
	return out
}

func rawGeometry(typ string, coords any) *geoJSONGeometry {
	raw, _ := json.Marshal(coords)
	return &geoJSONGeometry{Type: typ, Coordinates: raw}
}

// colorToHex renders any supported color encoding as the #RRGGBB form the
// folder-capable platform expects.
func colorToHex(c string) string {
	r, g, b := ParseColor(c)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

func propString(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func stringID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return ""
	}
}
