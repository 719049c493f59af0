package markup

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// KML adapter. The polygon-capable platform strips most styling from its KML
// exports and moves metadata into <ExtendedData> (name, notes, id, icon,
// color). KML is the only export that carries area geometry as real
// polygons, which is why it feeds the polygon side of representation
// preference.

type kmlFile struct {
	XMLName  xml.Name    `xml:"kml"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name       string         `xml:"name"`
	Folders    []kmlFolder    `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlFolder struct {
	Name       string         `xml:"name"`
	Folders    []kmlFolder    `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name         string      `xml:"name"`
	Description  string      `xml:"description"`
	ExtendedData kmlExtData  `xml:"ExtendedData"`
	Point        *kmlPoint   `xml:"Point"`
	LineString   *kmlLine    `xml:"LineString"`
	Polygon      *kmlPolygon `xml:"Polygon"`
}

type kmlExtData struct {
	Data []kmlData `xml:"Data"`
}

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

type kmlLine struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer  kmlBoundary   `xml:"outerBoundaryIs"`
	Inners []kmlBoundary `xml:"innerBoundaryIs"`
}

type kmlBoundary struct {
	Ring kmlRing `xml:"LinearRing"`
}

type kmlRing struct {
	Coordinates string `xml:"coordinates"`
}

func (e kmlExtData) lookup(key string) string {
	for _, d := range e.Data {
		if strings.EqualFold(strings.TrimSpace(d.Name), key) {
			return strings.TrimSpace(d.Value)
		}
	}
	return ""
}

// parseKMLCoords parses "lon,lat[,alt]" tokens separated by whitespace.
// Malformed tokens are skipped; range validation happens in the model layer.
func parseKMLCoords(text string) orb.LineString {
	var out orb.LineString
	for _, token := range strings.Fields(text) {
		parts := strings.Split(token, ",")
		if len(parts) < 2 {
			continue
		}
		lon, err1 := strconv.ParseFloat(parts[0], 64)
		lat, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, orb.Point{lon, lat})
	}
	return out
}

// ParseKML reads a KML export into a provenance-tagged batch. Folder
// hierarchy becomes Folder records; placemarks inside folders carry the
// folder reference.
func ParseKML(r io.Reader, path string) (Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Batch{}, fmt.Errorf("reading KML: %w", err)
	}
	if len(data) == 0 {
		return Batch{}, fmt.Errorf("KML file is empty: %s", path)
	}

	var k kmlFile
	if err := xml.Unmarshal(data, &k); err != nil {
		return Batch{}, fmt.Errorf("invalid KML file %s: %w", path, err)
	}

	batch := Batch{Source: FormatKML, Path: path}
	for _, pm := range k.Document.Placemarks {
		if f, ok := placemarkFeature(pm, ""); ok {
			batch.Features = append(batch.Features, f)
		}
	}
	for _, folder := range k.Document.Folders {
		walkKMLFolder(folder, "", &batch)
	}
	return batch, nil
}

func walkKMLFolder(folder kmlFolder, parentID string, batch *Batch) {
	id := "folder-" + uuid.NewString()
	batch.Folders = append(batch.Folders, Folder{
		ID:        id,
		Name:      decodeEntities(folder.Name),
		ParentRef: parentID,
	})
	for _, pm := range folder.Placemarks {
		if f, ok := placemarkFeature(pm, id); ok {
			batch.Features = append(batch.Features, f)
		}
	}
	for _, sub := range folder.Folders {
		walkKMLFolder(sub, id, batch)
	}
}

func placemarkFeature(pm kmlPlacemark, folderRef string) (Feature, bool) {
	kv := pm.ExtendedData
	f := Feature{
		ID:          firstNonEmpty(kv.lookup("id"), uuid.NewString()),
		Name:        decodeEntities(firstNonEmpty(kv.lookup("name"), pm.Name)),
		Description: decodeEntities(firstNonEmpty(kv.lookup("notes"), pm.Description)),
		FolderRef:   folderRef,
		Source:      FormatKML,
		RawColor:    normalizeKMLColor(kv.lookup("color")),
		RawSymbol:   kv.lookup("icon"),
	}

	switch {
	case pm.Point != nil:
		pts := parseKMLCoords(pm.Point.Coordinates)
		if len(pts) == 0 {
			return f, false
		}
		f.Kind = KindWaypoint
		f.Geometry = pts[0]
	case pm.LineString != nil:
		f.Kind = KindTrack
		f.Geometry = parseKMLCoords(pm.LineString.Coordinates)
	case pm.Polygon != nil:
		poly := orb.Polygon{orb.Ring(parseKMLCoords(pm.Polygon.Outer.Ring.Coordinates))}
		for _, inner := range pm.Polygon.Inners {
			poly = append(poly, orb.Ring(parseKMLCoords(inner.Ring.Coordinates)))
		}
		f.Kind = KindShape
		f.Geometry = poly
	default:
		// Placemark with no geometry: a pure organizational marker.
		f.Kind = KindFolderMarker
	}
	return f, true
}

// normalizeKMLColor converts KML's AABBGGRR hex into #RRGGBB so the palette
// quantizer sees one encoding. Values that already look like rgb()/#hex pass
// through untouched.
func normalizeKMLColor(c string) string {
	s := strings.TrimSpace(c)
	if s == "" || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "rgb") {
		return s
	}
	if len(s) != 8 {
		return s
	}
	if _, err := strconv.ParseUint(s, 16, 64); err != nil {
		return s
	}
	bb, gg, rr := s[2:4], s[4:6], s[6:8]
	return "#" + strings.ToUpper(rr+gg+bb)
}
