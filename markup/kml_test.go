package markup

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

const sampleKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Export</name>
    <Placemark>
      <name>Loose Marker</name>
      <ExtendedData>
        <Data name="id"><value>wp-9</value></Data>
        <Data name="icon"><value>tent</value></Data>
        <Data name="color"><value>ff0033ff</value></Data>
      </ExtendedData>
      <Point><coordinates>-114.654321,45.123456,2400</coordinates></Point>
    </Placemark>
    <Folder>
      <name>Trips</name>
      <Placemark>
        <name>Ridge</name>
        <ExtendedData>
          <Data name="id"><value>trk-3</value></Data>
        </ExtendedData>
        <LineString><coordinates>
          -114.1,45.1 -114.2,45.2,2500
        </coordinates></LineString>
      </Placemark>
      <Folder>
        <name>Areas</name>
        <Placemark>
          <name>Basin</name>
          <ExtendedData>
            <Data name="id"><value>area-9</value></Data>
          </ExtendedData>
          <Polygon>
            <outerBoundaryIs><LinearRing><coordinates>
              -114.1,45.1 -114.2,45.1 -114.2,45.2 -114.1,45.1
            </coordinates></LinearRing></outerBoundaryIs>
            <innerBoundaryIs><LinearRing><coordinates>
              -114.15,45.12 -114.17,45.12 -114.17,45.14 -114.15,45.12
            </coordinates></LinearRing></innerBoundaryIs>
          </Polygon>
        </Placemark>
      </Folder>
    </Folder>
  </Document>
</kml>`

func TestParseKML(t *testing.T) {
	batch, err := ParseKML(strings.NewReader(sampleKML), "sample.kml")
	if err != nil {
		t.Fatalf("ParseKML: %v", err)
	}
	if batch.Source != FormatKML {
		t.Errorf("source = %q", batch.Source)
	}
	if len(batch.Features) != 3 {
		t.Fatalf("features = %d, want 3", len(batch.Features))
	}
	if len(batch.Folders) != 2 {
		t.Fatalf("folders = %d, want 2", len(batch.Folders))
	}

	wp := batch.Features[0]
	if wp.Kind != KindWaypoint || wp.ID != "wp-9" || wp.FolderRef != "" {
		t.Errorf("waypoint = %+v", wp)
	}
	if wp.RawSymbol != "tent" {
		t.Errorf("symbol = %q", wp.RawSymbol)
	}
	// KML AABBGGRR converts to #RRGGBB.
	if wp.RawColor != "#FF3300" {
		t.Errorf("color = %q, want #FF3300", wp.RawColor)
	}

	trk := batch.Features[1]
	if trk.Kind != KindTrack || trk.ID != "trk-3" {
		t.Errorf("track = %+v", trk)
	}
	if trk.FolderRef != batch.Folders[0].ID {
		t.Errorf("track folder ref = %q, want %q", trk.FolderRef, batch.Folders[0].ID)
	}
	if len(trk.Geometry.(orb.LineString)) != 2 {
		t.Errorf("track geometry = %v", trk.Geometry)
	}

	shp := batch.Features[2]
	if shp.Kind != KindShape || shp.ID != "area-9" {
		t.Errorf("shape = %+v", shp)
	}
	poly := shp.Geometry.(orb.Polygon)
	if len(poly) != 2 {
		t.Fatalf("rings = %d, want outer plus hole", len(poly))
	}
	if shp.FolderRef != batch.Folders[1].ID {
		t.Errorf("shape should reference the nested folder")
	}

	// Folder hierarchy: Areas is a child of Trips.
	if batch.Folders[0].Name != "Trips" || batch.Folders[1].Name != "Areas" {
		t.Errorf("folders = %+v", batch.Folders)
	}
	if batch.Folders[1].ParentRef != batch.Folders[0].ID {
		t.Errorf("nested folder parent = %q, want %q", batch.Folders[1].ParentRef, batch.Folders[0].ID)
	}
}

func TestParseKML_GeometrylessPlacemark(t *testing.T) {
	const kml = `<?xml version="1.0"?>
<kml><Document><Placemark><name>Note only</name></Placemark></Document></kml>`
	batch, err := ParseKML(strings.NewReader(kml), "x.kml")
	if err != nil {
		t.Fatalf("ParseKML: %v", err)
	}
	if len(batch.Features) != 1 || batch.Features[0].Kind != KindFolderMarker {
		t.Errorf("geometryless placemark = %+v, want a folder marker", batch.Features)
	}
}

func TestParseKMLCoords(t *testing.T) {
	pts := parseKMLCoords(" -114.1,45.1,2400 \n -114.2,45.2 garbage -114.3,notanumber ")
	if len(pts) != 2 {
		t.Fatalf("points = %v, want the 2 valid ones", pts)
	}
	if pts[0] != (orb.Point{-114.1, 45.1}) || pts[1] != (orb.Point{-114.2, 45.2}) {
		t.Errorf("points = %v", pts)
	}
}

func TestNormalizeKMLColor(t *testing.T) {
	cases := map[string]string{
		"ff0033ff":   "#FF3300", // alpha ff, blue 00, green 33, red ff
		"#FF3300":    "#FF3300", // already converted
		"rgb(1,2,3)": "rgb(1,2,3)",
		"":           "",
		"zzzzzzzz":   "zzzzzzzz", // not hex, passed through for the fallback parse
		"abc":        "abc",
	}
	for in, want := range cases {
		if got := normalizeKMLColor(in); got != want {
			t.Errorf("normalizeKMLColor(%q) = %q, want %q", in, got, want)
		}
	}
}
