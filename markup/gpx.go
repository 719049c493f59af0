package markup

import (
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// GPX adapter. Exports from the line-oriented platform put a key/value block
// in <desc> (name=..., notes=..., id=..., color=..., icon=...) and duplicate
// some of it in custom <extensions> children. Track geometry may arrive as
// <trk> or <rte> depending on export vintage, so both are read.

type gpxFile struct {
	XMLName   xml.Name      `xml:"gpx"`
	Version   string        `xml:"version,attr"`
	Creator   string        `xml:"creator,attr"`
	Waypoints []gpxWaypoint `xml:"wpt"`
	Tracks    []gpxTrack    `xml:"trk"`
	Routes    []gpxRoute    `xml:"rte"`
}

type gpxWaypoint struct {
	Lat        float64       `xml:"lat,attr"`
	Lon        float64       `xml:"lon,attr"`
	Ele        *float64      `xml:"ele"`
	Name       string        `xml:"name"`
	Desc       string        `xml:"desc"`
	Sym        string        `xml:"sym"`
	Extensions gpxExtensions `xml:"extensions"`
}

type gpxTrack struct {
	Name       string        `xml:"name"`
	Desc       string        `xml:"desc"`
	Extensions gpxExtensions `xml:"extensions"`
	Segments   []gpxSegment  `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxRoute struct {
	Name       string        `xml:"name"`
	Desc       string        `xml:"desc"`
	Extensions gpxExtensions `xml:"extensions"`
	Points     []gpxPoint    `xml:"rtept"`
}

type gpxPoint struct {
	Lat  float64  `xml:"lat,attr"`
	Lon  float64  `xml:"lon,attr"`
	Ele  *float64 `xml:"ele"`
	Time string   `xml:"time"`
}

// gpxExtensions matches the platform's custom children by local name,
// whatever namespace prefix the exporter used.
type gpxExtensions struct {
	Icon   string `xml:"icon"`
	Color  string `xml:"color"`
	Style  string `xml:"style"`
	Weight string `xml:"weight"`
}

var descKVRe = regexp.MustCompile(`^([a-zA-Z0-9_-]+)=(.*)$`)

var descKVKeys = map[string]struct{}{
	"name": {}, "notes": {}, "id": {}, "color": {},
	"icon": {}, "style": {}, "weight": {}, "type": {},
}

// parseDescKV parses the key/value block the platform writes into <desc>.
// Notes may span multiple lines; a leading non key=value line means the whole
// block is free-form notes.
func parseDescKV(desc string) map[string]string {
	desc = strings.Trim(desc, "\n")
	if desc == "" {
		return nil
	}
	kv := make(map[string]string)
	var key string
	var value []string
	flush := func() {
		if key != "" {
			kv[key] = strings.Trim(strings.Join(value, "\n"), "\n")
		}
		key = ""
		value = nil
	}
	for _, line := range strings.Split(desc, "\n") {
		if m := descKVRe.FindStringSubmatch(line); m != nil {
			k := strings.ToLower(strings.TrimSpace(m[1]))
			if _, known := descKVKeys[k]; known {
				flush()
				key = k
				value = []string{m[2]}
				continue
			}
		}
		if key == "" {
			key = "notes"
			value = []string{line}
		} else {
			value = append(value, line)
		}
	}
	flush()
	return kv
}

// decodeEntities collapses doubly-escaped XML/HTML entities. Some exports
// contain sequences like '&amp;apos;' that survive one round of XML decoding.
func decodeEntities(s string) string {
	for i := 0; i < 2; i++ {
		u := html.UnescapeString(s)
		if u == s {
			break
		}
		s = u
	}
	return strings.TrimSpace(s)
}

// ParseGPX reads a GPX export into a provenance-tagged batch. Geometry
// problems (bad coordinates, empty tracks) surface later through batch
// validation; this stage only shapes the data.
func ParseGPX(r io.Reader, path string) (Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Batch{}, fmt.Errorf("reading GPX: %w", err)
	}
	if len(data) == 0 {
		return Batch{}, fmt.Errorf("GPX file is empty: %s", path)
	}

	var g gpxFile
	if err := xml.Unmarshal(data, &g); err != nil {
		return Batch{}, fmt.Errorf("invalid GPX file %s: %w", path, err)
	}

	batch := Batch{Source: FormatGPX, Path: path}

	for _, w := range g.Waypoints {
		kv := parseDescKV(w.Desc)
		f := Feature{
			ID:          firstNonEmpty(kv["id"], uuid.NewString()),
			Kind:        KindWaypoint,
			Name:        decodeEntities(w.Name),
			Description: decodeEntities(kv["notes"]),
			Geometry:    pointGeom(w.Lon, w.Lat),
			Source:      FormatGPX,
			RawColor:    firstNonEmpty(w.Extensions.Color, kv["color"]),
			RawSymbol:   firstNonEmpty(w.Sym, w.Extensions.Icon, kv["icon"]),
		}
		batch.Features = append(batch.Features, f)
	}

	for _, t := range g.Tracks {
		var pts []gpxPoint
		for _, seg := range t.Segments {
			pts = append(pts, seg.Points...)
		}
		batch.Features = append(batch.Features, trackFeature(t.Name, t.Desc, t.Extensions, pts))
	}
	for _, rte := range g.Routes {
		batch.Features = append(batch.Features, trackFeature(rte.Name, rte.Desc, rte.Extensions, rte.Points))
	}

	return batch, nil
}

func trackFeature(name, desc string, ext gpxExtensions, pts []gpxPoint) Feature {
	kv := parseDescKV(desc)
	f := Feature{
		ID:          firstNonEmpty(kv["id"], uuid.NewString()),
		Kind:        KindTrack,
		Name:        decodeEntities(name),
		Description: decodeEntities(kv["notes"]),
		Source:      FormatGPX,
		RawColor:    firstNonEmpty(ext.Color, kv["color"]),
		RawSymbol:   firstNonEmpty(ext.Icon, kv["icon"]),
	}
	line, eles, times := lineGeom(pts)
	f.Geometry = line
	f.Elevations = eles
	f.Times = times
	return f
}

// WriteGPX serializes features back to GPX: waypoints as <wpt> with the
// platform's desc key/value block and extensions, tracks as single-segment
// <trk>. Shapes and folder markers have no GPX representation and are
// skipped; callers route those to the GeoJSON writer.
func WriteGPX(w io.Writer, features []Feature) error {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<gpx version="1.1" creator="cairn" xmlns="http://www.topografix.com/GPX/1/1">` + "\n")

	for _, f := range features {
		switch f.Kind {
		case KindWaypoint:
			writeGPXWaypoint(&b, f)
		case KindTrack:
			writeGPXTrack(&b, f)
		}
	}

	b.WriteString("</gpx>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeGPXWaypoint(b *strings.Builder, f Feature) {
	pt, ok := pointOf(f)
	if !ok {
		return
	}
	fmt.Fprintf(b, `  <wpt lat="%.6f" lon="%.6f">`+"\n", pt[1], pt[0])
	fmt.Fprintf(b, "    <name>%s</name>\n", xmlEscape(f.Name))
	fmt.Fprintf(b, "    <desc>%s</desc>\n", xmlEscape(featureDescKV(f)))
	writeGPXExtensions(b, f)
	b.WriteString("  </wpt>\n")
}

func writeGPXTrack(b *strings.Builder, f Feature) {
	line, ok := lineOf(f)
	if !ok {
		return
	}
	b.WriteString("  <trk>\n")
	fmt.Fprintf(b, "    <name>%s</name>\n", xmlEscape(f.Name))
	fmt.Fprintf(b, "    <desc>%s</desc>\n", xmlEscape(featureDescKV(f)))
	writeGPXExtensions(b, f)
	b.WriteString("    <trkseg>\n")
	for i, p := range line {
		fmt.Fprintf(b, `      <trkpt lat="%.6f" lon="%.6f">`, p[1], p[0])
		if i < len(f.Elevations) {
			fmt.Fprintf(b, "<ele>%.1f</ele>", f.Elevations[i])
		}
		if i < len(f.Times) && f.Times[i] != 0 {
			ts := time.UnixMilli(f.Times[i]).UTC().Format(time.RFC3339)
			fmt.Fprintf(b, "<time>%s</time>", ts)
		}
		b.WriteString("</trkpt>\n")
	}
	b.WriteString("    </trkseg>\n")
	b.WriteString("  </trk>\n")
}

func writeGPXExtensions(b *strings.Builder, f Feature) {
	icon, color := finalIconColor(f)
	if icon == "" && color == "" {
		return
	}
	b.WriteString("    <extensions>\n")
	if icon != "" {
		fmt.Fprintf(b, "      <icon>%s</icon>\n", xmlEscape(icon))
	}
	if color != "" {
		fmt.Fprintf(b, "      <color>%s</color>\n", xmlEscape(color))
	}
	b.WriteString("    </extensions>\n")
}

// featureDescKV renders the platform's desc block for a feature.
func featureDescKV(f Feature) string {
	var lines []string
	lines = append(lines, "name="+f.Name)
	if f.Description != "" {
		lines = append(lines, "notes="+f.Description)
	}
	lines = append(lines, "id="+f.ID)
	icon, color := finalIconColor(f)
	if color != "" {
		lines = append(lines, "color="+color)
	}
	if icon != "" {
		lines = append(lines, "icon="+icon)
	}
	return strings.Join(lines, "\n")
}

// finalIconColor returns the reconciled icon/color when mapping ran, falling
// back to the raw source values for unreconciled passthrough.
func finalIconColor(f Feature) (icon, color string) {
	if f.Icon != nil {
		icon = f.Icon.Icon
	} else {
		icon = f.RawSymbol
	}
	if f.Color != nil {
		color = f.Color.Color.RGBA
	} else {
		color = f.RawColor
	}
	return icon, color
}

// lineGeom converts GPX points to a LineString plus aligned elevation/time
// side arrays. Elevation defaults to 0 when only some points carry <ele>;
// missing times stay 0 and are skipped on write.
func lineGeom(pts []gpxPoint) (orb.LineString, []float64, []int64) {
	if len(pts) == 0 {
		return nil, nil, nil
	}
	line := make(orb.LineString, len(pts))
	var eles []float64
	var times []int64
	hasEle, hasTime := false, false
	for _, p := range pts {
		if p.Ele != nil {
			hasEle = true
		}
		if p.Time != "" {
			hasTime = true
		}
	}
	if hasEle {
		eles = make([]float64, len(pts))
	}
	if hasTime {
		times = make([]int64, len(pts))
	}
	for i, p := range pts {
		line[i] = orb.Point{p.Lon, p.Lat}
		if hasEle && p.Ele != nil {
			eles[i] = *p.Ele
		}
		if hasTime && p.Time != "" {
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(p.Time)); err == nil {
				times[i] = t.UnixMilli()
			}
		}
	}
	return line, eles, times
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
