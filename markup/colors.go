package markup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PaletteColor is one allowed color in a target platform palette. RGBA is the
// exact string the platform expects on import.
type PaletteColor struct {
	Name string `yaml:"name"`
	R    uint8  `yaml:"r"`
	G    uint8  `yaml:"g"`
	B    uint8  `yaml:"b"`
	RGBA string `yaml:"rgba"`
}

// Palette is a fixed, ordered set of platform colors. Declaration order is
// significant: distance ties resolve to the earlier entry.
type Palette struct {
	Name    string         `yaml:"name"`
	Colors  []PaletteColor `yaml:"colors"`
	Default string         `yaml:"default"` // name of the fallback entry
}

// QuantizedColor is the result of snapping one source color to a palette.
type QuantizedColor struct {
	Color     PaletteColor
	Distance  float64 // squared Euclidean RGB distance from the source
	Defaulted bool    // true when no source color was present
}

// PaletteConfigurationError means quantization cannot proceed at all.
// Fatal for the run; reported once at run start.
type PaletteConfigurationError struct {
	Palette string
	Reason  string
}

func (e *PaletteConfigurationError) Error() string {
	return fmt.Sprintf("palette %q: %s", e.Palette, e.Reason)
}

// Validate checks the palette is usable: non-empty and with a resolvable
// default entry.
func (p Palette) Validate() error {
	if len(p.Colors) == 0 {
		return &PaletteConfigurationError{Palette: p.Name, Reason: "no colors declared"}
	}
	if _, ok := p.defaultColor(); !ok {
		return &PaletteConfigurationError{Palette: p.Name, Reason: fmt.Sprintf("default %q not in palette", p.Default)}
	}
	return nil
}

func (p Palette) defaultColor() (PaletteColor, bool) {
	for _, c := range p.Colors {
		if c.Name == p.Default {
			return c, true
		}
	}
	return PaletteColor{}, false
}

// Quantize maps an arbitrary source color onto the nearest palette entry.
// An empty source returns the designated default entry without computing any
// distance. Ties break toward the first-declared entry, which keeps the
// result deterministic for colors equidistant from several entries.
func (p Palette) Quantize(raw string) QuantizedColor {
	if strings.TrimSpace(raw) == "" {
		def, _ := p.defaultColor()
		return QuantizedColor{Color: def, Defaulted: true}
	}

	r, g, b := ParseColor(raw)
	best := p.Colors[0]
	bestDist := rgbDistance(r, g, b, best)
	for _, c := range p.Colors[1:] {
		// Strict less-than keeps the first-declared entry on ties.
		if d := rgbDistance(r, g, b, c); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return QuantizedColor{Color: best, Distance: bestDist}
}

func rgbDistance(r, g, b uint8, c PaletteColor) float64 {
	dr := float64(r) - float64(c.R)
	dg := float64(g) - float64(c.G)
	db := float64(b) - float64(c.B)
	return dr*dr + dg*dg + db*db
}

var rgbFuncRe = regexp.MustCompile(`rgba?\s*\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)`)

// ParseColor accepts the encodings seen in the wild: #RRGGBB, RRGGBB, #RGB,
// rgb(r,g,b) and rgba(r,g,b,a). Alpha is ignored. Unparseable input falls
// back to the platform blue so quantization still lands on a deterministic
// entry.
func ParseColor(raw string) (r, g, b uint8) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 8, 122, 255
	}

	if strings.HasPrefix(s, "rgb") {
		if m := rgbFuncRe.FindStringSubmatch(s); m != nil {
			return clamp255(m[1]), clamp255(m[2]), clamp255(m[3])
		}
		return 8, 122, 255
	}

	s = strings.TrimPrefix(s, "#")
	switch len(s) {
	case 6:
		if v, err := strconv.ParseUint(s, 16, 32); err == nil {
			return uint8(v >> 16), uint8(v >> 8 & 0xff), uint8(v & 0xff)
		}
	case 3:
		if v, err := strconv.ParseUint(s, 16, 16); err == nil {
			r4, g4, b4 := uint8(v>>8), uint8(v>>4&0xf), uint8(v&0xf)
			return r4 * 17, g4 * 17, b4 * 17
		}
	}
	return 8, 122, 255
}

func clamp255(s string) uint8 {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Stock palettes for the supported target platform. The track palette is a
// strict superset of the waypoint palette: waypoints accept ten colors,
// tracks accept those ten plus fuchsia.

// DefaultWaypointPalette returns the ten colors the target platform accepts
// on waypoints.
func DefaultWaypointPalette() Palette {
	return Palette{
		Name:    "waypoint",
		Default: "blue",
		Colors: []PaletteColor{
			{Name: "red-orange", R: 255, G: 51, B: 0, RGBA: "rgba(255,51,0,1)"},
			{Name: "blue", R: 8, G: 122, B: 255, RGBA: "rgba(8,122,255,1)"},
			{Name: "cyan", R: 0, G: 255, B: 255, RGBA: "rgba(0,255,255,1)"},
			{Name: "green", R: 132, G: 212, B: 0, RGBA: "rgba(132,212,0,1)"},
			{Name: "black", R: 0, G: 0, B: 0, RGBA: "rgba(0,0,0,1)"},
			{Name: "white", R: 255, G: 255, B: 255, RGBA: "rgba(255,255,255,1)"},
			{Name: "purple", R: 128, G: 0, B: 128, RGBA: "rgba(128,0,128,1)"},
			{Name: "yellow", R: 255, G: 255, B: 0, RGBA: "rgba(255,255,0,1)"},
			{Name: "red", R: 255, G: 0, B: 0, RGBA: "rgba(255,0,0,1)"},
			{Name: "brown", R: 139, G: 69, B: 19, RGBA: "rgba(139,69,19,1)"},
		},
	}
}

// DefaultTrackPalette returns the track palette: the waypoint palette plus
// the track-only fuchsia entry.
func DefaultTrackPalette() Palette {
	p := DefaultWaypointPalette()
	p.Name = "track"
	p.Colors = append(p.Colors, PaletteColor{
		Name: "fuchsia", R: 255, G: 0, B: 255, RGBA: "rgba(255,0,255,1)",
	})
	return p
}
