package markup

import (
	"testing"
)

func TestQuantize_PaletteClosureAndIdentity(t *testing.T) {
	for _, pal := range []Palette{DefaultWaypointPalette(), DefaultTrackPalette()} {
		if err := pal.Validate(); err != nil {
			t.Fatalf("stock palette %q invalid: %v", pal.Name, err)
		}
		for _, c := range pal.Colors {
			// A palette color quantizes to itself, exactly.
			got := pal.Quantize(c.RGBA)
			if got.Color.Name != c.Name {
				t.Errorf("%s: %s quantized to %s", pal.Name, c.Name, got.Color.Name)
			}
			if got.Distance != 0 {
				t.Errorf("%s: identity distance for %s = %v, want 0", pal.Name, c.Name, got.Distance)
			}
		}
	}
}

func TestQuantize_NearestByRGBDistance(t *testing.T) {
	pal := DefaultWaypointPalette()

	cases := map[string]string{
		"#FF2000":           "red-orange", // closer to 255,51,0 than to pure red
		"rgb(10, 120, 250)": "blue",
		"#00FEFE":           "cyan",
		"#111111":           "black",
		"#F0F0F0":           "white",
	}
	for raw, want := range cases {
		if got := pal.Quantize(raw); got.Color.Name != want {
			t.Errorf("Quantize(%q) = %s, want %s", raw, got.Color.Name, want)
		}
	}
}

func TestQuantize_EmptySourceTakesDefault(t *testing.T) {
	pal := DefaultWaypointPalette()
	got := pal.Quantize("")
	if !got.Defaulted {
		t.Errorf("empty source should be marked Defaulted")
	}
	if got.Color.Name != "blue" {
		t.Errorf("default = %s, want blue", got.Color.Name)
	}
}

func TestQuantize_TieBreaksToFirstDeclared(t *testing.T) {
	pal := Palette{
		Name:    "tie",
		Default: "a",
		Colors: []PaletteColor{
			{Name: "a", R: 100, G: 0, B: 0},
			{Name: "b", R: 120, G: 0, B: 0},
		},
	}
	// 110,0,0 is equidistant from both entries.
	if got := pal.Quantize("rgb(110,0,0)"); got.Color.Name != "a" {
		t.Errorf("tie resolved to %s, want first-declared a", got.Color.Name)
	}
}

func TestTrackPalette_SupersetOfWaypointPalette(t *testing.T) {
	wp := DefaultWaypointPalette()
	tr := DefaultTrackPalette()
	if len(tr.Colors) != len(wp.Colors)+1 {
		t.Fatalf("track palette has %d colors, want %d", len(tr.Colors), len(wp.Colors)+1)
	}
	if tr.Colors[len(tr.Colors)-1].Name != "fuchsia" {
		t.Errorf("track-only entry = %s, want fuchsia", tr.Colors[len(tr.Colors)-1].Name)
	}
	// Fuchsia input on the waypoint palette must land inside the waypoint
	// set, never leak the track-only entry.
	if got := wp.Quantize("#FF00FF"); got.Color.Name == "fuchsia" {
		t.Errorf("waypoint palette produced a track-only color")
	}
}

func TestPaletteValidate(t *testing.T) {
	if err := (Palette{Name: "empty"}).Validate(); err == nil {
		t.Errorf("empty palette should fail validation")
	}
	bad := Palette{Name: "nodefault", Default: "missing", Colors: []PaletteColor{{Name: "x"}}}
	if err := bad.Validate(); err == nil {
		t.Errorf("unresolvable default should fail validation")
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in      string
		r, g, b uint8
	}{
		{"#FF3300", 255, 51, 0},
		{"ff3300", 255, 51, 0},
		{"#F30", 255, 51, 0},
		{"rgb(8,122,255)", 8, 122, 255},
		{"rgba(8, 122, 255, 0.5)", 8, 122, 255},
		{"not-a-color", 8, 122, 255}, // falls back to the platform blue
		{"", 8, 122, 255},
	}
	for _, c := range cases {
		r, g, b := ParseColor(c.in)
		if r != c.r || g != c.g || b != c.b {
			t.Errorf("ParseColor(%q) = %d,%d,%d want %d,%d,%d", c.in, r, g, b, c.r, c.g, c.b)
		}
	}
}
