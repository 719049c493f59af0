package markup

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PreviewRenderer draws a reconciled feature set as a quick-look map so the
// result can be eyeballed before import. Coordinates are plotted on a plain
// equirectangular plane; at preview scale the projection error does not
// matter.
type PreviewRenderer struct {
	Features    []Feature
	Dropped     []Feature
	Scale       float64 // canvas units per degree
	Padding     float64 // padding in canvas units
	GridSpacing float64 // grid spacing in degrees; 0 disables
	Resolution  canvas.Resolution
	Labels      bool // waypoint name labels (PNG output only)
}

// NewPreviewRenderer creates a renderer with default settings.
func NewPreviewRenderer(kept, dropped []Feature) *PreviewRenderer {
	return &PreviewRenderer{
		Features:    kept,
		Dropped:     dropped,
		Scale:       4000.0, // ~4 units per 0.001 degree keeps markers legible
		Padding:     40.0,
		GridSpacing: 0.01,
		Resolution:  canvas.DPI(300),
		Labels:      true,
	}
}

// canvasRenderer is the subset of the svg and rasterizer renderers we use.
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the preview as an SVG to the provided writer.
func (r *PreviewRenderer) RenderToSVG(w io.Writer) error {
	minX, minY, maxX, maxY, err := r.bounds()
	if err != nil {
		return err
	}

	width := (maxX-minX)*r.Scale + 2*r.Padding
	height := (maxY-minY)*r.Scale + 2*r.Padding

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, minX, minY, maxX, maxY, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the preview as a PNG to the provided writer. Waypoint
// labels are drawn on the raster after vector rendering; the rasterizer
// implements draw.Image so the font drawer can write straight onto it.
func (r *PreviewRenderer) RenderToPNG(w io.Writer) error {
	minX, minY, maxX, maxY, err := r.bounds()
	if err != nil {
		return err
	}

	width := (maxX-minX)*r.Scale + 2*r.Padding
	height := (maxY-minY)*r.Scale + 2*r.Padding

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, minX, minY, maxX, maxY, width, height)

	if r.Labels {
		px := r.Resolution.DPMM()
		for _, f := range r.Features {
			if f.Kind != KindWaypoint || f.Name == "" {
				continue
			}
			pt, ok := pointOf(f)
			if !ok {
				continue
			}
			cx := ((pt[0]-minX)*r.Scale + r.Padding) * px
			// Raster rows run top-down while canvas Y runs bottom-up.
			cy := height*px - ((pt[1]-minY)*r.Scale+r.Padding)*px
			drawLabel(rast, int(cx)+8, int(cy)-8, f.Name, color.RGBA{0, 0, 0, 255})
		}
	}

	return png.Encode(w, rast)
}

// renderToCanvas draws the preview onto a canvas renderer (shared logic for
// SVG and PNG). Dropped features go down first in grey so kept geometry
// paints over them.
func (r *PreviewRenderer) renderToCanvas(renderer canvasRenderer, minX, minY, maxX, maxY, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	toCanvas := func(p orb.Point) (float64, float64) {
		return (p[0]-minX)*r.Scale + r.Padding, (p[1]-minY)*r.Scale + r.Padding
	}

	if r.GridSpacing > 0 {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: canvas.Gray}
		gridStyle.StrokeWidth = 0.5
		gridStyle.Dashes = []float64{4.0, 4.0}

		for x := math.Floor(minX/r.GridSpacing) * r.GridSpacing; x <= maxX; x += r.GridSpacing {
			gridPath := &canvas.Path{}
			x1, y1 := toCanvas(orb.Point{x, minY})
			x2, y2 := toCanvas(orb.Point{x, maxY})
			gridPath.MoveTo(x1, y1)
			gridPath.LineTo(x2, y2)
			renderer.RenderPath(gridPath, gridStyle, canvas.Identity)
		}
		for y := math.Floor(minY/r.GridSpacing) * r.GridSpacing; y <= maxY; y += r.GridSpacing {
			gridPath := &canvas.Path{}
			x1, y1 := toCanvas(orb.Point{minX, y})
			x2, y2 := toCanvas(orb.Point{maxX, y})
			gridPath.MoveTo(x1, y1)
			gridPath.LineTo(x2, y2)
			renderer.RenderPath(gridPath, gridStyle, canvas.Identity)
		}
	}

	grey := color.RGBA{180, 180, 180, 255}
	for _, f := range r.Dropped {
		r.renderFeature(renderer, f, grey, true, toCanvas)
	}
	for _, f := range r.Features {
		r.renderFeature(renderer, f, featureRGBA(f), false, toCanvas)
	}
}

func (r *PreviewRenderer) renderFeature(renderer canvasRenderer, f Feature, c color.RGBA, dropped bool, toCanvas func(orb.Point) (float64, float64)) {
	switch f.Kind {
	case KindWaypoint:
		pt, ok := pointOf(f)
		if !ok {
			return
		}
		cx, cy := toCanvas(pt)

		markerStyle := canvas.DefaultStyle
		markerStyle.Fill = canvas.Paint{Color: c}
		markerStyle.Stroke = canvas.Paint{Color: canvas.Black}
		markerStyle.StrokeWidth = 0.6

		markerPath := canvas.Circle(3.0)
		markerPath = markerPath.Translate(cx, cy)
		renderer.RenderPath(markerPath, markerStyle, canvas.Identity)

	case KindTrack:
		line, ok := lineOf(f)
		if !ok || len(line) == 0 {
			return
		}
		trackStyle := canvas.DefaultStyle
		trackStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		trackStyle.Stroke = canvas.Paint{Color: c}
		trackStyle.StrokeWidth = 1.2
		if dropped {
			trackStyle.Dashes = []float64{3.0, 3.0}
		}
		renderer.RenderPath(linePath(line, toCanvas), trackStyle, canvas.Identity)

	case KindShape:
		poly, ok := polygonOf(f)
		if !ok || len(poly) == 0 {
			return
		}
		fill := c
		fill.A = 80
		shapeStyle := canvas.DefaultStyle
		shapeStyle.Fill = canvas.Paint{Color: premultiply(fill)}
		shapeStyle.Stroke = canvas.Paint{Color: c}
		shapeStyle.StrokeWidth = 1.2
		if dropped {
			shapeStyle.Dashes = []float64{3.0, 3.0}
		}
		for _, ring := range poly {
			cp := linePath(orb.LineString(ring), toCanvas)
			cp.Close()
			renderer.RenderPath(cp, shapeStyle, canvas.Identity)
		}
	}
}

func linePath(line orb.LineString, toCanvas func(orb.Point) (float64, float64)) *canvas.Path {
	cp := &canvas.Path{}
	for i, p := range line {
		cx, cy := toCanvas(p)
		if i == 0 {
			cp.MoveTo(cx, cy)
		} else {
			cp.LineTo(cx, cy)
		}
	}
	return cp
}

// featureRGBA picks the plot color: the quantized palette entry when the
// pipeline assigned one, otherwise whatever the raw color parses to.
func featureRGBA(f Feature) color.RGBA {
	if f.Color != nil {
		pc := f.Color.Color
		return color.RGBA{pc.R, pc.G, pc.B, 255}
	}
	cr, cg, cb := ParseColor(f.RawColor)
	return color.RGBA{cr, cg, cb, 255}
}

// premultiply converts straight-alpha RGBA to the premultiplied form the
// canvas library expects.
func premultiply(c color.RGBA) color.RGBA {
	if c.A == 255 || c.A == 0 {
		if c.A == 0 {
			return color.RGBA{}
		}
		return c
	}
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}

func drawLabel(img *rasterizer.Rasterizer, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// bounds computes the degree-space bounding box of everything to plot.
func (r *PreviewRenderer) bounds() (minX, minY, maxX, maxY float64, err error) {
	minX, minY = math.MaxFloat64, math.MaxFloat64
	maxX, maxY = -math.MaxFloat64, -math.MaxFloat64

	grow := func(p orb.Point) {
		if p[0] < minX {
			minX = p[0]
		}
		if p[1] < minY {
			minY = p[1]
		}
		if p[0] > maxX {
			maxX = p[0]
		}
		if p[1] > maxY {
			maxY = p[1]
		}
	}

	for _, set := range [][]Feature{r.Features, r.Dropped} {
		for _, f := range set {
			switch g := f.Geometry.(type) {
			case orb.Point:
				grow(g)
			case orb.LineString:
				for _, p := range g {
					grow(p)
				}
			case orb.Polygon:
				for _, ring := range g {
					for _, p := range ring {
						grow(p)
					}
				}
			}
		}
	}

	if minX > maxX {
		return 0, 0, 0, 0, fmt.Errorf("no drawable features")
	}
	return minX, minY, maxX, maxY, nil
}

// SortForRender orders features so renders are reproducible: shapes first,
// then tracks, then waypoints, each sorted by ID.
func SortForRender(features []Feature) []Feature {
	out := make([]Feature, len(features))
	copy(out, features)
	rank := func(k Kind) int {
		switch k {
		case KindShape:
			return 0
		case KindTrack:
			return 1
		case KindWaypoint:
			return 2
		default:
			return 3
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i].Kind), rank(out[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
