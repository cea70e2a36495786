// Package export renders a map area's boundary and visible annotations to PNG
// and publishes the artifact to disk or object storage.
package export

import (
	"bytes"
	"fmt"
	stdcolor "image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mapnest/mapnest/internal/annotation"
	"github.com/mapnest/mapnest/internal/color"
	"github.com/mapnest/mapnest/internal/geom"
	"github.com/mapnest/mapnest/internal/layer"
)

// Default render dimensions.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 960
	DefaultPadding = 48.0

	markerRadius = 6.0
	fontSize     = 14.0
)

// Options configures the renderer's output geometry.
type Options struct {
	Width   int
	Height  int
	Padding float64
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Padding < 0 {
		o.Padding = DefaultPadding
	}
	if o.Padding == 0 {
		o.Padding = DefaultPadding
	}
	return o
}

// LayerDrawing pairs a visible layer with its annotations, already in stacking
// order.
type LayerDrawing struct {
	Layer       *layer.Layer
	Annotations []*annotation.Annotation
}

// Document is everything the renderer needs for one map area.
type Document struct {
	Name     string
	Boundary geom.Ring
	Layers   []LayerDrawing
}

// Renderer draws map area documents to PNG.
type Renderer struct {
	opts Options
	face font.Face
}

// NewRenderer creates a renderer. The bundled Go Regular face is used for
// annotation text and the title.
func NewRenderer(opts Options) (*Renderer, error) {
	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face := truetype.NewFace(ttf, &truetype.Options{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	return &Renderer{opts: opts.withDefaults(), face: face}, nil
}

// Render draws the document to a PNG image. The boundary's bounding box is
// projected into the viewport with an equirectangular projection; layers are
// drawn bottom-up so higher stacking order paints last.
func (r *Renderer) Render(doc Document) ([]byte, error) {
	if err := doc.Boundary.Validate(); err != nil {
		return nil, fmt.Errorf("render %q: %w", doc.Name, err)
	}

	proj := newProjector(doc.Boundary.BoundingBox(), r.opts)
	dc := gg.NewContext(r.opts.Width, r.opts.Height)
	dc.SetColor(stdcolor.White)
	dc.Clear()
	dc.SetFontFace(r.face)

	r.drawBoundary(dc, proj, doc.Boundary)
	for _, ld := range doc.Layers {
		for _, a := range ld.Annotations {
			r.drawAnnotation(dc, proj, ld.Layer, a)
		}
	}
	r.drawTitle(dc, doc.Name)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawBoundary(dc *gg.Context, proj projector, ring geom.Ring) {
	tracePath(dc, proj, ring)
	dc.ClosePath()
	dc.SetRGBA(0.29, 0.45, 0.68, 0.10)
	dc.FillPreserve()
	dc.SetRGB(0.29, 0.45, 0.68)
	dc.SetLineWidth(2.5)
	dc.Stroke()
}

func (r *Renderer) drawAnnotation(dc *gg.Context, proj projector, l *layer.Layer, a *annotation.Annotation) {
	col := styleColor(a.Style, l.Style)
	width := styleWidth(a.Style)

	switch a.Kind {
	case annotation.KindMarker:
		if len(a.Points) == 0 {
			return
		}
		x, y := proj.project(a.Points[0])
		dc.SetColor(rgba(col))
		dc.DrawCircle(x, y, markerRadius)
		dc.Fill()
		if a.Content != "" {
			dc.SetRGB(0.1, 0.1, 0.1)
			dc.DrawString(a.Content, x+markerRadius+3, y+fontSize/2)
		}
	case annotation.KindLine:
		if len(a.Points) < 2 {
			return
		}
		tracePath(dc, proj, a.Points)
		dc.SetColor(rgba(col))
		dc.SetLineWidth(width)
		dc.Stroke()
	case annotation.KindPolygon:
		if len(a.Points) < 3 {
			return
		}
		tracePath(dc, proj, a.Points)
		dc.ClosePath()
		dc.SetRGBA(float64(col.R)/255, float64(col.G)/255, float64(col.B)/255, 0.25)
		dc.FillPreserve()
		dc.SetColor(rgba(col))
		dc.SetLineWidth(width)
		dc.Stroke()
		if a.Content != "" {
			cx, cy := proj.centroid(a.Points)
			dc.SetRGB(0.1, 0.1, 0.1)
			dc.DrawStringAnchored(a.Content, cx, cy, 0.5, 0.5)
		}
	case annotation.KindText:
		if len(a.Points) == 0 || a.Content == "" {
			return
		}
		x, y := proj.project(a.Points[0])
		r.drawHaloedString(dc, a.Content, x, y, col)
	}
}

// drawHaloedString outlines the label with a contrasting halo so free-floating
// text stays readable over the boundary fill and other annotations.
func (r *Renderer) drawHaloedString(dc *gg.Context, s string, x, y float64, col color.RGB) {
	halo := color.LabelHalo(col)
	dc.SetColor(rgba(halo))
	for _, d := range [][2]float64{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		dc.DrawString(s, x+d[0], y+d[1])
	}
	dc.SetColor(rgba(col))
	dc.DrawString(s, x, y)
}

func (r *Renderer) drawTitle(dc *gg.Context, name string) {
	if name == "" {
		return
	}
	dc.SetRGB(0.15, 0.15, 0.15)
	dc.DrawString(name, 12, fontSize+8)
}

func tracePath(dc *gg.Context, proj projector, pts []geom.Point) {
	dc.NewSubPath()
	for i, p := range pts {
		x, y := proj.project(p)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
}

// styleColor resolves the annotation's stroke color: the annotation style
// wins, then the layer style, then a neutral dark gray. Only #RRGGBB values
// are honored.
func styleColor(annStyle, layerStyle map[string]any) color.RGB {
	for _, style := range []map[string]any{annStyle, layerStyle} {
		hex, ok := style["color"].(string)
		if !ok {
			continue
		}
		rgb, err := color.Parse(hex)
		if err != nil {
			continue
		}
		return rgb
	}
	return color.RGB{R: 52, G: 58, B: 64}
}

func rgba(c color.RGB) stdcolor.RGBA {
	return stdcolor.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

func styleWidth(style map[string]any) float64 {
	if w, ok := style["width"].(float64); ok && w > 0 && w <= 32 {
		return w
	}
	return 2.0
}

// projector maps WGS84 coordinates into the image viewport with an
// equirectangular projection: longitudes are compressed by the cosine of the
// bounding box's center latitude so shapes keep their aspect at the map's
// latitude.
type projector struct {
	bbox    geom.BBox
	scale   float64
	offsetX float64
	offsetY float64
	cosLat  float64
}

func newProjector(bbox geom.BBox, opts Options) projector {
	centerLat := (bbox.MinLat + bbox.MaxLat) / 2
	cosLat := math.Cos(centerLat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}

	spanX := (bbox.MaxLng - bbox.MinLng) * cosLat
	spanY := bbox.MaxLat - bbox.MinLat
	if spanX == 0 {
		spanX = 1e-9
	}
	if spanY == 0 {
		spanY = 1e-9
	}

	availW := float64(opts.Width) - 2*opts.Padding
	availH := float64(opts.Height) - 2*opts.Padding
	scale := math.Min(availW/spanX, availH/spanY)

	// Center the projected box in the viewport.
	offsetX := (float64(opts.Width) - spanX*scale) / 2
	offsetY := (float64(opts.Height) - spanY*scale) / 2

	return projector{
		bbox:    bbox,
		scale:   scale,
		offsetX: offsetX,
		offsetY: offsetY,
		cosLat:  cosLat,
	}
}

// project maps a point to pixel coordinates. Latitude grows north, pixel y
// grows down, so the y axis flips.
func (p projector) project(pt geom.Point) (float64, float64) {
	x := (pt.Lng-p.bbox.MinLng)*p.cosLat*p.scale + p.offsetX
	y := (p.bbox.MaxLat-pt.Lat)*p.scale + p.offsetY
	return x, y
}

func (p projector) centroid(pts []geom.Point) (float64, float64) {
	var sx, sy float64
	for _, pt := range pts {
		x, y := p.project(pt)
		sx += x
		sy += y
	}
	n := float64(len(pts))
	return sx / n, sy / n
}
