// Package raster draws scene descriptions into fixed-resolution PNG images.
//
// Geometry is projected orthographically according to the scene's view hint
// (top, isometric or focus) and drawn with fogleman/gg: structure lines,
// rigid links, node points, boundary markers, load arrows and labels on white
// boxes, plus an axis triad in the lower left corner. Label text uses the Go
// Regular font embedded in golang.org/x/image, so rendering needs no system
// fonts.
package raster

import (
	"bytes"
	"context"
	"image/color"
	"math"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/trussview/pkg/errors"
	"github.com/matzehuels/trussview/pkg/load"
	"github.com/matzehuels/trussview/pkg/render"
	"github.com/matzehuels/trussview/pkg/scene"
)

// Defaults match the report image size.
const (
	DefaultWidth  = 2000
	DefaultHeight = 1500
	DefaultMargin = 0.06
)

// Option configures a [Renderer].
type Option func(*Renderer)

// WithSize sets the image size in pixels.
func WithSize(width, height int) Option {
	return func(r *Renderer) {
		if width > 0 && height > 0 {
			r.width, r.height = width, height
		}
	}
}

// WithMargin sets the fraction of each image side kept free when fitting a
// top or isometric view.
func WithMargin(m float64) Option {
	return func(r *Renderer) {
		if m >= 0 && m < 0.5 {
			r.margin = m
		}
	}
}

// WithPalette replaces the drawing colors.
func WithPalette(p Palette) Option {
	return func(r *Renderer) { r.palette = p }
}

// WithoutAxes disables the axis triad.
func WithoutAxes() Option {
	return func(r *Renderer) { r.axes = false }
}

// Renderer draws PNG images. It holds only configuration and is safe for
// concurrent use; every call allocates its own drawing context.
type Renderer struct {
	width, height int
	margin        float64
	palette       Palette
	axes          bool
}

// New returns a PNG renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		width:   DefaultWidth,
		height:  DefaultHeight,
		margin:  DefaultMargin,
		palette: DefaultPalette(),
		axes:    true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ render.Renderer = (*Renderer)(nil)

// Format implements [render.Renderer].
func (r *Renderer) Format() string { return render.FormatPNG }

// Size returns the configured image size.
func (r *Renderer) Size() (width, height int) { return r.width, r.height }

// Render implements [render.Renderer].
func (r *Renderer) Render(ctx context.Context, s *scene.Scene) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fonts, err := loadFonts()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "load label font")
	}

	dc := gg.NewContext(r.width, r.height)
	dc.SetColor(r.palette.Background)
	dc.Clear()
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	cam := newCamera(s, r.width, r.height, r.margin)

	r.drawLines(dc, cam, s)
	r.drawNodes(dc, cam, s)
	r.drawBoundary(dc, cam, s)
	r.drawArrows(dc, cam, s)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.drawLabels(dc, cam, s, fonts)
	if r.axes {
		r.drawAxes(dc, cam, fonts)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "encode %s", s.Name)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawLines(dc *gg.Context, cam camera, s *scene.Scene) {
	dc.SetColor(r.palette.Structure)
	dc.SetLineWidth(2)
	for _, line := range s.Structure {
		for i, idx := range line {
			x, y := cam.project(s.Points[idx])
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.Stroke()
	}

	dc.SetColor(r.palette.Rigid)
	dc.SetLineWidth(3)
	for _, seg := range s.Rigid {
		x1, y1 := cam.project(s.Points[seg[0]])
		x2, y2 := cam.project(s.Points[seg[1]])
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
	}
}

func (r *Renderer) drawNodes(dc *gg.Context, cam camera, s *scene.Scene) {
	dc.SetColor(r.palette.Node)
	for _, p := range s.Points {
		x, y := cam.project(p)
		dc.DrawCircle(x, y, 3)
		dc.Fill()
	}
}

// drawBoundary draws an upward triangle outline per constrained node. The
// marker size is in pixels.
func (r *Renderer) drawBoundary(dc *gg.Context, cam camera, s *scene.Scene) {
	size := s.Boundary.Size
	if size <= 0 {
		size = 10
	}
	dc.SetColor(r.palette.Boundary)
	dc.SetLineWidth(2)
	for _, p := range s.Boundary.Points {
		x, y := cam.project(p)
		dc.MoveTo(x, y)
		dc.LineTo(x-size/2, y+size)
		dc.LineTo(x+size/2, y+size)
		dc.ClosePath()
		dc.Stroke()
	}
}

func (r *Renderer) drawArrows(dc *gg.Context, cam camera, s *scene.Scene) {
	for _, a := range s.Arrows {
		x1, y1 := cam.project(a.Origin)
		x2, y2 := cam.project(r3.Add(a.Origin, a.Vector))
		dx, dy := x2-x1, y2-y1
		length := math.Hypot(dx, dy)
		dc.SetColor(r.palette.arrow(a.Class))
		if length < 1 {
			// Arrow points straight at the camera; mark the origin instead.
			dc.DrawCircle(x1, y1, 8)
			dc.SetLineWidth(3)
			dc.Stroke()
			continue
		}
		ux, uy := dx/length, dy/length
		head := math.Min(28, length*0.35)
		baseX, baseY := x2-ux*head, y2-uy*head

		dc.SetLineWidth(4)
		dc.DrawLine(x1, y1, baseX, baseY)
		dc.Stroke()

		dc.MoveTo(x2, y2)
		dc.LineTo(baseX-uy*head*0.4, baseY+ux*head*0.4)
		dc.LineTo(baseX+uy*head*0.4, baseY-ux*head*0.4)
		dc.ClosePath()
		dc.Fill()
	}
}

func (r *Renderer) drawLabels(dc *gg.Context, cam camera, s *scene.Scene, f *fontSet) {
	for _, l := range s.Labels {
		x, y := cam.project(l.Pos)
		switch l.Style {
		case scene.LabelElement:
			dc.SetFontFace(f.small)
			dc.SetColor(r.palette.Text)
			dc.DrawStringAnchored(l.Text, x, y, 0.5, 0.5)
		case scene.LabelReference:
			dc.SetFontFace(f.large)
			r.boxed(dc, l.Text, x, y, r.palette.Reference)
		default:
			dc.SetFontFace(f.medium)
			r.boxed(dc, l.Text, x, y, r.palette.Text)
		}
	}
}

// boxed draws multi-line text centered on (x, y) over a white rounded box.
func (r *Renderer) boxed(dc *gg.Context, text string, x, y float64, fg color.Color) {
	const lineSpacing = 1.3
	const pad = 6.0
	lines := strings.Split(text, "\n")
	w, h := dc.MeasureMultilineString(text, lineSpacing)

	dc.SetColor(r.palette.LabelBox)
	dc.DrawRoundedRectangle(x-w/2-pad, y-h/2-pad, w+2*pad, h+2*pad, pad)
	dc.FillPreserve()
	dc.SetColor(r.palette.LabelEdge)
	dc.SetLineWidth(1)
	dc.Stroke()

	dc.SetColor(fg)
	lineH := dc.FontHeight() * lineSpacing
	top := y - h/2
	for i, line := range lines {
		dc.DrawStringAnchored(line, x, top+float64(i)*lineH+dc.FontHeight()/2, 0.5, 0.5)
	}
}

// drawAxes draws the X, Y and Z directions of the current projection.
func (r *Renderer) drawAxes(dc *gg.Context, cam camera, f *fontSet) {
	const length = 60.0
	ox, oy := 90.0, float64(r.height)-90.0
	dc.SetFontFace(f.medium)
	dc.SetLineWidth(3)
	for _, axis := range []struct {
		name string
		dir  r3.Vec
		col  color.Color
	}{
		{"X", r3.Vec{X: 1}, r.palette.AxisX},
		{"Y", r3.Vec{Y: 1}, r.palette.AxisY},
		{"Z", r3.Vec{Z: 1}, r.palette.AxisZ},
	} {
		dx, dy := cam.projectDir(axis.dir)
		n := math.Hypot(dx, dy)
		if n < 1e-9 {
			continue
		}
		ex, ey := ox+dx/n*length, oy+dy/n*length
		dc.SetColor(axis.col)
		dc.DrawLine(ox, oy, ex, ey)
		dc.Stroke()
		dc.DrawStringAnchored(axis.name, ox+dx/n*(length+16), oy+dy/n*(length+16), 0.5, 0.5)
	}
}

// fontSet holds the label faces. Faces are not safe for concurrent use, so
// each render call gets its own set from the parsed font.
type fontSet struct {
	small, medium, large font.Face
}

var parsedFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

func loadFonts() (*fontSet, error) {
	f, err := parsedFont()
	if err != nil {
		return nil, err
	}
	face := func(size float64) font.Face {
		return truetype.NewFace(f, &truetype.Options{Size: size, Hinting: font.HintingFull})
	}
	return &fontSet{small: face(17), medium: face(20), large: face(24)}, nil
}

// arrow returns the color for an arrow style class.
func (p Palette) arrow(c load.Class) color.Color {
	if c == load.ClassDirectional {
		return p.Directional
	}
	return p.Vector
}
