package raster

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/trussview/pkg/scene"
)

// fieldOfView is the vertical view angle a focus view frames, in degrees.
const fieldOfView = 30.0

// camera is an orthographic projection from model space to pixels.
type camera struct {
	right, up r3.Vec // screen axes in model space
	scale     float64
	cx, cy    float64 // projected model point at the image center
	w, h      float64
}

// basis returns the screen axes for a projection. The view direction points
// from the target towards the eye.
func basis(p scene.Projection) (right, up r3.Vec) {
	var eye r3.Vec
	switch p {
	case scene.ProjectionTop:
		return r3.Vec{X: 1}, r3.Vec{Y: 1}
	case scene.ProjectionFocus:
		eye = r3.Vec{X: 1, Y: -1, Z: 1}
	default:
		eye = r3.Vec{X: 1, Y: 1, Z: 1}
	}
	w := r3.Unit(eye)
	right = r3.Unit(r3.Cross(r3.Vec{Z: 1}, w))
	up = r3.Cross(w, right)
	return right, up
}

func (c camera) plane(p r3.Vec) (x, y float64) {
	return r3.Dot(p, c.right), r3.Dot(p, c.up)
}

// project maps a model point to pixel coordinates (Y down).
func (c camera) project(p r3.Vec) (x, y float64) {
	px, py := c.plane(p)
	return c.w/2 + (px-c.cx)*c.scale, c.h/2 - (py-c.cy)*c.scale
}

// projectDir maps a model direction to a pixel direction.
func (c camera) projectDir(d r3.Vec) (x, y float64) {
	px, py := c.plane(d)
	return px * c.scale, -py * c.scale
}

// newCamera frames the scene. Focus views center on the focus point and show
// a region proportional to the view distance; other views fit every drawn
// position into the image with the given margin fraction.
func newCamera(s *scene.Scene, width, height int, margin float64) camera {
	right, up := basis(s.View.Projection)
	c := camera{right: right, up: up, scale: 1, w: float64(width), h: float64(height)}

	if s.View.Projection == scene.ProjectionFocus && s.View.Focus != nil && s.View.Distance > 0 {
		c.cx, c.cy = c.plane(*s.View.Focus)
		eyeDist := s.View.Distance * 0.8 * math.Sqrt(3)
		half := eyeDist * math.Tan(fieldOfView/2*math.Pi/180)
		c.scale = c.h / (2 * half)
		return c
	}

	b, ok := s.Bounds()
	if !ok {
		return c
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, corner := range corners(b.Min, b.Max) {
		x, y := c.plane(corner)
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	c.cx, c.cy = (minX+maxX)/2, (minY+maxY)/2

	usableW := c.w * (1 - 2*margin)
	usableH := c.h * (1 - 2*margin)
	spanX, spanY := maxX-minX, maxY-minY
	switch {
	case spanX <= 0 && spanY <= 0:
		c.scale = 1
	case spanX <= 0:
		c.scale = usableH / spanY
	case spanY <= 0:
		c.scale = usableW / spanX
	default:
		c.scale = math.Min(usableW/spanX, usableH/spanY)
	}
	return c
}

func corners(lo, hi r3.Vec) []r3.Vec {
	out := make([]r3.Vec, 0, 8)
	for _, x := range []float64{lo.X, hi.X} {
		for _, y := range []float64{lo.Y, hi.Y} {
			for _, z := range []float64{lo.Z, hi.Z} {
				out = append(out, r3.Vec{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}
