package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/trussview/pkg/load"
	"github.com/matzehuels/trussview/pkg/scene"
	"github.com/matzehuels/trussview/pkg/topology"
)

func testScene(t *testing.T, view scene.View) *scene.Scene {
	t.Helper()
	topo := topology.New()
	for i, p := range []r3.Vec{{X: 0}, {X: 1000}, {X: 1000, Y: 1000}, {Y: 1000, Z: 500}} {
		if err := topo.AddNode(topology.Node{ID: topology.NodeID(i + 1), Pos: p}); err != nil {
			t.Fatal(err)
		}
	}
	for i, pair := range [][2]topology.NodeID{{1, 2}, {2, 3}, {3, 4}} {
		e, _ := topology.NewElement(topology.ElementID(i+10), pair[:])
		_ = topo.AddElement(e)
	}
	_ = topo.AddRigidLink(topology.RigidLink{Independent: 4, Dependent: 1})
	topo.SetBoundary([]topology.NodeID{1, 2})

	res := load.New(load.Config{ArrowLength: 300}).Annotate(topo, []load.Record{
		{Source: "MF-1", Node: 3, Force: r3.Vec{X: 1, Y: 1}, Magnitude: 12.5},
		{Source: "W1", Node: 2, Force: r3.Vec{Z: -1}, Kind: load.KindDirectional},
	})
	return scene.Assemble("test", topo,
		scene.WithView(view),
		scene.WithElementLabels(),
		scene.WithBoundary(10),
		scene.WithReferenceLabels(map[topology.NodeID]string{3: "MF-1"}),
		scene.WithAnnotations(res.Annotations...),
	)
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	return img
}

func TestRenderPNG(t *testing.T) {
	for _, p := range []scene.Projection{scene.ProjectionTop, scene.ProjectionIso} {
		t.Run(string(p), func(t *testing.T) {
			r := New(WithSize(400, 300), WithMargin(0.25), WithoutAxes())
			data, err := r.Render(context.Background(), testScene(t, scene.View{Projection: p}))
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			img := decode(t, data)
			if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
				t.Fatalf("size = %dx%d, want 400x300", b.Dx(), b.Dy())
			}
			if r, g, b, _ := img.At(2, 2).RGBA(); r != 0xffff || g != 0xffff || b != 0xffff {
				t.Errorf("corner pixel is not white: %d %d %d", r, g, b)
			}
			if !hasGreen(img) {
				t.Error("no structure pixels drawn")
			}
		})
	}
}

func TestRenderDefaultSize(t *testing.T) {
	r := New()
	if w, h := r.Size(); w != DefaultWidth || h != DefaultHeight {
		t.Errorf("Size = %dx%d", w, h)
	}
	if r.Format() != "png" {
		t.Errorf("Format = %q", r.Format())
	}
}

func TestRenderEmptyScene(t *testing.T) {
	s := scene.Assemble("empty", topology.New())
	data, err := New(WithSize(64, 48), WithoutAxes()).Render(context.Background(), s)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img := decode(t, data)
	if r, g, b, _ := img.At(32, 24).RGBA(); r != 0xffff || g != 0xffff || b != 0xffff {
		t.Error("empty scene is not blank")
	}
}

func TestRenderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Render(ctx, testScene(t, scene.View{}))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func hasGreen(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if g > r+0x3000 && g > bl+0x3000 {
				return true
			}
		}
	}
	return false
}

func TestCameraTopFitsScene(t *testing.T) {
	s := &scene.Scene{
		View:   scene.View{Projection: scene.ProjectionTop},
		Points: []r3.Vec{{X: 0, Y: 0}, {X: 100, Y: 50}},
	}
	cam := newCamera(s, 200, 200, 0)

	x0, y0 := cam.project(s.Points[0])
	x1, y1 := cam.project(s.Points[1])
	if math.Abs(x0-0) > 1e-9 || math.Abs(x1-200) > 1e-9 {
		t.Errorf("x = %g, %g; want 0, 200", x0, x1)
	}
	// Y grows upwards in the model and downwards in the image.
	if y1 >= y0 {
		t.Errorf("y0=%g y1=%g; higher model Y must be higher on screen", y0, y1)
	}
	if math.Abs((y0+y1)/2-100) > 1e-9 {
		t.Errorf("scene not vertically centered: %g %g", y0, y1)
	}
}

func TestCameraFocusCentersFocusPoint(t *testing.T) {
	focus := r3.Vec{X: 5000, Y: -200, Z: 300}
	s := &scene.Scene{
		View:   scene.View{Projection: scene.ProjectionFocus, Focus: &focus, Distance: 6000},
		Points: []r3.Vec{{}, focus},
	}
	cam := newCamera(s, 2000, 1500, 0.05)
	x, y := cam.project(focus)
	if math.Abs(x-1000) > 1e-6 || math.Abs(y-750) > 1e-6 {
		t.Errorf("focus projected to (%g, %g), want image center", x, y)
	}
}

func TestBasisIsOrthonormal(t *testing.T) {
	for _, p := range []scene.Projection{scene.ProjectionTop, scene.ProjectionIso, scene.ProjectionFocus} {
		right, up := basis(p)
		if math.Abs(r3.Norm(right)-1) > 1e-9 || math.Abs(r3.Norm(up)-1) > 1e-9 {
			t.Errorf("%s: axes not unit length", p)
		}
		if math.Abs(r3.Dot(right, up)) > 1e-9 {
			t.Errorf("%s: axes not orthogonal", p)
		}
		if p != scene.ProjectionTop && up.Z <= 0 {
			t.Errorf("%s: model Z does not point up on screen", p)
		}
	}
}
