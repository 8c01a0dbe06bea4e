package raster

import (
	"context"
	"image/color"
	"testing"

	terrors "github.com/matzehuels/trussview/pkg/errors"
	"github.com/matzehuels/trussview/pkg/scene"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
		ok   bool
	}{
		{"#008000", color.RGBA{0, 128, 0, 255}, true},
		{" #FFa500 ", color.RGBA{255, 165, 0, 255}, true},
		{"#f00", color.RGBA{255, 0, 0, 255}, true},
		{"008000", color.RGBA{}, false},
		{"#12345", color.RGBA{}, false},
		{"#gg0000", color.RGBA{}, false},
	}
	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseHex(%q) error = %v", tt.in, err)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParseHex(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPaletteOverride(t *testing.T) {
	def := DefaultPalette()
	p, err := def.Override(map[string]string{"structure": "#000080", "label_edge": "#111"})
	if err != nil {
		t.Fatalf("Override: %v", err)
	}
	if p.Structure != (color.RGBA{0, 0, 128, 255}) || p.LabelEdge != (color.RGBA{17, 17, 17, 255}) {
		t.Errorf("overridden colors = %v, %v", p.Structure, p.LabelEdge)
	}
	if p.Rigid != def.Rigid || def.Structure != (color.RGBA{0, 128, 0, 255}) {
		t.Error("Override changed colors it was not asked to")
	}

	if same, err := def.Override(nil); err != nil || same != def {
		t.Errorf("empty override = %v, %v", same, err)
	}
	if _, err := def.Override(map[string]string{"beams": "#000"}); !terrors.Is(err, terrors.ErrCodeInvalidInput) {
		t.Errorf("unknown key: got %v", err)
	}
	if _, err := def.Override(map[string]string{"node": "blue"}); !terrors.Is(err, terrors.ErrCodeInvalidInput) {
		t.Errorf("bad value: got %v", err)
	}
}

func TestRenderWithPalette(t *testing.T) {
	p, err := DefaultPalette().Override(map[string]string{"background": "#000000"})
	if err != nil {
		t.Fatal(err)
	}
	r := New(WithSize(200, 150), WithMargin(0.25), WithoutAxes(), WithPalette(p))
	data, err := r.Render(context.Background(), testScene(t, scene.View{Projection: scene.ProjectionTop}))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if r, g, b, _ := decode(t, data).At(2, 2).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Errorf("corner pixel = %d %d %d, want black", r, g, b)
	}
}
