package raster

import (
	"image/color"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/trussview/pkg/errors"
)

// Palette holds the drawing colors.
type Palette struct {
	Background  color.Color
	Structure   color.Color
	Rigid       color.Color
	Node        color.Color
	Boundary    color.Color
	Vector      color.Color // quantitative load arrows
	Directional color.Color // qualitative load arrows
	Text        color.Color
	Reference   color.Color
	LabelBox    color.Color
	LabelEdge   color.Color
	AxisX       color.Color
	AxisY       color.Color
	AxisZ       color.Color
}

// DefaultPalette is the report palette: green structure, red rigid links,
// midnight blue nodes and blue supports on white.
func DefaultPalette() Palette {
	return Palette{
		Background:  color.White,
		Structure:   color.RGBA{0, 128, 0, 255},
		Rigid:       color.RGBA{255, 0, 0, 255},
		Node:        color.RGBA{25, 25, 112, 255},
		Boundary:    color.RGBA{0, 0, 255, 255},
		Vector:      color.RGBA{220, 0, 0, 255},
		Directional: color.RGBA{255, 0, 255, 255},
		Text:        color.Black,
		Reference:   color.RGBA{220, 0, 0, 255},
		LabelBox:    color.White,
		LabelEdge:   color.RGBA{160, 160, 160, 255},
		AxisX:       color.RGBA{220, 0, 0, 255},
		AxisY:       color.RGBA{0, 160, 0, 255},
		AxisZ:       color.RGBA{0, 0, 220, 255},
	}
}

// paletteKeys maps configuration keys to palette fields.
var paletteKeys = map[string]func(p *Palette) *color.Color{
	"background":  func(p *Palette) *color.Color { return &p.Background },
	"structure":   func(p *Palette) *color.Color { return &p.Structure },
	"rigid":       func(p *Palette) *color.Color { return &p.Rigid },
	"node":        func(p *Palette) *color.Color { return &p.Node },
	"boundary":    func(p *Palette) *color.Color { return &p.Boundary },
	"vector":      func(p *Palette) *color.Color { return &p.Vector },
	"directional": func(p *Palette) *color.Color { return &p.Directional },
	"text":        func(p *Palette) *color.Color { return &p.Text },
	"reference":   func(p *Palette) *color.Color { return &p.Reference },
	"label_box":   func(p *Palette) *color.Color { return &p.LabelBox },
	"label_edge":  func(p *Palette) *color.Color { return &p.LabelEdge },
}

// Override returns p with the colors named in colors replaced. Keys are the
// snake_case field names, values are "#rrggbb" or "#rgb".
func (p Palette) Override(colors map[string]string) (Palette, error) {
	for _, key := range slices.Sorted(maps.Keys(colors)) {
		field, ok := paletteKeys[key]
		if !ok {
			return p, errors.New(errors.ErrCodeInvalidInput, "unknown palette color %q", key)
		}
		c, err := ParseHex(colors[key])
		if err != nil {
			return p, errors.Wrap(errors.ErrCodeInvalidInput, err, "palette color %s", key)
		}
		*field(&p) = c
	}
	return p, nil
}

// ParseHex parses "#rrggbb" or "#rgb" into an opaque color.
func ParseHex(s string) (color.RGBA, error) {
	h, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok || (len(h) != 3 && len(h) != 6) {
		return color.RGBA{}, errors.New(errors.ErrCodeInvalidFormat, "invalid hex color %q", s)
	}
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, errors.New(errors.ErrCodeInvalidFormat, "invalid hex color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
