// Package scene assembles the renderer-agnostic description of one output
// image from a topology and its load annotations.
//
// A [Scene] is a plain value: points, index-based line topology, markers,
// arrows and labels. Renderers in pkg/render consume it without access to the
// topology, so a scene can be cached, serialized or drawn by any backend.
package scene

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/trussview/pkg/load"
	"github.com/matzehuels/trussview/pkg/topology"
)

// Projection selects how a renderer frames the scene.
type Projection string

const (
	// ProjectionTop looks down the Z axis with Y up.
	ProjectionTop Projection = "top"
	// ProjectionIso is a standard isometric view of the whole scene.
	ProjectionIso Projection = "iso"
	// ProjectionFocus is an isometric view centered on a focus point at a
	// fixed distance.
	ProjectionFocus Projection = "focus"
)

// View is the camera hint for a scene.
type View struct {
	Projection Projection `json:"projection"`
	Focus      *r3.Vec    `json:"focus,omitempty"`
	Distance   float64    `json:"distance,omitempty"`
}

// LabelStyle is the style class of a text label.
type LabelStyle string

const (
	LabelElement   LabelStyle = "element"
	LabelReference LabelStyle = "reference"
	LabelLoad      LabelStyle = "load"
)

// Label is positioned text.
type Label struct {
	Pos   r3.Vec     `json:"pos"`
	Text  string     `json:"text"`
	Style LabelStyle `json:"style"`
}

// Arrow is a load glyph.
type Arrow struct {
	Origin r3.Vec     `json:"origin"`
	Vector r3.Vec     `json:"vector"`
	Class  load.Class `json:"class"`
}

// Markers is a set of boundary condition glyphs sharing one size.
type Markers struct {
	Points []r3.Vec `json:"points"`
	Size   float64  `json:"size"`
}

// Scene is everything needed to draw one image.
//
// Structure and Rigid refer to Points by index. Every index is valid for the
// Points slice of the same scene.
type Scene struct {
	Name string `json:"name"`
	View View   `json:"view"`

	Points    []r3.Vec          `json:"points"`
	NodeIDs   []topology.NodeID `json:"node_ids"`
	Structure [][]int           `json:"structure"`
	Rigid     [][2]int          `json:"rigid,omitempty"`
	Boundary  Markers           `json:"boundary"`
	Arrows    []Arrow           `json:"arrows,omitempty"`
	Labels    []Label           `json:"labels,omitempty"`
}

// Empty reports whether the scene has no geometry at all.
func (s *Scene) Empty() bool { return len(s.Points) == 0 }

// Stats summarizes scene contents for logging.
type Stats struct {
	Points, Lines, Rigid, Boundary, Arrows, Labels int
}

// Stats returns element counts of the scene.
func (s *Scene) Stats() Stats {
	return Stats{
		Points:   len(s.Points),
		Lines:    len(s.Structure),
		Rigid:    len(s.Rigid),
		Boundary: len(s.Boundary.Points),
		Arrows:   len(s.Arrows),
		Labels:   len(s.Labels),
	}
}

// Bounds returns the bounding box of every drawn position, including arrow
// heads and labels. ok is false for an empty scene.
func (s *Scene) Bounds() (b topology.Bounds, ok bool) {
	var pts []r3.Vec
	pts = append(pts, s.Points...)
	for _, a := range s.Arrows {
		pts = append(pts, a.Origin, r3.Add(a.Origin, a.Vector))
	}
	for _, l := range s.Labels {
		pts = append(pts, l.Pos)
	}
	if len(pts) == 0 {
		return b, false
	}
	b.Min, b.Max = pts[0], pts[0]
	for _, p := range pts[1:] {
		b.Min = r3.Vec{X: min(b.Min.X, p.X), Y: min(b.Min.Y, p.Y), Z: min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: max(b.Max.X, p.X), Y: max(b.Max.Y, p.Y), Z: max(b.Max.Z, p.Z)}
	}
	return b, true
}

// Option configures [Assemble].
type Option func(*config)

type config struct {
	view          View
	elementLabels bool
	boundary      bool
	boundarySize  float64
	annotations   []load.Annotation
	references    map[topology.NodeID]string
}

// WithView sets the camera hint. The default is [ProjectionIso].
func WithView(v View) Option {
	return func(c *config) { c.view = v }
}

// WithElementLabels places each element id at its centroid.
func WithElementLabels() Option {
	return func(c *config) { c.elementLabels = true }
}

// WithBoundary draws boundary condition markers of the given size.
func WithBoundary(size float64) Option {
	return func(c *config) {
		c.boundary = true
		c.boundarySize = size
	}
}

// WithAnnotations adds load arrows and their labels.
func WithAnnotations(a ...load.Annotation) Option {
	return func(c *config) { c.annotations = append(c.annotations, a...) }
}

// WithReferenceLabels names reference nodes, e.g. fitting names at their
// attachment node. Nodes that are not active are skipped.
func WithReferenceLabels(names map[topology.NodeID]string) Option {
	return func(c *config) { c.references = names }
}

// Assemble builds the scene for t. The topology is only read.
//
// Each part is independent: an empty rigid link set, boundary set or
// annotation list simply contributes nothing. Elements with fewer than two
// resolvable nodes draw no line, and elements with none draw no label.
// Annotations whose node is not active are dropped together with their label.
func Assemble(name string, t *topology.Topology, opts ...Option) *Scene {
	cfg := config{view: View{Projection: ProjectionIso}}
	for _, opt := range opts {
		opt(&cfg)
	}

	idx := t.IndexMap()
	s := &Scene{
		Name:      name,
		View:      cfg.view,
		Points:    t.Positions(),
		NodeIDs:   t.IDs(),
		Structure: [][]int{},
	}

	for _, e := range t.Elements() {
		line := make([]int, 0, len(e.Nodes))
		for _, id := range e.Nodes {
			if i, ok := idx[id]; ok {
				line = append(line, i)
			}
		}
		if len(line) >= 2 {
			s.Structure = append(s.Structure, line)
		}
		if cfg.elementLabels {
			if c, ok := t.Centroid(e); ok {
				s.Labels = append(s.Labels, Label{Pos: c, Text: strconv.Itoa(int(e.ID)), Style: LabelElement})
			}
		}
	}

	for _, l := range t.ActiveRigidLinks() {
		s.Rigid = append(s.Rigid, [2]int{idx[l.Independent], idx[l.Dependent]})
	}

	if cfg.boundary {
		s.Boundary.Size = cfg.boundarySize
		for _, id := range t.Boundary() {
			s.Boundary.Points = append(s.Boundary.Points, s.Points[idx[id]])
		}
	}

	for _, id := range s.NodeIDs {
		if ref, ok := cfg.references[id]; ok {
			s.Labels = append(s.Labels, Label{Pos: s.Points[idx[id]], Text: ref, Style: LabelReference})
		}
	}

	for _, a := range cfg.annotations {
		if _, ok := idx[a.Node]; !ok {
			continue
		}
		s.Arrows = append(s.Arrows, Arrow{Origin: a.Origin, Vector: a.Vector, Class: a.Class})
		s.Labels = append(s.Labels, Label{Pos: a.LabelPos, Text: a.LabelText, Style: LabelLoad})
	}

	return s
}

// String implements fmt.Stringer for log output.
func (s *Scene) String() string {
	st := s.Stats()
	return fmt.Sprintf("%s: %d points, %d lines, %d rigid, %d boundary, %d arrows, %d labels",
		s.Name, st.Points, st.Lines, st.Rigid, st.Boundary, st.Arrows, st.Labels)
}
