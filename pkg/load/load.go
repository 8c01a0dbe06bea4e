// Package load turns applied point loads into renderable arrow and label
// annotations.
//
// Two direction policies exist. [ModeContinuous] keeps the true direction of
// the force and scales every arrow to the same on-screen length so glyphs
// stay comparable across load cases. [ModeQuantized] keeps only the sign of
// each axis (see [Quantize]); it is used for overlay images where many loads
// share one view and only their qualitative orientation matters.
//
// An [Annotation] always carries both the arrow and its label. Loads whose
// direction is degenerate produce neither.
package load

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	terrors "github.com/matzehuels/trussview/pkg/errors"
	"github.com/matzehuels/trussview/pkg/topology"
)

// Kind classifies a load record by how much of its vector is meaningful.
type Kind int

const (
	// KindVector is a quantitative load whose components are the real force.
	KindVector Kind = iota
	// KindDirectional is a qualitative load where only per-axis direction
	// is meaningful.
	KindDirectional
)

// String returns "vector" or "directional".
func (k Kind) String() string {
	switch k {
	case KindVector:
		return "vector"
	case KindDirectional:
		return "directional"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Mode selects the direction policy used by [Synthesizer.Synthesize].
type Mode int

const (
	ModeContinuous Mode = iota
	ModeQuantized
)

func (m Mode) String() string {
	if m == ModeQuantized {
		return "quantized"
	}
	return "continuous"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ModeFor returns the default mode for a load kind.
func ModeFor(k Kind) Mode {
	if k == KindDirectional {
		return ModeQuantized
	}
	return ModeContinuous
}

// Record is one applied load as produced by the load calculation.
type Record struct {
	Source    string          // Named force or lever point, e.g. "MF-03" or "W1"
	Node      topology.NodeID // Node the load acts on
	Force     r3.Vec          // Force components
	Magnitude float64         // Value shown in the label; zero means derive it from Force
	Kind      Kind
	Group     string // View the load belongs to (load case or source id)
	Case      string // Load case id, informational
}

// Class is the style class of an annotation. Renderers map it to a color.
type Class string

const (
	ClassVector      Class = "vector"
	ClassDirectional Class = "directional"
)

// ClassFor maps a load kind to its style class.
func ClassFor(k Kind) Class {
	if k == KindDirectional {
		return ClassDirectional
	}
	return ClassVector
}

// Annotation is one arrow with its label.
type Annotation struct {
	Source string          `json:"source"`
	Node   topology.NodeID `json:"node"`

	Origin    r3.Vec  `json:"origin"`    // Arrow tail
	Vector    r3.Vec  `json:"vector"`    // Arrow tail to head
	Direction r3.Vec  `json:"direction"` // Unit direction
	Magnitude float64 `json:"magnitude"` // Value printed in the label

	LabelPos  r3.Vec `json:"label_pos"`
	LabelText string `json:"label_text"`

	Mode  Mode  `json:"mode"`
	Class Class `json:"class"`
}

// Head returns the arrow tip position.
func (a Annotation) Head() r3.Vec { return r3.Add(a.Origin, a.Vector) }

// Quantize maps every axis of v to +magnitude, 0 or -magnitude according to
// its sign.
func Quantize(v r3.Vec, magnitude float64) r3.Vec {
	q := func(x float64) float64 {
		switch {
		case x > 0:
			return magnitude
		case x < 0:
			return -magnitude
		}
		return 0
	}
	return r3.Vec{X: q(v.X), Y: q(v.Y), Z: q(v.Z)}
}

// Config holds the synthesizer constants. The zero value of any field is
// replaced by its default in [New]; LabelLift uses nil for that, since a
// zero lift is a valid setting.
type Config struct {
	// ArrowLength is the on-screen length, in model units, of every
	// continuous-mode arrow.
	ArrowLength float64 `json:"arrow_length" toml:"arrow_length"`

	// LabelOffset is the distance along the arrow direction at which a
	// continuous-mode label is placed. Defaults to 1.1 * ArrowLength.
	LabelOffset float64 `json:"label_offset" toml:"label_offset"`

	// Epsilon is the norm below which a continuous-mode load is suppressed.
	Epsilon float64 `json:"epsilon" toml:"epsilon"`

	// QuantizedMagnitude is the per-axis component of a quantized arrow.
	QuantizedMagnitude float64 `json:"quantized_magnitude" toml:"quantized_magnitude"`

	// LabelLift is added to the arrow head to place a quantized-mode label.
	// Nil selects (0, 0, DefaultLabelLiftZ); a zero vector puts the label on
	// the arrow head.
	LabelLift *r3.Vec `json:"label_lift,omitempty" toml:"-"`

	// UnitScale converts the force norm into label units when a record has no
	// explicit magnitude.
	UnitScale float64 `json:"unit_scale" toml:"unit_scale"`

	// Unit is appended to the printed magnitude, e.g. "T".
	Unit string `json:"unit" toml:"unit"`

	// Planar drops the Z component of continuous-mode loads.
	Planar bool `json:"planar" toml:"planar"`
}

const (
	DefaultArrowLength        = 600.0
	DefaultEpsilon            = 1e-3
	DefaultQuantizedMagnitude = 1000.0
	DefaultLabelLiftZ         = 200.0
	DefaultUnit               = "T"
)

// DefaultConfig returns the configuration used for report images.
func DefaultConfig() Config {
	return Config{
		ArrowLength:        DefaultArrowLength,
		LabelOffset:        1.1 * DefaultArrowLength,
		Epsilon:            DefaultEpsilon,
		QuantizedMagnitude: DefaultQuantizedMagnitude,
		LabelLift:          &r3.Vec{Z: DefaultLabelLiftZ},
		UnitScale:          1,
		Unit:               DefaultUnit,
	}
}

// Synthesizer converts load records into annotations. It holds no state
// besides its configuration and is safe for concurrent use.
type Synthesizer struct {
	cfg Config
}

// New returns a Synthesizer, filling unset fields of cfg with defaults.
func New(cfg Config) *Synthesizer {
	def := DefaultConfig()
	if cfg.ArrowLength <= 0 {
		cfg.ArrowLength = def.ArrowLength
	}
	if cfg.LabelOffset <= 0 {
		cfg.LabelOffset = 1.1 * cfg.ArrowLength
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = def.Epsilon
	}
	if cfg.QuantizedMagnitude <= 0 {
		cfg.QuantizedMagnitude = def.QuantizedMagnitude
	}
	if cfg.LabelLift == nil {
		cfg.LabelLift = def.LabelLift
	} else {
		lift := *cfg.LabelLift
		cfg.LabelLift = &lift
	}
	if cfg.UnitScale == 0 {
		cfg.UnitScale = def.UnitScale
	}
	if cfg.Unit == "" {
		cfg.Unit = def.Unit
	}
	return &Synthesizer{cfg: cfg}
}

// Config returns the effective configuration.
func (s *Synthesizer) Config() Config {
	cfg := s.cfg
	lift := *cfg.LabelLift
	cfg.LabelLift = &lift
	return cfg
}

// Synthesize builds the annotation for one record anchored at origin.
// A degenerate direction yields an INVALID_GEOMETRY error; callers are
// expected to drop the load silently.
func (s *Synthesizer) Synthesize(rec Record, origin r3.Vec, mode Mode) (Annotation, error) {
	a := Annotation{
		Source: rec.Source,
		Node:   rec.Node,
		Origin: origin,
		Mode:   mode,
		Class:  ClassFor(rec.Kind),
	}

	force := rec.Force
	if mode == ModeContinuous && s.cfg.Planar {
		force.Z = 0
	}
	norm := r3.Norm(force)

	switch mode {
	case ModeQuantized:
		a.Vector = Quantize(force, s.cfg.QuantizedMagnitude)
		if a.Vector == (r3.Vec{}) {
			return Annotation{}, terrors.New(terrors.ErrCodeInvalidGeometry,
				"load %s on node %d has no direction", rec.Source, rec.Node)
		}
		a.Direction = r3.Unit(a.Vector)
		a.LabelPos = r3.Add(a.Head(), *s.cfg.LabelLift)
	default:
		if norm < s.cfg.Epsilon {
			return Annotation{}, terrors.New(terrors.ErrCodeInvalidGeometry,
				"load %s on node %d is below %g", rec.Source, rec.Node, s.cfg.Epsilon)
		}
		a.Direction = r3.Vec{X: force.X / norm, Y: force.Y / norm, Z: force.Z / norm}
		a.Vector = r3.Scale(s.cfg.ArrowLength, a.Direction)
		a.LabelPos = r3.Add(origin, r3.Scale(s.cfg.LabelOffset, a.Direction))
	}

	a.Magnitude = rec.Magnitude
	if a.Magnitude <= 0 {
		a.Magnitude = norm * s.cfg.UnitScale
	}
	a.LabelText = s.label(rec.Source, a.Magnitude)
	return a, nil
}

func (s *Synthesizer) label(source string, magnitude float64) string {
	value := fmt.Sprintf("%.1f%s", magnitude, s.cfg.Unit)
	if source == "" {
		return value
	}
	return source + "\n" + value
}

// Result summarizes [Synthesizer.Annotate].
type Result struct {
	Annotations []Annotation
	Missing     []Record // Records whose node is not in the topology
	Suppressed  []Record // Records with a degenerate direction
}

// Annotate synthesizes every record against the node positions of t. The
// mode of each record follows [ModeFor] unless force overrides it.
// Records pointing at absent nodes and degenerate loads are reported in the
// result rather than returned as errors.
func (s *Synthesizer) Annotate(t *topology.Topology, records []Record, force ...Mode) Result {
	var res Result
	for _, rec := range records {
		node, ok := t.Node(rec.Node)
		if !ok {
			res.Missing = append(res.Missing, rec)
			continue
		}
		mode := ModeFor(rec.Kind)
		if len(force) > 0 {
			mode = force[0]
		}
		a, err := s.Synthesize(rec, node.Pos, mode)
		if err != nil {
			res.Suppressed = append(res.Suppressed, rec)
			continue
		}
		res.Annotations = append(res.Annotations, a)
	}
	return res
}
