package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/trussview/pkg/errors"
	"github.com/matzehuels/trussview/pkg/load"
	"github.com/matzehuels/trussview/pkg/manifest"
	"github.com/matzehuels/trussview/pkg/scene"
	"github.com/matzehuels/trussview/pkg/topology"
)

// Image name prefixes.
const (
	FullViewName     = "View_01_Full_Model"
	DetailViewPrefix = "View_MF_"
	GroupViewPrefix  = "View_Winch_"
)

// View is one planned image.
type View struct {
	Name string
	Kind string // manifest.KindFull, KindDetail or KindGroup

	// Reference is the window center of a detail view and the focus node of
	// a group view.
	Reference topology.NodeID

	// Label names the reference node in detail views.
	Label string

	Records []load.Record

	// Competitors are the other vector load nodes, removed from a detail
	// window so that each image shows a single fitting.
	Competitors []topology.NodeID
}

// Plan decides the views of a run in output order: the full model, one
// detail view per vector load source whose node exists, then one view per
// directional group whose first node exists.
func Plan(t *topology.Topology, records []load.Record) []View {
	views := []View{{Name: FullViewName, Kind: manifest.KindFull, Records: records}}
	names := viewNames{FullViewName: true}

	var vecNodes []topology.NodeID
	var order []string
	bySource := make(map[string][]load.Record)
	var groupOrder []string
	byGroup := make(map[string][]load.Record)

	for _, r := range records {
		switch r.Kind {
		case load.KindVector:
			if !slices.Contains(vecNodes, r.Node) {
				vecNodes = append(vecNodes, r.Node)
			}
			if _, ok := bySource[r.Source]; !ok {
				order = append(order, r.Source)
			}
			bySource[r.Source] = append(bySource[r.Source], r)
		case load.KindDirectional:
			if _, ok := byGroup[r.Group]; !ok {
				groupOrder = append(groupOrder, r.Group)
			}
			byGroup[r.Group] = append(byGroup[r.Group], r)
		}
	}

	for _, src := range order {
		recs := bySource[src]
		ref := recs[0].Node
		if !t.Has(ref) {
			continue
		}
		var competitors []topology.NodeID
		for _, n := range vecNodes {
			if n != ref {
				competitors = append(competitors, n)
			}
		}
		views = append(views, View{
			Name:        names.claim(DetailViewPrefix + safeName(src)),
			Kind:        manifest.KindDetail,
			Reference:   ref,
			Label:       src,
			Records:     recs,
			Competitors: competitors,
		})
	}

	for _, g := range groupOrder {
		recs := byGroup[g]
		if !t.Has(recs[0].Node) {
			continue
		}
		views = append(views, View{
			Name:      names.claim(GroupViewPrefix + safeName(g)),
			Kind:      manifest.KindGroup,
			Reference: recs[0].Node,
			Records:   recs,
		})
	}
	return views
}

// Builder assembles the scene of a view. It never modifies the master
// topology; detail views work on a clone.
type Builder struct {
	master *topology.Topology
	synth  *load.Synthesizer
	opts   Options
}

// NewBuilder returns a builder for the master topology.
func NewBuilder(master *topology.Topology, opts Options) *Builder {
	return &Builder{master: master, synth: load.New(opts.Annotation), opts: opts}
}

// Build assembles the scene of v. For detail views the filter result is
// returned too; an empty window yields FILTER_EMPTY.
func (b *Builder) Build(v View) (*scene.Scene, *topology.FilterResult, error) {
	switch v.Kind {
	case manifest.KindFull:
		res := b.synth.Annotate(b.master, v.Records)
		return scene.Assemble(v.Name, b.master,
			scene.WithView(scene.View{Projection: scene.ProjectionTop}),
			scene.WithBoundary(b.opts.FullBoundarySize),
			scene.WithAnnotations(res.Annotations...),
		), nil, nil

	case manifest.KindDetail:
		window := b.master.Clone()
		fr, err := topology.FilterInRange(window, v.Reference, b.opts.Radius, topology.WithCompetitors(v.Competitors...))
		if err != nil {
			return nil, fr, err
		}
		focus, _ := window.Node(v.Reference)
		res := b.synth.Annotate(window, v.Records)
		return scene.Assemble(v.Name, window,
			scene.WithView(scene.View{Projection: scene.ProjectionFocus, Focus: &focus.Pos, Distance: b.opts.DetailDistance}),
			scene.WithElementLabels(),
			scene.WithBoundary(b.opts.DetailBoundarySize),
			scene.WithReferenceLabels(map[topology.NodeID]string{v.Reference: v.Label}),
			scene.WithAnnotations(res.Annotations...),
		), fr, nil

	case manifest.KindGroup:
		focus, ok := b.master.Node(v.Reference)
		if !ok {
			return nil, nil, errors.New(errors.ErrCodeMissingReference, "focus node %d not found", v.Reference)
		}
		res := b.synth.Annotate(b.master, v.Records, load.ModeQuantized)
		return scene.Assemble(v.Name, b.master,
			scene.WithView(scene.View{Projection: scene.ProjectionFocus, Focus: &focus.Pos, Distance: b.opts.GroupDistance}),
			scene.WithElementLabels(),
			scene.WithBoundary(b.opts.DetailBoundarySize),
			scene.WithAnnotations(res.Annotations...),
		), nil, nil
	}
	return nil, nil, errors.New(errors.ErrCodeInternal, "unknown view kind %q", v.Kind)
}

// maxSafeName bounds the sanitized part of a view name so that prefix and
// suffix stay within the image name limit.
const maxSafeName = 150

// safeName replaces characters that cannot appear in a file name and
// collapses ".." sequences. Distinct inputs may map to the same result;
// viewNames resolves that.
func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unnamed"
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			return '_'
		case r < 0x20 || r == 0x7f:
			return '_'
		case r == ' ':
			return '_'
		}
		return r
	}, s)
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", "_")
	}
	if r := []rune(s); len(r) > maxSafeName {
		s = string(r[:maxSafeName])
	}
	return s
}

// viewNames tracks the names taken by a plan.
type viewNames map[string]bool

// claim returns name, or name with the first free "_N" suffix (N >= 2) when
// name is already taken, and marks the result as taken.
func (n viewNames) claim(name string) string {
	got := name
	for i := 2; n[got]; i++ {
		got = fmt.Sprintf("%s_%d", name, i)
	}
	n[got] = true
	return got
}
