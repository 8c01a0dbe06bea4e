package topology

import (
	"slices"

	terrors "github.com/matzehuels/trussview/pkg/errors"
)

// FilterResult reports what [FilterInRange] removed.
//
// The counters are intended for logging; the filtered topology itself is the
// argument passed to FilterInRange.
type FilterResult struct {
	// Reference is the node the window was centered on.
	Reference NodeID

	// Radius is the half-width of the square window.
	Radius float64

	// NodesRemoved counts nodes on or outside the window edge.
	NodesRemoved int

	// CompetitorsRemoved counts other reference nodes removed from inside
	// the window.
	CompetitorsRemoved int

	// ElementsRemoved counts elements dropped because they touched a removed
	// node.
	ElementsRemoved int

	// RigidLinksRemoved counts rigid links dropped because they do not
	// involve the reference node.
	RigidLinksRemoved int

	// NodesKept is the number of nodes left after filtering.
	NodesKept int
}

// FilterOption configures [FilterInRange].
type FilterOption func(*filterConfig)

type filterConfig struct {
	competitors []NodeID
}

// WithCompetitors names other reference nodes (for example other load
// points) that must not appear in this window even if they lie inside it.
// The reference node itself is ignored if it is listed.
func WithCompetitors(ids ...NodeID) FilterOption {
	return func(c *filterConfig) {
		c.competitors = append(c.competitors, ids...)
	}
}

// FilterInRange reduces t in place to the square window of half-width radius
// around the reference node, projected onto the XY plane.
//
// A node is kept only if ref.X-radius < X < ref.X+radius and likewise for Y;
// nodes exactly on the edge are removed. Elements touching any removed node
// are removed. Only rigid links that have ref as an endpoint are retained.
// Competitors (see [WithCompetitors]) still inside the window are removed
// afterwards and their elements cascade too, so the result always passes
// [Topology.Validate].
//
// FilterInRange is destructive: callers that need the original must pass a
// [Topology.Clone]. It returns a MISSING_REFERENCE error if ref is absent and
// a FILTER_EMPTY error, along with the populated result, if no node remains.
func FilterInRange(t *Topology, ref NodeID, radius float64, opts ...FilterOption) (*FilterResult, error) {
	var cfg filterConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	center, ok := t.Node(ref)
	if !ok {
		return nil, terrors.Wrap(terrors.ErrCodeMissingReference, ErrUnknownNode,
			"reference node %d not found", ref)
	}

	res := &FilterResult{Reference: ref, Radius: radius}
	minX, maxX := center.Pos.X-radius, center.Pos.X+radius
	minY, maxY := center.Pos.Y-radius, center.Pos.Y+radius

	removed := make(map[NodeID]bool)
	for _, n := range t.Nodes() {
		x, y := n.Pos.X, n.Pos.Y
		if minX >= x || maxX <= x || minY >= y || maxY <= y {
			removed[n.ID] = true
		}
	}
	for id := range removed {
		t.Remove(id)
	}
	res.NodesRemoved = len(removed)

	for _, id := range cfg.competitors {
		if id == ref {
			continue
		}
		if t.Remove(id) {
			removed[id] = true
			res.CompetitorsRemoved++
		}
	}

	for _, e := range t.Elements() {
		if slices.ContainsFunc(e.Nodes, func(id NodeID) bool { return removed[id] || !t.Has(id) }) {
			t.RemoveElement(e.ID)
			res.ElementsRemoved++
		}
	}

	res.RigidLinksRemoved = t.retainRigidLinks(func(l RigidLink) bool { return l.Has(ref) })
	res.NodesKept = t.NodeCount()

	if res.NodesKept == 0 {
		return res, terrors.New(terrors.ErrCodeFilterEmpty,
			"window of radius %g around node %d retained no nodes", radius, ref)
	}
	return res, nil
}
