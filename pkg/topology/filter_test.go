package topology

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	terrors "github.com/matzehuels/trussview/pkg/errors"
)

func TestFilterInRangeScenario(t *testing.T) {
	topo := New()
	mustNode(t, topo, 1, 0, 0, 0)
	mustNode(t, topo, 2, 2000, 0, 0)
	mustNode(t, topo, 3, 0, 2000, 0)
	mustElement(t, topo, 10, 1, 2)

	res, err := FilterInRange(topo, 1, 1500)
	if err != nil {
		t.Fatalf("FilterInRange: %v", err)
	}
	if got := topo.IDs(); !slices.Equal(got, []NodeID{1}) {
		t.Errorf("IDs = %v, want [1]", got)
	}
	if topo.ElementCount() != 0 {
		t.Errorf("ElementCount = %d, want 0", topo.ElementCount())
	}
	if res.NodesRemoved != 2 || res.ElementsRemoved != 1 || res.NodesKept != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestFilterInRangeEdgeIsExcluded(t *testing.T) {
	topo := New()
	mustNode(t, topo, 1, 0, 0, 0)
	mustNode(t, topo, 2, 1500, 0, 0)    // on max X edge
	mustNode(t, topo, 3, -1500, 10, 0)  // on min X edge
	mustNode(t, topo, 4, 10, 1500, 0)   // on max Y edge
	mustNode(t, topo, 5, 1499.9, -1499.9, 0)
	mustNode(t, topo, 6, 0, 0, 99999) // Z is ignored

	if _, err := FilterInRange(topo, 1, 1500); err != nil {
		t.Fatalf("FilterInRange: %v", err)
	}
	if got, want := topo.IDs(), []NodeID{1, 5, 6}; !slices.Equal(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}

func TestFilterInRangeRigidLinks(t *testing.T) {
	topo := New()
	mustNode(t, topo, 1, 0, 0, 0)
	mustNode(t, topo, 2, 100, 0, 0)
	mustNode(t, topo, 3, 200, 0, 0)
	mustNode(t, topo, 4, 300, 0, 0)
	_ = topo.AddRigidLink(RigidLink{Independent: 1, Dependent: 2})
	_ = topo.AddRigidLink(RigidLink{Independent: 3, Dependent: 4})
	_ = topo.AddRigidLink(RigidLink{Independent: 2, Dependent: 1})

	res, err := FilterInRange(topo, 1, 1500)
	if err != nil {
		t.Fatalf("FilterInRange: %v", err)
	}
	links := topo.RigidLinks()
	if len(links) != 2 {
		t.Fatalf("RigidLinks = %v, want the two links touching node 1", links)
	}
	for _, l := range links {
		if !l.Has(1) {
			t.Errorf("kept link %v does not involve the reference node", l)
		}
	}
	if res.RigidLinksRemoved != 1 {
		t.Errorf("RigidLinksRemoved = %d, want 1", res.RigidLinksRemoved)
	}
}

func TestFilterInRangeCompetitors(t *testing.T) {
	topo := New()
	mustNode(t, topo, 1, 0, 0, 0)
	mustNode(t, topo, 2, 100, 0, 0)
	mustNode(t, topo, 3, 200, 0, 0) // another reference point inside the window
	mustNode(t, topo, 4, 5000, 0, 0) // another reference point outside
	mustElement(t, topo, 10, 1, 2)
	mustElement(t, topo, 11, 2, 3)

	res, err := FilterInRange(topo, 1, 1500, WithCompetitors(1, 3, 4))
	if err != nil {
		t.Fatalf("FilterInRange: %v", err)
	}
	if got, want := topo.IDs(), []NodeID{1, 2}; !slices.Equal(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
	if res.CompetitorsRemoved != 1 {
		t.Errorf("CompetitorsRemoved = %d, want 1", res.CompetitorsRemoved)
	}
	if _, ok := topo.Element(11); ok {
		t.Error("element touching a competitor survived")
	}
	if err := topo.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestFilterInRangeBoundaryRecomputed(t *testing.T) {
	topo := New()
	mustNode(t, topo, 1, 0, 0, 0)
	mustNode(t, topo, 2, 100, 0, 0)
	mustNode(t, topo, 3, 9000, 0, 0)
	topo.SetBoundary([]NodeID{2, 3})

	if _, err := FilterInRange(topo, 1, 1500); err != nil {
		t.Fatalf("FilterInRange: %v", err)
	}
	if got := topo.Boundary(); !slices.Equal(got, []NodeID{2}) {
		t.Errorf("Boundary = %v, want [2]", got)
	}
}

func TestFilterInRangeErrors(t *testing.T) {
	topo := New()
	mustNode(t, topo, 1, 0, 0, 0)

	if _, err := FilterInRange(topo, 7, 1500); !terrors.Is(err, terrors.ErrCodeMissingReference) {
		t.Errorf("unknown reference: got %v, want MISSING_REFERENCE", err)
	}

	res, err := FilterInRange(topo, 1, 0)
	if !terrors.Is(err, terrors.ErrCodeFilterEmpty) {
		t.Fatalf("zero radius: got %v, want FILTER_EMPTY", err)
	}
	if res == nil || res.NodesKept != 0 {
		t.Errorf("result = %+v, want populated result with no nodes kept", res)
	}
}

func TestFilterInRangeClonePreservesMaster(t *testing.T) {
	master := New()
	mustNode(t, master, 1, 0, 0, 0)
	mustNode(t, master, 2, 5000, 0, 0)
	mustElement(t, master, 10, 1, 2)

	view := master.Clone()
	if _, err := FilterInRange(view, 1, 1500); err != nil {
		t.Fatalf("FilterInRange: %v", err)
	}
	if master.NodeCount() != 2 || master.ElementCount() != 1 {
		t.Errorf("master mutated: %d nodes, %d elements", master.NodeCount(), master.ElementCount())
	}
}

// Random meshes: no dangling references, removed nodes lie on or outside the
// window, retained nodes lie strictly inside.
func TestFilterInRangeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const radius = 1500.0

	for trial := range 50 {
		topo := New()
		const n = 60
		for i := range n {
			// Snap to a 500 grid so some nodes land exactly on the window edge.
			x := math.Round(rng.Float64()*12-6) * 500
			y := math.Round(rng.Float64()*12-6) * 500
			mustNode(t, topo, NodeID(i+1), x, y, rng.Float64()*100)
		}
		for i := range 80 {
			a := NodeID(rng.Intn(n) + 1)
			b := NodeID(rng.Intn(n) + 1)
			if a == b {
				continue
			}
			mustElement(t, topo, ElementID(i+1), a, b)
		}

		master := topo.Clone()
		ref := NodeID(rng.Intn(n) + 1)
		center, _ := master.Node(ref)

		if _, err := FilterInRange(topo, ref, radius); err != nil {
			t.Fatalf("trial %d: FilterInRange: %v", trial, err)
		}
		if err := topo.Validate(); err != nil {
			t.Fatalf("trial %d: Validate: %v", trial, err)
		}

		inside := func(n Node) bool {
			return math.Abs(n.Pos.X-center.Pos.X) < radius && math.Abs(n.Pos.Y-center.Pos.Y) < radius
		}
		for _, node := range master.Nodes() {
			if topo.Has(node.ID) != inside(node) {
				t.Fatalf("trial %d: node %d at %v kept=%v, inside=%v",
					trial, node.ID, node.Pos, topo.Has(node.ID), inside(node))
			}
		}
	}
}
