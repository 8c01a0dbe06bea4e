package topology

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	terrors "github.com/matzehuels/trussview/pkg/errors"
)

var (
	// ErrDuplicateNodeID is returned by [Topology.AddNode] when a node with the
	// same ID already exists. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrDuplicateElementID is returned by [Topology.AddElement] when an
	// element with the same ID already exists.
	ErrDuplicateElementID = errors.New("duplicate element ID")

	// ErrTooFewNodes is returned by [NewElement] and [Topology.AddElement]
	// when an element references fewer than two nodes.
	ErrTooFewNodes = errors.New("element needs at least two nodes")

	// ErrUnknownNode is returned when an element, rigid link or filter
	// reference names a node that is not in the registry. It is always
	// wrapped in a MISSING_REFERENCE error from pkg/errors.
	ErrUnknownNode = errors.New("unknown node")

	// ErrDanglingReference is returned by [Topology.Validate] when an element
	// references a node that has since been removed.
	ErrDanglingReference = errors.New("element references removed node")
)

// NodeID identifies a structural node. IDs come from the solver model and
// are not dense.
type NodeID int

// ElementID identifies a structural element.
type ElementID int

// Node is a point of the structural model. Nodes are immutable once added.
type Node struct {
	ID  NodeID
	Pos r3.Vec
}

// Element connects two or more nodes. Type and Property are carried through
// for export and labeling; they do not affect geometry.
type Element struct {
	ID       ElementID
	Nodes    []NodeID // Ordered node references (at least two)
	Type     string   // Element type tag, e.g. "CBAR" (optional)
	Property int      // Property reference (optional)
}

// NewElement builds an element and checks its arity. Reference validity is
// checked by [Topology.AddElement] against the registry.
func NewElement(id ElementID, nodes []NodeID) (Element, error) {
	if len(nodes) < 2 {
		return Element{}, fmt.Errorf("element %d: %w", id, ErrTooFewNodes)
	}
	return Element{ID: id, Nodes: slices.Clone(nodes)}, nil
}

// RigidLink couples a dependent node to an independent node.
type RigidLink struct {
	Independent NodeID
	Dependent   NodeID
}

// Has reports whether id is one of the link's endpoints.
func (l RigidLink) Has(id NodeID) bool {
	return l.Independent == id || l.Dependent == id
}

// Bounds is an axis aligned bounding box.
type Bounds struct {
	Min, Max r3.Vec
}

// Size returns the extent of the box along each axis.
func (b Bounds) Size() r3.Vec { return r3.Sub(b.Max, b.Min) }

// Center returns the midpoint of the box.
func (b Bounds) Center() r3.Vec { return r3.Scale(0.5, r3.Add(b.Min, b.Max)) }

// Topology is the registry of nodes, elements, rigid links and boundary
// conditions.
//
// The zero value is not usable - use [New].
type Topology struct {
	nodes     map[NodeID]*Node
	nodeOrder []NodeID

	elements  map[ElementID]*Element
	elemOrder []ElementID

	rigids   []RigidLink // master list, filtered on read
	boundary []NodeID    // master list, filtered on read
}

// New creates an empty topology.
func New() *Topology {
	return &Topology{
		nodes:    make(map[NodeID]*Node),
		elements: make(map[ElementID]*Element),
	}
}

// AddNode adds a node. Returns ErrDuplicateNodeID if the ID is taken.
func (t *Topology) AddNode(n Node) error {
	if _, exists := t.nodes[n.ID]; exists {
		return fmt.Errorf("node %d: %w", n.ID, ErrDuplicateNodeID)
	}
	node := n
	t.nodes[n.ID] = &node
	t.nodeOrder = append(t.nodeOrder, n.ID)
	return nil
}

// AddElement adds an element after checking that every referenced node is
// present. A missing node yields a MISSING_REFERENCE error and the element
// is not added.
func (t *Topology) AddElement(e Element) error {
	if len(e.Nodes) < 2 {
		return fmt.Errorf("element %d: %w", e.ID, ErrTooFewNodes)
	}
	if _, exists := t.elements[e.ID]; exists {
		return fmt.Errorf("element %d: %w", e.ID, ErrDuplicateElementID)
	}
	for _, id := range e.Nodes {
		if _, ok := t.nodes[id]; !ok {
			return terrors.Wrap(terrors.ErrCodeMissingReference, ErrUnknownNode,
				"element %d references node %d", e.ID, id)
		}
	}
	elem := e
	elem.Nodes = slices.Clone(e.Nodes)
	t.elements[e.ID] = &elem
	t.elemOrder = append(t.elemOrder, e.ID)
	return nil
}

// AddRigidLink appends a link to the master list. Both endpoints must be
// present; otherwise a MISSING_REFERENCE error is returned and the link is
// skipped.
func (t *Topology) AddRigidLink(l RigidLink) error {
	for _, id := range []NodeID{l.Independent, l.Dependent} {
		if _, ok := t.nodes[id]; !ok {
			return terrors.Wrap(terrors.ErrCodeMissingReference, ErrUnknownNode,
				"rigid link %d-%d references node %d", l.Independent, l.Dependent, id)
		}
	}
	t.rigids = append(t.rigids, l)
	return nil
}

// SetBoundary replaces the set of constrained node ids. Ids that are not
// present are kept in the master list but never reported by [Topology.Boundary].
func (t *Topology) SetBoundary(ids []NodeID) {
	seen := make(map[NodeID]bool, len(ids))
	t.boundary = make([]NodeID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		t.boundary = append(t.boundary, id)
	}
}

// Remove deletes a single node. Elements and rigid links referencing it are
// not touched. Removing an id that is not present is a no-op; the return
// value reports whether a node was actually removed.
func (t *Topology) Remove(id NodeID) bool {
	if _, ok := t.nodes[id]; !ok {
		return false
	}
	delete(t.nodes, id)
	if i := slices.Index(t.nodeOrder, id); i >= 0 {
		t.nodeOrder = slices.Delete(t.nodeOrder, i, i+1)
	}
	return true
}

// RemoveElement deletes an element. Returns false if it was not present.
func (t *Topology) RemoveElement(id ElementID) bool {
	if _, ok := t.elements[id]; !ok {
		return false
	}
	delete(t.elements, id)
	if i := slices.Index(t.elemOrder, id); i >= 0 {
		t.elemOrder = slices.Delete(t.elemOrder, i, i+1)
	}
	return true
}

// IDs returns the active node ids in insertion order.
func (t *Topology) IDs() []NodeID { return slices.Clone(t.nodeOrder) }

// Has reports whether the node is active.
func (t *Topology) Has(id NodeID) bool {
	_, ok := t.nodes[id]
	return ok
}

// Node returns the node with the given id and true, or a zero Node and false.
func (t *Topology) Node(id NodeID) (Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns the active nodes in insertion order.
func (t *Topology) Nodes() []Node {
	out := make([]Node, 0, len(t.nodeOrder))
	for _, id := range t.nodeOrder {
		out = append(out, *t.nodes[id])
	}
	return out
}

// Element returns the element with the given id and true, or false if absent.
// The returned element shares no memory with the registry.
func (t *Topology) Element(id ElementID) (Element, bool) {
	e, ok := t.elements[id]
	if !ok {
		return Element{}, false
	}
	out := *e
	out.Nodes = slices.Clone(e.Nodes)
	return out, true
}

// Elements returns all elements in insertion order. Elements may reference
// removed nodes if [Topology.Remove] was used directly.
func (t *Topology) Elements() []Element {
	out := make([]Element, 0, len(t.elemOrder))
	for _, id := range t.elemOrder {
		e, _ := t.Element(id)
		out = append(out, e)
	}
	return out
}

// RigidLinks returns the master list of rigid links, including links whose
// endpoints are no longer present.
func (t *Topology) RigidLinks() []RigidLink { return slices.Clone(t.rigids) }

// ActiveRigidLinks returns the links whose endpoints are both present.
func (t *Topology) ActiveRigidLinks() []RigidLink {
	var out []RigidLink
	for _, l := range t.rigids {
		if t.Has(l.Independent) && t.Has(l.Dependent) {
			out = append(out, l)
		}
	}
	return out
}

// retainRigidLinks drops links from the master list that do not satisfy keep
// and returns how many were dropped.
func (t *Topology) retainRigidLinks(keep func(RigidLink) bool) int {
	before := len(t.rigids)
	t.rigids = slices.DeleteFunc(t.rigids, func(l RigidLink) bool { return !keep(l) })
	return before - len(t.rigids)
}

// Boundary returns the constrained node ids that are still active, in the
// order they were set. It is recomputed on every call.
func (t *Topology) Boundary() []NodeID {
	var out []NodeID
	for _, id := range t.boundary {
		if t.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// IndexMap returns the dense zero-based index of every active node, following
// insertion order. The map is rebuilt on each call and must not be reused
// after the node set changes.
func (t *Topology) IndexMap() map[NodeID]int {
	m := make(map[NodeID]int, len(t.nodeOrder))
	for i, id := range t.nodeOrder {
		m[id] = i
	}
	return m
}

// Positions returns node positions in [Topology.IndexMap] order.
func (t *Topology) Positions() []r3.Vec {
	out := make([]r3.Vec, 0, len(t.nodeOrder))
	for _, id := range t.nodeOrder {
		out = append(out, t.nodes[id].Pos)
	}
	return out
}

// Centroid returns the mean position of the element's nodes that are still
// present. ok is false when none of them resolves.
func (t *Topology) Centroid(e Element) (c r3.Vec, ok bool) {
	n := 0
	for _, id := range e.Nodes {
		if node, found := t.nodes[id]; found {
			c = r3.Add(c, node.Pos)
			n++
		}
	}
	if n == 0 {
		return r3.Vec{}, false
	}
	return r3.Scale(1/float64(n), c), true
}

// Bounds returns the bounding box of the active nodes. ok is false for an
// empty topology.
func (t *Topology) Bounds() (b Bounds, ok bool) {
	if len(t.nodeOrder) == 0 {
		return Bounds{}, false
	}
	b.Min = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	b.Max = r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, id := range t.nodeOrder {
		p := t.nodes[id].Pos
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b, true
}

// NodeCount returns the number of active nodes.
func (t *Topology) NodeCount() int { return len(t.nodeOrder) }

// ElementCount returns the number of elements.
func (t *Topology) ElementCount() int { return len(t.elemOrder) }

// Clone returns a deep copy. Filtering the copy never affects t.
func (t *Topology) Clone() *Topology {
	c := &Topology{
		nodes:     make(map[NodeID]*Node, len(t.nodes)),
		nodeOrder: slices.Clone(t.nodeOrder),
		elements:  make(map[ElementID]*Element, len(t.elements)),
		elemOrder: slices.Clone(t.elemOrder),
		rigids:    slices.Clone(t.rigids),
		boundary:  slices.Clone(t.boundary),
	}
	for id, n := range t.nodes {
		node := *n
		c.nodes[id] = &node
	}
	for id, e := range t.elements {
		elem := *e
		elem.Nodes = slices.Clone(e.Nodes)
		c.elements[id] = &elem
	}
	return c
}

// Validate checks that every element references only active nodes. It
// returns an error wrapping ErrDanglingReference for the first offender.
func (t *Topology) Validate() error {
	for _, id := range t.elemOrder {
		for _, n := range t.elements[id].Nodes {
			if !t.Has(n) {
				return fmt.Errorf("element %d, node %d: %w", id, n, ErrDanglingReference)
			}
		}
	}
	return nil
}
