// Package topology holds the structural connectivity of a finite-element
// truss/beam model and extracts spatial windows from it.
//
// # Overview
//
// A [Topology] is a registry of [Node] positions, [Element] connectivity,
// [RigidLink] couplings and the set of constrained (boundary condition) node
// ids. It is the single source of truth every rendered view is derived from:
// the master topology is loaded once and never mutated, and each view works
// on its own [Topology.Clone].
//
// # Basic Usage
//
//	t := topology.New()
//	_ = t.AddNode(topology.Node{ID: 1, Pos: r3.Vec{X: 0, Y: 0}})
//	_ = t.AddNode(topology.Node{ID: 2, Pos: r3.Vec{X: 2000, Y: 0}})
//	e, _ := topology.NewElement(10, []topology.NodeID{1, 2})
//	_ = t.AddElement(e)
//
// # Iteration Order
//
// Nodes and elements keep their insertion order. [Topology.IndexMap] derives
// the dense zero-based index of each active node from that order; it is
// recomputed on every call and must never be cached across a
// [Topology.Remove], since line topology in a scene refers to nodes by index.
//
// # Removal
//
// [Topology.Remove] deletes exactly one node and nothing else. Elements and
// rigid links that referenced it are left in place, so the topology is
// temporarily inconsistent until the caller cleans up. [FilterInRange] is the
// operation that removes nodes and cascades to elements while keeping the
// result self-consistent.
//
// # Spatial Windows
//
// [FilterInRange] keeps only the nodes that lie strictly inside an
// axis-aligned square centered on a reference node (Z is ignored). Nodes on
// the window edge are removed. The filter is destructive, so callers clone
// first:
//
//	view := master.Clone()
//	res, err := topology.FilterInRange(view, ref, 1500, topology.WithCompetitors(others...))
//
// # Concurrency
//
// Topology is not safe for concurrent mutation. Concurrent readers are fine,
// and each worker that filters must own its clone.
package topology
