package io

import (
	"fmt"
	stdio "io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/trussview/pkg/errors"
	"github.com/matzehuels/trussview/pkg/load"
	"github.com/matzehuels/trussview/pkg/topology"
)

// ModelFiles names the structural tables inside an input directory.
type ModelFiles struct {
	Nodes    string `json:"nodes" toml:"nodes"`
	Elements string `json:"elements" toml:"elements"`
	Rigids   string `json:"rigids" toml:"rigids"`
	Boundary string `json:"boundary" toml:"boundary"`
}

// DefaultModelFiles returns the file names written by the pre-processor.
func DefaultModelFiles() ModelFiles {
	return ModelFiles{
		Nodes:    "Final_Nodes_Check.csv",
		Elements: "Final_Elements_Check.csv",
		Rigids:   "Final_Rigids_Check.csv",
		Boundary: "Final_SPC_Check.csv",
	}
}

// Issue describes a skipped row.
type Issue struct {
	Table  string `json:"table"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (i Issue) String() string { return fmt.Sprintf("%s:%d: %s", i.Table, i.Line, i.Reason) }

// Model is the imported structure.
type Model struct {
	Topology *topology.Topology
	Missing  []string // Optional tables that were not found
	Issues   []Issue  // Skipped rows
}

// ReadModel loads the structural tables from dir. The node and element
// tables are required; a missing or unreadable file yields FILE_NOT_FOUND or
// IO_ERROR. Missing optional tables are listed in Model.Missing.
func ReadModel(dir string, files ModelFiles) (*Model, error) {
	m := &Model{Topology: topology.New()}

	err := withFile(dir, files.Nodes, func(name string, r stdio.Reader) error {
		issues, err := ReadNodes(name, r, m.Topology)
		m.Issues = append(m.Issues, issues...)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = withFile(dir, files.Elements, func(name string, r stdio.Reader) error {
		issues, err := ReadElements(name, r, m.Topology)
		m.Issues = append(m.Issues, issues...)
		return err
	})
	if err != nil {
		return nil, err
	}

	optional := []struct {
		file string
		read func(string, stdio.Reader, *topology.Topology) ([]Issue, error)
	}{
		{files.Rigids, ReadRigidLinks},
		{files.Boundary, ReadBoundary},
	}
	for _, o := range optional {
		if o.file == "" {
			continue
		}
		err := withFile(dir, o.file, func(name string, r stdio.Reader) error {
			issues, err := o.read(name, r, m.Topology)
			m.Issues = append(m.Issues, issues...)
			return err
		})
		switch {
		case err == nil:
		case errors.Is(err, errors.ErrCodeFileNotFound):
			m.Missing = append(m.Missing, o.file)
		default:
			// An unreadable optional table degrades like a missing one.
			m.Missing = append(m.Missing, o.file)
			m.Issues = append(m.Issues, Issue{Table: o.file, Reason: errors.UserMessage(err)})
		}
	}
	return m, nil
}

// withFile opens dir/name and passes it to fn.
func withFile(dir, name string, fn func(string, stdio.Reader) error) error {
	if err := errors.ValidateTableName(name); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeFileNotFound, err, "%s not found in %s", name, dir)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "open %s", name)
	}
	defer f.Close()
	return fn(name, f)
}

// ReadNodes adds every node row of r to t.
func ReadNodes(name string, r stdio.Reader, t *topology.Topology) ([]Issue, error) {
	tab, err := readTable(name, r)
	if err != nil {
		return nil, err
	}
	if err := tab.require("NodeID", "X", "Y", "Z"); err != nil {
		return nil, err
	}
	var issues []Issue
	for i := range tab.rows {
		id, err := tab.intAt(i, "NodeID")
		if err != nil {
			issues = append(issues, tab.issue(i, "invalid NodeID %q", tab.cell(i, "NodeID")))
			continue
		}
		xyz, err := tab.floats(i, "X", "Y", "Z")
		if err != nil || !finite(xyz...) {
			issues = append(issues, tab.issue(i, "invalid coordinates for node %d", id))
			continue
		}
		if err := t.AddNode(topology.Node{ID: topology.NodeID(id), Pos: r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}}); err != nil {
			issues = append(issues, tab.issue(i, "%v", err))
		}
	}
	return issues, nil
}

// ReadElements adds every element row of r to t. Node references that do not
// resolve are dropped from the element; elements left with fewer than two
// nodes are skipped.
func ReadElements(name string, r stdio.Reader, t *topology.Topology) ([]Issue, error) {
	tab, err := readTable(name, r)
	if err != nil {
		return nil, err
	}
	if err := tab.require("ElementID", "NodeIDs"); err != nil {
		return nil, err
	}
	var issues []Issue
	for i := range tab.rows {
		id, err := tab.intAt(i, "ElementID")
		if err != nil {
			issues = append(issues, tab.issue(i, "invalid ElementID %q", tab.cell(i, "ElementID")))
			continue
		}
		ids, err := splitIDs(tab.cell(i, "NodeIDs"))
		if err != nil {
			issues = append(issues, tab.issue(i, "element %d: invalid node list", id))
			continue
		}
		nodes := make([]topology.NodeID, 0, len(ids))
		for _, n := range ids {
			if t.Has(topology.NodeID(n)) {
				nodes = append(nodes, topology.NodeID(n))
			} else {
				issues = append(issues, tab.issue(i, "element %d: unknown node %d", id, n))
			}
		}
		e, err := topology.NewElement(topology.ElementID(id), nodes)
		if err != nil {
			issues = append(issues, tab.issue(i, "%v", err))
			continue
		}
		e.Type = tab.cell(i, "Type")
		if p, err := tab.intAt(i, "PropertyID"); err == nil {
			e.Property = p
		}
		if err := t.AddElement(e); err != nil {
			issues = append(issues, tab.issue(i, "%v", err))
		}
	}
	return issues, nil
}

// ReadRigidLinks adds one rigid link per dependent node. Links with an
// unknown endpoint are skipped.
func ReadRigidLinks(name string, r stdio.Reader, t *topology.Topology) ([]Issue, error) {
	tab, err := readTable(name, r)
	if err != nil {
		return nil, err
	}
	if err := tab.require("IndependentNodeID", "DependentNodeIDs"); err != nil {
		return nil, err
	}
	var issues []Issue
	for i := range tab.rows {
		ind, err := tab.intAt(i, "IndependentNodeID")
		if err != nil {
			issues = append(issues, tab.issue(i, "invalid IndependentNodeID"))
			continue
		}
		deps, err := splitIDs(tab.cell(i, "DependentNodeIDs"))
		if err != nil {
			issues = append(issues, tab.issue(i, "invalid DependentNodeIDs"))
			continue
		}
		for _, dep := range deps {
			link := topology.RigidLink{Independent: topology.NodeID(ind), Dependent: topology.NodeID(dep)}
			if err := t.AddRigidLink(link); err != nil {
				issues = append(issues, tab.issue(i, "%s", errors.UserMessage(err)))
			}
		}
	}
	return issues, nil
}

// ReadBoundary sets the constrained node ids of t.
func ReadBoundary(name string, r stdio.Reader, t *topology.Topology) ([]Issue, error) {
	tab, err := readTable(name, r)
	if err != nil {
		return nil, err
	}
	if err := tab.require("NodeID"); err != nil {
		return nil, err
	}
	var issues []Issue
	var ids []topology.NodeID
	for i := range tab.rows {
		id, err := tab.intAt(i, "NodeID")
		if err != nil {
			issues = append(issues, tab.issue(i, "invalid NodeID %q", tab.cell(i, "NodeID")))
			continue
		}
		if !t.Has(topology.NodeID(id)) {
			issues = append(issues, tab.issue(i, "unknown node %d", id))
			continue
		}
		ids = append(ids, topology.NodeID(id))
	}
	t.SetBoundary(ids)
	return issues, nil
}

// LoadFiles names the load tables inside an input directory.
type LoadFiles struct {
	Vector      string `json:"vector" toml:"vector"`
	Directional string `json:"directional" toml:"directional"`
}

// DefaultLoadFiles returns the file names written by the load calculation.
func DefaultLoadFiles() LoadFiles {
	return LoadFiles{
		Vector:      "Report_LoadCalculation_MF.csv",
		Directional: "Report_LoadCalculation_Winch.csv",
	}
}

// GroupBy selects how directional loads are grouped into views.
type GroupBy string

const (
	// GroupByCase puts every load of one load case into a view.
	GroupByCase GroupBy = "case"
	// GroupBySource puts every case of one source (winch) into a view.
	GroupBySource GroupBy = "source"
)

// ParseGroupBy validates a group-by name. The empty string selects
// [GroupByCase].
func ParseGroupBy(s string) (GroupBy, error) {
	switch GroupBy(s) {
	case "", GroupByCase:
		return GroupByCase, nil
	case GroupBySource:
		return GroupBySource, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "invalid group-by %q (want case or source)", s)
}

// Loads is the imported load set.
type Loads struct {
	Records []load.Record
	Missing []string
	Issues  []Issue
}

// Vector returns the quantitative loads in input order.
func (l *Loads) Vector() []load.Record { return l.ofKind(load.KindVector) }

// Directional returns the qualitative loads in input order.
func (l *Loads) Directional() []load.Record { return l.ofKind(load.KindDirectional) }

func (l *Loads) ofKind(k load.Kind) []load.Record {
	var out []load.Record
	for _, r := range l.Records {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}

// ReadLoads reads both load tables from dir. Both are optional: a missing or
// unreadable table omits that load category.
func ReadLoads(dir string, files LoadFiles, group GroupBy) (*Loads, error) {
	l := &Loads{}
	tables := []struct {
		file string
		read func(string, stdio.Reader) ([]load.Record, []Issue, error)
	}{
		{files.Vector, ReadVectorLoads},
		{files.Directional, func(name string, r stdio.Reader) ([]load.Record, []Issue, error) {
			return ReadDirectionalLoads(name, r, group)
		}},
	}
	for _, tb := range tables {
		if tb.file == "" {
			continue
		}
		err := withFile(dir, tb.file, func(name string, r stdio.Reader) error {
			recs, issues, err := tb.read(name, r)
			l.Records = append(l.Records, recs...)
			l.Issues = append(l.Issues, issues...)
			return err
		})
		if err != nil {
			l.Missing = append(l.Missing, tb.file)
			if !errors.Is(err, errors.ErrCodeFileNotFound) {
				l.Issues = append(l.Issues, Issue{Table: tb.file, Reason: errors.UserMessage(err)})
			}
		}
	}
	return l, nil
}

// ReadVectorLoads parses the fitting load report. Only rows whose Result is
// "Success" (or that have no Result column) are returned. The label
// magnitude is the safe working load.
func ReadVectorLoads(name string, r stdio.Reader) ([]load.Record, []Issue, error) {
	tab, err := readTable(name, r)
	if err != nil {
		return nil, nil, err
	}
	if err := tab.require("MF_ID", "NodeID", "Calc_Fx", "Calc_Fy", "Calc_Fz"); err != nil {
		return nil, nil, err
	}
	var recs []load.Record
	var issues []Issue
	for i := range tab.rows {
		if tab.has("Result") && tab.cell(i, "Result") != "Success" {
			continue
		}
		node, err := tab.intAt(i, "NodeID")
		if err != nil {
			issues = append(issues, tab.issue(i, "invalid NodeID"))
			continue
		}
		f, err := tab.floats(i, "Calc_Fx", "Calc_Fy", "Calc_Fz")
		if err != nil || !finite(f...) {
			issues = append(issues, tab.issue(i, "invalid force"))
			continue
		}
		swl, _ := tab.floatAt(i, "SWL(Ton)")
		id := tab.cell(i, "MF_ID")
		recs = append(recs, load.Record{
			Source:    id,
			Node:      topology.NodeID(node),
			Force:     r3.Vec{X: f[0], Y: f[1], Z: f[2]},
			Magnitude: swl,
			Kind:      load.KindVector,
			Group:     id,
			Case:      tab.cell(i, "LoadCaseID"),
		})
	}
	return recs, issues, nil
}

// ReadDirectionalLoads parses the winch load report. The label magnitude is
// the norm of the input force in tons.
func ReadDirectionalLoads(name string, r stdio.Reader, group GroupBy) ([]load.Record, []Issue, error) {
	tab, err := readTable(name, r)
	if err != nil {
		return nil, nil, err
	}
	if err := tab.require("WinchID", "NodeID", "Final_Fx", "Final_Fy", "Final_Fz"); err != nil {
		return nil, nil, err
	}
	var recs []load.Record
	var issues []Issue
	for i := range tab.rows {
		node, err := tab.intAt(i, "NodeID")
		if err != nil {
			issues = append(issues, tab.issue(i, "invalid NodeID"))
			continue
		}
		f, err := tab.floats(i, "Final_Fx", "Final_Fy", "Final_Fz")
		if err != nil || !finite(f...) {
			issues = append(issues, tab.issue(i, "invalid force"))
			continue
		}
		var magnitude float64
		if in, err := tab.floats(i, "Input_Fx(Ton)", "Input_Fy(Ton)", "Input_Fz(Ton)"); err == nil {
			magnitude = r3.Norm(r3.Vec{X: in[0], Y: in[1], Z: in[2]})
		}
		winch := tab.cell(i, "WinchID")
		caseName := tab.cell(i, "CaseName")
		if caseName == "" {
			caseName = tab.cell(i, "LoadCaseID")
		}
		rec := load.Record{
			Source:    winch,
			Node:      topology.NodeID(node),
			Force:     r3.Vec{X: f[0], Y: f[1], Z: f[2]},
			Magnitude: magnitude,
			Kind:      load.KindDirectional,
			Group:     caseName,
			Case:      caseName,
		}
		if group == GroupBySource || rec.Group == "" {
			rec.Group = winch
		}
		recs = append(recs, rec)
	}
	return recs, issues, nil
}

func (t *table) issue(i int, format string, args ...any) Issue {
	return Issue{Table: t.name, Line: t.line[i], Reason: fmt.Sprintf(format, args...)}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
