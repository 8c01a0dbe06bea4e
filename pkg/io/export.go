package io

import (
	"encoding/csv"
	stdio "io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matzehuels/trussview/pkg/errors"
	"github.com/matzehuels/trussview/pkg/topology"
)

// WriteNodes writes the node table of t to w.
func WriteNodes(t *topology.Topology, w stdio.Writer) error {
	rows := [][]string{{"NodeID", "X", "Y", "Z"}}
	for _, n := range t.Nodes() {
		rows = append(rows, []string{itoa(int(n.ID)), ftoa(n.Pos.X), ftoa(n.Pos.Y), ftoa(n.Pos.Z)})
	}
	return writeRows(w, rows)
}

// WriteElements writes the element table of t to w. Node lists are
// separated by ';'.
func WriteElements(t *topology.Topology, w stdio.Writer) error {
	rows := [][]string{{"ElementID", "NodeIDs", "Type", "PropertyID"}}
	for _, e := range t.Elements() {
		ids := make([]int, len(e.Nodes))
		for i, n := range e.Nodes {
			ids[i] = int(n)
		}
		prop := ""
		if e.Property != 0 {
			prop = itoa(e.Property)
		}
		rows = append(rows, []string{itoa(int(e.ID)), joinIDs(ids), e.Type, prop})
	}
	return writeRows(w, rows)
}

// WriteRigidLinks writes the active rigid links of t to w, one row per
// independent node.
func WriteRigidLinks(t *topology.Topology, w stdio.Writer) error {
	var order []topology.NodeID
	deps := make(map[topology.NodeID][]int)
	for _, l := range t.ActiveRigidLinks() {
		if _, ok := deps[l.Independent]; !ok {
			order = append(order, l.Independent)
		}
		deps[l.Independent] = append(deps[l.Independent], int(l.Dependent))
	}
	rows := [][]string{{"IndependentNodeID", "DependentNodeIDs"}}
	for _, ind := range order {
		rows = append(rows, []string{itoa(int(ind)), joinIDs(deps[ind])})
	}
	return writeRows(w, rows)
}

// WriteBoundary writes the active boundary node ids of t to w.
func WriteBoundary(t *topology.Topology, w stdio.Writer) error {
	rows := [][]string{{"NodeID"}}
	for _, id := range t.Boundary() {
		rows = append(rows, []string{itoa(int(id))})
	}
	return writeRows(w, rows)
}

// ExportTables writes all four structural tables of t into dir using the
// names in files. Empty names are skipped.
func ExportTables(dir string, t *topology.Topology, files ModelFiles) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create %s", dir)
	}
	writers := []struct {
		name  string
		write func(*topology.Topology, stdio.Writer) error
	}{
		{files.Nodes, WriteNodes},
		{files.Elements, WriteElements},
		{files.Rigids, WriteRigidLinks},
		{files.Boundary, WriteBoundary},
	}
	for _, wr := range writers {
		if wr.name == "" {
			continue
		}
		if err := errors.ValidateTableName(wr.name); err != nil {
			return err
		}
		if err := exportFile(filepath.Join(dir, wr.name), t, wr.write); err != nil {
			return err
		}
	}
	return nil
}

func exportFile(path string, t *topology.Topology, write func(*topology.Topology, stdio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create %s", path)
	}
	if err := write(t, f); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "close %s", path)
	}
	return nil
}

func writeRows(w stdio.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func joinIDs(ids []int) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = itoa(id)
	}
	return strings.Join(s, ";")
}

func itoa(i int) string { return strconv.Itoa(i) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
