package io

import (
	"encoding/csv"
	stdio "io"
	"strconv"
	"strings"

	"github.com/matzehuels/trussview/pkg/errors"
)

const bom = "\uFEFF"

// table is a parsed CSV file with named columns.
type table struct {
	name    string
	columns map[string]int
	rows    [][]string
	line    []int // source line of each row, for messages
}

// readTable parses a whole CSV stream. Records may have any number of fields;
// short rows are detected when a column is read.
func readTable(name string, r stdio.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == stdio.EOF {
		return nil, errors.New(errors.ErrCodeInvalidTable, "%s: empty table", name)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTable, err, "%s: read header", name)
	}

	t := &table{name: name, columns: make(map[string]int, len(header))}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, bom)
		}
		t.columns[strings.TrimSpace(h)] = i
	}

	for {
		rec, err := cr.Read()
		if err == stdio.EOF {
			break
		}
		if err != nil {
			// Unbalanced quotes and similar damage only affect one record.
			if _, ok := err.(*csv.ParseError); ok {
				continue
			}
			return nil, errors.Wrap(errors.ErrCodeIO, err, "%s: read", name)
		}
		line, _ := cr.FieldPos(0)
		t.rows = append(t.rows, rec)
		t.line = append(t.line, line)
	}
	return t, nil
}

// require checks that every named column is present.
func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.columns[c]; !ok {
			return errors.New(errors.ErrCodeInvalidTable, "%s: missing column %q", t.name, c)
		}
	}
	return nil
}

func (t *table) has(col string) bool {
	_, ok := t.columns[col]
	return ok
}

// cell returns the trimmed value of col in row i, or "" if absent.
func (t *table) cell(i int, col string) string {
	j, ok := t.columns[col]
	if !ok || j >= len(t.rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][j])
}

func (t *table) intAt(i int, col string) (int, error) {
	return strconv.Atoi(t.cell(i, col))
}

func (t *table) floatAt(i int, col string) (float64, error) {
	return strconv.ParseFloat(t.cell(i, col), 64)
}

// floats parses several columns at once; the first failure is returned.
func (t *table) floats(i int, cols ...string) ([]float64, error) {
	out := make([]float64, len(cols))
	for k, c := range cols {
		v, err := t.floatAt(i, c)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// splitIDs parses an id list separated by ';' or ','.
func splitIDs(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
