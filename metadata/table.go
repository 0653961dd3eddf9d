// Package metadata holds the tabular description of an image dataset: one
// row per image with at least an image path, a label and a phase tag.
package metadata

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Well-known column names.
const (
	ColumnImage = "image"
	ColumnLabel = "label"
	ColumnPhase = "phase"
)

// RequiredColumns must be present in every metadata source.
var RequiredColumns = []string{ColumnImage, ColumnLabel, ColumnPhase}

// ErrUnknownField is returned when filtering on a column the table does not have.
var ErrUnknownField = errors.New("unknown metadata field")

// Record is one metadata row. Fields holds every column, including the
// well-known ones, keyed by normalised column name.
type Record struct {
	Image  string
	Label  string
	Phase  string
	Fields map[string]string
}

// Field returns the named column value.
func (r Record) Field(name string) (string, bool) {
	switch normalizeColumn(name) {
	case ColumnImage:
		return r.Image, true
	case ColumnLabel:
		return r.Label, true
	case ColumnPhase:
		return r.Phase, true
	}
	v, ok := r.Fields[normalizeColumn(name)]
	return v, ok
}

// Table is read-only, ordered, indexable metadata.
type Table interface {
	Len() int
	Row(i int) Record
	// Filter returns the rows whose field equals value, preserving order.
	Filter(field, value string) (Table, error)
}

// MemTable is an in-memory Table. A MemTable is never mutated after
// construction, so concurrent reads are safe.
type MemTable struct {
	rows    []Record
	columns map[string]bool
}

// NewMemTable builds a table from records. Columns are collected from the
// records' Fields plus the well-known columns.
func NewMemTable(rows []Record) *MemTable {
	t := &MemTable{
		rows:    make([]Record, len(rows)),
		columns: make(map[string]bool),
	}
	copy(t.rows, rows)
	for _, c := range RequiredColumns {
		t.columns[c] = true
	}
	for _, r := range rows {
		for k := range r.Fields {
			t.columns[normalizeColumn(k)] = true
		}
	}
	return t
}

// Len returns the number of rows.
func (t *MemTable) Len() int { return len(t.rows) }

// Row returns row i. It panics if i is out of range, like a slice index.
func (t *MemTable) Row(i int) Record { return t.rows[i] }

// Columns returns the sorted column names.
func (t *MemTable) Columns() []string {
	cols := make([]string, 0, len(t.columns))
	for c := range t.columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Filter implements Table.
func (t *MemTable) Filter(field, value string) (Table, error) {
	field = normalizeColumn(field)
	if !t.columns[field] {
		return nil, errors.Wrapf(ErrUnknownField, "filter on %q", field)
	}
	out := &MemTable{columns: t.columns}
	for _, r := range t.rows {
		if v, _ := r.Field(field); v == value {
			out.rows = append(out.rows, r)
		}
	}
	return out, nil
}

// PhaseCount is the number of rows carrying one phase tag.
type PhaseCount struct {
	Phase string
	Rows  int
}

// Phases returns the distinct phase tags of t in order of first appearance.
func Phases(t Table) []PhaseCount {
	index := make(map[string]int)
	var out []PhaseCount
	for i := 0; i < t.Len(); i++ {
		p := t.Row(i).Phase
		j, ok := index[p]
		if !ok {
			j = len(out)
			index[p] = j
			out = append(out, PhaseCount{Phase: p})
		}
		out[j].Rows++
	}
	return out
}

func normalizeColumn(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
