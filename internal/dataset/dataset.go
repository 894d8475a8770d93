package dataset

import (
	"time"
)

// Record is one row of the source table, aligned with Dataset.Columns.
type Record []string

// Dataset is the in-memory table. It is built once by Load and never
// mutated afterwards; views over it are expressed as row indices.
type Dataset struct {
	Source   string
	Columns  []string
	Rows     []Record
	LoadedAt time.Time

	index       map[string]int
	fingerprint string
}

// New builds a Dataset from already-parsed columns and rows. Rows shorter
// than the header are padded with empty cells.
func New(source string, columns []string, rows []Record) *Dataset {
	ds := &Dataset{
		Source:   source,
		Columns:  columns,
		Rows:     rows,
		LoadedAt: time.Now(),
		index:    make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := ds.index[c]; !dup {
			ds.index[c] = i
		}
	}
	for i, r := range rows {
		if len(r) < len(columns) {
			padded := make(Record, len(columns))
			copy(padded, r)
			ds.Rows[i] = padded
		}
	}
	return ds
}

func (d *Dataset) Len() int {
	return len(d.Rows)
}

func (d *Dataset) Has(column string) bool {
	_, ok := d.index[column]
	return ok
}

func (d *Dataset) Index(column string) (int, bool) {
	i, ok := d.index[column]
	return i, ok
}

// Value returns the cell at row/column, or "" when the column is absent.
func (d *Dataset) Value(row int, column string) string {
	i, ok := d.index[column]
	if !ok {
		return ""
	}
	return d.Rows[row][i]
}

// Column returns a copy of every cell of column, or nil when absent.
func (d *Dataset) Column(column string) []string {
	i, ok := d.index[column]
	if !ok {
		return nil
	}
	out := make([]string, len(d.Rows))
	for r, rec := range d.Rows {
		out[r] = rec[i]
	}
	return out
}

// Project copies the given rows restricted to columns, in that order.
// Unknown columns yield empty cells.
func (d *Dataset) Project(rows []int, columns []string) [][]string {
	idx := make([]int, len(columns))
	for j, c := range columns {
		i, ok := d.index[c]
		if !ok {
			i = -1
		}
		idx[j] = i
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := make([]string, len(columns))
		for j, i := range idx {
			if i >= 0 {
				line[j] = d.Rows[r][i]
			}
		}
		out = append(out, line)
	}
	return out
}

// AllRows returns the indices 0..Len()-1.
func (d *Dataset) AllRows() []int {
	out := make([]int, len(d.Rows))
	for i := range out {
		out[i] = i
	}
	return out
}

// Fingerprint identifies the loaded content; equal bytes give equal
// fingerprints.
func (d *Dataset) Fingerprint() string {
	return d.fingerprint
}

// Record returns row i keyed by column name.
func (d *Dataset) Record(i int) map[string]string {
	out := make(map[string]string, len(d.Columns))
	for j, c := range d.Columns {
		if _, set := out[c]; !set {
			out[c] = d.Rows[i][j]
		}
	}
	return out
}
