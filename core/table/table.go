// Package table provides the column-major record batch shared by readers,
// the stats builder, and the feature encoder. Values are float64; survey
// categoricals are numeric codes. Missing values are NaN.
package table

import (
	"fmt"
	"math"
)

// Batch is a fixed-width block of records. Columns are ordered and named;
// storage is column-major so per-feature passes touch contiguous memory.
type Batch struct {
	cols []string
	idx  map[string]int
	data [][]float64
	rows int
}

// New creates an all-NaN batch with the given columns and row count.
func New(cols []string, rows int) *Batch {
	b := &Batch{
		cols: append([]string(nil), cols...),
		idx:  make(map[string]int, len(cols)),
		data: make([][]float64, len(cols)),
		rows: rows,
	}
	for i, c := range cols {
		b.idx[c] = i
		col := make([]float64, rows)
		for r := range col {
			col[r] = math.NaN()
		}
		b.data[i] = col
	}
	return b
}

// FromColumns wraps pre-built column slices. All columns must share a length.
func FromColumns(cols []string, data [][]float64) (*Batch, error) {
	if len(cols) != len(data) {
		return nil, fmt.Errorf("table: %d column names for %d columns", len(cols), len(data))
	}
	rows := 0
	if len(data) > 0 {
		rows = len(data[0])
	}
	b := &Batch{
		cols: append([]string(nil), cols...),
		idx:  make(map[string]int, len(cols)),
		data: data,
		rows: rows,
	}
	for i, c := range cols {
		if len(data[i]) != rows {
			return nil, fmt.Errorf("table: column %q has %d rows, want %d", c, len(data[i]), rows)
		}
		if _, dup := b.idx[c]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", c)
		}
		b.idx[c] = i
	}
	return b, nil
}

// NumRows returns the record count.
func (b *Batch) NumRows() int { return b.rows }

// NumCols returns the column count.
func (b *Batch) NumCols() int { return len(b.cols) }

// Columns returns the ordered column names.
func (b *Batch) Columns() []string { return b.cols }

// HasColumn reports whether the batch carries the named column.
func (b *Batch) HasColumn(name string) bool {
	_, ok := b.idx[name]
	return ok
}

// Column returns the named column's values, or an error if absent.
func (b *Batch) Column(name string) ([]float64, error) {
	i, ok := b.idx[name]
	if !ok {
		return nil, fmt.Errorf("table: no column %q", name)
	}
	return b.data[i], nil
}

// Value returns a single cell. Panics on an unknown column; use HasColumn
// when the column set is not trusted.
func (b *Batch) Value(row int, name string) float64 {
	i, ok := b.idx[name]
	if !ok {
		panic(fmt.Sprintf("table: no column %q", name))
	}
	return b.data[i][row]
}

// Set assigns a single cell.
func (b *Batch) Set(row int, name string, v float64) {
	i, ok := b.idx[name]
	if !ok {
		panic(fmt.Sprintf("table: no column %q", name))
	}
	b.data[i][row] = v
}

// Row copies one record into an environment map keyed by column name.
// The map is reused across calls when passed back in; pass nil to allocate.
func (b *Batch) Row(row int, env map[string]any) map[string]any {
	if env == nil {
		env = make(map[string]any, len(b.cols))
	}
	for i, c := range b.cols {
		env[c] = b.data[i][row]
	}
	return env
}

// SelectRows returns a new batch containing the rows where mask is true.
// The mask length must equal the row count.
func (b *Batch) SelectRows(mask []bool) (*Batch, error) {
	if len(mask) != b.rows {
		return nil, fmt.Errorf("table: mask length %d for %d rows", len(mask), b.rows)
	}
	kept := 0
	for _, m := range mask {
		if m {
			kept++
		}
	}
	out := &Batch{
		cols: b.cols,
		idx:  b.idx,
		data: make([][]float64, len(b.data)),
		rows: kept,
	}
	for i, col := range b.data {
		dst := make([]float64, 0, kept)
		for r, m := range mask {
			if m {
				dst = append(dst, col[r])
			}
		}
		out.data[i] = dst
	}
	return out, nil
}

// Head returns a view of the first n rows. The view shares column storage
// with the receiver.
func (b *Batch) Head(n int) *Batch {
	if n > b.rows {
		n = b.rows
	}
	out := &Batch{
		cols: b.cols,
		idx:  b.idx,
		data: make([][]float64, len(b.data)),
		rows: n,
	}
	for i, col := range b.data {
		out.data[i] = col[:n]
	}
	return out
}

// Repeat returns a new batch with the receiver's rows repeated count times.
func (b *Batch) Repeat(count int) *Batch {
	out := &Batch{
		cols: b.cols,
		idx:  b.idx,
		data: make([][]float64, len(b.data)),
		rows: b.rows * count,
	}
	for i, col := range b.data {
		dst := make([]float64, 0, len(col)*count)
		for range count {
			dst = append(dst, col...)
		}
		out.data[i] = dst
	}
	return out
}

// AppendRow copies the row at srcRow of src onto the end of the receiver.
// Both batches must share the same column set.
func (b *Batch) AppendRow(src *Batch, srcRow int) error {
	if len(src.cols) != len(b.cols) {
		return fmt.Errorf("table: appending row with %d columns to batch with %d", len(src.cols), len(b.cols))
	}
	for i, c := range b.cols {
		col, err := src.Column(c)
		if err != nil {
			return err
		}
		b.data[i] = append(b.data[i], col[srcRow])
	}
	b.rows++
	return nil
}

// SetRow overwrites the row at dst with the row at srcRow of src. Used by
// the reservoir sampler; both batches must share the same column set.
func (b *Batch) SetRow(dst int, src *Batch, srcRow int) error {
	if len(src.cols) != len(b.cols) {
		return fmt.Errorf("table: copying row with %d columns into batch with %d", len(src.cols), len(b.cols))
	}
	for i, c := range b.cols {
		col, err := src.Column(c)
		if err != nil {
			return err
		}
		b.data[i][dst] = col[srcRow]
	}
	return nil
}
