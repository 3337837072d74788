// Package stream drives the chunked encode → embed pipeline over record
// files: it reads bounded-size batches, evaluates subpopulation queries,
// and recombines per-chunk weighted embeddings into one embedding per file
// per query.
package stream

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/adalundhe/subpop/core/table"
)

// BatchReader yields successive record batches from one file. Next returns
// io.EOF after the last batch; readers are finite and not restartable.
type BatchReader interface {
	Next() (*table.Batch, error)
	Close() error
}

// RecordSource opens files as chunked batch readers. Every batch must carry
// the schema's feature columns, the weight column, and any columns the
// subset queries reference.
type RecordSource interface {
	Open(path string, chunkSize int) (BatchReader, error)
}

// CSVSource reads headered CSV files. Empty cells and the literals NA and
// NaN parse as missing values.
type CSVSource struct{}

// Open starts a chunked read of the CSV file at path.
func (CSVSource) Open(path string, chunkSize int) (BatchReader, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("stream: non-positive chunk size %d", chunkSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stream: open %s: %w", path, err)
	}
	r := csv.NewReader(f)
	r.ReuseRecord = true
	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stream: read header of %s: %w", path, err)
	}
	return &csvReader{
		path:   path,
		f:      f,
		r:      r,
		header: append([]string(nil), header...),
		chunk:  chunkSize,
	}, nil
}

type csvReader struct {
	path   string
	f      *os.File
	r      *csv.Reader
	header []string
	chunk  int
	done   bool
}

func (c *csvReader) Next() (*table.Batch, error) {
	if c.done {
		return nil, io.EOF
	}
	cols := make([][]float64, len(c.header))
	rows := 0
	for rows < c.chunk {
		rec, err := c.r.Read()
		if err == io.EOF {
			c.done = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream: read %s: %w", c.path, err)
		}
		if len(rec) != len(c.header) {
			return nil, fmt.Errorf("stream: %s row %d has %d fields, header has %d", c.path, rows, len(rec), len(c.header))
		}
		for i, cell := range rec {
			cols[i] = append(cols[i], parseCell(cell))
		}
		rows++
	}
	if rows == 0 {
		return nil, io.EOF
	}
	return table.FromColumns(c.header, cols)
}

func (c *csvReader) Close() error { return c.f.Close() }

func parseCell(s string) float64 {
	switch s {
	case "", "NA", "NaN", "nan":
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// MemorySource serves pre-built batches keyed by file name. Used by callers
// that already hold records in memory, and by tests.
type MemorySource map[string][]*table.Batch

// Open returns a reader over the batches registered under path.
func (m MemorySource) Open(path string, chunkSize int) (BatchReader, error) {
	batches, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("stream: no in-memory file %q", path)
	}
	return &memoryReader{batches: batches}, nil
}

type memoryReader struct {
	batches []*table.Batch
	next    int
}

func (m *memoryReader) Next() (*table.Batch, error) {
	if m.next >= len(m.batches) {
		return nil, io.EOF
	}
	b := m.batches[m.next]
	m.next++
	return b, nil
}

func (m *memoryReader) Close() error { return nil }
