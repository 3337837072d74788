package stats

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"

	"github.com/adalundhe/subpop/core/schema"
	"github.com/adalundhe/subpop/core/table"
)

// DefaultSampleSize is the reference-sample size used when the caller does
// not choose one. The sample only feeds the bandwidth median heuristic, so
// a few thousand rows is plenty.
const DefaultSampleSize = 2048

// Builder accumulates a Bundle from streamed record batches. Means and
// standard deviations use Welford updates so the pass stays single-scan;
// the reference sample is a seeded reservoir.
type Builder struct {
	version string
	info    *schema.Info

	count  map[string]int64
	mean   map[string]float64
	m2     map[string]float64
	counts map[string]map[float64]int64

	nTotal     int
	sample     *table.Batch
	sampleSize int
	seen       int
	rng        *rand.Rand
}

// NewBuilder creates a builder for the given survey version. sampleSize <= 0
// selects DefaultSampleSize.
func NewBuilder(version string, sampleSize int, seed uint64) (*Builder, error) {
	info, err := schema.Lookup(version)
	if err != nil {
		return nil, err
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	b := &Builder{
		version:    version,
		info:       info,
		count:      make(map[string]int64, len(info.RealFeats)),
		mean:       make(map[string]float64, len(info.RealFeats)),
		m2:         make(map[string]float64, len(info.RealFeats)),
		counts:     make(map[string]map[float64]int64),
		sampleSize: sampleSize,
		rng:        rand.New(rand.NewSource(seed)),
	}
	for _, f := range info.CategoricalFeats() {
		b.counts[f] = make(map[float64]int64)
	}
	return b, nil
}

// Add folds one batch into the running statistics.
func (b *Builder) Add(batch *table.Batch) error {
	for _, f := range b.info.RealFeats {
		col, err := batch.Column(f)
		if err != nil {
			return fmt.Errorf("stats: real feature: %w", err)
		}
		for _, v := range col {
			if math.IsNaN(v) {
				continue
			}
			b.count[f]++
			delta := v - b.mean[f]
			b.mean[f] += delta / float64(b.count[f])
			b.m2[f] += delta * (v - b.mean[f])
		}
	}
	for _, f := range b.info.CategoricalFeats() {
		col, err := batch.Column(f)
		if err != nil {
			return fmt.Errorf("stats: categorical feature: %w", err)
		}
		vc := b.counts[f]
		for _, v := range col {
			if math.IsNaN(v) {
				continue
			}
			vc[v]++
		}
	}
	if err := b.reservoir(batch); err != nil {
		return err
	}
	b.nTotal += batch.NumRows()
	return nil
}

func (b *Builder) reservoir(batch *table.Batch) error {
	if b.sample == nil {
		b.sample = table.New(batch.Columns(), 0)
	}
	for r := range batch.NumRows() {
		b.seen++
		if b.sample.NumRows() < b.sampleSize {
			if err := b.sample.AppendRow(batch, r); err != nil {
				return err
			}
			continue
		}
		j := b.rng.Intn(b.seen)
		if j < b.sampleSize {
			if err := b.sample.SetRow(j, batch, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// Finalize freezes the accumulated statistics into a Bundle. Category order
// is ascending by category code so rebuilt bundles agree regardless of the
// order records streamed in.
func (b *Builder) Finalize() (*Bundle, error) {
	if b.nTotal == 0 {
		return nil, fmt.Errorf("stats: no records accumulated")
	}
	out := &Bundle{
		Version:     b.version,
		RealMeans:   make(map[string]float64, len(b.info.RealFeats)),
		RealStds:    make(map[string]float64, len(b.info.RealFeats)),
		ValueCounts: make(map[string]*Categories, len(b.counts)),
		NTotal:      b.nTotal,
		Sample:      b.sample,
	}
	for _, f := range b.info.RealFeats {
		out.RealMeans[f] = b.mean[f]
		if b.count[f] > 1 {
			out.RealStds[f] = math.Sqrt(b.m2[f] / float64(b.count[f]-1))
		} else {
			out.RealStds[f] = 0
		}
	}
	for f, vc := range b.counts {
		cats := &Categories{
			Values: make([]float64, 0, len(vc)),
			Counts: make([]int64, 0, len(vc)),
		}
		for v := range vc {
			cats.Values = append(cats.Values, v)
		}
		sort.Float64s(cats.Values)
		for _, v := range cats.Values {
			cats.Counts = append(cats.Counts, vc[v])
		}
		out.ValueCounts[f] = cats
	}
	return out, out.Validate()
}
