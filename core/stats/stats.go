// Package stats holds the per-version statistics bundle the encoder and
// bandwidth selector consume: real-feature means and standard deviations,
// ordered category counts for discrete features, the total record count,
// and a reference sample of records.
package stats

import (
	"fmt"

	"github.com/adalundhe/subpop/core/schema"
	"github.com/adalundhe/subpop/core/table"
)

// Categories is an ordered category-count table for one discrete feature.
// Order is fixed at build time and determines one-hot column order.
type Categories struct {
	Values []float64
	Counts []int64
}

// Len returns the number of stored categories.
func (c *Categories) Len() int { return len(c.Values) }

// Total returns the summed count over all stored categories.
func (c *Categories) Total() int64 {
	var t int64
	for _, n := range c.Counts {
		t += n
	}
	return t
}

// Bundle is the immutable statistics object built once from training data
// and consumed read-only by the whole pipeline.
type Bundle struct {
	Version     string
	RealMeans   map[string]float64
	RealStds    map[string]float64
	ValueCounts map[string]*Categories
	NTotal      int
	Sample      *table.Batch
}

// HasOverflow reports whether the named discrete feature gets an extra
// trailing column: true exactly when its stored counts under-cover NTotal,
// meaning some training records were missing or unseen for that feature.
func (b *Bundle) HasOverflow(feat string) bool {
	vc, ok := b.ValueCounts[feat]
	if !ok {
		return false
	}
	return vc.Total() < int64(b.NTotal)
}

// Validate checks the bundle's internal invariants against its schema:
// RealMeans and RealStds share a key set, and every ValueCounts key is a
// discrete or allocation-flag feature of the version.
func (b *Bundle) Validate() error {
	info, err := schema.Lookup(b.Version)
	if err != nil {
		return err
	}
	if len(b.RealMeans) != len(b.RealStds) {
		return fmt.Errorf("stats: %d means for %d stds", len(b.RealMeans), len(b.RealStds))
	}
	for f := range b.RealMeans {
		if _, ok := b.RealStds[f]; !ok {
			return fmt.Errorf("stats: mean without std for %q", f)
		}
	}
	declared := make(map[string]struct{})
	for _, f := range info.CategoricalFeats() {
		declared[f] = struct{}{}
	}
	for f := range b.ValueCounts {
		if _, ok := declared[f]; !ok {
			return fmt.Errorf("stats: value counts for %q, not a categorical feature of %s", f, b.Version)
		}
	}
	if b.NTotal <= 0 {
		return fmt.Errorf("stats: non-positive record total %d", b.NTotal)
	}
	return nil
}
