// Package encode turns record batches into dense feature matrices:
// standardized real features followed by one-hot blocks for each discrete
// and allocation feature, with a trailing overflow column for any feature
// whose training counts under-covered the record total.
//
// Output is flat row-major (records × features), the layout the embedding
// primitives feed straight into blas64.
package encode

import (
	"errors"
	"fmt"
	"math"

	"github.com/adalundhe/subpop/core/schema"
	"github.com/adalundhe/subpop/core/stats"
	"github.com/adalundhe/subpop/core/table"
)

// ErrShape is returned when a caller-supplied output buffer does not match
// the exact rows × NumFeatures size the encoder requires.
var ErrShape = errors.New("encode: output buffer has wrong shape")

type catBlock struct {
	name     string
	values   []float64
	index    map[float64]int
	width    int
	overflow bool
}

type layout struct {
	reals []string
	cats  []catBlock
	width int
	means []float64
	stds  []float64
}

func buildLayout(b *stats.Bundle, skip map[string]struct{}) (*layout, error) {
	info, err := schema.Lookup(b.Version)
	if err != nil {
		return nil, err
	}
	l := &layout{}
	for _, f := range info.RealFeats {
		if _, skipped := skip[f]; skipped {
			continue
		}
		mean, ok := b.RealMeans[f]
		if !ok {
			return nil, fmt.Errorf("encode: no mean for real feature %q", f)
		}
		l.reals = append(l.reals, f)
		l.means = append(l.means, mean)
		l.stds = append(l.stds, b.RealStds[f])
	}
	l.width = len(l.reals)
	for _, f := range info.CategoricalFeats() {
		if _, skipped := skip[f]; skipped {
			continue
		}
		vc, ok := b.ValueCounts[f]
		if !ok {
			return nil, fmt.Errorf("encode: no value counts for feature %q", f)
		}
		blk := catBlock{
			name:     f,
			values:   vc.Values,
			index:    make(map[float64]int, vc.Len()),
			width:    vc.Len(),
			overflow: b.HasOverflow(f),
		}
		for i, v := range vc.Values {
			blk.index[v] = i
		}
		if blk.overflow {
			blk.width++
		}
		l.cats = append(l.cats, blk)
		l.width += blk.width
	}
	return l, nil
}

// NumFeatures returns the encoded width for the bundle under the given
// skip-set: kept real features, plus per kept categorical feature its stored
// category count plus one when that feature carries an overflow column.
func NumFeatures(b *stats.Bundle, skip map[string]struct{}) (int, error) {
	l, err := buildLayout(b, skip)
	if err != nil {
		return 0, err
	}
	return l.width, nil
}

// FeatureNames returns the encoded column names in layout order. One-hot
// columns are named feat_category; overflow columns are named feat_nan.
func FeatureNames(b *stats.Bundle, skip map[string]struct{}) ([]string, error) {
	l, err := buildLayout(b, skip)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, l.width)
	names = append(names, l.reals...)
	for _, blk := range l.cats {
		for _, v := range blk.values {
			names = append(names, fmt.Sprintf("%s_%g", blk.name, v))
		}
		if blk.overflow {
			names = append(names, blk.name+"_nan")
		}
	}
	return names, nil
}

// Encode allocates and fills a rows × NumFeatures matrix for the batch.
func Encode(batch *table.Batch, b *stats.Bundle, skip map[string]struct{}) ([]float64, error) {
	l, err := buildLayout(b, skip)
	if err != nil {
		return nil, err
	}
	out := make([]float64, batch.NumRows()*l.width)
	if err := l.encodeInto(batch, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeInto fills a caller-supplied buffer, which must be exactly
// rows × NumFeatures long; anything else is a contract violation reported
// as ErrShape. Reusing one buffer across chunks keeps the hot loop
// allocation-free.
func EncodeInto(batch *table.Batch, b *stats.Bundle, skip map[string]struct{}, out []float64) error {
	l, err := buildLayout(b, skip)
	if err != nil {
		return err
	}
	if len(out) != batch.NumRows()*l.width {
		return fmt.Errorf("%w: have %d, want %d×%d", ErrShape, len(out), batch.NumRows(), l.width)
	}
	return l.encodeInto(batch, out)
}

func (l *layout) encodeInto(batch *table.Batch, out []float64) error {
	n := batch.NumRows()
	stride := l.width

	for j, f := range l.reals {
		col, err := batch.Column(f)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		mean, std := l.means[j], l.stds[j]
		for r := range n {
			v := (col[r] - mean) / std
			if math.IsNaN(v) || math.IsInf(v, 0) {
				// A missing real value sits at the population mean.
				v = 0
			}
			out[r*stride+j] = v
		}
	}

	start := len(l.reals)
	for _, blk := range l.cats {
		col, err := batch.Column(blk.name)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		for r := range n {
			row := out[r*stride+start : r*stride+start+blk.width]
			for i := range row {
				row[i] = 0
			}
			// NaN never matches a stored category, so missing values take
			// the overflow path with unseen codes.
			if idx, seen := blk.index[col[r]]; seen {
				row[idx] = 1
			} else if blk.overflow {
				row[blk.width-1] = 1
			}
			// Without an overflow column an unseen value leaves the block zero.
		}
		start += blk.width
	}

	if start != stride {
		return fmt.Errorf("encode: wrote %d columns, layout says %d", start, stride)
	}
	return nil
}
