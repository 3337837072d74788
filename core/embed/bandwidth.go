package embed

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/adalundhe/subpop/core/encode"
	"github.com/adalundhe/subpop/core/stats"
)

// PickBandwidth estimates a Gaussian-kernel bandwidth by the median
// heuristic: encode the bundle's reference sample under the same skip-set,
// take the median of all pairwise squared distances over the strict upper
// triangle, and return its square root.
func PickBandwidth(b *stats.Bundle, skip map[string]struct{}) (float64, error) {
	if b.Sample == nil || b.Sample.NumRows() < 2 {
		return 0, fmt.Errorf("embed: bandwidth heuristic needs a reference sample of at least 2 records")
	}
	feats, err := encode.Encode(b.Sample, b, skip)
	if err != nil {
		return 0, err
	}
	n := b.Sample.NumRows()
	f := len(feats) / n

	d2 := make([]float64, 0, n*(n-1)/2)
	for i := range n {
		ri := feats[i*f : (i+1)*f]
		for j := i + 1; j < n; j++ {
			d := floats.Distance(ri, feats[j*f:(j+1)*f], 2)
			d2 = append(d2, d*d)
		}
	}
	sort.Float64s(d2)
	med := stat.Quantile(0.5, stat.Empirical, d2, nil)
	return math.Sqrt(med), nil
}
