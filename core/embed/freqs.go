package embed

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Frequencies is a features × NumFreqs projection matrix for a Gaussian
// kernel, stored flat row-major together with the bandwidth that generated
// it. The paired embedding dimension is 2 × NumFreqs.
type Frequencies struct {
	Data      []float64
	NumFeats  int
	NumFreqs  int
	Bandwidth float64
}

// defaultSource backs sampling calls that pass a nil source. Sampling state
// is otherwise threaded explicitly through every call.
var defaultSource = rand.NewSource(uint64(time.Now().UnixNano()))

// NewSource returns a reproducible sampling source for the given seed.
func NewSource(seed uint64) rand.Source {
	return rand.NewSource(seed)
}

// PickFreqs draws a frequency matrix for a Gaussian kernel of the given
// bandwidth. In plain mode every entry is an independent N(0, 1/bandwidth²)
// draw. In orthogonal mode (Orthogonal Random Features,
// https://arxiv.org/abs/1610.09072) directions come from QR-orthogonalized
// Gaussian blocks of size nFeats and each column's magnitude is redrawn
// from sqrt(χ²(nFeats))/bandwidth, so the per-coordinate marginal matches
// the plain case with reduced cross-column correlation. Orthogonal mode is
// a no-op for a single feature and falls back to plain sampling there.
func PickFreqs(nFeats, nFreqs int, bandwidth float64, orthogonal bool, src rand.Source) (*Frequencies, error) {
	if nFeats <= 0 || nFreqs <= 0 {
		return nil, fmt.Errorf("embed: sampling %d×%d frequencies", nFeats, nFreqs)
	}
	if bandwidth <= 0 {
		return nil, fmt.Errorf("embed: non-positive bandwidth %v", bandwidth)
	}
	if src == nil {
		src = defaultSource
	}
	rng := rand.New(src)

	out := &Frequencies{
		Data:      make([]float64, nFeats*nFreqs),
		NumFeats:  nFeats,
		NumFreqs:  nFreqs,
		Bandwidth: bandwidth,
	}

	if !orthogonal || nFeats == 1 {
		for i := range out.Data {
			out.Data[i] = rng.NormFloat64() / bandwidth
		}
		return out, nil
	}

	// Column block i*nFeats+j takes row j of the block's orthogonal Q.
	gauss := make([]float64, nFeats*nFeats)
	var qr mat.QR
	var qm mat.Dense
	for start := 0; start < nFreqs; start += nFeats {
		for i := range gauss {
			gauss[i] = rng.NormFloat64()
		}
		qr.Factorize(mat.NewDense(nFeats, nFeats, gauss))
		qr.QTo(&qm)

		cols := min(nFeats, nFreqs-start)
		for j := range cols {
			for k := range nFeats {
				out.Data[k*nFreqs+start+j] = qm.At(j, k)
			}
		}
	}

	chi2 := distuv.ChiSquared{K: float64(nFeats), Src: src}
	for c := range nFreqs {
		s := math.Sqrt(chi2.Rand()) / bandwidth
		for k := range nFeats {
			out.Data[k*nFreqs+c] *= s
		}
	}
	return out, nil
}

// Norms returns the Euclidean norm of each frequency column. Used to check
// the chi-distributed magnitude law.
func (f *Frequencies) Norms() []float64 {
	norms := make([]float64, f.NumFreqs)
	for c := range f.NumFreqs {
		var sum float64
		for k := range f.NumFeats {
			v := f.Data[k*f.NumFreqs+c]
			sum += v * v
		}
		norms[c] = math.Sqrt(sum)
	}
	return norms
}
