// Package embed computes subpopulation mean embeddings from encoded feature
// matrices: the weighted-mean linear embedding and the random Fourier
// feature embedding that approximates a Gaussian-kernel mean embedding.
//
// Matrices are flat row-major float64, matching the encoder's output and
// blas64's General layout.
package embed

import (
	"fmt"
	"math"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// Linear writes the weighted mean of the encoded rows for each query into
// out. feats is n×f row-major, wts is q×n row-major (one row per
// subpopulation query), out is f×q row-major. A query whose weights sum to
// zero yields an all-zero column, never NaN.
func Linear(feats []float64, n, f int, wts []float64, q int, out []float64) error {
	if err := checkShapes(feats, n, f, wts, q); err != nil {
		return err
	}
	if len(out) != f*q {
		return fmt.Errorf("embed: linear output length %d, want %d×%d", len(out), f, q)
	}

	// out = featsᵀ · wtsᵀ
	blas64.Gemm(blas.Trans, blas.Trans, 1,
		blas64.General{Rows: n, Cols: f, Stride: f, Data: feats},
		blas64.General{Rows: q, Cols: n, Stride: n, Data: wts},
		0,
		blas64.General{Rows: f, Cols: q, Stride: q, Data: out},
	)
	divideByWeightSums(out, f, wts, n, q)
	return nil
}

// RFF writes the random-Fourier-feature embedding for each query into out.
// freqs projects the f encoded features onto D frequencies; out is 2D×q
// row-major, sine means in the first D rows and cosine means in the last D,
// with the same zero-weight guard as Linear.
func RFF(feats []float64, n, f int, wts []float64, q int, freqs *Frequencies, out []float64) error {
	if err := checkShapes(feats, n, f, wts, q); err != nil {
		return err
	}
	if freqs.NumFeats != f {
		return fmt.Errorf("embed: frequencies built for %d features, encoding has %d", freqs.NumFeats, f)
	}
	d := freqs.NumFreqs
	if len(out) != 2*d*q {
		return fmt.Errorf("embed: rff output length %d, want 2×%d×%d", len(out), d, q)
	}

	angles := make([]float64, n*d)
	blas64.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas64.General{Rows: n, Cols: f, Stride: f, Data: feats},
		blas64.General{Rows: f, Cols: d, Stride: d, Data: freqs.Data},
		0,
		blas64.General{Rows: n, Cols: d, Stride: d, Data: angles},
	)

	sines := make([]float64, n*d)
	for i, a := range angles {
		s, c := math.Sincos(a)
		sines[i] = s
		angles[i] = c
	}
	cosines := angles

	blas64.Gemm(blas.Trans, blas.Trans, 1,
		blas64.General{Rows: n, Cols: d, Stride: d, Data: sines},
		blas64.General{Rows: q, Cols: n, Stride: n, Data: wts},
		0,
		blas64.General{Rows: d, Cols: q, Stride: q, Data: out[:d*q]},
	)
	blas64.Gemm(blas.Trans, blas.Trans, 1,
		blas64.General{Rows: n, Cols: d, Stride: d, Data: cosines},
		blas64.General{Rows: q, Cols: n, Stride: n, Data: wts},
		0,
		blas64.General{Rows: d, Cols: q, Stride: q, Data: out[d*q:]},
	)
	divideByWeightSums(out, 2*d, wts, n, q)
	return nil
}

// WeightSums returns the per-query weight totals of a q×n weight matrix.
func WeightSums(wts []float64, q, n int) []float64 {
	sums := make([]float64, q)
	for j := range q {
		sums[j] = vek.Sum(wts[j*n : (j+1)*n])
	}
	return sums
}

func divideByWeightSums(out []float64, rows int, wts []float64, n, q int) {
	for j, w := range WeightSums(wts, q, n) {
		if w == 0 {
			continue
		}
		for i := range rows {
			out[i*q+j] /= w
		}
	}
}

func checkShapes(feats []float64, n, f int, wts []float64, q int) error {
	if len(feats) != n*f {
		return fmt.Errorf("embed: feature matrix length %d, want %d×%d", len(feats), n, f)
	}
	if len(wts) != q*n {
		return fmt.Errorf("embed: weight matrix length %d, want %d×%d", len(wts), q, n)
	}
	return nil
}
