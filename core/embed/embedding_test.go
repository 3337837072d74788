package embed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearWeightedMean(t *testing.T) {
	// Two records [1,0] and [0,1] with equal weight average to [0.5, 0.5].
	feats := []float64{
		1, 0,
		0, 1,
	}
	wts := []float64{2, 2}
	out := make([]float64, 2)

	require.NoError(t, Linear(feats, 2, 2, wts, 1, out))
	assert.InDelta(t, 0.5, out[0], 1e-12)
	assert.InDelta(t, 0.5, out[1], 1e-12)
}

func TestLinearZeroWeightGuard(t *testing.T) {
	feats := []float64{
		1, 0,
		0, 1,
	}
	wts := []float64{0, 0}
	out := []float64{99, 99}

	require.NoError(t, Linear(feats, 2, 2, wts, 1, out))
	assert.Equal(t, []float64{0, 0}, out)
}

func TestLinearMultipleQueries(t *testing.T) {
	feats := []float64{
		1, 0,
		0, 1,
		2, 2,
	}
	// Query 0 selects rows 0 and 2, query 1 only row 1, query 2 nothing.
	wts := []float64{
		1, 0, 3,
		0, 5, 0,
		0, 0, 0,
	}
	out := make([]float64, 2*3)
	require.NoError(t, Linear(feats, 3, 2, wts, 3, out))

	// Query 0: ([1,0] + 3·[2,2]) / 4 = [1.75, 1.5].
	assert.InDelta(t, 1.75, out[0*3+0], 1e-12)
	assert.InDelta(t, 1.5, out[1*3+0], 1e-12)
	// Query 1: exactly row 1.
	assert.InDelta(t, 0, out[0*3+1], 1e-12)
	assert.InDelta(t, 1, out[1*3+1], 1e-12)
	// Query 2: zero weight, zero column.
	assert.Equal(t, 0.0, out[0*3+2])
	assert.Equal(t, 0.0, out[1*3+2])
}

func TestLinearShapeErrors(t *testing.T) {
	err := Linear(make([]float64, 5), 2, 2, make([]float64, 2), 1, make([]float64, 2))
	require.Error(t, err)
	err = Linear(make([]float64, 4), 2, 2, make([]float64, 3), 1, make([]float64, 2))
	require.Error(t, err)
	err = Linear(make([]float64, 4), 2, 2, make([]float64, 2), 1, make([]float64, 3))
	require.Error(t, err)
}

func TestRFFSingleRecord(t *testing.T) {
	// With one record of weight 1 the RFF embedding is exactly
	// [sin(x·ω); cos(x·ω)] over the frequency columns.
	freqs := &Frequencies{
		Data: []float64{
			0.3, -1.2,
			2.0, 0.5,
		},
		NumFeats:  2,
		NumFreqs:  2,
		Bandwidth: 1,
	}
	feats := []float64{1, 2}
	wts := []float64{1}
	out := make([]float64, 4)

	require.NoError(t, RFF(feats, 1, 2, wts, 1, freqs, out))

	a0 := 1*0.3 + 2*2.0
	a1 := 1*-1.2 + 2*0.5
	assert.InDelta(t, math.Sin(a0), out[0], 1e-12)
	assert.InDelta(t, math.Sin(a1), out[1], 1e-12)
	assert.InDelta(t, math.Cos(a0), out[2], 1e-12)
	assert.InDelta(t, math.Cos(a1), out[3], 1e-12)
}

func TestRFFWeightedMean(t *testing.T) {
	freqs := &Frequencies{
		Data:      []float64{1.5},
		NumFeats:  1,
		NumFreqs:  1,
		Bandwidth: 1,
	}
	feats := []float64{1, 3}
	wts := []float64{1, 3}
	out := make([]float64, 2)

	require.NoError(t, RFF(feats, 2, 1, wts, 1, freqs, out))

	wantSin := (math.Sin(1.5) + 3*math.Sin(4.5)) / 4
	wantCos := (math.Cos(1.5) + 3*math.Cos(4.5)) / 4
	assert.InDelta(t, wantSin, out[0], 1e-12)
	assert.InDelta(t, wantCos, out[1], 1e-12)
}

func TestRFFZeroWeightGuard(t *testing.T) {
	freqs := &Frequencies{Data: []float64{1}, NumFeats: 1, NumFreqs: 1, Bandwidth: 1}
	out := []float64{5, 5}
	require.NoError(t, RFF([]float64{2}, 1, 1, []float64{0}, 1, freqs, out))
	assert.Equal(t, []float64{0, 0}, out)
}

func TestRFFFeatureMismatch(t *testing.T) {
	freqs := &Frequencies{Data: []float64{1, 1}, NumFeats: 2, NumFreqs: 1, Bandwidth: 1}
	err := RFF([]float64{1}, 1, 1, []float64{1}, 1, freqs, make([]float64, 2))
	require.Error(t, err)
}

func TestWeightSums(t *testing.T) {
	wts := []float64{
		1, 2, 3,
		0, 0, 0,
	}
	assert.Equal(t, []float64{6, 0}, WeightSums(wts, 2, 3))
}
