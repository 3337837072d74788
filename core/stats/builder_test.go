package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/adalundhe/subpop/core/schema"
	"github.com/adalundhe/subpop/core/table"
)

func init() {
	schema.Register("builder-test", &schema.Info{
		RealFeats:     []string{"AGEP"},
		DiscreteFeats: []string{"SEX"},
		AllocFlags:    []string{"FSEXP"},
	})
}

func builderBatch(t *testing.T, agep, sex, fsexp []float64) *table.Batch {
	t.Helper()
	b, err := table.FromColumns(
		[]string{"AGEP", "SEX", "FSEXP"},
		[][]float64{agep, sex, fsexp},
	)
	require.NoError(t, err)
	return b
}

func TestBuilderMoments(t *testing.T) {
	agep := []float64{20, 30, 40, 50, 60}
	b, err := NewBuilder("builder-test", 10, 1)
	require.NoError(t, err)

	// Split across two Add calls to exercise streaming accumulation.
	require.NoError(t, b.Add(builderBatch(t, agep[:2], []float64{1, 2}, []float64{0, 0})))
	require.NoError(t, b.Add(builderBatch(t, agep[2:], []float64{1, 1, 2}, []float64{0, 1, 0})))

	bundle, err := b.Finalize()
	require.NoError(t, err)

	wantMean, wantStd := stat.MeanStdDev(agep, nil)
	assert.InDelta(t, wantMean, bundle.RealMeans["AGEP"], 1e-9)
	assert.InDelta(t, wantStd, bundle.RealStds["AGEP"], 1e-9)
	assert.Equal(t, 5, bundle.NTotal)
}

func TestBuilderCategoryOrderAndCounts(t *testing.T) {
	b, err := NewBuilder("builder-test", 10, 1)
	require.NoError(t, err)
	// Categories arrive out of order; stored order is ascending by code.
	require.NoError(t, b.Add(builderBatch(t,
		[]float64{20, 30, 40, 50},
		[]float64{2, 1, 2, 9},
		[]float64{0, 0, 0, 0},
	)))

	bundle, err := b.Finalize()
	require.NoError(t, err)

	vc := bundle.ValueCounts["SEX"]
	require.NotNil(t, vc)
	assert.Equal(t, []float64{1, 2, 9}, vc.Values)
	assert.Equal(t, []int64{1, 2, 1}, vc.Counts)
	assert.False(t, bundle.HasOverflow("SEX"))
}

func TestBuilderMissingValuesCreateOverflow(t *testing.T) {
	b, err := NewBuilder("builder-test", 10, 1)
	require.NoError(t, err)
	require.NoError(t, b.Add(builderBatch(t,
		[]float64{20, math.NaN(), 40},
		[]float64{1, math.NaN(), 2},
		[]float64{0, 0, 0},
	)))

	bundle, err := b.Finalize()
	require.NoError(t, err)

	// The missing SEX value keeps counts below NTotal, provisioning the
	// overflow column; the missing AGEP value is excluded from moments.
	assert.True(t, bundle.HasOverflow("SEX"))
	assert.False(t, bundle.HasOverflow("FSEXP"))
	wantMean, _ := stat.MeanStdDev([]float64{20, 40}, nil)
	assert.InDelta(t, wantMean, bundle.RealMeans["AGEP"], 1e-9)
}

func TestBuilderReservoirSample(t *testing.T) {
	b, err := NewBuilder("builder-test", 3, 7)
	require.NoError(t, err)
	for range 4 {
		require.NoError(t, b.Add(builderBatch(t,
			[]float64{1, 2, 3, 4, 5},
			[]float64{1, 1, 1, 1, 1},
			[]float64{0, 0, 0, 0, 0},
		)))
	}

	bundle, err := b.Finalize()
	require.NoError(t, err)
	require.NotNil(t, bundle.Sample)
	assert.Equal(t, 3, bundle.Sample.NumRows())
	assert.Equal(t, 20, bundle.NTotal)
}

func TestBuilderEmptyFails(t *testing.T) {
	b, err := NewBuilder("builder-test", 3, 1)
	require.NoError(t, err)
	_, err = b.Finalize()
	require.Error(t, err)
}

func TestBuilderUnknownVersion(t *testing.T) {
	_, err := NewBuilder("no-such-version", 3, 1)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	bundle := &Bundle{
		Version:     "builder-test",
		RealMeans:   map[string]float64{"AGEP": 1},
		RealStds:    map[string]float64{"AGEP": 2},
		ValueCounts: map[string]*Categories{"SEX": {Values: []float64{1}, Counts: []int64{3}}},
		NTotal:      3,
	}
	require.NoError(t, bundle.Validate())

	bad := *bundle
	bad.ValueCounts = map[string]*Categories{"AGEP": {}}
	require.Error(t, bad.Validate())

	bad = *bundle
	bad.RealStds = map[string]float64{}
	require.Error(t, bad.Validate())

	bad = *bundle
	bad.NTotal = 0
	require.Error(t, bad.Validate())
}
