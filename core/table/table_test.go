package table

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStartsMissing(t *testing.T) {
	b := New([]string{"A", "B"}, 3)
	assert.Equal(t, 3, b.NumRows())
	assert.Equal(t, 2, b.NumCols())
	assert.True(t, math.IsNaN(b.Value(0, "A")))

	b.Set(1, "B", 7)
	assert.Equal(t, 7.0, b.Value(1, "B"))
}

func TestFromColumnsValidation(t *testing.T) {
	_, err := FromColumns([]string{"A"}, [][]float64{{1}, {2}})
	require.Error(t, err)

	_, err = FromColumns([]string{"A", "B"}, [][]float64{{1, 2}, {3}})
	require.Error(t, err)

	_, err = FromColumns([]string{"A", "A"}, [][]float64{{1}, {2}})
	require.Error(t, err)
}

func TestColumnLookup(t *testing.T) {
	b, err := FromColumns([]string{"A", "B"}, [][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)

	col, err := b.Column("B")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, col)

	_, err = b.Column("C")
	require.Error(t, err)
	assert.False(t, b.HasColumn("C"))
	assert.True(t, b.HasColumn("A"))
}

func TestRowEnv(t *testing.T) {
	b, err := FromColumns([]string{"A", "B"}, [][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)

	env := b.Row(0, nil)
	assert.Equal(t, 1.0, env["A"])
	assert.Equal(t, 3.0, env["B"])

	// The same map is reused and overwritten.
	env2 := b.Row(1, env)
	assert.Equal(t, 2.0, env2["A"])
	assert.Equal(t, 4.0, env2["B"])
}

func TestSelectRows(t *testing.T) {
	b, err := FromColumns([]string{"A"}, [][]float64{{1, 2, 3, 4}})
	require.NoError(t, err)

	out, err := b.SelectRows([]bool{true, false, false, true})
	require.NoError(t, err)
	col, err := out.Column("A")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4}, col)

	_, err = b.SelectRows([]bool{true})
	require.Error(t, err)
}

func TestHeadAndRepeat(t *testing.T) {
	b, err := FromColumns([]string{"A"}, [][]float64{{1, 2, 3}})
	require.NoError(t, err)

	head := b.Head(2)
	assert.Equal(t, 2, head.NumRows())

	doubled := b.Head(1).Repeat(2)
	assert.Equal(t, 2, doubled.NumRows())
	col, err := doubled.Column("A")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, col)
}

func TestAppendAndSetRow(t *testing.T) {
	src, err := FromColumns([]string{"A", "B"}, [][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)

	dst := New([]string{"A", "B"}, 0)
	require.NoError(t, dst.AppendRow(src, 1))
	require.Equal(t, 1, dst.NumRows())
	assert.Equal(t, 2.0, dst.Value(0, "A"))
	assert.Equal(t, 4.0, dst.Value(0, "B"))

	require.NoError(t, dst.SetRow(0, src, 0))
	assert.Equal(t, 1.0, dst.Value(0, "A"))
	assert.Equal(t, 3.0, dst.Value(0, "B"))
}
