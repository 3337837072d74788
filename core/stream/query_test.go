package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/subpop/core/table"
)

func queryBatch(t *testing.T) *table.Batch {
	t.Helper()
	b, err := table.FromColumns(
		[]string{"AGEP", "SEX", "PWGTP"},
		[][]float64{
			{30, 50, 70},
			{1, 2, 1},
			{5, 0, 2},
		},
	)
	require.NoError(t, err)
	return b
}

func TestCompileSubsets(t *testing.T) {
	q, err := CompileSubsets("AGEP >= 65, SEX == 1")
	require.NoError(t, err)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []string{"AGEP >= 65", "SEX == 1"}, q.Exprs())
}

func TestCompileSubsetsTrailingComma(t *testing.T) {
	q, err := CompileSubsets("PWGTP > 0,")
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())
}

func TestCompileSubsetsErrors(t *testing.T) {
	_, err := CompileSubsets("AGEP >= 65,,SEX == 1")
	require.Error(t, err)

	_, err = CompileSubsets("AGEP >")
	require.Error(t, err)
}

func TestEvalMatrix(t *testing.T) {
	q, err := CompileSubsets("AGEP >= 50, PWGTP > 0")
	require.NoError(t, err)

	which, err := q.Eval(queryBatch(t))
	require.NoError(t, err)
	require.Len(t, which, 2)
	assert.Equal(t, []bool{false, true, true}, which[0])
	assert.Equal(t, []bool{true, false, true}, which[1])
}

func TestEvalOverlappingAndEmptyQueries(t *testing.T) {
	q, err := CompileSubsets("SEX == 1, AGEP > 100")
	require.NoError(t, err)

	which, err := q.Eval(queryBatch(t))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, which[0])
	assert.Equal(t, []bool{false, false, false}, which[1])
}

func TestEvalSingleRowBatch(t *testing.T) {
	b, err := table.FromColumns(
		[]string{"AGEP", "PWGTP"},
		[][]float64{{66}, {3}},
	)
	require.NoError(t, err)

	q, err := CompileSubsets("AGEP >= 65, AGEP < 40")
	require.NoError(t, err)

	which, err := q.Eval(b)
	require.NoError(t, err)
	require.Len(t, which, 2)
	assert.Equal(t, []bool{true}, which[0])
	assert.Equal(t, []bool{false}, which[1])
}

func TestEvalCompoundExpression(t *testing.T) {
	q, err := CompileSubsets("AGEP >= 50 && SEX == 2")
	require.NoError(t, err)

	which, err := q.Eval(queryBatch(t))
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false}, which[0])
}
