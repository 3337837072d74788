package stream

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/adalundhe/subpop/core/table"
)

// SubsetQueries is a compiled comma-separated list of boolean expressions
// over record columns, e.g. "AGEP >= 65, SEX == 1". A trailing comma is
// tolerated so a single query can be forced to stay two-dimensional.
type SubsetQueries struct {
	exprs []string
	progs []*vm.Program
}

// CompileSubsets parses and compiles the query list. Malformed expressions
// fail here, before any file is read.
func CompileSubsets(subsets string) (*SubsetQueries, error) {
	parts := strings.Split(subsets, ",")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	q := &SubsetQueries{}
	for _, p := range parts {
		src := strings.TrimSpace(p)
		if src == "" {
			return nil, fmt.Errorf("stream: empty subset query in %q", subsets)
		}
		prog, err := expr.Compile(src, expr.AsBool(), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("stream: compile subset query %q: %w", src, err)
		}
		q.exprs = append(q.exprs, src)
		q.progs = append(q.progs, prog)
	}
	return q, nil
}

// Len returns the number of queries.
func (q *SubsetQueries) Len() int { return len(q.progs) }

// Exprs returns the query sources in order.
func (q *SubsetQueries) Exprs() []string { return q.exprs }

// Eval scores every query against every record, returning a
// queries × records boolean matrix. Single-row batches are padded to two
// rows before evaluation and the result sliced back, so sources with
// degenerate single-row filtering never reach the evaluation path directly.
func (q *SubsetQueries) Eval(batch *table.Batch) ([][]bool, error) {
	if batch.NumRows() == 1 {
		padded, err := q.Eval(batch.Repeat(2))
		if err != nil {
			return nil, err
		}
		for j := range padded {
			padded[j] = padded[j][:1]
		}
		return padded, nil
	}

	n := batch.NumRows()
	out := make([][]bool, len(q.progs))
	for j := range out {
		out[j] = make([]bool, n)
	}
	env := make(map[string]any, batch.NumCols())
	for r := range n {
		env = batch.Row(r, env)
		for j, prog := range q.progs {
			res, err := expr.Run(prog, env)
			if err != nil {
				return nil, fmt.Errorf("stream: evaluate subset query %q: %w", q.exprs[j], err)
			}
			b, ok := res.(bool)
			if !ok {
				return nil, fmt.Errorf("stream: subset query %q yielded %T, want bool", q.exprs[j], res)
			}
			out[j][r] = b
		}
	}
	return out, nil
}
