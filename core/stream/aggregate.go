package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/exp/rand"

	"github.com/adalundhe/subpop/core/embed"
	"github.com/adalundhe/subpop/core/encode"
	"github.com/adalundhe/subpop/core/schema"
	"github.com/adalundhe/subpop/core/stats"
)

// ProgressFunc receives the cumulative record count read across all files.
// Purely observational; a nil func changes nothing.
type ProgressFunc func(read int)

// Options configures one Embeddings run.
type Options struct {
	// NumFreqs is the RFF frequency count; the embedding dimension is twice
	// this. Ignored when Freqs is supplied.
	NumFreqs int
	// Freqs, when non-nil, is reused instead of sampling new frequencies.
	Freqs *embed.Frequencies
	// Bandwidth overrides the median heuristic when positive.
	Bandwidth float64
	// ChunkSize bounds the records held in memory at once.
	ChunkSize int
	// SkipRFF disables the RFF embedding entirely.
	SkipRFF bool
	// Orthogonal selects ORF over plain Gaussian frequency sampling.
	Orthogonal bool
	// Source seeds frequency sampling; nil uses the process-start source.
	Source rand.Source
	// SkipFeats names features to leave out of the encoding.
	SkipFeats []string
	// SkipAllocFlags additionally skips every allocation flag of the
	// bundle's version.
	SkipAllocFlags bool
	// Subsets is the comma-separated subpopulation query list.
	Subsets string
	// SqueezeQueries drops the query axis when exactly one query ran.
	SqueezeQueries bool
	// WeightColumn names the replicate-weight column.
	WeightColumn string
	// Progress receives cumulative records read, if non-nil.
	Progress ProgressFunc
	// Logger receives run milestones, if non-nil.
	Logger *slog.Logger
}

// DefaultOptions mirrors the defaults of the original batch pipeline.
func DefaultOptions() Options {
	return Options{
		NumFreqs:       2048,
		ChunkSize:      8192,
		Orthogonal:     true,
		SkipAllocFlags: true,
		Subsets:        "PWGTP > 0",
		SqueezeQueries: true,
		WeightColumn:   "PWGTP",
	}
}

// Result holds one embedding set per (file, query) pair. Linear, RFF, and
// RegionWeights are indexed by file; per file the linear embedding is
// NumFeats × NumQueries row-major, the RFF embedding 2·NumFreqs × NumQueries,
// and RegionWeights has one total weight per query. Freqs and Bandwidth are
// populated only when they were resolved inside the run.
type Result struct {
	Linear        [][]float64
	RFF           [][]float64
	RegionWeights [][]float64

	NumFeats   int
	NumFreqs   int
	NumQueries int
	Squeezed   bool

	Freqs     *embed.Frequencies
	Bandwidth float64
	FeatNames []string
}

// LinearAt returns the linear embedding vector for one (file, query) pair.
func (r *Result) LinearAt(file, query int) []float64 {
	return column(r.Linear[file], r.NumFeats, r.NumQueries, query)
}

// RFFAt returns the RFF embedding vector for one (file, query) pair.
func (r *Result) RFFAt(file, query int) []float64 {
	return column(r.RFF[file], 2*r.NumFreqs, r.NumQueries, query)
}

func column(flat []float64, rows, cols, j int) []float64 {
	out := make([]float64, rows)
	for i := range rows {
		out[i] = flat[i*cols+j]
	}
	return out
}

// Embeddings runs the full chunked pipeline: for every file, read batches
// of at most ChunkSize records, score the subset queries, encode the kept
// rows, embed them under per-query weights, and recombine the chunk pieces
// by weight ratio into one embedding per query — numerically the embedding
// of the whole file, at one chunk's peak memory.
func Embeddings(ctx context.Context, source RecordSource, files []string, bundle *stats.Bundle, opts Options) (*Result, error) {
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	info, err := schema.Lookup(bundle.Version)
	if err != nil {
		return nil, err
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultOptions().ChunkSize
	}
	if opts.NumFreqs <= 0 {
		opts.NumFreqs = DefaultOptions().NumFreqs
	}
	if opts.WeightColumn == "" {
		opts.WeightColumn = info.WeightCol
	}
	if opts.Subsets == "" {
		opts.Subsets = opts.WeightColumn + " > 0"
	}

	skip := make(map[string]struct{}, len(opts.SkipFeats))
	for _, f := range opts.SkipFeats {
		skip[f] = struct{}{}
	}
	if opts.SkipAllocFlags {
		for _, f := range info.AllocFlags {
			skip[f] = struct{}{}
		}
	}

	nf, err := encode.NumFeatures(bundle, skip)
	if err != nil {
		return nil, err
	}
	featNames, err := encode.FeatureNames(bundle, skip)
	if err != nil {
		return nil, err
	}

	res := &Result{
		NumFeats:  nf,
		FeatNames: featNames,
	}

	freqs := opts.Freqs
	if !opts.SkipRFF {
		if freqs == nil {
			bw := opts.Bandwidth
			if bw <= 0 {
				if opts.Logger != nil {
					opts.Logger.Info("picking bandwidth by median heuristic")
				}
				bw, err = embed.PickBandwidth(bundle, skip)
				if err != nil {
					return nil, err
				}
				if opts.Logger != nil {
					opts.Logger.Info("picked bandwidth", "bandwidth", bw)
				}
			}
			freqs, err = embed.PickFreqs(nf, opts.NumFreqs, bw, opts.Orthogonal, opts.Source)
			if err != nil {
				return nil, err
			}
			res.Freqs = freqs
			res.Bandwidth = bw
		} else if freqs.NumFeats != nf {
			return nil, fmt.Errorf("stream: supplied frequencies cover %d features, encoding has %d", freqs.NumFeats, nf)
		}
		res.NumFreqs = freqs.NumFreqs
	}

	queries, err := CompileSubsets(opts.Subsets)
	if err != nil {
		return nil, err
	}
	q := queries.Len()
	res.NumQueries = q

	res.Linear = make([][]float64, len(files))
	if !opts.SkipRFF {
		res.RFF = make([][]float64, len(files))
	}
	res.RegionWeights = make([][]float64, len(files))

	// One encode buffer serves every chunk of every file.
	buf := make([]float64, opts.ChunkSize*nf)
	read := 0

	for fileIdx, path := range files {
		agg := newFileAccumulator(nf, q, freqs, opts.SkipRFF)
		if err := runFile(ctx, source, path, bundle, skip, queries, opts, buf, &read, agg); err != nil {
			return nil, fmt.Errorf("stream: %s: %w", path, err)
		}
		lin, rff := agg.finalize()
		res.Linear[fileIdx] = lin
		if !opts.SkipRFF {
			res.RFF[fileIdx] = rff
		}
		res.RegionWeights[fileIdx] = agg.totalW
		if opts.Logger != nil {
			opts.Logger.Debug("file embedded", "path", path, "chunks", len(agg.linPieces))
		}
	}

	if q == 1 && opts.SqueezeQueries {
		res.Squeezed = true
	}
	return res, nil
}

func runFile(ctx context.Context, source RecordSource, path string, bundle *stats.Bundle,
	skip map[string]struct{}, queries *SubsetQueries, opts Options,
	buf []float64, read *int, agg *fileAccumulator) error {

	reader, err := source.Open(path, opts.ChunkSize)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		*read += batch.NumRows()
		if opts.Progress != nil {
			opts.Progress(*read)
		}

		which, err := queries.Eval(batch)
		if err != nil {
			return err
		}

		keep := make([]bool, batch.NumRows())
		for _, row := range which {
			for r, m := range row {
				keep[r] = keep[r] || m
			}
		}
		kept, err := batch.SelectRows(keep)
		if err != nil {
			return err
		}
		if kept.NumRows() == 0 {
			continue
		}

		weights, err := kept.Column(opts.WeightColumn)
		if err != nil {
			return err
		}
		wts := tileWeights(weights, which, keep)

		need := kept.NumRows() * agg.nf
		if need > len(buf) {
			// A source handed back a batch larger than ChunkSize.
			buf = make([]float64, need)
		}
		feats := buf[:need]
		if err := encode.EncodeInto(kept, bundle, skip, feats); err != nil {
			return err
		}
		if err := agg.addChunk(feats, kept.NumRows(), wts); err != nil {
			return err
		}
	}
}

// tileWeights builds the q × kept row-major weight matrix: each kept
// record's replicate weight, zeroed where that query did not select it.
func tileWeights(weights []float64, which [][]bool, keep []bool) []float64 {
	q := len(which)
	kn := len(weights)
	wts := make([]float64, q*kn)
	for j, row := range which {
		i := 0
		for r, m := range keep {
			if !m {
				continue
			}
			if row[r] {
				wts[j*kn+i] = weights[i]
			}
			i++
		}
	}
	return wts
}

// fileAccumulator keeps one file's chunk-level embedding pieces and weight
// sums until finalize recombines them.
type fileAccumulator struct {
	nf, q     int
	freqs     *embed.Frequencies
	skipRFF   bool
	linPieces [][]float64
	rffPieces [][]float64
	chunkW    [][]float64
	totalW    []float64
}

func newFileAccumulator(nf, q int, freqs *embed.Frequencies, skipRFF bool) *fileAccumulator {
	return &fileAccumulator{
		nf:      nf,
		q:       q,
		freqs:   freqs,
		skipRFF: skipRFF,
		totalW:  make([]float64, q),
	}
}

func (a *fileAccumulator) addChunk(feats []float64, n int, wts []float64) error {
	lin := make([]float64, a.nf*a.q)
	if err := embed.Linear(feats, n, a.nf, wts, a.q, lin); err != nil {
		return err
	}
	a.linPieces = append(a.linPieces, lin)

	if !a.skipRFF {
		rff := make([]float64, 2*a.freqs.NumFreqs*a.q)
		if err := embed.RFF(feats, n, a.nf, wts, a.q, a.freqs, rff); err != nil {
			return err
		}
		a.rffPieces = append(a.rffPieces, rff)
	}

	ws := embed.WeightSums(wts, a.q, n)
	a.chunkW = append(a.chunkW, ws)
	for j, w := range ws {
		a.totalW[j] += w
	}
	return nil
}

// finalize combines chunk embeddings by each chunk's share of the file's
// per-query weight mass. Queries with zero total weight keep ratio 0 and an
// all-zero embedding.
func (a *fileAccumulator) finalize() (lin, rff []float64) {
	lin = make([]float64, a.nf*a.q)
	if !a.skipRFF {
		rff = make([]float64, 2*a.freqs.NumFreqs*a.q)
	}
	for k, piece := range a.linPieces {
		for j := range a.q {
			ratio := 0.0
			if a.totalW[j] != 0 {
				ratio = a.chunkW[k][j] / a.totalW[j]
			}
			if ratio == 0 {
				continue
			}
			for i := range a.nf {
				lin[i*a.q+j] += piece[i*a.q+j] * ratio
			}
			if !a.skipRFF {
				rows := 2 * a.freqs.NumFreqs
				rp := a.rffPieces[k]
				for i := range rows {
					rff[i*a.q+j] += rp[i*a.q+j] * ratio
				}
			}
		}
	}
	return lin, rff
}
