package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/adalundhe/subpop/core/stats"
	"github.com/adalundhe/subpop/core/stream"
)

var (
	statsVersion    string
	statsOut        string
	statsSampleSize int
	statsSeed       uint64
	statsChunkSize  int
)

var statsCmd = &cobra.Command{
	Use:   "stats [files...]",
	Short: "Build a statistics bundle from record files",
	Long: `Streams the given record files once, accumulating per-feature means and
standard deviations, ordered category counts, the total record count, and a
seeded reservoir reference sample, then writes the bundle to a SQLite
database for later embedding runs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(args)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsVersion, "survey-version", "", "survey version of the input files (required)")
	statsCmd.Flags().StringVar(&statsOut, "out", "stats.db", "output SQLite database")
	statsCmd.Flags().IntVar(&statsSampleSize, "sample-size", stats.DefaultSampleSize, "reference sample size")
	statsCmd.Flags().Uint64Var(&statsSeed, "seed", 1, "reservoir sampling seed")
	statsCmd.Flags().IntVar(&statsChunkSize, "chunk-size", 8192, "records per read chunk")
	statsCmd.MarkFlagRequired("survey-version")
	rootCmd.AddCommand(statsCmd)
}

func runStats(files []string) error {
	builder, err := stats.NewBuilder(statsVersion, statsSampleSize, statsSeed)
	if err != nil {
		return err
	}

	bar := progressbar.Default(-1, "accumulating stats")
	source := stream.CSVSource{}
	for _, path := range files {
		if err := accumulateFile(builder, source, path, bar); err != nil {
			return err
		}
	}
	bar.Finish()

	bundle, err := builder.Finalize()
	if err != nil {
		return err
	}
	if err := stats.Save(statsOut, bundle); err != nil {
		return err
	}
	slog.Info("stats bundle written",
		"path", statsOut,
		"version", bundle.Version,
		"records", bundle.NTotal,
		"sample", bundle.Sample.NumRows(),
	)
	return nil
}

func accumulateFile(builder *stats.Builder, source stream.RecordSource, path string, bar *progressbar.ProgressBar) error {
	reader, err := source.Open(path, statsChunkSize)
	if err != nil {
		return err
	}
	defer reader.Close()
	for {
		batch, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := builder.Add(batch); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		bar.Add(batch.NumRows())
	}
}
