package cmd

import (
	"context"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/adalundhe/subpop/core/config"
	"github.com/adalundhe/subpop/core/embed"
	"github.com/adalundhe/subpop/core/schema"
	"github.com/adalundhe/subpop/core/stats"
	"github.com/adalundhe/subpop/core/stream"
)

var (
	embedStatsPath  string
	embedOut        string
	embedConfigPath string
	embedSubsets    string
	embedNumFreqs   int
	embedSeed       uint64
	embedSkipRFF    bool
)

var embedCmd = &cobra.Command{
	Use:   "embed [files...]",
	Short: "Compute subpopulation embeddings for record files",
	Long: `Streams each record file in bounded chunks, scores the subpopulation
queries, and writes one linear and (unless skipped) one RFF embedding per
file per query to a SQLite results database, along with region weights,
the bandwidth, and the encoded feature names.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEmbed(cmd.Context(), args)
	},
}

func init() {
	embedCmd.Flags().StringVar(&embedStatsPath, "stats", "stats.db", "stats bundle database")
	embedCmd.Flags().StringVar(&embedOut, "out", "embeddings.db", "output SQLite database")
	embedCmd.Flags().StringVar(&embedConfigPath, "config", "", "YAML run configuration")
	embedCmd.Flags().StringVar(&embedSubsets, "subsets", "", "comma-separated subset queries (overrides config)")
	embedCmd.Flags().IntVar(&embedNumFreqs, "n-freqs", 0, "RFF frequency count (overrides config)")
	embedCmd.Flags().Uint64Var(&embedSeed, "seed", 0, "frequency sampling seed (0 = unseeded)")
	embedCmd.Flags().BoolVar(&embedSkipRFF, "skip-rff", false, "compute only the linear embedding")
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(ctx context.Context, files []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(embedConfigPath)
	if err != nil {
		return err
	}
	if cfg.VersionsFile != "" && cfg.VersionsFile != versionsFile {
		if err := schema.LoadYAMLFile(cfg.VersionsFile); err != nil {
			return err
		}
	}
	if embedSubsets != "" {
		cfg.Subsets = embedSubsets
	}
	if embedNumFreqs > 0 {
		cfg.NumFreqs = embedNumFreqs
	}
	if embedSkipRFF {
		cfg.SkipRFF = true
	}
	if embedSeed != 0 {
		cfg.Seed = embedSeed
	}

	bundle, err := stats.Load(embedStatsPath)
	if err != nil {
		return err
	}

	bar := progressbar.Default(int64(bundle.NTotal), "embedding")
	opts := stream.Options{
		NumFreqs:       cfg.NumFreqs,
		Bandwidth:      cfg.Bandwidth,
		ChunkSize:      cfg.ChunkSize,
		SkipRFF:        cfg.SkipRFF,
		Orthogonal:     cfg.Orthogonal,
		SkipFeats:      cfg.SkipFeats,
		SkipAllocFlags: cfg.SkipAllocFlags,
		Subsets:        cfg.Subsets,
		SqueezeQueries: cfg.SqueezeQueries,
		WeightColumn:   cfg.WeightColumn,
		Progress:       func(read int) { bar.Set(read) },
		Logger:         slog.Default(),
	}
	if cfg.Seed != 0 {
		opts.Source = embed.NewSource(cfg.Seed)
	}

	res, err := stream.Embeddings(ctx, stream.CSVSource{}, files, bundle, opts)
	bar.Finish()
	if err != nil {
		return err
	}

	if err := writeResults(embedOut, files, res); err != nil {
		return err
	}
	slog.Info("embeddings written",
		"path", embedOut,
		"files", len(files),
		"queries", res.NumQueries,
		"features", res.NumFeats,
		"rff_dim", 2*res.NumFreqs,
	)
	return nil
}
