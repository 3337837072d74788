// Package cmd provides the subpop command-line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adalundhe/subpop/core/schema"
)

var versionsFile string

var rootCmd = &cobra.Command{
	Use:   "subpop",
	Short: "subpop - subpopulation mean embeddings over survey microdata",
	Long: `subpop summarizes weighted survey record files into fixed-size numeric
embeddings per subpopulation query: a weighted-mean linear embedding and a
random-Fourier-feature approximation of a Gaussian-kernel mean embedding.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if versionsFile == "" {
			return nil
		}
		return schema.LoadYAMLFile(versionsFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&versionsFile, "versions", "",
		"YAML file of additional survey version schemas")
}

func Execute() error {
	return rootCmd.Execute()
}
