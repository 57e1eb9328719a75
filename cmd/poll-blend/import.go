package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourusername/poll-blend/internal/service"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		input   string
		format  string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a corpus file or URL into the database",
		Long: `Reads observations from --input, or from the configured file or http
corpus source, and inserts them into the observations table. With --replace,
stored observations of every imported election are deleted first.`,
		Example: `  poll-blend import --input data/observations.csv --replace`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repos, err := a.requireRepositories(ctx, "import")
			if err != nil {
				return err
			}
			src, err := a.source(ctx, input, format)
			if err != nil {
				return err
			}

			stats, err := service.NewImportService(repos.Observation, a.log).Import(ctx, src, replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d observations from %d elections (%d replaced) in %s\n",
				stats.Inserted, stats.Elections, stats.Replaced, stats.Duration)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Corpus CSV file (default: configured corpus source)")
	cmd.Flags().StringVar(&format, "format", "", "Corpus format: standard or raw (default: corpus.format)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace stored observations of the imported elections")
	return cmd
}
