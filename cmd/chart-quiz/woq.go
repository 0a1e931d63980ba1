package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/justestif/go-chart-quiz/internal/playlist"
)

func newWoqCmd(a *app) *cobra.Command {
	var (
		startYear, endYear int
		maxPeak, attempts  int
		name               string
		private            bool
	)

	cmd := &cobra.Command{
		Use:   "woq",
		Short: "Build a single playlist with one random hit from every year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if name == "" {
				name = "WoQ " + time.Now().Format("January 2006")
			}

			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			entries, err := playlist.SampleYears(ctx, database.Charts(), playlist.SampleOptions{
				StartYear:       startYear,
				EndYear:         endYear,
				MaxPeak:         maxPeak,
				AttemptsPerYear: attempts,
				Logger:          a.logger.Named("woq"),
			})
			if err != nil {
				return fmt.Errorf("sampling years: %w", err)
			}
			if len(entries) == 0 {
				return fmt.Errorf("no entries sampled between %d and %d", startYear, endYear)
			}

			catalog, closeCatalog, err := a.cliCatalog(ctx)
			if err != nil {
				return err
			}
			defer closeCatalog()

			description := fmt.Sprintf("One top %d hit from each year %d-%d", maxPeak, startYear, endYear)
			builder := a.newBuilder(catalog, a.cfg.Playlist.Public && !private, description)

			result, err := builder.Build(ctx, name, entries)
			if result != nil {
				printResult(cmd.OutOrStdout(), name, result)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&startYear, "start-year", 1952, "first year")
	flags.IntVar(&endYear, "end-year", time.Now().Year()-1, "last year")
	flags.IntVar(&maxPeak, "max-peak", playlist.DefaultSampleMaxPeak, "draw peaks from 1 to this position")
	flags.IntVar(&attempts, "attempts", playlist.DefaultSampleAttempts, "draws per year before skipping it")
	flags.StringVar(&name, "name", "", "playlist name (default \"WoQ <Month Year>\")")
	flags.BoolVar(&private, "private", false, "create a private playlist")
	return cmd
}
