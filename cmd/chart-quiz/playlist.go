package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justestif/go-chart-quiz/internal/db"
	"github.com/justestif/go-chart-quiz/internal/playlist"
)

const defaultPlaylistName = "{year}: Songs that peaked between {min} and {max}"

func newPlaylistCmd(a *app) *cobra.Command {
	var (
		minPeak, maxPeak   int
		startYear, endYear int
		name               string
		private            bool
	)

	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Build one playlist per year of songs that peaked in a position range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			filter := db.ChartFilter{MinPeak: minPeak, MaxPeak: maxPeak, StartYear: startYear, EndYear: endYear}.Ordered()
			if err := filter.Validate(); err != nil {
				return err
			}

			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			catalog, closeCatalog, err := a.cliCatalog(ctx)
			if err != nil {
				return err
			}
			defer closeCatalog()

			builder := a.newBuilder(catalog, a.cfg.Playlist.Public && !private, "")

			for year := filter.StartYear; year <= filter.EndYear; year++ {
				entries, err := database.Charts().ForYear(ctx, filter.MinPeak, filter.MaxPeak, year)
				if err != nil {
					return fmt.Errorf("loading %d: %w", year, err)
				}
				if len(entries) == 0 {
					fmt.Fprintf(out, "%d: no chart entries\n", year)
					continue
				}

				title := playlistName(name, year, filter.MinPeak, filter.MaxPeak)
				result, err := builder.Build(ctx, title, entries)
				if result != nil {
					printResult(out, title, result)
				}
				if err != nil {
					return fmt.Errorf("building %q: %w", title, err)
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&minPeak, "min-peak", 16, "highest chart position to include")
	flags.IntVar(&maxPeak, "max-peak", 20, "lowest chart position to include")
	flags.IntVar(&startYear, "start-year", 1952, "first year")
	flags.IntVar(&endYear, "end-year", 2021, "last year")
	flags.StringVar(&name, "name", defaultPlaylistName, "playlist name; {year}, {min} and {max} are substituted")
	flags.BoolVar(&private, "private", false, "create private playlists")
	return cmd
}

func playlistName(format string, year, minPeak, maxPeak int) string {
	return strings.NewReplacer(
		"{year}", strconv.Itoa(year),
		"{min}", strconv.Itoa(minPeak),
		"{max}", strconv.Itoa(maxPeak),
	).Replace(format)
}

func printResult(out io.Writer, title string, result *playlist.Result) {
	fmt.Fprintf(out, "%s: added %d, missed %d\n", title, len(result.Added), len(result.Missed))
	for _, m := range result.Missed {
		reason := "not found"
		if !m.NotFound() {
			reason = m.Reason.Error()
		}
		fmt.Fprintf(out, "  - %s by %s (%s)\n", m.Entry.Song, m.Entry.Artist, reason)
	}
}
