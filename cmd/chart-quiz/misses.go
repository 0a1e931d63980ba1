package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newMissesCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "misses",
		Short: "List chart songs that could not be found on Spotify",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			misses, err := database.Misses().List(ctx, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SONG\tARTIST")
			for _, m := range misses {
				fmt.Fprintf(w, "%s\t%s\n", m.Song, m.Artist)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum rows to show (0 for all)")
	return cmd
}
