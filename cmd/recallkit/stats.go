package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.db.Stats(cmd.Context(), a.clock.Today())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Statistics")
			fmt.Fprintln(out, "----------")
			fmt.Fprintf(out, "Total cards:    %d\n", stats.Total)
			fmt.Fprintf(out, "New:            %d\n", stats.New)
			fmt.Fprintf(out, "Learning:       %d\n", stats.Learning)
			fmt.Fprintf(out, "Mastered:       %d\n", stats.Mastered)
			fmt.Fprintf(out, "Due today:      %d\n", stats.Due)
			fmt.Fprintf(out, "Reviewed today: %d\n", stats.ReviewedToday)
			return nil
		},
	}
}
