package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conorfennell/recallkit/internal/queue"
)

func newDueCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "due",
		Short: "Show the cards a review session would start with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := queue.ParseMode(mode)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cards, err := a.db.ListCards(cmd.Context())
			if err != nil {
				return err
			}
			selected := queue.Select(cards, a.clock.Today(), m)

			out := cmd.OutOrStdout()
			if len(selected) == 0 {
				fmt.Fprintln(out, "No cards due today.")
				return nil
			}
			fmt.Fprintf(out, "%d cards to review:\n\n", len(selected))

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFront\tStatus\tInterval\tNext Review")
			for _, c := range selected {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", shortID(c.ID), truncate(c.Front, 40), c.Status, c.Interval, formatDay(c.NextReviewDate))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "dueOnly", "Queue mode: dueOnly or all")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens s to n runes on a single line.
func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
