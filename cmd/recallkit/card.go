package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/conorfennell/recallkit/internal/calendar"
	"github.com/conorfennell/recallkit/internal/domain"
)

func newCardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Add and inspect cards",
	}
	cmd.AddCommand(newCardAddCmd(), newCardShowCmd())
	return cmd
}

func newCardAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [front] [back]",
		Short: "Add a card by hand; it is due today",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			card := domain.NewCard(uuid.NewString(), args[0], args[1], a.clock.Today())
			if err := a.db.InsertCard(cmd.Context(), card); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added card %s (next review: %s)\n", card.ID, calendar.Format(*card.NextReviewDate))
			return nil
		},
	}
}

func newCardShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a card with its review history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			card, err := a.db.FindCard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if card == nil {
				return fmt.Errorf("%w: %s", domain.ErrCardNotFound, args[0])
			}
			logs, err := a.db.ReviewsForCard(cmd.Context(), card.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Front:       %s\n", card.Front)
			fmt.Fprintf(out, "Back:        %s\n", card.Back)
			fmt.Fprintf(out, "Status:      %s\n", card.Status)
			fmt.Fprintf(out, "Interval:    %d days\n", card.Interval)
			fmt.Fprintf(out, "Next review: %s\n", formatDay(card.NextReviewDate))
			if len(logs) == 0 {
				fmt.Fprintln(out, "\nNever reviewed.")
				return nil
			}

			fmt.Fprintln(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "Reviewed\tRating\tInterval")
			for _, l := range logs {
				fmt.Fprintf(w, "%s\t%s\t%d\n", calendar.Format(l.ReviewedOn), l.Rating, l.Interval)
			}
			return w.Flush()
		},
	}
}

// formatDay prints an optional day; nil means the card is due now.
func formatDay(t *time.Time) string {
	if t == nil {
		return "now"
	}
	return calendar.Format(*t)
}
