package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conorfennell/recallkit/internal/calendar"
	"github.com/conorfennell/recallkit/internal/domain"
	"github.com/conorfennell/recallkit/internal/queue"
	"github.com/conorfennell/recallkit/internal/session"
)

func newReviewCmd() *cobra.Command {
	var (
		resume   bool
		mode     string
		sourceID int64
	)
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Start an interactive review session",
		Long: `Start a review session over the cards due today (or all unmastered
cards with --mode all). The queue is frozen when the session starts and the
position is saved after every rating, so an interrupted session can be
continued with --resume.`,
		Args: cobra.NoArgs,
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

			driver := a.driver()
			out := cmd.OutOrStdout()

			var snap *session.Snapshot
			if resume {
				snap, err = driver.Latest(cmd.Context())
				if errors.Is(err, session.ErrSessionNotFound) {
					fmt.Fprintln(out, "No session to resume.")
					return nil
				}
				if err != nil {
					return err
				}
				if snap.State() == session.Completed {
					fmt.Fprintln(out, "The last session is already complete.")
					return nil
				}
			} else {
				snap, err = driver.Start(cmd.Context(), m, sourceID)
				if err != nil {
					return err
				}
			}
			return runReview(cmd.Context(), driver, snap, cmd.InOrStdin(), out)
		},
	}
	cmd.Flags().BoolVarP(&resume, "resume", "r", false, "Continue the most recent session")
	cmd.Flags().StringVar(&mode, "mode", "dueOnly", "Queue mode: dueOnly or all")
	cmd.Flags().Int64Var(&sourceID, "source", 0, "Only review cards of this source id")
	return cmd
}

// runReview walks snap card by card until it completes or in runs dry.
func runReview(ctx context.Context, d *session.Driver, snap *session.Snapshot, in io.Reader, out io.Writer) error {
	if snap.State() == session.Completed {
		fmt.Fprintln(out, "No cards due for review today!")
		return nil
	}

	reader := bufio.NewReader(in)
	total := len(snap.QueueCardIDs)
	for {
		card, err := d.Current(ctx, snap)
		if errors.Is(err, session.ErrSessionCompleted) {
			break
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(out, "\n========================================")
		fmt.Fprintf(out, "Card [%d/%d]\n\n%s\n", snap.CurrentIndex+1, total, card.Front)
		fmt.Fprintln(out, "========================================")
		fmt.Fprint(out, "Press Enter to show the answer...")
		if _, err := reader.ReadString('\n'); err != nil {
			return paused(out, err)
		}
		fmt.Fprintf(out, "\n%s\n\n", card.Back)

		rating, err := promptRating(reader, out)
		if err != nil {
			return paused(out, err)
		}

		_, sched, err := d.Rate(ctx, snap, rating)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Next review in %d days (%s).\n", sched.Interval, calendar.Format(sched.NextReviewDate))
	}

	fmt.Fprintln(out, "\nReview session complete!")
	return nil
}

var ratingKeys = map[string]domain.Rating{
	"1": domain.RatingMastered, "m": domain.RatingMastered, "mastered": domain.RatingMastered,
	"2": domain.RatingLater, "l": domain.RatingLater, "later": domain.RatingLater,
	"3": domain.RatingTryAgain, "t": domain.RatingTryAgain, "tryagain": domain.RatingTryAgain,
}

func promptRating(reader *bufio.Reader, out io.Writer) (domain.Rating, error) {
	for {
		fmt.Fprint(out, "Rate: [1] Mastered  [2] Later  [3] TryAgain: ")
		input, err := reader.ReadString('\n')
		if r, ok := ratingKeys[strings.ToLower(strings.TrimSpace(input))]; ok {
			return r, nil
		}
		if err != nil {
			return 0, err
		}
		fmt.Fprintln(out, "Invalid rating, try again.")
	}
}

// paused ends the loop quietly on end of input; the cursor is already saved.
func paused(out io.Writer, err error) error {
	if !errors.Is(err, io.EOF) {
		return err
	}
	fmt.Fprintln(out, "\n\nSession paused. Run `recallkit review --resume` to continue.")
	return nil
}
