package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conorfennell/recallkit/internal/calendar"
)

func newSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage card sources (local directories and git repositories)",
	}
	cmd.AddCommand(newSourceAddCmd(), newSourceListCmd(), newSourceRmCmd())
	return cmd
}

func newSourceAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [path or git URL]",
		Short: "Register a source; its cards are imported on the next sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			existing, err := a.db.FindSourceByPath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("source %s already exists with id %d", args[0], existing.ID)
			}
			id, err := a.syncer().AddSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added source %d: %s\n", id, args[0])
			return nil
		},
	}
}

func newSourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sources, err := a.db.GetAllSources(cmd.Context())
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sources configured.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tType\tPath\tLast Scanned")
			for _, src := range sources {
				scanned := "never"
				if src.LastScanned.Valid {
					scanned = calendar.Format(src.LastScanned.Time)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", src.ID, src.Type, src.Path, scanned)
			}
			return w.Flush()
		},
	}
}

func newSourceRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Remove a source and all cards synced from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.db.DeleteSource(cmd.Context(), id); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("source %d not found", id)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed source %d.\n", id)
			return nil
		},
	}
}
