package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var progress bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile all sources into the card store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			syncer := a.syncer()
			if progress {
				syncer.SetProgress(cmd.ErrOrStderr())
			}
			report, err := syncer.RunSync(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Synced %d sources: %d cards parsed, %d new, %d deleted.\n",
				report.Sources, report.Parsed, report.Inserted, report.Deleted)
			if len(report.Errors) > 0 {
				fmt.Fprintln(out, "\nErrors:")
				for _, e := range report.Errors {
					fmt.Fprintf(out, "- %s\n", e)
				}
				return fmt.Errorf("sync finished with %d errors", len(report.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "Show git clone and pull progress")
	return cmd
}
