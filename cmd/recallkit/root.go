package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/conorfennell/recallkit/internal/calendar"
	"github.com/conorfennell/recallkit/internal/config"
	"github.com/conorfennell/recallkit/internal/session"
	"github.com/conorfennell/recallkit/internal/storage"
	"github.com/conorfennell/recallkit/internal/sync"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "recallkit",
		Short: "Spaced-repetition flashcards",
		Long: `Recallkit schedules flashcards with a three-button spaced-repetition
algorithm (Mastered, Later, TryAgain). Cards are written by hand or synced
from markdown and .xlsx decks in local directories and git repositories.`,
		SilenceUsage: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(),
		newSyncCmd(),
		newSourceCmd(),
		newCardCmd(),
		newDueCmd(),
		newReviewCmd(),
		newStatsCmd(),
	)
	return root
}

// app bundles what every command needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  calendar.Clock
	db     *storage.DB
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger()

	db, err := storage.Open(cfg.DB, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", cfg.DB, "timezone", loc.String())

	return &app{
		cfg:    cfg,
		logger: logger,
		clock:  calendar.SystemClock{Location: loc},
		db:     db,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func (a *app) driver() *session.Driver {
	return session.NewDriver(a.db, a.db,
		session.WithParams(&a.cfg.Scheduler),
		session.WithClock(a.clock),
		session.WithLogger(a.logger),
	)
}

func (a *app) syncer() *sync.Syncer {
	return sync.New(a.db, a.cfg.ReposDir, a.clock, a.logger)
}
