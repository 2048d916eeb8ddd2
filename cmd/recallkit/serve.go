package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"

	"github.com/conorfennell/recallkit/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and re-sync sources periodically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			syncer := a.syncer()
			if a.cfg.SyncInterval > 0 {
				scheduler := gocron.NewScheduler(time.UTC)
				scheduler.SingletonModeAll()
				_, err := scheduler.Every(a.cfg.SyncInterval).Do(func() {
					if _, err := syncer.RunSync(ctx); err != nil {
						a.logger.Error("scheduled sync failed", "error", err)
					}
				})
				if err != nil {
					return fmt.Errorf("failed to schedule sync: %w", err)
				}
				scheduler.StartAsync()
				defer scheduler.Stop()
				a.logger.Info("periodic sync enabled", "interval", a.cfg.SyncInterval)
			}

			srv := &http.Server{
				Addr:              a.cfg.Listen,
				Handler:           web.NewServer(a.db, a.driver(), syncer, a.clock, a.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				a.logger.Info("server starting", "addr", srv.Addr)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			a.logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shut down server: %w", err)
			}
			return nil
		},
	}
}
