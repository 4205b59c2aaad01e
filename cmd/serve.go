package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foodguide/stallsync/internal/model"
	"github.com/foodguide/stallsync/internal/server"
	"github.com/foodguide/stallsync/internal/syncer"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync trigger and catalog API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initSyncEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Sync.AdminToken == "" {
			zap.L().Warn("sync.admin_token not set, sync trigger is unauthenticated")
		}

		api := server.New(server.Deps{
			Runner:     env.Syncer,
			Catalog:    env.Store,
			Geocoder:   env.Geocoder,
			AdminToken: cfg.Sync.AdminToken,
		})

		if cfg.Sync.Schedule != "" {
			c := cron.New()
			if err := scheduleSync(ctx, c, cfg.Sync.Schedule, env.Syncer); err != nil {
				return err
			}
			c.Start()
			defer c.Stop()
			zap.L().Info("scheduled sync enabled", zap.String("schedule", cfg.Sync.Schedule))
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// scheduleSync registers a sync run on spec. Specs use the six-field form
// with seconds, or descriptors such as "@every 1h".
func scheduleSync(ctx context.Context, c *cron.Cron, spec string, runner server.Runner) error {
	if err := c.AddFunc(spec, cronJob(ctx, runner)); err != nil {
		return eris.Wrapf(err, "invalid sync.schedule %q", spec)
	}
	return nil
}

// cronJob runs one sync in the configured default mode. An overlapping
// apply is reported as a failed run by the orchestrator.
func cronJob(ctx context.Context, runner server.Runner) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		summary, err := runner.Run(ctx, syncer.Request{Trigger: model.TriggerCron})
		if err != nil {
			zap.L().Error("scheduled sync failed", zap.Error(err))
			return
		}
		zap.L().Info("scheduled sync complete",
			zap.String("run_id", summary.RunID),
			zap.String("status", string(summary.Status)),
		)
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
