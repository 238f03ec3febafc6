package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"railway-template-metrics/internal/orchestrator"
)

func newServeCmd(root *rootFlags) *cobra.Command {
	var (
		useMemory   bool
		interval    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run collection cycles on a schedule and serve /health, /metrics and /status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return fail(nil, "load configuration", err)
			}
			if cmd.Flags().Changed("interval") {
				cfg.CollectInterval = interval
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cfg, logger, appOptions{useMemory: useMemory})
			if err != nil {
				return fail(logger, "initialize collector", err)
			}
			defer a.cleanup()

			scheduler := orchestrator.NewScheduler(orchestrator.SchedulerOptions{
				Runner:   a.orchestrator,
				Interval: cfg.CollectInterval,
				Metrics:  a.metrics,
				Logger:   logger,
			})

			// Channel to signal completion
			done := make(chan struct{})
			defer close(done)

			// Handle shutdown signals
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			go func() {
				select {
				case sig := <-sigCh:
					logger.WithField("signal", sig.String()).Info("initiating graceful shutdown")
					cancel()
				case <-done:
					return
				}

				// Wait for second signal for immediate shutdown
				select {
				case sig := <-sigCh:
					logger.WithField("signal", sig.String()).Warn("forcing immediate shutdown")
					os.Exit(1)
				case <-time.After(30 * time.Second):
					logger.Warn("graceful shutdown timed out after 30s, forcing exit")
					os.Exit(1)
				case <-done:
				}
			}()

			srv := &http.Server{
				Addr:              cfg.MetricsAddr,
				Handler:           newMux(scheduler),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				logger.WithField("addr", cfg.MetricsAddr).Info("starting HTTP server")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.WithError(err).Error("HTTP server error")
				}
			}()

			err = scheduler.Start(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				logger.WithError(serr).Warn("HTTP server shutdown")
			}

			if err != nil && !errors.Is(err, context.Canceled) {
				return fail(logger, "scheduler stopped", err)
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&useMemory, "use-memory", false, "Use in-memory storage instead of PostgreSQL")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Collection interval (default from COLLECT_INTERVAL or 12h)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "HTTP address for /health, /metrics and /status (default from METRICS_ADDR or :9090)")
	return cmd
}
