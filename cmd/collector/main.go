// Package main provides the collector service:
// - collect: run one collection cycle now
// - serve: run cycles on a schedule and expose /health, /metrics, /status
// - migrate: apply PostgreSQL and ClickHouse schema migrations
// - recompute, verify: rebuild or check derived metrics of stored cycles
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"railway-template-metrics/internal/config"
)

type rootFlags struct {
	envFile   string
	logLevel  string
	logFormat string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "collector",
		Short:         "Collect Railway template snapshots and derive growth metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Optional .env file; never overrides variables already set")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (default from LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format: text or json (default from LOG_FORMAT)")

	root.AddCommand(
		newCollectCmd(flags),
		newServeCmd(flags),
		newMigrateCmd(flags),
		newRecomputeCmd(flags),
		newVerifyCmd(flags),
	)
	return root
}

// load reads .env and the environment, applies flag overrides and configures logging.
func (f *rootFlags) load() (*config.Config, *log.Logger, error) {
	if err := config.LoadEnvFile(f.envFile); err != nil {
		return nil, nil, err
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.logFormat != "" {
		cfg.LogFormat = f.logFormat
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// fail logs err and returns it so cobra exits non-zero.
func fail(logger log.FieldLogger, msg string, err error) error {
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger.WithError(err).Error(msg)
	return err
}
