package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"railway-template-metrics/internal/storage/migrations"
	pgstore "railway-template-metrics/internal/storage/postgres"
)

func newMigrateCmd(root *rootFlags) *cobra.Command {
	var skipClickhouse bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL migrations, and ClickHouse migrations when CLICKHOUSE_DSN is set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return fail(nil, "load configuration", err)
			}
			if err := cfg.ValidateDatabase(); err != nil {
				return fail(logger, "invalid configuration", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return fail(logger, "connect postgres", err)
			}
			defer pool.Close()

			applied, err := migrations.RunPostgresMigrations(ctx, pool, logger)
			if err != nil {
				return fail(logger, "postgres migrations", err)
			}
			tables, err := migrations.ListTables(ctx, pool)
			if err != nil {
				return fail(logger, "list tables", err)
			}
			logger.WithField("applied", len(applied)).WithField("tables", tables).Info("postgres schema up to date")

			if cfg.ClickhouseDSN == "" || skipClickhouse {
				return nil
			}

			conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, logger)
			if err != nil {
				return fail(logger, "clickhouse migrations", fmt.Errorf("clickhouse: %w", err))
			}
			defer conn.Close()
			logger.Info("clickhouse schema up to date")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipClickhouse, "skip-clickhouse", false, "Only migrate PostgreSQL")
	return cmd
}
