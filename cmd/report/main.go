// Package main provides read-only leaderboard reports over derived metrics.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"railway-template-metrics/internal/config"
	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/reporting"
	"railway-template-metrics/internal/storage"
	chstore "railway-template-metrics/internal/storage/clickhouse"
	pgstore "railway-template-metrics/internal/storage/postgres"
)

const (
	backendPostgres   = "postgres"
	backendClickhouse = "clickhouse"
)

type reportFlags struct {
	envFile string
	backend string
	format  string
	output  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &reportFlags{}

	root := &cobra.Command{
		Use:           "report",
		Short:         "Print template leaderboards from stored derived metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Optional .env file; never overrides variables already set")
	root.PersistentFlags().StringVar(&flags.backend, "backend", backendPostgres, "Read from postgres or clickhouse")
	root.PersistentFlags().StringVar(&flags.format, "format", "table", "Output format: table, csv or markdown")
	root.PersistentFlags().StringVar(&flags.output, "output", "", "Write to file instead of stdout")

	root.AddCommand(newTopCmd(flags), newLatestCmd(flags))
	return root
}

func newTopCmd(flags *reportFlags) *cobra.Command {
	var (
		field string
		n     int
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the best templates by a derived metric",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.run(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, g *reporting.Generator) (*reporting.Report, error) {
				return g.Top(ctx, domain.RankField(field), n)
			})
		},
	}
	cmd.Flags().StringVar(&field, "field", string(domain.RankByProfitabilityScore),
		"Rank by profitability_score, revenue_growth_7d, revenue_growth_30d or avg_daily_revenue_30d")
	cmd.Flags().IntVarP(&n, "n", "n", 10, "Number of templates")
	return cmd
}

func newLatestCmd(flags *reportFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the latest derived metrics of every template",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.run(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, g *reporting.Generator) (*reporting.Report, error) {
				return g.Latest(ctx)
			})
		},
	}
}

type buildFunc func(ctx context.Context, g *reporting.Generator) (*reporting.Report, error)

func (f *reportFlags) run(ctx context.Context, stdout io.Writer, build buildFunc) error {
	if err := validateFormat(f.format); err != nil {
		return err
	}
	if err := config.LoadEnvFile(f.envFile); err != nil {
		return err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if err := config.ConfigureLogger(log.StandardLogger(), cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	derivedStore, earningsStore, cleanup, err := openStores(connectCtx, cfg, f.backend)
	if err != nil {
		return err
	}
	defer cleanup()

	r, err := build(ctx, reporting.NewGenerator(derivedStore, earningsStore))
	if err != nil {
		return err
	}

	out := stdout
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			return fmt.Errorf("create %s: %w", f.output, err)
		}
		defer file.Close()
		out = file
	}
	if err := render(out, r, f.format); err != nil {
		return err
	}
	if f.output != "" {
		log.WithField("path", f.output).Info("report written")
	}
	return nil
}

// openStores returns the derived store for backend. Earnings live in PostgreSQL
// only, so the clickhouse backend reports without the earnings summary.
func openStores(ctx context.Context, cfg *config.Config, backend string) (storage.DerivedMetricsStore, storage.EarningsStore, func(), error) {
	switch backend {
	case backendPostgres:
		if err := cfg.ValidateDatabase(); err != nil {
			return nil, nil, nil, err
		}
		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return pgstore.NewDerivedMetricsStore(pool), pgstore.NewEarningsStore(pool), pool.Close, nil

	case backendClickhouse:
		if cfg.ClickhouseDSN == "" {
			return nil, nil, nil, fmt.Errorf("missing required configuration: %s", config.EnvClickhouseDSN)
		}
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		return chstore.NewDerivedMetricsStore(conn), nil, func() { conn.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported backend %q (use %s or %s)", backend, backendPostgres, backendClickhouse)
	}
}

func validateFormat(format string) error {
	switch format {
	case "table", "csv", "markdown":
		return nil
	}
	return fmt.Errorf("unsupported format %q (use table, csv or markdown)", format)
}

func render(w io.Writer, r *reporting.Report, format string) error {
	switch format {
	case "csv":
		out, err := reporting.RenderCSV(r.Rows)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case "markdown":
		_, err := io.WriteString(w, reporting.RenderMarkdown(r))
		return err
	default:
		return reporting.RenderTable(w, r)
	}
}
