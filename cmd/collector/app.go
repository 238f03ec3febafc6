package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"railway-template-metrics/internal/config"
	"railway-template-metrics/internal/derived"
	"railway-template-metrics/internal/ingestion"
	"railway-template-metrics/internal/observability"
	"railway-template-metrics/internal/orchestrator"
	"railway-template-metrics/internal/railway"
	"railway-template-metrics/internal/storage"
	chstore "railway-template-metrics/internal/storage/clickhouse"
	"railway-template-metrics/internal/storage/memory"
	pgstore "railway-template-metrics/internal/storage/postgres"
)

// stores holds the storage implementations one cycle needs.
type stores struct {
	earnings  storage.EarningsStore
	snapshots storage.TemplateSnapshotStore
	derived   storage.DerivedMetricsStore
	mirror    storage.DerivedMetricsStore // nil without CLICKHOUSE_DSN
}

// app is the wired collector.
type app struct {
	orchestrator *orchestrator.Orchestrator
	metrics      *observability.Metrics
	cleanup      func()
}

type appOptions struct {
	useMemory bool
	registry  prometheus.Registerer
}

func newApp(ctx context.Context, cfg *config.Config, logger *log.Logger, opts appOptions) (*app, error) {
	if opts.useMemory {
		if err := cfg.ValidateUpstream(); err != nil {
			return nil, err
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, cleanup, err := openStores(ctx, cfg, opts.useMemory, logger)
	if err != nil {
		return nil, err
	}

	clientOpts := []railway.ClientOption{railway.WithLogger(logger)}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, railway.WithEndpoint(cfg.Endpoint))
	}
	client := railway.NewClient(cfg.APIToken, cfg.CustomerID, cfg.WorkspaceID, clientOpts...)

	m := observability.NewMetrics("railway_templates", opts.registry)

	orch := orchestrator.New(orchestrator.Options{
		EarningsSource: client,
		TemplateSource: client,
		Writer: ingestion.NewWriter(ingestion.WriterOptions{
			EarningsStore: st.earnings,
			SnapshotStore: st.snapshots,
			Logger:        logger,
		}),
		Calculator: derived.NewCalculator(derived.Options{
			SnapshotStore: st.snapshots,
			DerivedStore:  st.derived,
			Mirror:        st.mirror,
			Logger:        logger,
		}),
		Metrics: m,
		Logger:  logger,
	})

	return &app{orchestrator: orch, metrics: m, cleanup: cleanup}, nil
}

// openStores connects to PostgreSQL and, when configured, the ClickHouse mirror.
// With useMemory every store is in-process and nothing survives the process.
func openStores(ctx context.Context, cfg *config.Config, useMemory bool, logger log.FieldLogger) (*stores, func(), error) {
	if useMemory {
		logger.Warn("using in-memory storage, snapshots will not be persisted")
		return &stores{
			earnings:  memory.NewEarningsStore(),
			snapshots: memory.NewTemplateSnapshotStore(),
			derived:   memory.NewDerivedMetricsStore(),
		}, func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgstore.NewPool(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	logger.Info("connected to postgres")

	st := &stores{
		earnings:  pgstore.NewEarningsStore(pool),
		snapshots: pgstore.NewTemplateSnapshotStore(pool),
		derived:   pgstore.NewDerivedMetricsStore(pool),
	}
	cleanup := func() { pool.Close() }

	if cfg.ClickhouseDSN == "" {
		return st, cleanup, nil
	}

	conn, err := chstore.NewConn(connectCtx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect clickhouse: %w", err)
	}
	logger.Info("connected to clickhouse, mirroring derived metrics")

	st.mirror = chstore.NewDerivedMetricsStore(conn)
	cleanup = func() {
		conn.Close()
		pool.Close()
	}
	return st, cleanup, nil
}
