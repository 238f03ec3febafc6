package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railway-template-metrics/internal/derived"
	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/ingestion"
	"railway-template-metrics/internal/ingestion/stub"
	"railway-template-metrics/internal/observability"
	"railway-template-metrics/internal/storage"
	"railway-template-metrics/internal/storage/memory"
)

var cycleAt = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

type testStores struct {
	earnings  *memory.EarningsStore
	snapshots *memory.TemplateSnapshotStore
	derived   storage.DerivedMetricsStore
}

func createTestStores() *testStores {
	return &testStores{
		earnings:  memory.NewEarningsStore(),
		snapshots: memory.NewTemplateSnapshotStore(),
		derived:   memory.NewDerivedMetricsStore(),
	}
}

func newOrchestrator(stores *testStores, es ingestion.EarningsSource, ts ingestion.TemplateSource, m *observability.Metrics) *Orchestrator {
	logger, _ := logtest.NewNullLogger()
	return New(Options{
		EarningsSource: es,
		TemplateSource: ts,
		Writer: ingestion.NewWriter(ingestion.WriterOptions{
			EarningsStore: stores.earnings,
			SnapshotStore: stores.snapshots,
			Logger:        logger,
		}),
		Calculator: derived.NewCalculator(derived.Options{
			SnapshotStore: stores.snapshots,
			DerivedStore:  stores.derived,
			Logger:        logger,
		}),
		Metrics: m,
		Logger:  logger,
	})
}

func TestOrchestrator_Run_FullCycle(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("test", reg)

	earnings := stub.NewEarningsSource(&domain.EarningsRecord{LifetimeEarnings: 50000})
	templates := stub.NewTemplateSource(
		stub.Template("tpl-a", 200, 91, 7, 100000, 90),
		stub.Template("tpl-b", 10, 5, 1, 20000, 50),
	)

	orch := newOrchestrator(stores, earnings, templates, m)
	result, err := orch.Run(ctx, cycleAt)
	require.NoError(t, err)

	assert.NotEmpty(t, result.CycleID)
	assert.Equal(t, ingestion.BatchResult{Submitted: 2, Inserted: 2}, result.Batch)
	assert.NoError(t, result.DerivedErr)
	assert.Len(t, result.Derived.Records, 2)
	assert.Equal(t, int64(50000), result.Earnings.LifetimeEarnings)

	rows, err := stores.derived.GetByCalculatedAt(ctx, cycleAt)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "tpl-a", rows[0].TemplateID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(observability.StatusSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SnapshotsInserted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DerivedRowsWritten))
}

func TestOrchestrator_Run_EmptyTemplates(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()

	orch := newOrchestrator(stores, stub.NewEarningsSource(nil), stub.NewTemplateSource(), nil)
	result, err := orch.Run(ctx, cycleAt)
	require.NoError(t, err)

	assert.Equal(t, ingestion.BatchResult{}, result.Batch)
	assert.NoError(t, result.DerivedErr)
	assert.Empty(t, result.Derived.Records)

	snaps, err := stores.snapshots.GetByCollectedAt(ctx, cycleAt)
	require.NoError(t, err)
	assert.Empty(t, snaps)

	rows, err := stores.derived.GetLatest(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = stores.earnings.GetLatest(ctx)
	assert.NoError(t, err, "earnings are stored even without templates")
}

func TestOrchestrator_Run_FetchFailureAbortsCycle(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()

	templates := stub.NewTemplateSource(stub.Template("tpl-a", 1, 1, 1, 1, 1))
	templates.Err = errors.New("upstream unavailable")

	orch := newOrchestrator(stores, stub.NewEarningsSource(nil), templates, nil)
	_, err := orch.Run(ctx, cycleAt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch templates")

	_, err = stores.earnings.GetLatest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound, "nothing is written when a fetch fails")
}

func TestOrchestrator_Run_ValidationFailureAbortsCycle(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()

	bad := stub.Template("tpl-bad", 1, 1, 1, 1, 0)
	bad.RawHealth = json.RawMessage(`"excellent"`)

	orch := newOrchestrator(stores, stub.NewEarningsSource(nil), stub.NewTemplateSource(bad), nil)
	_, err := orch.Run(ctx, cycleAt)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	snaps, err := stores.snapshots.GetByCollectedAt(ctx, cycleAt)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestOrchestrator_Run_RepeatedTimestampIsStorageFault(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()

	orch := newOrchestrator(stores, stub.NewEarningsSource(nil),
		stub.NewTemplateSource(stub.Template("tpl-a", 1, 1, 1, 1, 1)), nil)

	_, err := orch.Run(ctx, cycleAt)
	require.NoError(t, err)

	_, err = orch.Run(ctx, cycleAt)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	snaps, err := stores.snapshots.GetByCollectedAt(ctx, cycleAt)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

type failingDerivedStore struct {
	*memory.DerivedMetricsStore
}

func (failingDerivedStore) Upsert(context.Context, []*domain.DerivedMetrics) error {
	return errors.New("constraint violated")
}

func TestOrchestrator_Run_DerivedFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	stores.derived = failingDerivedStore{memory.NewDerivedMetricsStore()}
	m := observability.NewMetrics("test", prometheus.NewRegistry())

	orch := newOrchestrator(stores, stub.NewEarningsSource(nil),
		stub.NewTemplateSource(stub.Template("tpl-a", 10, 5, 1, 100, 80)), m)

	result, err := orch.Run(ctx, cycleAt)
	require.NoError(t, err)
	assert.Error(t, result.DerivedErr)
	assert.Equal(t, 1, result.Batch.Inserted)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(observability.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CalculationFailures))
}

func TestOrchestrator_Run_SecondCycleSeesHistory(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()

	templates := stub.NewTemplateSource(stub.Template("tpl-a", 10, 5, 1, 1000, 80))
	orch := newOrchestrator(stores, stub.NewEarningsSource(nil), templates, nil)

	_, err := orch.Run(ctx, cycleAt)
	require.NoError(t, err)

	templates.Templates = []*ingestion.RawTemplate{stub.Template("tpl-a", 12, 7, 2, 1700, 80)}
	result, err := orch.Run(ctx, cycleAt.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, result.Derived.Records, 1)

	r := result.Derived.Records[0]
	assert.Equal(t, int64(700), r.RevenueGrowth24h)
	assert.Equal(t, int64(700), r.RevenueGrowth7d)
	assert.Equal(t, int64(100), r.AvgDailyRevenue7d)
	assert.Equal(t, int64(2), r.ActiveProjectsChange30d)
}

func TestNew_DefaultsLogger(t *testing.T) {
	orch := New(Options{})
	assert.Equal(t, logrus.StandardLogger(), orch.logger)

	_, err := orch.Run(context.Background(), cycleAt)
	assert.Error(t, err)
}
