package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/storage"
)

func snapshot(at time.Time, id string, total, active int64) *domain.TemplateSnapshot {
	return &domain.TemplateSnapshot{
		CollectedAt:      at,
		TemplateID:       id,
		Code:             "code-" + id,
		Name:             "Template " + id,
		Category:         "Starters",
		Status:           "PUBLISHED",
		IsApproved:       true,
		Tags:             []string{"postgres", "api"},
		Health:           87,
		Projects:         100,
		ActiveProjects:   active,
		RecentProjects:   5,
		TotalPayout:      total,
		RetentionRate:    45.5,
		RevenuePerActive: 1234,
		GrowthMomentum:   11.11,
	}
}

func TestTemplateSnapshotStore_InsertBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTemplateSnapshotStore(pool)
	ctx := context.Background()

	res, err := store.InsertBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, storage.InsertResult{}, res)

	batch := []*domain.TemplateSnapshot{
		snapshot(t0, "tpl-b", 2000, 20),
		snapshot(t0, "tpl-a", 1000, 10),
	}
	res, err = store.InsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, storage.InsertResult{Inserted: 2}, res)

	got, err := store.GetByCollectedAt(ctx, t0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "tpl-a", got[0].TemplateID)
	assert.Equal(t, []string{"postgres", "api"}, got[0].Tags)
	assert.Empty(t, got[0].Languages)
	assert.Equal(t, 87, got[0].Health)
	assert.Equal(t, 45.5, got[0].RetentionRate)
	assert.Equal(t, 11.11, got[0].GrowthMomentum)
	assert.Equal(t, int64(1234), got[0].RevenuePerActive)
	assert.True(t, t0.Equal(got[0].CollectedAt))
}

func TestTemplateSnapshotStore_InsertBatchIsIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTemplateSnapshotStore(pool)
	ctx := context.Background()

	_, err := store.InsertBatch(ctx, []*domain.TemplateSnapshot{snapshot(t0, "tpl-a", 1000, 10)})
	require.NoError(t, err)

	res, err := store.InsertBatch(ctx, []*domain.TemplateSnapshot{
		snapshot(t0, "tpl-a", 9999, 99),
		snapshot(t0, "tpl-b", 500, 5),
	})
	require.NoError(t, err)
	assert.Equal(t, storage.InsertResult{Inserted: 1, Ignored: 1}, res)

	history, err := store.GetHistory(ctx, "tpl-a")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(1000), history[0].TotalPayout, "existing row is never rewritten")
}

func TestTemplateSnapshotStore_InsertBatchRejectsInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTemplateSnapshotStore(pool)
	ctx := context.Background()

	_, err := store.InsertBatch(ctx, []*domain.TemplateSnapshot{
		snapshot(t0, "tpl-a", 1000, 10),
		snapshot(t0, "", 1000, 10),
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	got, err := store.GetByCollectedAt(ctx, t0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTemplateSnapshotStore_RangeLatestAndMax(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTemplateSnapshotStore(pool)
	ctx := context.Background()

	t1 := t0.Add(24 * time.Hour)
	t2 := t1.Add(24 * time.Hour)
	_, err := store.InsertBatch(ctx, []*domain.TemplateSnapshot{
		snapshot(t0, "tpl-a", 100, 1),
		snapshot(t1, "tpl-a", 300, 1),
		snapshot(t1, "tpl-b", 200, 1),
		snapshot(t2, "tpl-b", 900, 1),
	})
	require.NoError(t, err)

	inRange, err := store.GetByTimeRange(ctx, t1, t2)
	require.NoError(t, err)
	require.Len(t, inRange, 3)
	assert.Equal(t, "tpl-a", inRange[0].TemplateID)
	assert.Equal(t, "tpl-b", inRange[1].TemplateID)
	assert.True(t, t1.Equal(inRange[1].CollectedAt))

	latest, err := store.GetLatest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, int64(300), latest[0].TotalPayout)
	assert.Equal(t, int64(900), latest[1].TotalPayout)

	highest, err := store.MaxTotalPayout(ctx, t1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), highest)

	highest, err = store.MaxTotalPayout(ctx, t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), highest)
}
