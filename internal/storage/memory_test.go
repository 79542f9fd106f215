package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuracity/risk-index-service/internal/risk"
)

func testProfile(id string, lat, lng, index float64) risk.BlockRiskProfile {
	return risk.BlockRiskProfile{
		BlockID:            id,
		Lat:                lat,
		Lng:                lng,
		CompositeRiskIndex: index,
		RiskCategory:       risk.CategoryForIndex(index),
		LastCalculatedAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestMemoryStore_Blocks(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Init(ctx))

	t.Run("get missing block", func(t *testing.T) {
		_, err := store.GetBlock(ctx, "BLK_NOPE")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("upsert and get", func(t *testing.T) {
		p := testProfile("BLK_40.7120_-74.0060", 40.712, -74.006, 0.42)
		require.NoError(t, store.UpsertBlock(ctx, p))

		got, err := store.GetBlock(ctx, p.BlockID)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	})

	t.Run("upsert overwrites", func(t *testing.T) {
		p := testProfile("BLK_40.7120_-74.0060", 40.712, -74.006, 0.91)
		require.NoError(t, store.UpsertBlock(ctx, p))

		got, err := store.GetBlock(ctx, p.BlockID)
		require.NoError(t, err)
		assert.Equal(t, 0.91, got.CompositeRiskIndex)
		assert.Equal(t, risk.CategoryCritical, got.RiskCategory)
	})
}

func TestMemoryStore_ListBlocks(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.UpsertBlocks(ctx, []risk.BlockRiskProfile{
		testProfile("BLK_A", 40.71, -74.00, 0.15),
		testProfile("BLK_B", 40.72, -74.01, 0.45),
		testProfile("BLK_C", 40.73, -74.02, 0.65),
		testProfile("BLK_D", 40.74, -74.03, 0.85),
	}))

	t.Run("sorted by risk descending", func(t *testing.T) {
		all, err := store.ListBlocks(ctx, BlockFilter{})
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "BLK_D", all[0].BlockID)
		assert.Equal(t, "BLK_A", all[3].BlockID)
	})

	t.Run("category filter", func(t *testing.T) {
		high, err := store.ListBlocks(ctx, BlockFilter{Category: risk.CategoryHigh})
		require.NoError(t, err)
		require.Len(t, high, 1)
		assert.Equal(t, "BLK_C", high[0].BlockID)
	})

	t.Run("risk range filter", func(t *testing.T) {
		mid, err := store.ListBlocks(ctx, BlockFilter{MinRisk: floatPtr(0.4), MaxRisk: floatPtr(0.7)})
		require.NoError(t, err)
		require.Len(t, mid, 2)
		assert.Equal(t, "BLK_C", mid[0].BlockID)
		assert.Equal(t, "BLK_B", mid[1].BlockID)
	})

	t.Run("limit", func(t *testing.T) {
		top, err := store.ListBlocks(ctx, BlockFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, "BLK_D", top[0].BlockID)
	})

	t.Run("bounds query", func(t *testing.T) {
		inside, err := store.BlocksInBounds(ctx, Bounds{
			MinLat: 40.715, MaxLat: 40.735, MinLng: -74.025, MaxLng: -74.005,
		})
		require.NoError(t, err)
		require.Len(t, inside, 2)
		assert.Equal(t, "BLK_C", inside[0].BlockID)
		assert.Equal(t, "BLK_B", inside[1].BlockID)
	})
}

func TestMemoryStore_Measurements(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	base := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
	batch := []risk.Measurement{
		{ID: "crime-1", BlockID: "BLK_A", Factor: risk.FactorCrime, RawValue: 15, MeasuredAt: base},
		{ID: "aqi-1", BlockID: "BLK_A", Factor: risk.FactorAirQuality, RawValue: 75, MeasuredAt: base.Add(time.Hour)},
		{ID: "crime-2", BlockID: "BLK_B", Factor: risk.FactorCrime, RawValue: 30, MeasuredAt: base.Add(2 * time.Hour)},
	}
	require.NoError(t, store.SaveMeasurements(ctx, batch))

	t.Run("replay is idempotent", func(t *testing.T) {
		require.NoError(t, store.SaveMeasurements(ctx, batch))
		all, err := store.ListMeasurements(ctx, MeasurementFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("block filter", func(t *testing.T) {
		forA, err := store.ListMeasurements(ctx, MeasurementFilter{BlockID: "BLK_A"})
		require.NoError(t, err)
		require.Len(t, forA, 2)
		// newest first
		assert.Equal(t, "aqi-1", forA[0].ID)
	})

	t.Run("factor filter", func(t *testing.T) {
		crime, err := store.ListMeasurements(ctx, MeasurementFilter{Factor: risk.FactorCrime})
		require.NoError(t, err)
		assert.Len(t, crime, 2)
	})

	t.Run("limit", func(t *testing.T) {
		one, err := store.ListMeasurements(ctx, MeasurementFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, one, 1)
		assert.Equal(t, "crime-2", one[0].ID)
	})
}

func TestMemoryStore_History(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	now := time.Now().UTC()

	t.Run("latest of empty history", func(t *testing.T) {
		_, err := store.LatestSnapshot(ctx, "BLK_A")
		require.ErrorIs(t, err, ErrNotFound)
	})

	snaps := []risk.HistorySnapshot{
		{ID: "s1", BlockID: "BLK_A", CompositeRiskIndex: 0.4, SnapshotDate: now.AddDate(0, 0, -60)},
		{ID: "s2", BlockID: "BLK_A", CompositeRiskIndex: 0.5, SnapshotDate: now.AddDate(0, 0, -10)},
		{ID: "s3", BlockID: "BLK_A", CompositeRiskIndex: 0.6, SnapshotDate: now.AddDate(0, 0, -3)},
		{ID: "s4", BlockID: "BLK_B", CompositeRiskIndex: 0.2, SnapshotDate: now.AddDate(0, 0, -1)},
	}
	for _, snap := range snaps {
		require.NoError(t, store.AppendSnapshot(ctx, snap))
	}

	t.Run("day horizon filters old snapshots", func(t *testing.T) {
		recent, err := store.ListSnapshots(ctx, "BLK_A", 30)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "s3", recent[0].ID)
		assert.Equal(t, "s2", recent[1].ID)
	})

	t.Run("wide horizon returns all", func(t *testing.T) {
		all, err := store.ListSnapshots(ctx, "BLK_A", 365)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("latest snapshot", func(t *testing.T) {
		latest, err := store.LatestSnapshot(ctx, "BLK_A")
		require.NoError(t, err)
		assert.Equal(t, "s3", latest.ID)
	})

	t.Run("duplicate append is a no-op", func(t *testing.T) {
		require.NoError(t, store.AppendSnapshot(ctx, snaps[2]))
		all, err := store.ListSnapshots(ctx, "BLK_A", 365)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}
