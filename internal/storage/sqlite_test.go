package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuracity/risk-index-service/internal/risk"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLite("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestSQLiteStore_BlockRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	p := testProfile("BLK_40.7120_-74.0060", 40.712, -74.006, 0.42)
	p.FactorScores = risk.FactorScores{
		Crime: 0.36, Blight: 0.158, EmergencyResponse: 0.564,
		AirQuality: 0.4, HeatExposure: 0.555, TrafficSpeed: 0.8,
	}
	require.NoError(t, store.UpsertBlock(ctx, p))

	got, err := store.GetBlock(ctx, p.BlockID)
	require.NoError(t, err)
	assert.Equal(t, p.BlockID, got.BlockID)
	assert.Equal(t, p.FactorScores, got.FactorScores)
	assert.Equal(t, p.CompositeRiskIndex, got.CompositeRiskIndex)
	assert.Equal(t, p.RiskCategory, got.RiskCategory)
	assert.WithinDuration(t, p.LastCalculatedAt, got.LastCalculatedAt, time.Second)

	_, err = store.GetBlock(ctx, "BLK_NOPE")
	require.ErrorIs(t, err, ErrNotFound)

	// overwrite on conflict
	p.CompositeRiskIndex = 0.9
	p.RiskCategory = risk.CategoryCritical
	require.NoError(t, store.UpsertBlock(ctx, p))
	got, err = store.GetBlock(ctx, p.BlockID)
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.CompositeRiskIndex)
}

func TestSQLiteStore_TimestampRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	at := time.Date(2026, 8, 1, 6, 0, 0, 123456789, time.UTC)
	p := testProfile("BLK_A", 40.71, -74.00, 0.42)
	p.LastCalculatedAt = at
	require.NoError(t, store.UpsertBlock(ctx, p))

	got, err := store.GetBlock(ctx, "BLK_A")
	require.NoError(t, err)
	assert.True(t, got.LastCalculatedAt.Equal(at), "got %v", got.LastCalculatedAt)

	// Sub-second and whole-second dates must still order chronologically in
	// the TEXT column.
	require.NoError(t, store.AppendSnapshot(ctx, risk.HistorySnapshot{ID: "s1", BlockID: "BLK_A", SnapshotDate: at}))
	require.NoError(t, store.AppendSnapshot(ctx, risk.HistorySnapshot{ID: "s2", BlockID: "BLK_A", SnapshotDate: at.Add(500 * time.Millisecond)}))

	latest, err := store.LatestSnapshot(ctx, "BLK_A")
	require.NoError(t, err)
	assert.Equal(t, "s2", latest.ID)
	assert.True(t, latest.SnapshotDate.After(at))
}

func TestSQLiteStore_FiltersAndBounds(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	require.NoError(t, store.UpsertBlocks(ctx, []risk.BlockRiskProfile{
		testProfile("BLK_A", 40.71, -74.00, 0.15),
		testProfile("BLK_B", 40.72, -74.01, 0.45),
		testProfile("BLK_C", 40.73, -74.02, 0.85),
	}))

	all, err := store.ListBlocks(ctx, BlockFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "BLK_C", all[0].BlockID)

	moderate, err := store.ListBlocks(ctx, BlockFilter{Category: risk.CategoryModerate})
	require.NoError(t, err)
	require.Len(t, moderate, 1)
	assert.Equal(t, "BLK_B", moderate[0].BlockID)

	ranged, err := store.ListBlocks(ctx, BlockFilter{MinRisk: floatPtr(0.4), MaxRisk: floatPtr(0.9), Limit: 1})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "BLK_C", ranged[0].BlockID)

	inside, err := store.BlocksInBounds(ctx, Bounds{MinLat: 40.715, MaxLat: 40.725, MinLng: -74.015, MaxLng: -74.005})
	require.NoError(t, err)
	require.Len(t, inside, 1)
	assert.Equal(t, "BLK_B", inside[0].BlockID)
}

func TestSQLiteStore_Measurements(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	base := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
	batch := []risk.Measurement{
		{
			ID: "crime-abc", BlockID: "BLK_A", Factor: risk.FactorCrime,
			RawValue: 15, RawUnit: "incidents/month", NormalizedScore: 0.36,
			DataSource: "city_pd", MeasuredAt: base, ProcessedAt: base.Add(time.Minute),
			RawPayload: []byte(`{"incidents_per_month":15}`),
		},
		{
			ID: "aqi-def", BlockID: "BLK_A", Factor: risk.FactorAirQuality,
			RawValue: 75, RawUnit: "aqi", NormalizedScore: 0.25,
			MeasuredAt: base.Add(time.Hour), ProcessedAt: base.Add(time.Hour),
		},
	}
	require.NoError(t, store.SaveMeasurements(ctx, batch))
	// replay must not duplicate
	require.NoError(t, store.SaveMeasurements(ctx, batch))

	all, err := store.ListMeasurements(ctx, MeasurementFilter{BlockID: "BLK_A"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "aqi-def", all[0].ID)

	crime, err := store.ListMeasurements(ctx, MeasurementFilter{Factor: risk.FactorCrime})
	require.NoError(t, err)
	require.Len(t, crime, 1)
	assert.Equal(t, 0.36, crime[0].NormalizedScore)
	assert.JSONEq(t, `{"incidents_per_month":15}`, string(crime[0].RawPayload))
	assert.Nil(t, all[0].RawPayload)
}

func TestSQLiteStore_History(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)
	now := time.Now().UTC()

	_, err := store.LatestSnapshot(ctx, "BLK_A")
	require.ErrorIs(t, err, ErrNotFound)

	for _, snap := range []risk.HistorySnapshot{
		{ID: "s1", BlockID: "BLK_A", CompositeRiskIndex: 0.4, RiskCategory: risk.CategoryModerate, SnapshotDate: now.AddDate(0, 0, -45)},
		{ID: "s2", BlockID: "BLK_A", CompositeRiskIndex: 0.6, RiskCategory: risk.CategoryHigh, SnapshotDate: now.AddDate(0, 0, -5)},
	} {
		require.NoError(t, store.AppendSnapshot(ctx, snap))
	}
	// duplicate id is a no-op
	require.NoError(t, store.AppendSnapshot(ctx, risk.HistorySnapshot{ID: "s2", BlockID: "BLK_A", SnapshotDate: now}))

	recent, err := store.ListSnapshots(ctx, "BLK_A", 30)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "s2", recent[0].ID)
	assert.Equal(t, risk.CategoryHigh, recent[0].RiskCategory)

	all, err := store.ListSnapshots(ctx, "BLK_A", 365)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	latest, err := store.LatestSnapshot(ctx, "BLK_A")
	require.NoError(t, err)
	assert.Equal(t, "s2", latest.ID)
	assert.Equal(t, 0.6, latest.CompositeRiskIndex)
}
