package risk

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawSample(value string) RawSample {
	return RawSample{
		Value:     []byte(value),
		Topic:     "neuracity.measurements.raw",
		Timestamp: time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestParseRawMeasurement(t *testing.T) {
	frozen := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	cfg := DefaultConfig()

	t.Run("crime record", func(t *testing.T) {
		m, err := ParseRawMeasurement(rawSample(`{
			"block_id": "BLK_40.7120_-74.0060",
			"factor_type": "crime",
			"data": {"incidents_per_month": 15, "severity_multiplier": 1.2},
			"data_source": "city_pd",
			"measured_at": "2026-08-01T06:00:00Z"
		}`), cfg)
		require.NoError(t, err)

		assert.Equal(t, "BLK_40.7120_-74.0060", m.BlockID)
		assert.Equal(t, FactorCrime, m.Factor)
		assert.Equal(t, 15.0, m.RawValue)
		assert.Equal(t, "incidents/month", m.RawUnit)
		assert.Equal(t, 0.36, m.NormalizedScore)
		assert.Equal(t, "city_pd", m.DataSource)
		assert.Equal(t, time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC), m.MeasuredAt)
		assert.Equal(t, frozen, m.ProcessedAt)
		assert.NotEmpty(t, m.RawPayload)
	})

	t.Run("emergency samples reduce to aggregates", func(t *testing.T) {
		m, err := ParseRawMeasurement(rawSample(`{
			"block_id": "BLK_40.7120_-74.0060",
			"factor_type": "emergency_response",
			"data": {"response_times_minutes": [5, 5, 5, 5, 5]},
			"data_source": "dispatch",
			"measured_at": "2026-08-01T06:00:00Z"
		}`), cfg)
		require.NoError(t, err)

		// mean and p90 of a constant series are both 5, so avg fraction is
		// 5/30 and p90 fraction follows from the default threshold band
		assert.Equal(t, 5.0, m.RawValue)
		assert.Greater(t, m.NormalizedScore, 0.0)
		assert.LessOrEqual(t, m.NormalizedScore, 1.0)
	})

	t.Run("measured_at falls back to message timestamp", func(t *testing.T) {
		m, err := ParseRawMeasurement(rawSample(`{
			"block_id": "BLK_40.7120_-74.0060",
			"factor_type": "air_quality",
			"data": {"aqi_value": 75},
			"data_source": "epa"
		}`), cfg)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC), m.MeasuredAt)
	})

	t.Run("deterministic id under replay", func(t *testing.T) {
		value := `{
			"block_id": "BLK_40.7120_-74.0060",
			"factor_type": "crime",
			"data": {"incidents_per_month": 15, "severity_multiplier": 1.2},
			"data_source": "city_pd",
			"measured_at": "2026-08-01T06:00:00Z"
		}`
		m1, err := ParseRawMeasurement(rawSample(value), cfg)
		require.NoError(t, err)
		m2, err := ParseRawMeasurement(rawSample(value), cfg)
		require.NoError(t, err)

		assert.Equal(t, m1.ID, m2.ID)
		assert.True(t, len(m1.ID) > len("crime-"))
		assert.Contains(t, m1.ID, "crime-")
	})

	t.Run("ids differ across factors and blocks", func(t *testing.T) {
		a, err := ParseRawMeasurement(rawSample(`{"block_id":"BLK_A","factor_type":"crime","data":{"incidents_per_month":10},"measured_at":"2026-08-01T06:00:00Z"}`), cfg)
		require.NoError(t, err)
		b, err := ParseRawMeasurement(rawSample(`{"block_id":"BLK_B","factor_type":"crime","data":{"incidents_per_month":10},"measured_at":"2026-08-01T06:00:00Z"}`), cfg)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := ParseRawMeasurement(rawSample(`{not json`), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse raw measurement")
	})

	t.Run("rejects unknown factor", func(t *testing.T) {
		_, err := ParseRawMeasurement(rawSample(`{"block_id":"BLK_A","factor_type":"noise","data":{}}`), cfg)
		require.Error(t, err)
	})

	t.Run("rejects missing block id", func(t *testing.T) {
		_, err := ParseRawMeasurement(rawSample(`{"factor_type":"crime","data":{"incidents_per_month":3}}`), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "block_id")
	})

	t.Run("rejects payload of the wrong shape", func(t *testing.T) {
		_, err := ParseRawMeasurement(rawSample(`{"block_id":"BLK_A","factor_type":"crime","data":{"incidents_per_month":"many"}}`), cfg)
		require.Error(t, err)
	})
}

func TestSetFactorPayload(t *testing.T) {
	t.Run("traffic samples reduce to aggregates", func(t *testing.T) {
		var in RawInputs
		err := in.SetFactorPayload(FactorTrafficSpeed, []byte(`{
			"speeds_mph": [30, 32, 34, 36, 38],
			"pedestrian_volume": 80,
			"road_type": "residential"
		}`))
		require.NoError(t, err)
		assert.InDelta(t, 34.0, in.Traffic.AvgSpeedMPH, 1e-9)
		assert.InDelta(t, 36.8, in.Traffic.P85SpeedMPH, 1e-9)
	})

	t.Run("explicit aggregates win over samples", func(t *testing.T) {
		var in RawInputs
		err := in.SetFactorPayload(FactorEmergencyResponse, []byte(`{
			"avg_response_time_minutes": 9,
			"percentile_90_time_minutes": 14,
			"response_times_minutes": [1, 1, 1]
		}`))
		require.NoError(t, err)
		assert.Equal(t, 9.0, in.Emergency.AvgResponseMinutes)
		assert.Equal(t, 14.0, in.Emergency.P90ResponseMinutes)
	})

	t.Run("empty payload is a no-op", func(t *testing.T) {
		var in RawInputs
		require.NoError(t, in.SetFactorPayload(FactorCrime, nil))
		assert.Zero(t, in.Crime.IncidentsPerMonth)
	})

	t.Run("unknown factor errors", func(t *testing.T) {
		var in RawInputs
		require.Error(t, in.SetFactorPayload(Factor("noise"), []byte(`{}`)))
	})
}

func TestFactorScoreDispatch(t *testing.T) {
	cfg := DefaultConfig()
	in := exampleInputs()

	scores := NormalizeAll(in, cfg)
	assert.Equal(t, scores.Crime, FactorScore(FactorCrime, in, cfg))
	assert.Equal(t, scores.Blight, FactorScore(FactorBlight, in, cfg))
	assert.Equal(t, scores.EmergencyResponse, FactorScore(FactorEmergencyResponse, in, cfg))
	assert.Equal(t, scores.AirQuality, FactorScore(FactorAirQuality, in, cfg))
	assert.Equal(t, scores.HeatExposure, FactorScore(FactorHeatExposure, in, cfg))
	assert.Equal(t, scores.TrafficSpeed, FactorScore(FactorTrafficSpeed, in, cfg))
	assert.Zero(t, FactorScore(Factor("noise"), in, cfg))
}
