package risk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// RawSample is an unprocessed measurement message from the source topic.
type RawSample struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// rawMeasurementRecord is the flat JSON envelope published by collector
// services: one observation for one block and one factor, with a
// factor-specific data payload.
type rawMeasurementRecord struct {
	BlockID    string          `json:"block_id"`
	FactorType string          `json:"factor_type"`
	Data       json.RawMessage `json:"data"`
	DataSource string          `json:"data_source"`
	MeasuredAt time.Time       `json:"measured_at"`
}

// Measurement is an immutable, timestamped raw observation for one block and
// one factor, carrying both the raw magnitude and the score it normalized to
// under the config active at observation time. Measurements are append-only;
// they are never mutated after creation.
type Measurement struct {
	ID              string    `json:"id"`
	BlockID         string    `json:"block_id"`
	Factor          Factor    `json:"factor_type"`
	RawValue        float64   `json:"raw_value"`
	RawUnit         string    `json:"raw_unit"`
	NormalizedScore float64   `json:"normalized_score"`
	DataSource      string    `json:"data_source"`
	MeasuredAt      time.Time `json:"measurement_date"`
	ProcessedAt     time.Time `json:"processed_at"`

	// RawPayload preserves the factor-specific data payload so profiles can
	// later be rebuilt from stored measurements.
	RawPayload []byte `json:"-"`
}

// SetFactorPayload decodes a factor-specific data payload into the matching
// field of in, deriving aggregate fields from raw samples where needed.
func (in *RawInputs) SetFactorPayload(f Factor, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var err error
	switch f {
	case FactorCrime:
		err = json.Unmarshal(data, &in.Crime)
	case FactorBlight:
		err = json.Unmarshal(data, &in.Blight)
	case FactorEmergencyResponse:
		if err = json.Unmarshal(data, &in.Emergency); err == nil {
			in.Emergency.ApplySamples()
		}
	case FactorAirQuality:
		err = json.Unmarshal(data, &in.Air)
	case FactorHeatExposure:
		err = json.Unmarshal(data, &in.Heat)
	case FactorTrafficSpeed:
		if err = json.Unmarshal(data, &in.Traffic); err == nil {
			in.Traffic.ApplySamples()
		}
	default:
		return fmt.Errorf("unknown factor type %q", f)
	}
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", f, err)
	}
	return nil
}

// FactorScore runs the single normalizer selected by f over the block's raw
// inputs.
func FactorScore(f Factor, in RawInputs, cfg Config) float64 {
	switch f {
	case FactorCrime:
		return CrimeScore(in.Crime, cfg)
	case FactorBlight:
		return BlightScore(in.Blight, cfg)
	case FactorEmergencyResponse:
		return EmergencyResponseScore(in.Emergency, cfg)
	case FactorAirQuality:
		return AirQualityScore(in.Air, cfg)
	case FactorHeatExposure:
		return HeatExposureScore(in.Heat, cfg)
	case FactorTrafficSpeed:
		return TrafficSpeedScore(in.Traffic, cfg)
	default:
		return 0
	}
}

// primaryRawValue picks the single representative magnitude recorded as a
// measurement's raw value, in the factor's unit (see Factor.Unit).
func primaryRawValue(f Factor, in RawInputs) float64 {
	switch f {
	case FactorCrime:
		return in.Crime.IncidentsPerMonth
	case FactorBlight:
		return float64(in.Blight.AbandonedBuildings + in.Blight.VacantLots + in.Blight.CodeViolations)
	case FactorEmergencyResponse:
		return in.Emergency.AvgResponseMinutes
	case FactorAirQuality:
		return in.Air.AQI
	case FactorHeatExposure:
		return in.Heat.MaxTemperatureCelsius
	case FactorTrafficSpeed:
		return in.Traffic.P85SpeedMPH
	default:
		return 0
	}
}

// ParseRawMeasurement deserializes a raw sample into a Measurement, scoring
// the observation under the given config. The measurement timestamp falls
// back to the message timestamp when the record carries none.
func ParseRawMeasurement(raw RawSample, cfg Config) (Measurement, error) {
	var rec rawMeasurementRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return Measurement{}, fmt.Errorf("parse raw measurement: %w", err)
	}

	factor, err := ParseFactor(rec.FactorType)
	if err != nil {
		return Measurement{}, err
	}
	if rec.BlockID == "" {
		return Measurement{}, fmt.Errorf("raw measurement missing block_id")
	}

	var in RawInputs
	if err := in.SetFactorPayload(factor, rec.Data); err != nil {
		return Measurement{}, err
	}

	measuredAt := rec.MeasuredAt
	if measuredAt.IsZero() {
		measuredAt = raw.Timestamp
	}

	rawValue := primaryRawValue(factor, in)

	return Measurement{
		ID:              measurementID(rec.BlockID, factor, measuredAt, rawValue),
		BlockID:         rec.BlockID,
		Factor:          factor,
		RawValue:        rawValue,
		RawUnit:         factor.Unit(),
		NormalizedScore: FactorScore(factor, in, cfg),
		DataSource:      rec.DataSource,
		MeasuredAt:      measuredAt.UTC(),
		ProcessedAt:     clock.Now().UTC(),
		RawPayload:      rec.Data,
	}, nil
}

// measurementID produces a deterministic ID from the observation's key
// fields. Reprocessing the same raw sample yields the same ID, so downstream
// inserts stay idempotent under replay.
func measurementID(blockID string, f Factor, measuredAt time.Time, rawValue float64) string {
	input := fmt.Sprintf("%s|%s|%s|%g", blockID, f, measuredAt.UTC().Format(time.RFC3339), rawValue)
	hash := sha256.Sum256([]byte(input))
	return string(f) + "-" + hex.EncodeToString(hash[:8])
}
