package risk

import (
	"math"
	"time"
)

// CrimeInput carries raw crime observations for one block.
type CrimeInput struct {
	IncidentsPerMonth  float64 `json:"incidents_per_month"`
	SeverityMultiplier float64 `json:"severity_multiplier"` // 1.0 normal, >1.0 weights violent crime
}

// BlightInput carries raw property-condition observations for one block.
type BlightInput struct {
	AbandonedBuildings int `json:"abandoned_buildings"`
	VacantLots         int `json:"vacant_lots"`
	CodeViolations     int `json:"code_violations"`
}

// EmergencyResponseInput carries 911 response-time observations for one
// block. When only raw per-call samples are available, ApplySamples derives
// the aggregates.
type EmergencyResponseInput struct {
	AvgResponseMinutes float64   `json:"avg_response_time_minutes"`
	P90ResponseMinutes float64   `json:"percentile_90_time_minutes"`
	SampleMinutes      []float64 `json:"response_times_minutes,omitempty"`
}

// ApplySamples fills AvgResponseMinutes and P90ResponseMinutes from
// SampleMinutes when the aggregates are unset. No-op otherwise.
func (in *EmergencyResponseInput) ApplySamples() {
	if len(in.SampleMinutes) == 0 {
		return
	}
	if in.AvgResponseMinutes == 0 {
		in.AvgResponseMinutes = Mean(in.SampleMinutes)
	}
	if in.P90ResponseMinutes == 0 {
		in.P90ResponseMinutes = Percentile(in.SampleMinutes, 90)
	}
}

// AirQualityInput carries pollution observations for one block. PM25 is
// optional; when present the normalizer blends it with the AQI score.
type AirQualityInput struct {
	AQI  float64  `json:"aqi_value"`
	PM25 *float64 `json:"pm25_concentration,omitempty"` // µg/m³
}

// HeatInput carries urban-heat observations for one block. Percentages are
// 0-100.
type HeatInput struct {
	AvgTemperatureCelsius    float64 `json:"avg_temperature_celsius"`
	MaxTemperatureCelsius    float64 `json:"max_temperature_celsius"`
	TreeCanopyPercent        float64 `json:"tree_canopy_percent"`
	ImperviousSurfacePercent float64 `json:"impervious_surface_percent"`
}

// RoadType classifies the dominant road through a block, selecting the safe
// speed threshold for traffic scoring.
type RoadType string

const (
	RoadResidential RoadType = "residential"
	RoadArterial    RoadType = "arterial"
	RoadHighway     RoadType = "highway"
)

// TrafficInput carries vehicle-speed observations for one block. When only
// raw speed samples are available, ApplySamples derives the aggregates.
type TrafficInput struct {
	AvgSpeedMPH      float64   `json:"avg_speed_mph"`
	P85SpeedMPH      float64   `json:"percentile_85_speed_mph"`
	PedestrianVolume int       `json:"pedestrian_volume"` // daily count
	RoadType         RoadType  `json:"road_type"`
	SampleSpeedsMPH  []float64 `json:"speeds_mph,omitempty"`
}

// ApplySamples fills AvgSpeedMPH and P85SpeedMPH from SampleSpeedsMPH when
// the aggregates are unset. No-op otherwise.
func (in *TrafficInput) ApplySamples() {
	if len(in.SampleSpeedsMPH) == 0 {
		return
	}
	if in.AvgSpeedMPH == 0 {
		in.AvgSpeedMPH = Mean(in.SampleSpeedsMPH)
	}
	if in.P85SpeedMPH == 0 {
		in.P85SpeedMPH = Percentile(in.SampleSpeedsMPH, 85)
	}
}

// RawInputs bundles the six per-factor payloads for one block, the input to
// BuildProfile.
type RawInputs struct {
	Crime     CrimeInput             `json:"crime_data"`
	Blight    BlightInput            `json:"blight_data"`
	Emergency EmergencyResponseInput `json:"emergency_data"`
	Air       AirQualityInput        `json:"air_quality_data"`
	Heat      HeatInput              `json:"heat_data"`
	Traffic   TrafficInput           `json:"traffic_data"`
}

// DefaultHeatInput is the baseline assumed for a block with no heat
// observation: mild temperatures on a typical residential street.
func DefaultHeatInput() HeatInput {
	return HeatInput{
		AvgTemperatureCelsius:    20,
		MaxTemperatureCelsius:    25,
		TreeCanopyPercent:        30,
		ImperviousSurfacePercent: 50,
	}
}

// DefaultTrafficInput is the baseline assumed for a block with no traffic
// observation: residential speeds under the safe threshold.
func DefaultTrafficInput() TrafficInput {
	return TrafficInput{
		AvgSpeedMPH:      25,
		P85SpeedMPH:      30,
		PedestrianVolume: 50,
		RoadType:         RoadResidential,
	}
}

// withMissingDefaults substitutes baselines for factors with no observation
// at all. A zero-valued heat or traffic input is physically implausible (0°C
// peak with no canopy, zero vehicle speed), so it reads as "no data" rather
// than an extreme reading. The other four factors legitimately score 0 from
// their zero values.
func (in RawInputs) withMissingDefaults() RawInputs {
	if in.Heat == (HeatInput{}) {
		in.Heat = DefaultHeatInput()
	}
	if in.Traffic.isZero() {
		in.Traffic = DefaultTrafficInput()
	}
	return in
}

func (in TrafficInput) isZero() bool {
	return in.AvgSpeedMPH == 0 && in.P85SpeedMPH == 0 &&
		in.PedestrianVolume == 0 && in.RoadType == "" && len(in.SampleSpeedsMPH) == 0
}

// FactorScores holds the six normalized factor scores, each in [0,1].
type FactorScores struct {
	Crime             float64 `json:"crime_score"`
	Blight            float64 `json:"blight_score"`
	EmergencyResponse float64 `json:"emergency_response_score"`
	AirQuality        float64 `json:"air_quality_score"`
	HeatExposure      float64 `json:"heat_exposure_score"`
	TrafficSpeed      float64 `json:"traffic_speed_score"`
}

// All returns the scores in canonical factor order.
func (s FactorScores) All() [6]float64 {
	return [6]float64{s.Crime, s.Blight, s.EmergencyResponse, s.AirQuality, s.HeatExposure, s.TrafficSpeed}
}

// Validate reports the first score outside [0,1], if any. A violation means
// a normalizer bug, not bad input data; callers surface it loudly instead of
// clamping.
func (s FactorScores) Validate() error {
	for i, v := range s.All() {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return outOfRangeError(Factors[i].String()+"_score", v)
		}
	}
	return nil
}

// BlockRiskProfile is the complete scored state of one geographic block.
/// Composite index and category are derived fields: they are only ever set by
// full recomputation, never edited in place.
type BlockRiskProfile struct {
	BlockID string  `json:"block_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`

	FactorScores

	CompositeRiskIndex float64   `json:"composite_risk_index"`
	RiskCategory       Category  `json:"risk_category"`
	LastCalculatedAt   time.Time `json:"last_calculated_at"`
}

// NeighborBlock is the slice of a nearby block's profile needed for spatial
// smoothing, as returned by a bounding-box query against the block store.
type NeighborBlock struct {
	BlockID            string  `json:"block_id"`
	Lat                float64 `json:"lat"`
	Lng                float64 `json:"lng"`
	CompositeRiskIndex float64 `json:"composite_risk_index"`
}

// Neighbor converts a profile into its smoothing representation.
func (p BlockRiskProfile) Neighbor() NeighborBlock {
	return NeighborBlock{
		BlockID:            p.BlockID,
		Lat:                p.Lat,
		Lng:                p.Lng,
		CompositeRiskIndex: p.CompositeRiskIndex,
	}
}

// CategoryAlert records a block crossing into a higher risk category during
// recalculation. Published to the alert sink so downstream consumers can
// page on escalations.
type CategoryAlert struct {
	BlockID            string    `json:"block_id"`
	PreviousCategory   Category  `json:"previous_category"`
	CurrentCategory    Category  `json:"current_category"`
	CompositeRiskIndex float64   `json:"composite_risk_index"`
	OccurredAt         time.Time `json:"occurred_at"`
}
