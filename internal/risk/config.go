package risk

// Config holds the tunable parameters for one named risk-index calculation
// profile. Multiple named configs can coexist (e.g. "default",
// "heatwave"); a config is read-only for the duration of a
// recalculation run.
type Config struct {
	Name string `json:"config_name" yaml:"name"`

	// Factor weights. Must sum to 1.0 (±0.01); see WeightsValid.
	CrimeWeight             float64 `json:"crime_weight" yaml:"crime_weight"`
	BlightWeight            float64 `json:"blight_weight" yaml:"blight_weight"`
	EmergencyResponseWeight float64 `json:"emergency_response_weight" yaml:"emergency_response_weight"`
	AirQualityWeight        float64 `json:"air_quality_weight" yaml:"air_quality_weight"`
	HeatExposureWeight      float64 `json:"heat_exposure_weight" yaml:"heat_exposure_weight"`
	TrafficSpeedWeight      float64 `json:"traffic_speed_weight" yaml:"traffic_speed_weight"`

	// Normalization thresholds: the raw value at which a factor saturates.
	CrimeMaxIncidents      float64 `json:"crime_max_incidents" yaml:"crime_max_incidents"`
	BlightMaxProperties    float64 `json:"blight_max_properties" yaml:"blight_max_properties"`
	EmergencyMaxMinutes    float64 `json:"emergency_max_minutes" yaml:"emergency_max_minutes"`
	AirQualityMaxAQI       float64 `json:"air_quality_max_aqi" yaml:"air_quality_max_aqi"`
	HeatExposureMaxCelsius float64 `json:"heat_exposure_max_celsius" yaml:"heat_exposure_max_celsius"`
	TrafficSpeedMaxMPH     float64 `json:"traffic_speed_max_mph" yaml:"traffic_speed_max_mph"`

	// Spatial smoothing parameters.
	SpatialRadiusMeters float64 `json:"spatial_radius_meters" yaml:"spatial_radius_meters"`
	SpatialDecayFactor  float64 `json:"spatial_decay_factor" yaml:"spatial_decay_factor"`
}

// DefaultConfig returns the built-in calculation profile used whenever no
// named config is available.
func DefaultConfig() Config {
	return Config{
		Name: "default",

		CrimeWeight:             0.25,
		BlightWeight:            0.15,
		EmergencyResponseWeight: 0.20,
		AirQualityWeight:        0.15,
		HeatExposureWeight:      0.10,
		TrafficSpeedWeight:      0.15,

		CrimeMaxIncidents:      50,
		BlightMaxProperties:    20,
		EmergencyMaxMinutes:    30,
		AirQualityMaxAQI:       200,
		HeatExposureMaxCelsius: 45.0,
		TrafficSpeedMaxMPH:     65,

		SpatialRadiusMeters: 500.0,
		SpatialDecayFactor:  0.5,
	}
}

// WeightSum returns the total of the six factor weights.
func (c Config) WeightSum() float64 {
	return c.CrimeWeight + c.BlightWeight + c.EmergencyResponseWeight +
		c.AirQualityWeight + c.HeatExposureWeight + c.TrafficSpeedWeight
}

// WeightsValid reports whether the weights sum to 1.0 within floating-point
// tolerance. An invalid weight set is not an error: the composite
// calculation falls back to an unweighted mean and the caller is expected to
// log a warning.
func (c Config) WeightsValid() bool {
	sum := c.WeightSum()
	return sum >= 0.99 && sum <= 1.01
}

// MaxThreshold returns the saturation threshold for a factor, used when
// normalizing single raw measurement values at observation time.
func (c Config) MaxThreshold(f Factor) float64 {
	switch f {
	case FactorCrime:
		return c.CrimeMaxIncidents
	case FactorBlight:
		return c.BlightMaxProperties
	case FactorEmergencyResponse:
		return c.EmergencyMaxMinutes
	case FactorAirQuality:
		return c.AirQualityMaxAQI
	case FactorHeatExposure:
		return c.HeatExposureMaxCelsius
	case FactorTrafficSpeed:
		return c.TrafficSpeedMaxMPH
	default:
		return 0
	}
}
