package risk

import "math"

// The six factor normalizers. Each is a pure function from raw inputs and
// config to a score in [0,1], deterministic, no I/O. Clamping inside a
// normalizer absorbs malformed raw inputs; scores escaping [0,1] after these
// functions return indicate a bug (see FactorScores.Validate).

// CrimeScore normalizes crime incident frequency linearly against the
// configured monthly maximum. A severity multiplier above 1.0 boosts the
// weighting of violent crime; zero or negative multipliers are treated as
// the neutral 1.0.
func CrimeScore(in CrimeInput, cfg Config) float64 {
	multiplier := in.SeverityMultiplier
	if multiplier <= 0 {
		multiplier = 1.0
	}
	weighted := in.IncidentsPerMonth * multiplier
	return round3(math.Min(1.0, weighted/cfg.CrimeMaxIncidents))
}

// BlightScore normalizes property-condition counts. Abandoned buildings are
// the strongest blight signal and weigh 3x, code violations 2x, vacant lots
// 1x; the denominator saturates at BlightMaxProperties fully-weighted
// properties.
func BlightScore(in BlightInput, cfg Config) float64 {
	weighted := float64(in.AbandonedBuildings)*3.0 +
		float64(in.CodeViolations)*2.0 +
		float64(in.VacantLots)*1.0
	return round3(math.Min(1.0, weighted/(cfg.BlightMaxProperties*6.0)))
}

// EmergencyResponseScore normalizes 911 response times. The average carries
// 70% and the 90th percentile 30%, so the tail of slow responses is felt; a
// square-root transform then emphasizes severe delays.
func EmergencyResponseScore(in EmergencyResponseInput, cfg Config) float64 {
	avgFraction := in.AvgResponseMinutes / cfg.EmergencyMaxMinutes
	p90Fraction := in.P90ResponseMinutes / cfg.EmergencyMaxMinutes
	// Negative response times would make the sqrt NaN; floor the blend so
	// they score 0 instead.
	combined := math.Max(0.0, 0.7*avgFraction+0.3*p90Fraction)
	return round3(math.Min(1.0, math.Sqrt(combined)))
}

// AirQualityScore maps AQI onto four EPA-aligned bands, each a quarter of
// the score range:
//
//	0-50    good                     0-0.25
//	51-100  moderate                 0.25-0.5
//	101-150 unhealthy for sensitive  0.5-0.75
//	>150    unhealthy / hazardous    0.75-1.0 (clamped)
//
// When a PM2.5 concentration is supplied, the final score blends 70% AQI
// with 30% PM2.5 against a 100 µg/m³ ceiling.
func AirQualityScore(in AirQualityInput, cfg Config) float64 {
	var aqiScore float64
	switch {
	case in.AQI <= 50:
		aqiScore = in.AQI / 200.0
	case in.AQI <= 100:
		aqiScore = 0.25 + (in.AQI-50)/200.0
	case in.AQI <= 150:
		aqiScore = 0.5 + (in.AQI-100)/200.0
	default:
		aqiScore = 0.75 + (in.AQI-150)/200.0
	}
	aqiScore = math.Min(1.0, aqiScore)

	score := aqiScore
	if in.PM25 != nil {
		pm25Score := math.Min(1.0, *in.PM25/100.0)
		score = 0.7*aqiScore + 0.3*pm25Score
	}
	return round3(score)
}

// HeatExposureScore normalizes urban heat island exposure: 60% temperature
// (average anchored at 20°C, peak at 25°C, both scaled to the configured
// ceiling) and 40% environment (low tree canopy and high impervious surface
// each half). Concrete-heavy blocks run 2-5°C hotter than parks, which is
// what the environment component captures.
func HeatExposureScore(in HeatInput, cfg Config) float64 {
	avgTempScore := math.Min(1.0, (in.AvgTemperatureCelsius-20)/(cfg.HeatExposureMaxCelsius-20))
	maxTempScore := math.Min(1.0, (in.MaxTemperatureCelsius-25)/(cfg.HeatExposureMaxCelsius-25))
	tempComponent := 0.6*avgTempScore + 0.4*maxTempScore
	tempComponent = math.Max(0.0, tempComponent)

	canopyRisk := 1.0 - in.TreeCanopyPercent/100.0
	imperviousRisk := in.ImperviousSurfacePercent / 100.0
	envComponent := 0.5*canopyRisk + 0.5*imperviousRisk

	return round3(0.6*tempComponent + 0.4*envComponent)
}

// safeSpeedMPH returns the safe speed threshold for a road type. Unknown
// road types fall back to the residential threshold.
func safeSpeedMPH(rt RoadType) float64 {
	switch rt {
	case RoadArterial:
		return 35
	case RoadHighway:
		return 55
	default:
		return 25
	}
}

// pedestrianMultiplier scales traffic risk by daily foot traffic: the same
// speeding is more dangerous where more people walk.
func pedestrianMultiplier(volume int) float64 {
	switch {
	case volume < 50:
		return 1.0
	case volume < 200:
		return 1.3
	default:
		return 1.6
	}
}

// TrafficSpeedScore normalizes vehicle-speed overage against the road
// type's safe threshold: 60% average-speed overage, 40% 85th-percentile
// overage (which indicates speeding behavior, so it is held to a threshold
// 10 mph above the limit), multiplied by the pedestrian-volume risk factor.
func TrafficSpeedScore(in TrafficInput, cfg Config) float64 {
	threshold := safeSpeedMPH(in.RoadType)

	avgOverage := math.Max(0.0, (in.AvgSpeedMPH-threshold)/(cfg.TrafficSpeedMaxMPH-threshold))
	p85Overage := math.Max(0.0, (in.P85SpeedMPH-threshold-10)/(cfg.TrafficSpeedMaxMPH-threshold))
	speedComponent := math.Min(1.0, 0.6*avgOverage+0.4*p85Overage)

	return round3(math.Min(1.0, speedComponent*pedestrianMultiplier(in.PedestrianVolume)))
}

// NormalizeAll runs every factor normalizer over a block's raw inputs.
func NormalizeAll(in RawInputs, cfg Config) FactorScores {
	return FactorScores{
		Crime:             CrimeScore(in.Crime, cfg),
		Blight:            BlightScore(in.Blight, cfg),
		EmergencyResponse: EmergencyResponseScore(in.Emergency, cfg),
		AirQuality:        AirQualityScore(in.Air, cfg),
		HeatExposure:      HeatExposureScore(in.Heat, cfg),
		TrafficSpeed:      TrafficSpeedScore(in.Traffic, cfg),
	}
}

// round3 rounds to 3 decimal places, the precision contract for every score
// this package produces.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
