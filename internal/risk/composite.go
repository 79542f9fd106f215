package risk

// Category is the discrete risk label derived from the composite index.
type Category string

const (
	CategoryLow      Category = "low"
	CategoryModerate Category = "moderate"
	CategoryHigh     Category = "high"
	CategoryCritical Category = "critical"
)

// Categories lists all categories from least to most severe.
var Categories = []Category{CategoryLow, CategoryModerate, CategoryHigh, CategoryCritical}

// CategoryForIndex maps a composite index onto the fixed category
// thresholds. The thresholds are deliberately not configurable: categories
// must mean the same thing across every config and every historical
// snapshot.
func CategoryForIndex(index float64) Category {
	switch {
	case index < 0.3:
		return CategoryLow
	case index < 0.5:
		return CategoryModerate
	case index < 0.7:
		return CategoryHigh
	default:
		return CategoryCritical
	}
}

// Rank orders categories by severity: low=0 … critical=3. Unknown
// categories rank below low.
func (c Category) Rank() int {
	switch c {
	case CategoryLow:
		return 0
	case CategoryModerate:
		return 1
	case CategoryHigh:
		return 2
	case CategoryCritical:
		return 3
	default:
		return -1
	}
}

// CompositeIndex combines six factor scores into the composite risk index
// and its category. When the config's weights do not sum to ~1.0 the
// calculation falls back to an unweighted mean; fellBack reports that so the
// caller can log a diagnostic (the calculation itself never fails).
// Idempotent: identical inputs always produce identical outputs.
func CompositeIndex(s FactorScores, cfg Config) (index float64, category Category, fellBack bool) {
	if !cfg.WeightsValid() {
		index = (s.Crime + s.Blight + s.EmergencyResponse +
			s.AirQuality + s.HeatExposure + s.TrafficSpeed) / 6.0
		fellBack = true
	} else {
		index = s.Crime*cfg.CrimeWeight +
			s.Blight*cfg.BlightWeight +
			s.EmergencyResponse*cfg.EmergencyResponseWeight +
			s.AirQuality*cfg.AirQualityWeight +
			s.HeatExposure*cfg.HeatExposureWeight +
			s.TrafficSpeed*cfg.TrafficSpeedWeight
	}

	index = round3(index)
	return index, CategoryForIndex(index), fellBack
}
