package risk

import "fmt"

// Factor identifies one of the six risk categories. The set is closed; each
// factor has a distinct raw-input shape and its own normalization curve.
type Factor string

const (
	FactorCrime             Factor = "crime"
	FactorBlight            Factor = "blight"
	FactorEmergencyResponse Factor = "emergency_response"
	FactorAirQuality        Factor = "air_quality"
	FactorHeatExposure      Factor = "heat_exposure"
	FactorTrafficSpeed      Factor = "traffic_speed"
)

// Factors lists all six factors in canonical order.
var Factors = []Factor{
	FactorCrime,
	FactorBlight,
	FactorEmergencyResponse,
	FactorAirQuality,
	FactorHeatExposure,
	FactorTrafficSpeed,
}

// ParseFactor validates a factor-type string as received from external
// payloads. Exact matches only.
func ParseFactor(s string) (Factor, error) {
	switch f := Factor(s); f {
	case FactorCrime, FactorBlight, FactorEmergencyResponse,
		FactorAirQuality, FactorHeatExposure, FactorTrafficSpeed:
		return f, nil
	default:
		return "", fmt.Errorf("unknown factor type %q", s)
	}
}

func (f Factor) String() string { return string(f) }

// Unit returns the unit label recorded on measurements of this factor.
func (f Factor) Unit() string {
	switch f {
	case FactorCrime:
		return "incidents/month"
	case FactorBlight:
		return "properties"
	case FactorEmergencyResponse:
		return "minutes"
	case FactorAirQuality:
		return "aqi"
	case FactorHeatExposure:
		return "celsius"
	case FactorTrafficSpeed:
		return "mph"
	default:
		return ""
	}
}
