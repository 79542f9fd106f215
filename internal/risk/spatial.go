package risk

import "math"

// earthRadiusMeters is the mean Earth radius used for great-circle distance.
const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance in meters between two WGS-84
// coordinate pairs.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// Smooth pulls a target block's composite index toward the indices of its
// geographic neighbors, so that risk bleeds across block boundaries instead
// of forming isolated islands.
//
// Each neighbor within SpatialRadiusMeters contributes weight
// decay^(distance/radius): weight 1.0 at the target's own center, decaying
// to exactly the decay factor at the radius. Neighbors beyond the radius are
// excluded. The target always participates with weight 1.0, so its own risk
// is adjusted, never overridden.
//
// An empty neighbor set is the identity case: the input index is returned
// unchanged. Callers must recompute the category from the smoothed index;
// smoothing can move a block across a category boundary.
func Smooth(targetLat, targetLng, targetIndex float64, neighbors []NeighborBlock, cfg Config) float64 {
	if len(neighbors) == 0 {
		return targetIndex
	}

	totalWeight := 1.0
	weightedRisk := targetIndex

	for _, nb := range neighbors {
		distance := Haversine(targetLat, targetLng, nb.Lat, nb.Lng)
		if distance > cfg.SpatialRadiusMeters {
			continue
		}
		weight := math.Pow(cfg.SpatialDecayFactor, distance/cfg.SpatialRadiusMeters)
		weightedRisk += nb.CompositeRiskIndex * weight
		totalWeight += weight
	}

	return round3(weightedRisk / totalWeight)
}
