package risk

import (
	"errors"
	"fmt"
)

// ErrInvalidCoordinate marks a latitude outside [-90,90] or a longitude
// outside [-180,180]. Fatal to the request that supplied it; no scoring
// happens for the block.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// ErrScoreOutOfRange marks a computed score escaping [0,1]. This is an
// internal invariant violation (a normalizer bug), surfaced loudly rather
// than clamped.
var ErrScoreOutOfRange = errors.New("score out of range")

func outOfRangeError(field string, value float64) error {
	return fmt.Errorf("%w: %s = %g", ErrScoreOutOfRange, field, value)
}

// ValidateCoordinates rejects geometrically impossible block centers.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %g", ErrInvalidCoordinate, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %g", ErrInvalidCoordinate, lng)
	}
	return nil
}

// BlockID derives the stable, human-readable identifier for the block
// centered at the given coordinates.
func BlockID(lat, lng float64) string {
	return fmt.Sprintf("BLK_%.4f_%.4f", lat, lng)
}

// BuildProfile runs the full scoring path for one block: coordinate
// validation, the six factor normalizers, and the composite calculator. The
// result carries a calculation timestamp from the package clock (see
// SetClock). No persistence, no network I/O.
//
// Factors with no observation at all score from baseline inputs; see
// DefaultHeatInput and DefaultTrafficInput.
//
// An empty blockID is derived from the coordinates. The returned error is
// either ErrInvalidCoordinate or ErrScoreOutOfRange; weight-sum problems
// never fail the build (the composite falls back to an unweighted mean).
func BuildProfile(blockID string, lat, lng float64, in RawInputs, cfg Config) (BlockRiskProfile, error) {
	if err := ValidateCoordinates(lat, lng); err != nil {
		return BlockRiskProfile{}, err
	}
	if blockID == "" {
		blockID = BlockID(lat, lng)
	}

	scores := NormalizeAll(in.withMissingDefaults(), cfg)
	if err := scores.Validate(); err != nil {
		return BlockRiskProfile{}, err
	}

	index, category, _ := CompositeIndex(scores, cfg)
	if index < 0 || index > 1 {
		return BlockRiskProfile{}, outOfRangeError("composite_risk_index", index)
	}

	return BlockRiskProfile{
		BlockID:            blockID,
		Lat:                lat,
		Lng:                lng,
		FactorScores:       scores,
		CompositeRiskIndex: index,
		RiskCategory:       category,
		LastCalculatedAt:   clock.Now().UTC(),
	}, nil
}

// ApplySmoothing returns a copy of the profile with the composite index
// pulled toward the given neighbors and the category recomputed from the
// smoothed index.
func (p BlockRiskProfile) ApplySmoothing(neighbors []NeighborBlock, cfg Config) BlockRiskProfile {
	smoothed := Smooth(p.Lat, p.Lng, p.CompositeRiskIndex, neighbors, cfg)
	p.CompositeRiskIndex = smoothed
	p.RiskCategory = CategoryForIndex(smoothed)
	return p
}
