package batch

import (
	"context"

	"github.com/neuracity/risk-index-service/internal/risk"
	"github.com/neuracity/risk-index-service/internal/storage"
)

// InputSource supplies raw factor inputs for a block during recalculation.
// When a run has no input source, it recomputes composites from the factor
// scores already stored on each profile.
type InputSource interface {
	// BlockInputs returns the block's raw inputs. ok is false when no raw
	// data exists for the block, in which case the run falls back to the
	// stored factor scores.
	BlockInputs(ctx context.Context, blockID string) (in risk.RawInputs, ok bool, err error)
}

// StoredMeasurementSource rebuilds raw inputs from the newest stored
// measurement per factor, using the raw payloads preserved at ingest time.
type StoredMeasurementSource struct {
	store storage.Store
}

// NewStoredMeasurementSource creates an input source over the measurement
// store.
func NewStoredMeasurementSource(store storage.Store) *StoredMeasurementSource {
	return &StoredMeasurementSource{store: store}
}

func (s *StoredMeasurementSource) BlockInputs(ctx context.Context, blockID string) (risk.RawInputs, bool, error) {
	measurements, err := s.store.ListMeasurements(ctx, storage.MeasurementFilter{BlockID: blockID})
	if err != nil {
		return risk.RawInputs{}, false, err
	}

	var in risk.RawInputs
	seen := make(map[risk.Factor]bool, len(risk.Factors))
	found := false
	// newest first; the first payload per factor wins
	for _, m := range measurements {
		if seen[m.Factor] || len(m.RawPayload) == 0 {
			continue
		}
		if err := in.SetFactorPayload(m.Factor, m.RawPayload); err != nil {
			return risk.RawInputs{}, false, err
		}
		seen[m.Factor] = true
		found = true
	}
	return in, found, nil
}
