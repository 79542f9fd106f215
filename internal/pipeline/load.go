package pipeline

import (
	"context"

	"github.com/neuracity/risk-index-service/internal/risk"
	"github.com/neuracity/risk-index-service/internal/storage"
)

// StoreLoader implements BatchLoader over the measurement store. Loads are
// replay-safe because measurement ids are deterministic.
type StoreLoader struct {
	store storage.Store
}

// NewStoreLoader creates a loader writing to the given store.
func NewStoreLoader(store storage.Store) *StoreLoader {
	return &StoreLoader{store: store}
}

func (l *StoreLoader) LoadBatch(ctx context.Context, measurements []risk.Measurement) error {
	return l.store.SaveMeasurements(ctx, measurements)
}
