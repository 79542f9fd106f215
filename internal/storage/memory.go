package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/neuracity/risk-index-service/internal/risk"
)

// MemoryStore is an in-memory Store for tests and single-process demos. Safe
// for concurrent use.
type MemoryStore struct {
	mu           sync.RWMutex
	blocks       map[string]risk.BlockRiskProfile
	measurements map[string]risk.Measurement
	history      []risk.HistorySnapshot
	historyIDs   map[string]struct{}
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		blocks:       make(map[string]risk.BlockRiskProfile),
		measurements: make(map[string]risk.Measurement),
		historyIDs:   make(map[string]struct{}),
	}
}

func (s *MemoryStore) Init(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                   { return nil }

func (s *MemoryStore) UpsertBlock(ctx context.Context, p risk.BlockRiskProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[p.BlockID] = p
	return nil
}

func (s *MemoryStore) UpsertBlocks(ctx context.Context, profiles []risk.BlockRiskProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range profiles {
		s.blocks[p.BlockID] = p
	}
	return nil
}

func (s *MemoryStore) GetBlock(ctx context.Context, blockID string) (risk.BlockRiskProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.blocks[blockID]
	if !ok {
		return risk.BlockRiskProfile{}, fmt.Errorf("block %s: %w", blockID, ErrNotFound)
	}
	return p, nil
}

func (s *MemoryStore) ListBlocks(ctx context.Context, f BlockFilter) ([]risk.BlockRiskProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var profiles []risk.BlockRiskProfile
	for _, p := range s.blocks {
		if f.Category != "" && p.RiskCategory != f.Category {
			continue
		}
		if f.MinRisk != nil && p.CompositeRiskIndex < *f.MinRisk {
			continue
		}
		if f.MaxRisk != nil && p.CompositeRiskIndex > *f.MaxRisk {
			continue
		}
		profiles = append(profiles, p)
	}
	sortByRiskDesc(profiles)
	if f.Limit > 0 && len(profiles) > f.Limit {
		profiles = profiles[:f.Limit]
	}
	return profiles, nil
}

func (s *MemoryStore) BlocksInBounds(ctx context.Context, b Bounds) ([]risk.BlockRiskProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var profiles []risk.BlockRiskProfile
	for _, p := range s.blocks {
		if b.Contains(p.Lat, p.Lng) {
			profiles = append(profiles, p)
		}
	}
	sortByRiskDesc(profiles)
	return profiles, nil
}

func sortByRiskDesc(profiles []risk.BlockRiskProfile) {
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].CompositeRiskIndex != profiles[j].CompositeRiskIndex {
			return profiles[i].CompositeRiskIndex > profiles[j].CompositeRiskIndex
		}
		return profiles[i].BlockID < profiles[j].BlockID
	})
}

func (s *MemoryStore) SaveMeasurements(ctx context.Context, measurements []risk.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range measurements {
		if _, exists := s.measurements[m.ID]; exists {
			continue
		}
		s.measurements[m.ID] = m
	}
	return nil
}

func (s *MemoryStore) ListMeasurements(ctx context.Context, f MeasurementFilter) ([]risk.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var measurements []risk.Measurement
	for _, m := range s.measurements {
		if f.BlockID != "" && m.BlockID != f.BlockID {
			continue
		}
		if f.Factor != "" && m.Factor != f.Factor {
			continue
		}
		measurements = append(measurements, m)
	}
	sort.Slice(measurements, func(i, j int) bool {
		if !measurements[i].MeasuredAt.Equal(measurements[j].MeasuredAt) {
			return measurements[i].MeasuredAt.After(measurements[j].MeasuredAt)
		}
		return measurements[i].ID < measurements[j].ID
	})
	if f.Limit > 0 && len(measurements) > f.Limit {
		measurements = measurements[:f.Limit]
	}
	return measurements, nil
}

func (s *MemoryStore) AppendSnapshot(ctx context.Context, snap risk.HistorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.historyIDs[snap.ID]; exists {
		return nil
	}
	s.historyIDs[snap.ID] = struct{}{}
	s.history = append(s.history, snap)
	return nil
}

func (s *MemoryStore) ListSnapshots(ctx context.Context, blockID string, days int) ([]risk.HistorySnapshot, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var snapshots []risk.HistorySnapshot
	for _, snap := range s.history {
		if snap.BlockID == blockID && !snap.SnapshotDate.Before(cutoff) {
			snapshots = append(snapshots, snap)
		}
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].SnapshotDate.After(snapshots[j].SnapshotDate)
	})
	return snapshots, nil
}

func (s *MemoryStore) LatestSnapshot(ctx context.Context, blockID string) (risk.HistorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest risk.HistorySnapshot
	found := false
	for _, snap := range s.history {
		if snap.BlockID != blockID {
			continue
		}
		if !found || snap.SnapshotDate.After(latest.SnapshotDate) {
			latest = snap
			found = true
		}
	}
	if !found {
		return risk.HistorySnapshot{}, fmt.Errorf("history for %s: %w", blockID, ErrNotFound)
	}
	return latest, nil
}
