// Package storage persists block risk profiles, raw measurements, and
// history snapshots behind a driver-selected Store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/neuracity/risk-index-service/internal/risk"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// BlockFilter narrows ListBlocks. Zero values mean "no constraint";
// Limit <= 0 means unbounded.
type BlockFilter struct {
	Category risk.Category
	MinRisk  *float64
	MaxRisk  *float64
	Limit    int
}

// Bounds is a geographic bounding box, inclusive on all edges.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether the point falls inside the box.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// MeasurementFilter narrows ListMeasurements. Zero values mean "no
// constraint"; Limit <= 0 means unbounded.
type MeasurementFilter struct {
	BlockID string
	Factor  risk.Factor
	Limit   int
}

// Store is the persistence surface for the risk index. Block upserts are
// idempotent and keyed by block id; measurements and history snapshots are
// append-only and keyed by their deterministic ids, so replays are no-ops.
type Store interface {
	Init(ctx context.Context) error
	Close() error

	UpsertBlock(ctx context.Context, p risk.BlockRiskProfile) error
	UpsertBlocks(ctx context.Context, profiles []risk.BlockRiskProfile) error
	GetBlock(ctx context.Context, blockID string) (risk.BlockRiskProfile, error)
	ListBlocks(ctx context.Context, f BlockFilter) ([]risk.BlockRiskProfile, error)
	BlocksInBounds(ctx context.Context, b Bounds) ([]risk.BlockRiskProfile, error)

	SaveMeasurements(ctx context.Context, measurements []risk.Measurement) error
	ListMeasurements(ctx context.Context, f MeasurementFilter) ([]risk.Measurement, error)

	AppendSnapshot(ctx context.Context, s risk.HistorySnapshot) error
	ListSnapshots(ctx context.Context, blockID string, days int) ([]risk.HistorySnapshot, error)
	LatestSnapshot(ctx context.Context, blockID string) (risk.HistorySnapshot, error)
}

// NewStore builds the store selected by driver. Supported drivers are
// "memory", "sqlite", and "postgres".
func NewStore(driver, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres", "postgresql":
		return NewPostgres(dsn)
	default:
		return nil, errors.New("unsupported storage driver: " + driver)
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
