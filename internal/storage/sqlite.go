package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	sqlStore
}

// NewSQLite opens a SQLite-backed store. An empty DSN falls back to a local
// file database with a busy timeout suited to concurrent batch writers.
func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:riskindex.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{sqlStore{baseStore: baseStore{db: db}, rebind: passthrough}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blocks (
			block_id TEXT PRIMARY KEY,
			lat REAL NOT NULL,
			lng REAL NOT NULL,
			crime_score REAL NOT NULL,
			blight_score REAL NOT NULL,
			emergency_response_score REAL NOT NULL,
			air_quality_score REAL NOT NULL,
			heat_exposure_score REAL NOT NULL,
			traffic_speed_score REAL NOT NULL,
			composite_risk_index REAL NOT NULL,
			risk_category TEXT NOT NULL,
			last_calculated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_category ON blocks(risk_category)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_location ON blocks(lat, lng)`,
		`CREATE TABLE IF NOT EXISTS measurements (
			id TEXT PRIMARY KEY,
			block_id TEXT NOT NULL,
			factor_type TEXT NOT NULL,
			raw_value REAL NOT NULL,
			raw_unit TEXT NOT NULL,
			normalized_score REAL NOT NULL,
			data_source TEXT,
			measured_at TEXT NOT NULL,
			processed_at TEXT NOT NULL,
			raw_payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_block_factor ON measurements(block_id, factor_type)`,
		`CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			block_id TEXT NOT NULL,
			crime_score REAL NOT NULL,
			blight_score REAL NOT NULL,
			emergency_response_score REAL NOT NULL,
			air_quality_score REAL NOT NULL,
			heat_exposure_score REAL NOT NULL,
			traffic_speed_score REAL NOT NULL,
			composite_risk_index REAL NOT NULL,
			risk_category TEXT NOT NULL,
			snapshot_date TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_block_date ON history(block_id, snapshot_date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
