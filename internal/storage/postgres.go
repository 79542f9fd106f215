package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	sqlStore
}

// NewPostgres opens a Postgres-backed store via the pgx stdlib driver.
func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/riskindex?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{sqlStore{baseStore: baseStore{db: db}, rebind: numberPlaceholders}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blocks (
			block_id TEXT PRIMARY KEY,
			lat DOUBLE PRECISION NOT NULL,
			lng DOUBLE PRECISION NOT NULL,
			crime_score DOUBLE PRECISION NOT NULL,
			blight_score DOUBLE PRECISION NOT NULL,
			emergency_response_score DOUBLE PRECISION NOT NULL,
			air_quality_score DOUBLE PRECISION NOT NULL,
			heat_exposure_score DOUBLE PRECISION NOT NULL,
			traffic_speed_score DOUBLE PRECISION NOT NULL,
			composite_risk_index DOUBLE PRECISION NOT NULL,
			risk_category TEXT NOT NULL,
			last_calculated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_category ON blocks(risk_category)`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_location ON blocks(lat, lng)`,
		`CREATE TABLE IF NOT EXISTS measurements (
			id TEXT PRIMARY KEY,
			block_id TEXT NOT NULL,
			factor_type TEXT NOT NULL,
			raw_value DOUBLE PRECISION NOT NULL,
			raw_unit TEXT NOT NULL,
			normalized_score DOUBLE PRECISION NOT NULL,
			data_source TEXT,
			measured_at TIMESTAMPTZ NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL,
			raw_payload JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_block_factor ON measurements(block_id, factor_type)`,
		`CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			block_id TEXT NOT NULL,
			crime_score DOUBLE PRECISION NOT NULL,
			blight_score DOUBLE PRECISION NOT NULL,
			emergency_response_score DOUBLE PRECISION NOT NULL,
			air_quality_score DOUBLE PRECISION NOT NULL,
			heat_exposure_score DOUBLE PRECISION NOT NULL,
			traffic_speed_score DOUBLE PRECISION NOT NULL,
			composite_risk_index DOUBLE PRECISION NOT NULL,
			risk_category TEXT NOT NULL,
			snapshot_date TIMESTAMPTZ NOT NULL
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
