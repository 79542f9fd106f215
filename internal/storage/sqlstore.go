package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/neuracity/risk-index-service/internal/risk"
)

// sqlStore implements Store over database/sql. Queries are written with ?
// placeholders; dialects that number their placeholders set rebind.
type sqlStore struct {
	baseStore
	rebind func(query string) string
}

func passthrough(query string) string { return query }

// sqlTimeLayout is RFC 3339 with fixed-width fractional seconds, so TEXT
// timestamp columns compare in chronological order.
const sqlTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timeArg formats a timestamp for binding. Both dialects accept the string
// form: sqlite stores it as TEXT, postgres casts it to TIMESTAMPTZ.
func timeArg(t time.Time) string { return t.UTC().Format(sqlTimeLayout) }

// timeText scans a timestamp column across dialects: postgres returns
// time.Time, sqlite returns the TEXT written by timeArg.
type timeText struct {
	dst *time.Time
}

func (c timeText) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c.dst = time.Time{}
	case time.Time:
		*c.dst = v.UTC()
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	default:
		return fmt.Errorf("timestamp column: unsupported type %T", src)
	}
	return nil
}

func (c timeText) parse(v string) error {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return fmt.Errorf("timestamp column: %w", err)
	}
	*c.dst = t.UTC()
	return nil
}

// numberPlaceholders rewrites ? placeholders as $1..$n.
func numberPlaceholders(query string) string {
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return err
}

const upsertBlockQuery = `INSERT INTO blocks
	(block_id, lat, lng, crime_score, blight_score, emergency_response_score,
	 air_quality_score, heat_exposure_score, traffic_speed_score,
	 composite_risk_index, risk_category, last_calculated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (block_id) DO UPDATE SET
	 lat = excluded.lat,
	 lng = excluded.lng,
	 crime_score = excluded.crime_score,
	 blight_score = excluded.blight_score,
	 emergency_response_score = excluded.emergency_response_score,
	 air_quality_score = excluded.air_quality_score,
	 heat_exposure_score = excluded.heat_exposure_score,
	 traffic_speed_score = excluded.traffic_speed_score,
	 composite_risk_index = excluded.composite_risk_index,
	 risk_category = excluded.risk_category,
	 last_calculated_at = excluded.last_calculated_at`

func blockArgs(p risk.BlockRiskProfile) []any {
	return []any{
		p.BlockID, p.Lat, p.Lng,
		p.Crime, p.Blight, p.EmergencyResponse,
		p.AirQuality, p.HeatExposure, p.TrafficSpeed,
		p.CompositeRiskIndex, string(p.RiskCategory), timeArg(p.LastCalculatedAt),
	}
}

func (s *sqlStore) UpsertBlock(ctx context.Context, p risk.BlockRiskProfile) error {
	return s.exec(ctx, upsertBlockQuery, blockArgs(p)...)
}

func (s *sqlStore) UpsertBlocks(ctx context.Context, profiles []risk.BlockRiskProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(upsertBlockQuery))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, p := range profiles {
		if _, err := stmt.ExecContext(ctx, blockArgs(p)...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

const selectBlockColumns = `SELECT block_id, lat, lng, crime_score, blight_score,
	emergency_response_score, air_quality_score, heat_exposure_score,
	traffic_speed_score, composite_risk_index, risk_category, last_calculated_at
	FROM blocks`

func scanBlock(row interface{ Scan(dest ...any) error }) (risk.BlockRiskProfile, error) {
	var p risk.BlockRiskProfile
	var category string
	err := row.Scan(
		&p.BlockID, &p.Lat, &p.Lng,
		&p.Crime, &p.Blight, &p.EmergencyResponse,
		&p.AirQuality, &p.HeatExposure, &p.TrafficSpeed,
		&p.CompositeRiskIndex, &category, timeText{&p.LastCalculatedAt},
	)
	p.RiskCategory = risk.Category(category)
	return p, err
}

func (s *sqlStore) GetBlock(ctx context.Context, blockID string) (risk.BlockRiskProfile, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectBlockColumns+` WHERE block_id = ?`), blockID)
	p, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return risk.BlockRiskProfile{}, fmt.Errorf("block %s: %w", blockID, ErrNotFound)
	}
	return p, err
}

func (s *sqlStore) ListBlocks(ctx context.Context, f BlockFilter) ([]risk.BlockRiskProfile, error) {
	query := selectBlockColumns
	var clauses []string
	var args []any
	if f.Category != "" {
		clauses = append(clauses, "risk_category = ?")
		args = append(args, string(f.Category))
	}
	if f.MinRisk != nil {
		clauses = append(clauses, "composite_risk_index >= ?")
		args = append(args, *f.MinRisk)
	}
	if f.MaxRisk != nil {
		clauses = append(clauses, "composite_risk_index <= ?")
		args = append(args, *f.MaxRisk)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY composite_risk_index DESC"
	if f.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(f.Limit)
	}
	return s.queryBlocks(ctx, query, args...)
}

func (s *sqlStore) BlocksInBounds(ctx context.Context, b Bounds) ([]risk.BlockRiskProfile, error) {
	query := selectBlockColumns +
		` WHERE lat >= ? AND lat <= ? AND lng >= ? AND lng <= ?
		ORDER BY composite_risk_index DESC`
	return s.queryBlocks(ctx, query, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
}

func (s *sqlStore) queryBlocks(ctx context.Context, query string, args ...any) ([]risk.BlockRiskProfile, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []risk.BlockRiskProfile
	for rows.Next() {
		p, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

const insertMeasurementQuery = `INSERT INTO measurements
	(id, block_id, factor_type, raw_value, raw_unit, normalized_score,
	 data_source, measured_at, processed_at, raw_payload)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`

func (s *sqlStore) SaveMeasurements(ctx context.Context, measurements []risk.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, s.rebind(insertMeasurementQuery))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, m := range measurements {
		var payload any
		if len(m.RawPayload) > 0 {
			payload = string(m.RawPayload)
		}
		if _, err := stmt.ExecContext(ctx,
			m.ID, m.BlockID, string(m.Factor), m.RawValue, m.RawUnit,
			m.NormalizedScore, m.DataSource, timeArg(m.MeasuredAt), timeArg(m.ProcessedAt),
			payload,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *sqlStore) ListMeasurements(ctx context.Context, f MeasurementFilter) ([]risk.Measurement, error) {
	query := `SELECT id, block_id, factor_type, raw_value, raw_unit, normalized_score,
		data_source, measured_at, processed_at, raw_payload
		FROM measurements`
	var clauses []string
	var args []any
	if f.BlockID != "" {
		clauses = append(clauses, "block_id = ?")
		args = append(args, f.BlockID)
	}
	if f.Factor != "" {
		clauses = append(clauses, "factor_type = ?")
		args = append(args, string(f.Factor))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY measured_at DESC"
	if f.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var measurements []risk.Measurement
	for rows.Next() {
		var m risk.Measurement
		var factor string
		var payload sql.NullString
		if err := rows.Scan(
			&m.ID, &m.BlockID, &factor, &m.RawValue, &m.RawUnit,
			&m.NormalizedScore, &m.DataSource, timeText{&m.MeasuredAt}, timeText{&m.ProcessedAt}, &payload,
		); err != nil {
			return nil, err
		}
		m.Factor = risk.Factor(factor)
		if payload.Valid && payload.String != "" {
			m.RawPayload = []byte(payload.String)
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}

const insertSnapshotQuery = `INSERT INTO history
	(id, block_id, crime_score, blight_score, emergency_response_score,
	 air_quality_score, heat_exposure_score, traffic_speed_score,
	 composite_risk_index, risk_category, snapshot_date)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`

func (s *sqlStore) AppendSnapshot(ctx context.Context, snap risk.HistorySnapshot) error {
	return s.exec(ctx, insertSnapshotQuery,
		snap.ID, snap.BlockID,
		snap.Crime, snap.Blight, snap.EmergencyResponse,
		snap.AirQuality, snap.HeatExposure, snap.TrafficSpeed,
		snap.CompositeRiskIndex, string(snap.RiskCategory), timeArg(snap.SnapshotDate),
	)
}

const selectSnapshotColumns = `SELECT id, block_id, crime_score, blight_score,
	emergency_response_score, air_quality_score, heat_exposure_score,
	traffic_speed_score, composite_risk_index, risk_category, snapshot_date
	FROM history`

func scanSnapshot(row interface{ Scan(dest ...any) error }) (risk.HistorySnapshot, error) {
	var snap risk.HistorySnapshot
	var category string
	err := row.Scan(
		&snap.ID, &snap.BlockID,
		&snap.Crime, &snap.Blight, &snap.EmergencyResponse,
		&snap.AirQuality, &snap.HeatExposure, &snap.TrafficSpeed,
		&snap.CompositeRiskIndex, &category, timeText{&snap.SnapshotDate},
	)
	snap.RiskCategory = risk.Category(category)
	return snap, err
}

func (s *sqlStore) ListSnapshots(ctx context.Context, blockID string, days int) ([]risk.HistorySnapshot, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	query := selectSnapshotColumns +
		` WHERE block_id = ? AND snapshot_date >= ? ORDER BY snapshot_date DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), blockID, timeArg(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []risk.HistorySnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

func (s *sqlStore) LatestSnapshot(ctx context.Context, blockID string) (risk.HistorySnapshot, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectSnapshotColumns+
		` WHERE block_id = ? ORDER BY snapshot_date DESC LIMIT 1`), blockID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return risk.HistorySnapshot{}, fmt.Errorf("history for %s: %w", blockID, ErrNotFound)
	}
	return snap, err
}
