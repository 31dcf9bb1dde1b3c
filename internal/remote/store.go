// Package remote implements the PostgreSQL-backed remote record store: the
// archive of synced sensor records plus the device liveness registry.
//
// Records are stored document-style: fixed identity columns plus a JSONB
// column holding the ordered (key, typed value) field list. A unique index
// over (user, sensor type, timestamp, sub-type) makes Insert idempotent —
// retried delivery of the same record can never create a second row.
package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/vitalrelay/vitalrelay/internal/model"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sensor_records (
		id          BIGSERIAL PRIMARY KEY,
		user_id     TEXT NOT NULL,
		device_id   TEXT NOT NULL,
		sensor_type TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		sub_type    TEXT NOT NULL DEFAULT '',
		fields      JSONB NOT NULL
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sensor_records_dedup
		ON sensor_records (user_id, sensor_type, recorded_at, sub_type);`,
	`CREATE TABLE IF NOT EXISTS devices (
		user_id      TEXT NOT NULL,
		device_id    TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'offline',
		last_seen_at TIMESTAMPTZ,
		PRIMARY KEY (user_id, device_id)
	);`,
}

// Store wraps a *sql.DB connected to the remote record database.
type Store struct {
	sql *sql.DB
}

// Open connects to PostgreSQL, pings, and applies the schema.
func Open(dsn string) (*Store, error) {
	s, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening remote store: %w", err)
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("pinging remote store: %w", err)
	}

	st := &Store{sql: s}
	if err := st.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrating remote store: %w", err)
	}
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.sql.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// FindExisting returns all persisted records for the user and the category's
// sensor type whose timestamps fall within [from, to). The engine builds its
// dedup index from the result.
func (s *Store) FindExisting(ctx context.Context, userID string, cat model.Category, from, to time.Time) ([]model.SensorRecord, error) {
	const q = `
		SELECT user_id, device_id, sensor_type, recorded_at, fields
		FROM sensor_records
		WHERE user_id = $1 AND sensor_type = $2 AND recorded_at >= $3 AND recorded_at < $4`

	rows, err := s.sql.QueryContext(ctx, q, userID, cat.SensorType(), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying %s records for %s: %w", cat.SensorType(), userID, err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.SensorRecord
	for rows.Next() {
		var rec model.SensorRecord
		var rawFields []byte
		if err := rows.Scan(&rec.UserID, &rec.DeviceID, &rec.SensorType, &rec.Timestamp, &rawFields); err != nil {
			return nil, fmt.Errorf("scanning sensor record: %w", err)
		}
		if err := json.Unmarshal(rawFields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("parsing fields of record at %s: %w", rec.Timestamp, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Insert persists a new record. Returns false with a nil error when the
// write fails softly; a repeated identical call hits the dedup index and
// reports success without creating a second row.
func (s *Store) Insert(ctx context.Context, rec model.SensorRecord) (bool, error) {
	const q = `
		INSERT INTO sensor_records (user_id, device_id, sensor_type, recorded_at, sub_type, fields)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, sensor_type, recorded_at, sub_type) DO NOTHING`

	rawFields, err := json.Marshal(rec.Fields)
	if err != nil {
		return false, fmt.Errorf("encoding fields: %w", err)
	}

	// Truncate to the column's microsecond grain; otherwise the database
	// would round, and a .5µs instant would land on a different key than
	// the one the engine derived.
	_, err = s.sql.ExecContext(ctx, q,
		rec.UserID,
		rec.DeviceID,
		rec.SensorType,
		rec.Timestamp.UTC().Truncate(time.Microsecond),
		rec.DedupSubType(),
		rawFields,
	)
	if err != nil {
		return false, fmt.Errorf("inserting %s record at %s: %w", rec.SensorType, rec.Timestamp, err)
	}
	return true, nil
}

// UpdateByKey replaces the field set of the record matching the dedup key,
// allowing in-place correction when the source revises a value. Returns
// false when no record matched.
func (s *Store) UpdateByKey(ctx context.Context, userID string, cat model.Category, key model.DedupKey, fields model.Fields) (bool, error) {
	const q = `
		UPDATE sensor_records
		SET fields = $1
		WHERE user_id = $2 AND sensor_type = $3 AND recorded_at = $4 AND sub_type = $5`

	rawFields, err := json.Marshal(fields)
	if err != nil {
		return false, fmt.Errorf("encoding fields: %w", err)
	}

	res, err := s.sql.ExecContext(ctx, q,
		rawFields,
		userID,
		cat.SensorType(),
		time.UnixMicro(key.UnixMicro).UTC(),
		key.SubType,
	)
	if err != nil {
		return false, fmt.Errorf("updating %s record: %w", cat.SensorType(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating %s record: %w", cat.SensorType(), err)
	}
	return n > 0, nil
}

// MarkSeen upserts the device row as online with the given instant.
// Called once per completed cycle.
func (s *Store) MarkSeen(ctx context.Context, userID, deviceID string, at time.Time) error {
	const q = `
		INSERT INTO devices (user_id, device_id, status, last_seen_at)
		VALUES ($1, $2, 'online', $3)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
		    status = 'online',
		    last_seen_at = excluded.last_seen_at`

	if _, err := s.sql.ExecContext(ctx, q, userID, deviceID, at.UTC()); err != nil {
		return fmt.Errorf("marking device %s seen: %w", deviceID, err)
	}
	return nil
}
