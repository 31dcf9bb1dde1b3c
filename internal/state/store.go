// Package state manages the SQLite database that holds per-user sync
// checkpoints and category enablement flags.
//
// Only this package may open or query the database. All other packages receive
// a [*Store] and call its methods.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/vitalrelay/vitalrelay/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_checkpoints (
    user_id      TEXT PRIMARY KEY,
    last_sync_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_config (
    user_id        TEXT    NOT NULL,
    category_group TEXT    NOT NULL,
    enabled        INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, category_group)
);
`

// Store is the SQLite-backed checkpoint and config repository.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the state database:
// ~/.local/share/vitalrelay/state.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "vitalrelay", "state.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema, and
// configures WAL mode for better concurrent read performance.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Checkpoint returns the last successful sync instant for the user,
// or ok=false when the user has never completed a cycle.
func (s *Store) Checkpoint(ctx context.Context, userID string) (time.Time, bool, error) {
	const q = `SELECT last_sync_at FROM sync_checkpoints WHERE user_id = ?`

	var raw string
	err := s.db.QueryRowContext(ctx, q, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading checkpoint for %s: %w", userID, err)
	}

	t, err := parseTime(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing checkpoint for %s: %w", userID, err)
	}
	return t, true, nil
}

// SetCheckpoint records the cycle-start instant as the user's checkpoint.
// The write is a single UPSERT: interrupted teardown leaves either the old
// or the new value, never a partial one. Checkpoints only move forward —
// an instant older than the stored one is ignored.
func (s *Store) SetCheckpoint(ctx context.Context, userID string, t time.Time) error {
	const q = `
		INSERT INTO sync_checkpoints (user_id, last_sync_at)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		    last_sync_at = excluded.last_sync_at
		WHERE excluded.last_sync_at > sync_checkpoints.last_sync_at`

	if _, err := s.db.ExecContext(ctx, q, userID, formatTime(t)); err != nil {
		return fmt.Errorf("writing checkpoint for %s: %w", userID, err)
	}
	return nil
}

// EnabledGroups returns the category groups the user has switched on, in
// the canonical [model.Groups] order. An empty result means sync is fully
// disabled for the user.
func (s *Store) EnabledGroups(ctx context.Context, userID string) ([]model.Group, error) {
	const q = `SELECT category_group FROM sync_config WHERE user_id = ? AND enabled = 1`

	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("reading sync config for %s: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	enabled := make(map[model.Group]bool)
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scanning sync config row: %w", err)
		}
		enabled[model.Group(g)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sync config for %s: %w", userID, err)
	}

	var groups []model.Group
	for _, g := range model.Groups {
		if enabled[g] {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// SetGroupEnabled flips one category toggle for the user. Written by the
// configuration surface; the engine itself only reads.
func (s *Store) SetGroupEnabled(ctx context.Context, userID string, group model.Group, enabled bool) error {
	const q = `
		INSERT INTO sync_config (user_id, category_group, enabled)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, category_group) DO UPDATE SET
		    enabled = excluded.enabled`

	val := 0
	if enabled {
		val = 1
	}
	if _, err := s.db.ExecContext(ctx, q, userID, string(group), val); err != nil {
		return fmt.Errorf("updating sync config %s/%s: %w", userID, group, err)
	}
	return nil
}

// --- helpers -----------------------------------------------------------------

// timeLayout pads nanoseconds to fixed width. RFC3339Nano trims trailing
// zeros, which breaks the lexicographic ordering the monotonic UPSERT
// relies on ("...00.5Z" would sort above "...00.55Z"). With fixed width
// and a forced Z suffix, string order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
