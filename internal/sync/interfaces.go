// Package sync implements the incremental health-data synchronization engine
// for VitalRelay. Each cycle reads raw records from the local health gateway,
// deduplicates them against the remote record store, and advances a single
// per-user checkpoint so the next cycle only covers a short lookback window.
//
// The package contains two main components:
//
//   - [Reconciler] runs one sync cycle: window computation, per-category
//     dedup and writes, device last-seen, checkpoint advance.
//   - [Engine] runs the scheduler loop and owns the cold-start flag.
package sync

import (
	"context"
	"time"

	"github.com/vitalrelay/vitalrelay/internal/model"
)

// HealthSource provides read access to the local health gateway, one method
// per record kind. Implemented by [gateway.Adapter].
type HealthSource interface {
	Steps(ctx context.Context, from, to time.Time) ([]model.StepsRecord, error)
	Distance(ctx context.Context, from, to time.Time) ([]model.DistanceRecord, error)
	Calories(ctx context.Context, from, to time.Time) ([]model.CaloriesRecord, error)
	SleepSessions(ctx context.Context, from, to time.Time) ([]model.SleepSession, error)
	HeartRates(ctx context.Context, from, to time.Time) ([]model.HeartRateSeries, error)
	OxygenSaturation(ctx context.Context, from, to time.Time) ([]model.OxygenReading, error)
	ExerciseSessions(ctx context.Context, from, to time.Time) ([]model.ExerciseSession, error)
}

// RecordStore provides access to the remote sensor-record archive.
// Implemented by [remote.Store]. Both mutations are idempotent; a false
// return with a nil error is a soft per-record failure.
type RecordStore interface {
	FindExisting(ctx context.Context, userID string, cat model.Category, from, to time.Time) ([]model.SensorRecord, error)
	Insert(ctx context.Context, rec model.SensorRecord) (bool, error)
	UpdateByKey(ctx context.Context, userID string, cat model.Category, key model.DedupKey, fields model.Fields) (bool, error)
}

// CheckpointStore persists the per-user sync checkpoint.
// Implemented by [state.Store].
type CheckpointStore interface {
	Checkpoint(ctx context.Context, userID string) (time.Time, bool, error)
	SetCheckpoint(ctx context.Context, userID string, at time.Time) error
}

// ConfigSource reports which category groups the user has enabled.
// Implemented by [state.Store].
type ConfigSource interface {
	EnabledGroups(ctx context.Context, userID string) ([]model.Group, error)
}

// DeviceRegistry records device liveness on the remote side.
// Implemented by [remote.Store].
type DeviceRegistry interface {
	MarkSeen(ctx context.Context, userID, deviceID string, at time.Time) error
}

// StatusNotifier receives the outcome of each completed cycle.
// Fire-and-forget: implementations must not block the engine.
type StatusNotifier interface {
	CycleResult(ctx context.Context, userID string, processed, failures int)
}
