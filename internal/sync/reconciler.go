package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vitalrelay/vitalrelay/internal/model"
)

// Stats tracks the work performed in a single sync cycle.
type Stats struct {
	Processed        int // records successfully inserted or updated
	Inserted         int
	Updated          int
	RecordFailures   int // soft per-record write failures
	CategoryFailures int // categories that aborted mid-cycle

	// Completed is true once the cycle reached the checkpoint write.
	// Aborted and skipped cycles leave it false.
	Completed bool
}

func (s *Stats) add(o Stats) {
	s.Processed += o.Processed
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.RecordFailures += o.RecordFailures
	s.CategoryFailures += o.CategoryFailures
}

// Failures returns the combined failure count reported to the status
// notifier.
func (s Stats) Failures() int {
	return s.RecordFailures + s.CategoryFailures
}

// Reconciler performs a single sync cycle for one user: per-category
// deduplication against the remote store followed by a single checkpoint
// advance. It is stateless between calls — all persistent state lives in
// the [CheckpointStore] and the remote store.
type Reconciler struct {
	source      HealthSource
	records     RecordStore
	checkpoints CheckpointStore
	config      ConfigSource
	devices     DeviceRegistry
	notifier    StatusNotifier
	userID      string
	deviceID    string
	log         *slog.Logger

	now func() time.Time
}

// NewReconciler creates a Reconciler wired to the given adapters and stores.
// notifier may be nil.
func NewReconciler(source HealthSource, records RecordStore, checkpoints CheckpointStore, config ConfigSource, devices DeviceRegistry, notifier StatusNotifier, userID, deviceID string, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		source:      source,
		records:     records,
		checkpoints: checkpoints,
		config:      config,
		devices:     devices,
		notifier:    notifier,
		userID:      userID,
		deviceID:    deviceID,
		log:         logger,
		now:         time.Now,
	}
}

// Run performs one full sync cycle. Category errors are contained: the
// failing category contributes nothing, the rest still sync, and the
// checkpoint advances regardless (the lookback windows of later cycles
// absorb what a failed category missed). The first contained error is
// returned alongside the stats.
//
// The checkpoint never moves on aborted cycles (bad identity, unreadable
// config, checkpoint read failure) or when no category group is enabled.
func (r *Reconciler) Run(ctx context.Context, coldStart bool) (Stats, error) {
	var stats Stats

	if _, err := uuid.Parse(r.userID); err != nil {
		r.notify(ctx, stats.Processed, 1)
		return stats, fmt.Errorf("%w: %q", ErrInvalidIdentity, r.userID)
	}

	groups, err := r.config.EnabledGroups(ctx, r.userID)
	if err != nil {
		r.notify(ctx, stats.Processed, 1)
		return stats, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}
	if len(groups) == 0 {
		r.log.Debug("no category groups enabled, skipping cycle", "user", r.userID)
		return stats, nil
	}
	enabled := make(map[model.Group]bool, len(groups))
	for _, g := range groups {
		enabled[g] = true
	}

	cycleStart := r.now().UTC()

	checkpoint, hasCheckpoint, err := r.checkpoints.Checkpoint(ctx, r.userID)
	if err != nil {
		r.notify(ctx, stats.Processed, 1)
		return stats, fmt.Errorf("reading checkpoint for %s: %w", r.userID, err)
	}

	var firstErr error
	for _, cat := range model.SyncOrder {
		if !enabled[cat.Group()] {
			continue
		}

		win := ComputeWindow(checkpoint, hasCheckpoint, coldStart, cat, cycleStart)
		cs, err := r.syncCategory(ctx, cat, win)
		stats.add(cs)
		if err != nil {
			r.log.Error("category sync failed",
				"category", cat,
				"from", win.From,
				"to", win.To,
				"error", err,
			)
			stats.CategoryFailures++
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	// Device liveness is best-effort and never blocks the checkpoint.
	if err := r.devices.MarkSeen(ctx, r.userID, r.deviceID, cycleStart); err != nil {
		r.log.Warn("marking device seen failed", "device", r.deviceID, "error", err)
	}

	// Single checkpoint write per cycle, even with category failures.
	if err := r.checkpoints.SetCheckpoint(ctx, r.userID, cycleStart); err != nil {
		r.notify(ctx, stats.Processed, stats.Failures()+1)
		return stats, fmt.Errorf("advancing checkpoint for %s: %w", r.userID, err)
	}
	stats.Completed = true

	r.log.Info("sync cycle complete",
		"user", r.userID,
		"processed", stats.Processed,
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"failures", stats.Failures(),
		"cold_start", coldStart,
	)

	r.notify(ctx, stats.Processed, stats.Failures())
	return stats, firstErr
}

func (r *Reconciler) notify(ctx context.Context, processed, failures int) {
	if r.notifier != nil {
		r.notifier.CycleResult(ctx, r.userID, processed, failures)
	}
}

// syncCategory reconciles one category over its window: index existing
// remote records by dedup key, fetch raw records from the source, then
// insert the new ones and update the rest in place.
func (r *Reconciler) syncCategory(ctx context.Context, cat model.Category, win Window) (Stats, error) {
	var stats Stats

	existing, err := r.records.FindExisting(ctx, r.userID, cat, win.From, win.To)
	if err != nil {
		return stats, fmt.Errorf("listing existing %s records: %w", cat, err)
	}
	seen := make(map[model.DedupKey]bool, len(existing))
	for _, rec := range existing {
		seen[cat.KeyFor(rec)] = true
	}

	docs, err := r.buildRecords(ctx, cat, win)
	if err != nil {
		return stats, fmt.Errorf("reading %s from source: %w", cat, err)
	}

	for _, doc := range docs {
		key := cat.KeyAt(doc.Timestamp)

		var ok bool
		var err error
		if seen[key] {
			ok, err = r.records.UpdateByKey(ctx, r.userID, cat, key, doc.Fields)
		} else {
			ok, err = r.records.Insert(ctx, doc)
		}
		if err != nil {
			// Hard write failures are per-record: log, count, keep going.
			r.log.Error("record write failed", "category", cat, "at", doc.Timestamp, "error", err)
			stats.RecordFailures++
			continue
		}
		if !ok {
			stats.RecordFailures++
			continue
		}

		if seen[key] {
			stats.Updated++
		} else {
			stats.Inserted++
			seen[key] = true
		}
		stats.Processed++
	}

	r.log.Debug("category reconciled",
		"category", cat,
		"existing", len(existing),
		"raw", len(docs),
		"inserted", stats.Inserted,
		"updated", stats.Updated,
	)
	return stats, nil
}

// buildRecords reads the raw records for one category and derives the
// persisted document form.
func (r *Reconciler) buildRecords(ctx context.Context, cat model.Category, win Window) ([]model.SensorRecord, error) {
	switch cat {
	case model.CategorySteps:
		raw, err := r.source.Steps(ctx, win.From, win.To)
		if err != nil {
			return nil, err
		}
		docs := make([]model.SensorRecord, 0, len(raw))
		for _, s := range raw {
			docs = append(docs, r.doc(cat, s.Start, model.Fields{
				{Key: "steps", Value: model.IntValue(s.Count)},
				{Key: "type", Value: model.StringValue("steps")},
			}))
		}
		return docs, nil

	case model.CategoryDistance:
		raw, err := r.source.Distance(ctx, win.From, win.To)
		if err != nil {
			return nil, err
		}
		docs := make([]model.SensorRecord, 0, len(raw))
		for _, d := range raw {
			docs = append(docs, r.doc(cat, d.Start, model.Fields{
				{Key: "distance_meters", Value: model.FloatValue(d.Meters)},
				{Key: "type", Value: model.StringValue("distance")},
			}))
		}
		return docs, nil

	case model.CategoryCalories:
		raw, err := r.source.Calories(ctx, win.From, win.To)
		if err != nil {
			return nil, err
		}
		docs := make([]model.SensorRecord, 0, len(raw))
		for _, c := range raw {
			docs = append(docs, r.doc(cat, c.Start, model.Fields{
				{Key: "calories", Value: model.FloatValue(c.Kilocalories)},
				{Key: "type", Value: model.StringValue("calories")},
			}))
		}
		return docs, nil

	case model.CategorySleep:
		raw, err := r.source.SleepSessions(ctx, win.From, win.To)
		if err != nil {
			return nil, err
		}
		docs := make([]model.SensorRecord, 0, len(raw))
		for _, s := range raw {
			minutes := int64(s.End.Sub(s.Start) / time.Minute)
			docs = append(docs, r.doc(cat, s.Start, model.Fields{
				{Key: "sleep_duration_minutes", Value: model.IntValue(minutes)},
				{Key: "start_time", Value: model.StringValue(s.Start.UTC().Format(time.RFC3339))},
				{Key: "end_time", Value: model.StringValue(s.End.UTC().Format(time.RFC3339))},
				{Key: "type", Value: model.StringValue("sleep")},
			}))
		}
		return docs, nil

	case model.CategoryHeartRate:
		raw, err := r.source.HeartRates(ctx, win.From, win.To)
		if err != nil {
			return nil, err
		}
		// One persisted record per sample, not per series.
		var docs []model.SensorRecord
		for _, series := range raw {
			for _, sample := range series.Samples {
				docs = append(docs, r.doc(cat, sample.Time, model.Fields{
					{Key: "heart_rate_bpm", Value: model.IntValue(sample.BPM)},
					{Key: "time", Value: model.StringValue(sample.Time.UTC().Format(time.RFC3339))},
					{Key: "type", Value: model.StringValue("heart_rate")},
				}))
			}
		}
		return docs, nil

	case model.CategoryBloodOxygen:
		raw, err := r.source.OxygenSaturation(ctx, win.From, win.To)
		if err != nil {
			return nil, err
		}
		docs := make([]model.SensorRecord, 0, len(raw))
		for _, o := range raw {
			docs = append(docs, r.doc(cat, o.Time, model.Fields{
				{Key: "spo2_percentage", Value: model.FloatValue(o.Percentage)},
				{Key: "time", Value: model.StringValue(o.Time.UTC().Format(time.RFC3339))},
				{Key: "type", Value: model.StringValue("spo2")},
			}))
		}
		return docs, nil

	case model.CategoryExercise:
		raw, err := r.source.ExerciseSessions(ctx, win.From, win.To)
		if err != nil {
			return nil, err
		}
		docs := make([]model.SensorRecord, 0, len(raw))
		for _, e := range raw {
			minutes := int64(e.End.Sub(e.Start) / time.Minute)
			docs = append(docs, r.doc(cat, e.Start, model.Fields{
				{Key: "exercise_type", Value: model.StringValue(model.ExerciseTypeName(e.TypeCode))},
				{Key: "duration_minutes", Value: model.IntValue(minutes)},
				{Key: "start_time", Value: model.StringValue(e.Start.UTC().Format(time.RFC3339))},
				{Key: "end_time", Value: model.StringValue(e.End.UTC().Format(time.RFC3339))},
				{Key: "title", Value: model.StringValue(e.Title)},
				{Key: "type", Value: model.StringValue("exercise")},
			}))
		}
		return docs, nil
	}

	return nil, fmt.Errorf("unknown category %q", cat)
}

// doc assembles a SensorRecord with the caller's identity columns. The
// timestamp is truncated to the dedup key's microsecond grain so the
// persisted instant round-trips to the same key the source record keyed on.
func (r *Reconciler) doc(cat model.Category, ts time.Time, fields model.Fields) model.SensorRecord {
	return model.SensorRecord{
		UserID:     r.userID,
		DeviceID:   r.deviceID,
		SensorType: cat.SensorType(),
		Timestamp:  ts.UTC().Truncate(time.Microsecond),
		Fields:     fields,
	}
}
