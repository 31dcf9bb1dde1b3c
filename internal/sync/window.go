package sync

import (
	"time"

	"github.com/vitalrelay/vitalrelay/internal/model"
)

const (
	// warmLookback covers clock skew between the gateway and this process
	// on routine ticks.
	warmLookback = 20 * time.Second

	// baseLookback is the standard cold-start reach, and the synthetic
	// checkpoint age when no checkpoint exists yet.
	baseLookback = 24 * time.Hour

	// extendedLookback covers records that close long after they start:
	// overnight sleep sessions and long exercise sessions.
	extendedLookback = 48 * time.Hour
)

// Window is the half-open time range [From, To) a category is synced over.
type Window struct {
	From time.Time
	To   time.Time
}

// ComputeWindow derives the sync window for one category. Pure and
// deterministic: To is always now, From reaches back from the checkpoint
// by a lookback that depends on the category and whether this is the
// first cycle since activation.
func ComputeWindow(checkpoint time.Time, hasCheckpoint, coldStart bool, cat model.Category, now time.Time) Window {
	if !hasCheckpoint {
		checkpoint = now.Add(-baseLookback)
	}

	var lookback time.Duration
	switch {
	case !coldStart:
		lookback = warmLookback
	case cat == model.CategorySleep, cat == model.CategoryExercise:
		lookback = extendedLookback
	default:
		lookback = baseLookback
	}

	return Window{From: checkpoint.Add(-lookback).UTC(), To: now.UTC()}
}
