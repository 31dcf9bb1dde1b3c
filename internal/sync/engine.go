package sync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	otelScope       = "vitalrelay/sync"
	spanCycle       = "sync.cycle"
	metricInserted  = "vitalrelay.sync.records.inserted"
	metricUpdated   = "vitalrelay.sync.records.updated"
	metricCatErrors = "vitalrelay.sync.category_failures"
	metricCycles    = "vitalrelay.sync.cycles"
)

// Engine drives the sync schedule: an immediate first cycle, then one cycle
// per tick. Cycles run sequentially and are never reentrant. The engine owns
// the cold-start flag: true until the first cycle completes, so that cycle
// gets the wide lookback windows and every later one the narrow warm window.
// Create one with [NewEngine] and start it with [Engine.Run].
type Engine struct {
	reconciler *Reconciler
	interval   time.Duration
	log        *slog.Logger

	coldStart atomic.Bool

	// OTel instruments — always non-nil (no-op when telemetry is disabled).
	tracer       trace.Tracer
	cntInserted  metric.Int64Counter
	cntUpdated   metric.Int64Counter
	cntCatErrors metric.Int64Counter
	cntCycles    metric.Int64Counter
}

// NewEngine creates an Engine around the given reconciler.
func NewEngine(reconciler *Reconciler, interval time.Duration, logger *slog.Logger) *Engine {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	e := &Engine{
		reconciler: reconciler,
		interval:   interval,
		log:        logger,

		tracer:       tracer,
		cntInserted:  mustCounter(metricInserted, "Number of sensor records inserted"),
		cntUpdated:   mustCounter(metricUpdated, "Number of sensor records updated in place"),
		cntCatErrors: mustCounter(metricCatErrors, "Number of category-level sync failures"),
		cntCycles:    mustCounter(metricCycles, "Number of completed sync cycles"),
	}
	e.coldStart.Store(true)
	return e
}

// cycle runs one sync cycle, recording a trace span and metrics. The
// cold-start flag flips only after a cycle actually completes, so an aborted
// first cycle keeps the wide windows for the next attempt.
func (e *Engine) cycle(ctx context.Context) (Stats, error) {
	ctx, span := e.tracer.Start(ctx, spanCycle)
	defer span.End()

	cold := e.coldStart.Load()
	stats, err := e.reconciler.Run(ctx, cold)

	if stats.Inserted > 0 {
		e.cntInserted.Add(ctx, int64(stats.Inserted))
	}
	if stats.Updated > 0 {
		e.cntUpdated.Add(ctx, int64(stats.Updated))
	}
	if stats.CategoryFailures > 0 {
		e.cntCatErrors.Add(ctx, int64(stats.CategoryFailures))
	}
	e.cntCycles.Add(ctx, 1)

	span.SetAttributes(
		attribute.Bool("sync.cold_start", cold),
		attribute.Int("sync.inserted", stats.Inserted),
		attribute.Int("sync.updated", stats.Updated),
		attribute.Int("sync.record_failures", stats.RecordFailures),
		attribute.Int("sync.category_failures", stats.CategoryFailures),
	)
	if err != nil {
		span.RecordError(err)
	}

	// Aborted or skipped cycles keep the wide windows for the next attempt.
	if stats.Completed {
		e.coldStart.Store(false)
	}
	return stats, err
}

// RunOnce performs a single sync cycle and returns its stats.
func (e *Engine) RunOnce(ctx context.Context) (Stats, error) {
	return e.cycle(ctx)
}

// ColdStart reports whether the next cycle will use cold-start windows.
func (e *Engine) ColdStart() bool {
	return e.coldStart.Load()
}

// Run starts the schedule: an immediate first cycle, then one per tick.
// It blocks until ctx is cancelled. Cycle errors are logged, never
// propagated — the schedule always continues.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	if _, err := e.cycle(ctx); err != nil {
		e.log.Error("initial sync cycle failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.cycle(ctx); err != nil {
				e.log.Error("sync cycle failed", "error", err)
			}
		}
	}
}
