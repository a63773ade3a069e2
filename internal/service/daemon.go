package service

import (
	"context"
	"fmt"
	"time"

	apperrors "inboxd/internal/errors"
	"inboxd/internal/metrics"
	"inboxd/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"inboxd/internal/tracing"
)

// IngestService runs one ingestion cycle.
type IngestService interface {
	Ingest(ctx context.Context) (int, error)
}

// DispatchService runs one dispatch cycle.
type DispatchService interface {
	Dispatch(ctx context.Context) (int, error)
}

// Daemon schedules ingest-then-dispatch cycles at a fixed poll interval.
// There is no internal parallelism: one logical actor runs a cycle to
// completion, sleeps, and repeats. Shutdown is observed only at cycle
// boundaries.
type Daemon struct {
	ingestor   IngestService
	dispatcher DispatchService
	store      Store
	registry   *metrics.Registry
	interval   time.Duration
	logger     *logrus.Logger
	errLog     *apperrors.Logger
}

func NewDaemon(ingestor IngestService, dispatcher DispatchService, store Store, registry *metrics.Registry, interval time.Duration, logger *logrus.Logger) *Daemon {
	return &Daemon{
		ingestor:   ingestor,
		dispatcher: dispatcher,
		store:      store,
		registry:   registry,
		interval:   interval,
		logger:     logger,
		errLog:     apperrors.NewLogger(logger),
	}
}

// Start sweeps stale running jobs, runs one cycle immediately, then loops
// until the context is cancelled. A cycle in flight always completes; a
// failing cycle never terminates the loop.
func (d *Daemon) Start(ctx context.Context) {
	d.logger.WithFields(logrus.Fields{
		"interval": d.interval,
	}).Info("Starting daemon loop")

	if reset, err := d.store.ResetStaleRunningJobs(ctx); err != nil {
		d.logger.WithError(err).Error("Failed to reset stale running jobs")
	} else if reset > 0 {
		d.logger.WithField("reset", reset).Warn("Requeued jobs left running by a previous instance")
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Daemon loop stopping")
			return
		case <-ticker.C:
			d.runCycle(ctx)
		}
	}
}

// RunOnce executes exactly one ingest+dispatch cycle. Used by the loop and
// by single-run mode.
func (d *Daemon) RunOnce(ctx context.Context) models.CycleResult {
	cycleID := uuid.NewString()
	log := d.logger.WithField("cycle_id", cycleID)

	ctx, span := tracing.StartSpan(ctx, "daemon.cycle")
	defer span.End()

	var result models.CycleResult

	ingestStart := time.Now()
	ingestCtx, ingestSpan := tracing.StartSpan(ctx, "daemon.ingest")
	ingested, err := d.ingestor.Ingest(ingestCtx)
	if err != nil {
		tracing.RecordError(ingestCtx, err)
		d.registry.IncrementCounter(metrics.CycleErrorsTotal, "cycles aborted by an error")
		d.errLog.LogRetryableError(err, "Ingest cycle failed", logrus.Fields{"cycle_id": cycleID})
	}
	ingestSpan.End()
	d.registry.IncrementCounter(metrics.IngestCyclesTotal, "ingest cycles run")
	d.registry.RecordTimer(metrics.IngestCycleTimer, time.Since(ingestStart))
	d.registry.AddToCounter(metrics.MessagesIngestedTotal, float64(ingested), "messages newly inserted")
	result.Ingested = ingested

	dispatchStart := time.Now()
	dispatchCtx, dispatchSpan := tracing.StartSpan(ctx, "daemon.dispatch")
	dispatched, err := d.dispatcher.Dispatch(dispatchCtx)
	if err != nil {
		tracing.RecordError(dispatchCtx, err)
		d.registry.IncrementCounter(metrics.CycleErrorsTotal, "cycles aborted by an error")
		d.errLog.LogRetryableError(err, "Dispatch cycle failed", logrus.Fields{"cycle_id": cycleID})
	}
	dispatchSpan.End()
	d.registry.IncrementCounter(metrics.DispatchCyclesTotal, "dispatch cycles run")
	d.registry.RecordTimer(metrics.DispatchCycleTimer, time.Since(dispatchStart))
	d.registry.AddToCounter(metrics.JobsSucceededTotal, float64(dispatched), "jobs reconciled as succeeded")
	result.Dispatched = dispatched

	tracing.AddSpanAttributes(ctx,
		attribute.Int("cycle.ingested", result.Ingested),
		attribute.Int("cycle.dispatched", result.Dispatched),
	)

	d.updateGauges(ctx, log, result)

	return result
}

// runCycle wraps RunOnce for the loop: an unexpected panic in a cycle is
// logged and the loop proceeds to the next tick.
func (d *Daemon) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.registry.IncrementCounter(metrics.CycleErrorsTotal, "cycles aborted by an error")
			d.logger.WithField("panic", fmt.Sprintf("%v", r)).Error("Daemon cycle panicked")
		}
	}()

	d.RunOnce(ctx)
}

func (d *Daemon) updateGauges(ctx context.Context, log *logrus.Entry, result models.CycleResult) {
	queued, err := d.store.CountJobsByStatus(ctx, models.JobQueued)
	if err != nil {
		log.WithError(err).Warn("Failed to count queued jobs")
		return
	}
	failed, err := d.store.CountJobsByStatus(ctx, models.JobFailed)
	if err != nil {
		log.WithError(err).Warn("Failed to count failed jobs")
		return
	}
	watermark, err := d.store.GetWatermarkEpoch(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to read watermark")
		return
	}

	d.registry.SetGauge(metrics.QueuedJobsGauge, float64(queued), "jobs currently queued")
	d.registry.SetGauge(metrics.FailedJobsGauge, float64(failed), "jobs currently failed")
	d.registry.SetGauge(metrics.WatermarkEpochGauge, float64(watermark), "highest ingested message epoch")

	if result.Ingested > 0 || result.Dispatched > 0 {
		log.WithFields(logrus.Fields{
			"ingested":   result.Ingested,
			"dispatched": result.Dispatched,
			"queued":     queued,
			"failed":     failed,
		}).Info("Cycle complete")
	}
}
