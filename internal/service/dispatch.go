package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "inboxd/internal/errors"
	"inboxd/internal/models"

	"github.com/sirupsen/logrus"
)

// GUIDNotProcessedError is the sentinel last_error written when the
// dispatcher exited cleanly but its reconciliation ledger never confirmed
// the message.
const GUIDNotProcessedError = "guid_not_marked_processed_by_dispatcher"

// RetryPolicy names which job statuses the dispatch selector may pick up.
// The default policy never reselects a terminal status: a failed job stays
// a durable, inspectable record. A future re-queue-on-failure mode plugs in
// here without touching the state machine.
type RetryPolicy interface {
	SelectableStatuses() []models.JobStatus
}

// NoRetryPolicy selects queued jobs only.
type NoRetryPolicy struct{}

func (NoRetryPolicy) SelectableStatuses() []models.JobStatus {
	return []models.JobStatus{models.JobQueued}
}

// DispatchOutcome is the discriminated result of one dispatcher invocation:
// either the process failed as a whole, or it succeeded and the ledger's
// processed set decides each job individually.
type DispatchOutcome struct {
	// ProcessErr is non-empty when the dispatcher process itself failed;
	// Processed is meaningless in that case.
	ProcessErr string
	Processed  map[string]struct{}
}

// jobResolution is the terminal state reconciliation assigns one job.
type jobResolution struct {
	guid    string
	success bool
	errMsg  string
}

// reconcileBatch resolves every job of a batch against a dispatch outcome.
// Pure function: a process-level failure fails the whole batch with the
// captured output; otherwise each guid succeeds iff the ledger confirms it.
func reconcileBatch(batch []models.QueuedJob, outcome DispatchOutcome) []jobResolution {
	resolutions := make([]jobResolution, 0, len(batch))
	for _, job := range batch {
		switch {
		case outcome.ProcessErr != "":
			resolutions = append(resolutions, jobResolution{guid: job.MessageGUID, errMsg: outcome.ProcessErr})
		default:
			if _, ok := outcome.Processed[job.MessageGUID]; ok {
				resolutions = append(resolutions, jobResolution{guid: job.MessageGUID, success: true})
			} else {
				resolutions = append(resolutions, jobResolution{guid: job.MessageGUID, errMsg: GUIDNotProcessedError})
			}
		}
	}
	return resolutions
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	DispatcherPath string
	BatchSize      int
	MaxMinutes     int

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Dispatcher runs the dispatch cycle: selects the oldest queued jobs, marks
// them running, invokes the dispatcher process, and reconciles terminal
// outcomes against the externally written ledger.
type Dispatcher struct {
	store  Store
	runner CommandRunner
	ledger *Ledger
	policy RetryPolicy
	opts   DispatcherOptions
	logger *logrus.Logger
}

func NewDispatcher(store Store, runner CommandRunner, ledger *Ledger, policy RetryPolicy, opts DispatcherOptions, logger *logrus.Logger) *Dispatcher {
	if policy == nil {
		policy = NoRetryPolicy{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		store:  store,
		runner: runner,
		ledger: ledger,
		policy: policy,
		opts:   opts,
		logger: logger,
	}
}

// Dispatch executes one dispatch cycle and returns the count of jobs
// reconciled as succeeded. Every selected job reaches a terminal state
// before this returns; a job is never left running.
func (d *Dispatcher) Dispatch(ctx context.Context) (int, error) {
	batch, err := d.store.ListQueuedJobs(ctx, d.policy.SelectableStatuses(), d.opts.BatchSize)
	if err != nil {
		return 0, apperrors.NewDatabaseError("select queued jobs", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	jobIDs := make([]int64, 0, len(batch))
	oldestEpoch := batch[0].TimestampEpoch
	for _, job := range batch {
		jobIDs = append(jobIDs, job.JobID)
		if job.TimestampEpoch < oldestEpoch {
			oldestEpoch = job.TimestampEpoch
		}
	}

	lookback := DispatchLookbackMinutes(oldestEpoch, d.opts.Now().Unix(), d.opts.MaxMinutes)

	if err := d.store.MarkJobsRunning(ctx, jobIDs); err != nil {
		return 0, apperrors.NewDatabaseError("mark jobs running", err)
	}

	outcome := d.invoke(ctx, lookback)
	resolutions := reconcileBatch(batch, outcome)

	dispatched := 0
	for _, res := range resolutions {
		if err := d.store.MarkJobResult(ctx, res.guid, res.success, res.errMsg); err != nil {
			return dispatched, apperrors.NewDatabaseError("record result for "+SanitizeGUID(res.guid), err)
		}
		if res.success {
			dispatched++
		}
	}

	if outcome.ProcessErr != "" {
		d.logger.WithFields(logrus.Fields{
			"batch": len(batch),
			"error": outcome.ProcessErr,
		}).Error("Dispatcher failed, batch marked failed")
	} else {
		d.logger.WithFields(logrus.Fields{
			"batch":      len(batch),
			"dispatched": dispatched,
		}).Info("Dispatch cycle reconciled")
	}

	return dispatched, nil
}

// invoke runs the dispatcher process and folds its result into a
// DispatchOutcome. The dispatcher has no sub-batch success signal of its
// own; only its exit code and the ledger speak for it.
func (d *Dispatcher) invoke(ctx context.Context, lookback int) DispatchOutcome {
	result, err := d.runner.Run(ctx, d.opts.DispatcherPath, "--interval", fmt.Sprintf("%d", lookback))
	if err != nil {
		return DispatchOutcome{ProcessErr: fmt.Sprintf("failed to run dispatcher: %v", err)}
	}
	if result.ExitCode != 0 {
		msg := strings.TrimSpace(result.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(result.Stdout)
		}
		if msg == "" {
			msg = fmt.Sprintf("dispatcher exited with code %d", result.ExitCode)
		}
		return DispatchOutcome{ProcessErr: msg}
	}

	return DispatchOutcome{Processed: d.ledger.ProcessedIDs()}
}
