package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"inboxd/internal/constants"
	apperrors "inboxd/internal/errors"
	"inboxd/internal/models"

	"github.com/sirupsen/logrus"
)

// Store is the persistence surface the cycles run against, implemented by
// the database package. Both cycles are stateless between invocations and
// rebuild every decision from what the store currently contains.
type Store interface {
	GetWatermarkEpoch(ctx context.Context) (int64, error)
	SetWatermarkEpoch(ctx context.Context, epoch int64) error
	IngestMessages(ctx context.Context, messages []models.MessageEvent) (int, int64, error)
	ListQueuedJobs(ctx context.Context, statuses []models.JobStatus, limit int) ([]models.QueuedJob, error)
	MarkJobsRunning(ctx context.Context, jobIDs []int64) error
	MarkJobResult(ctx context.Context, messageGUID string, success bool, errMsg string) error
	CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error)
	ResetStaleRunningJobs(ctx context.Context) (int64, error)
}

// IngestorOptions configures an Ingestor.
type IngestorOptions struct {
	ReaderPath       string
	BootstrapMinutes int
	MaxMinutes       int

	// Location resolves date_local timestamps; defaults to time.Local.
	Location *time.Location
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Ingestor runs the ingestion cycle: asks the reader for a lookback window
// of messages, validates and deduplicates them into the store, and advances
// the watermark.
type Ingestor struct {
	store  Store
	runner CommandRunner
	opts   IngestorOptions
	logger *logrus.Logger
}

func NewIngestor(store Store, runner CommandRunner, opts IngestorOptions, logger *logrus.Logger) *Ingestor {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ingestor{
		store:  store,
		runner: runner,
		opts:   opts,
		logger: logger,
	}
}

// Ingest executes one ingestion cycle and returns the count of newly
// inserted messages. A reader failure or malformed output fails the cycle
// with the store untouched, so the next cycle re-requests an overlapping
// window.
func (i *Ingestor) Ingest(ctx context.Context) (int, error) {
	watermark, err := i.store.GetWatermarkEpoch(ctx)
	if err != nil {
		return 0, apperrors.NewDatabaseError("read watermark", err)
	}

	nowEpoch := i.opts.Now().Unix()
	lookback := IngestionLookbackMinutes(watermark, nowEpoch, i.opts.BootstrapMinutes, i.opts.MaxMinutes)

	result, err := i.runner.Run(ctx, i.opts.ReaderPath, "--minutes", fmt.Sprintf("%d", lookback))
	if err != nil {
		return 0, apperrors.WrapRetryable(err, apperrors.ErrCodeReaderProcess, "failed to run reader")
	}
	if result.ExitCode != 0 {
		return 0, apperrors.NewProcessError(apperrors.ErrCodeReaderProcess, "reader", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	messages, err := i.parseReaderOutput(result.Stdout)
	if err != nil {
		return 0, err
	}

	inserted, maxEpoch, err := i.store.IngestMessages(ctx, messages)
	if err != nil {
		return 0, apperrors.NewDatabaseError("ingest messages", err)
	}

	if maxEpoch > watermark {
		if err := i.store.SetWatermarkEpoch(ctx, maxEpoch); err != nil {
			return inserted, apperrors.NewDatabaseError("advance watermark", err)
		}
	}

	if inserted > 0 {
		i.logger.WithFields(logrus.Fields{
			"inserted": inserted,
			"lookback": lookback,
		}).Info("Ingested new messages")
	}

	return inserted, nil
}

// parseReaderOutput turns the reader's stdout into validated message
// records. Entries without a guid or date_local are skipped individually;
// an unparsable date fails the whole batch because inserting it would
// corrupt the watermark.
func (i *Ingestor) parseReaderOutput(stdout string) ([]models.MessageEvent, error) {
	raw := strings.TrimSpace(stdout)
	if raw == "" {
		raw = "[]"
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, apperrors.NewMalformedDataError("reader output was not a JSON array", err)
	}

	var messages []models.MessageEvent
	for _, element := range elements {
		record, ok := decodeObject(element)
		if !ok {
			continue
		}

		guid := strings.TrimSpace(stringField(record, "guid"))
		text := strings.TrimSpace(stringField(record, "text"))
		dateLocal := strings.TrimSpace(stringField(record, "date_local"))
		if guid == "" || dateLocal == "" {
			continue
		}

		ts, err := time.ParseInLocation(constants.LocalDateLayout, dateLocal, i.opts.Location)
		if err != nil {
			return nil, apperrors.NewMalformedDataError(
				fmt.Sprintf("unparsable date_local %q for guid %s", dateLocal, SanitizeGUID(guid)), err)
		}

		canonical, err := canonicalJSON(record)
		if err != nil {
			return nil, fmt.Errorf("failed to canonicalize record for guid %s: %w", SanitizeGUID(guid), err)
		}

		messages = append(messages, models.MessageEvent{
			GUID:           guid,
			Text:           text,
			DateLocal:      dateLocal,
			TimestampEpoch: ts.Unix(),
			RawJSON:        canonical,
		})
	}

	return messages, nil
}

// decodeObject decodes one array element as a JSON object, preserving
// number literals.
func decodeObject(element json.RawMessage) (map[string]interface{}, bool) {
	dec := json.NewDecoder(bytes.NewReader(element))
	dec.UseNumber()

	var record map[string]interface{}
	if err := dec.Decode(&record); err != nil {
		return nil, false
	}
	return record, true
}

// stringField coerces a record field to a string the way a duck-typed
// reader emits it: strings pass through, numbers keep their literal form.
func stringField(record map[string]interface{}, key string) string {
	value, ok := record[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		return ""
	}
}

// canonicalJSON renders a record compactly with sorted keys for stable
// storage; Go's map marshaling is key-sorted.
func canonicalJSON(record map[string]interface{}) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
