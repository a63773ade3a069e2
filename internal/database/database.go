package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"inboxd/internal/constants"
	"inboxd/internal/migrations"
	"inboxd/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

const utcLayout = "2006-01-02T15:04:05Z"

// Database is the daemon's durable store: message events, per-message job
// state, and the ingestion watermark. All mutating operations run inside
// their own transaction so a crash mid-cycle never leaves a torn write.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func utcNow() string {
	return time.Now().UTC().Format(utcLayout)
}

// GetWatermarkEpoch returns the highest timestamp_epoch ever ingested, or 0
// when no watermark exists yet. An unparsable stored value also degrades to 0.
func (d *Database) GetWatermarkEpoch(ctx context.Context) (int64, error) {
	var value string
	err := d.db.QueryRowContext(ctx, selectWatermarkQuery, constants.WatermarkKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read watermark: %w", err)
	}

	epoch, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, nil
	}
	return epoch, nil
}

// SetWatermarkEpoch upserts the watermark row. Callers are responsible for
// only ever advancing it; the ingest cycle compares before writing.
func (d *Database) SetWatermarkEpoch(ctx context.Context, epoch int64) error {
	return d.withRetry(ctx, "set watermark", func() error {
		_, err := d.db.ExecContext(ctx, upsertWatermarkQuery,
			constants.WatermarkKey, strconv.FormatInt(epoch, 10), utcNow())
		if err != nil {
			return fmt.Errorf("failed to set watermark: %w", err)
		}
		return nil
	})
}

// IngestMessages inserts each message once, keyed by guid, creating its
// queued processing job atomically with the first insertion. Re-ingestion
// of an already-seen guid is a silent no-op. It returns the count of newly
// inserted messages and the maximum timestamp among them.
func (d *Database) IngestMessages(ctx context.Context, messages []models.MessageEvent) (int, int64, error) {
	if len(messages) == 0 {
		return 0, 0, nil
	}

	var inserted int
	var maxEpoch int64
	now := utcNow()

	err := d.withRetry(ctx, "ingest messages", func() error {
		inserted = 0
		maxEpoch = 0

		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		for _, msg := range messages {
			encText, err := d.encryptor.EncryptIfEnabled(msg.Text)
			if err != nil {
				return fmt.Errorf("failed to encrypt message text: %w", err)
			}
			encRaw, err := d.encryptor.EncryptIfEnabled(msg.RawJSON)
			if err != nil {
				return fmt.Errorf("failed to encrypt raw payload: %w", err)
			}

			res, err := tx.ExecContext(ctx, insertMessageEventQuery,
				msg.GUID, encText, msg.DateLocal, msg.TimestampEpoch, encRaw, now)
			if err != nil {
				return fmt.Errorf("failed to insert message event: %w", err)
			}

			rows, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get affected rows: %w", err)
			}
			if rows != 1 {
				continue
			}

			inserted++
			if msg.TimestampEpoch > maxEpoch {
				maxEpoch = msg.TimestampEpoch
			}

			if _, err := tx.ExecContext(ctx, insertProcessingJobQuery, msg.GUID, now, now); err != nil {
				return fmt.Errorf("failed to insert processing job: %w", err)
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return 0, 0, err
	}

	return inserted, maxEpoch, nil
}

// ListQueuedJobs selects up to limit jobs whose status is in statuses,
// oldest message first, so an early backlog is never starved.
func (d *Database) ListQueuedJobs(ctx context.Context, statuses []models.JobStatus, limit int) ([]models.QueuedJob, error) {
	if len(statuses) == 0 || limit <= 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	query := fmt.Sprintf(selectQueuedJobsQuery, placeholders)

	args := make([]interface{}, 0, len(statuses)+1)
	for _, s := range statuses {
		args = append(args, string(s))
	}
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued jobs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var jobs []models.QueuedJob
	for rows.Next() {
		var job models.QueuedJob
		var encText string
		if err := rows.Scan(&job.JobID, &job.MessageGUID, &job.Attempts,
			&job.TimestampEpoch, &job.DateLocal, &encText); err != nil {
			return nil, fmt.Errorf("failed to scan queued job: %w", err)
		}
		job.Text, err = d.encryptor.DecryptIfEnabled(encText)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt message text: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queued jobs: %w", err)
	}

	return jobs, nil
}

// MarkJobsRunning transitions the given jobs to running and increments their
// attempts in a single statement.
func (d *Database) MarkJobsRunning(ctx context.Context, jobIDs []int64) error {
	if len(jobIDs) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(jobIDs)), ",")
	query := fmt.Sprintf(markJobsRunningQuery, placeholders)

	args := make([]interface{}, 0, len(jobIDs)+1)
	args = append(args, utcNow())
	for _, id := range jobIDs {
		args = append(args, id)
	}

	return d.withRetry(ctx, "mark jobs running", func() error {
		if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to mark jobs running: %w", err)
		}
		return nil
	})
}

// MarkJobResult writes a terminal state for one job. On success last_error
// is cleared; on failure it is stored truncated to a bounded length.
func (d *Database) MarkJobResult(ctx context.Context, messageGUID string, success bool, errMsg string) error {
	status := models.JobFailed
	var lastErr interface{}
	if success {
		status = models.JobSucceeded
		lastErr = nil
	} else {
		if len(errMsg) > constants.MaxLastErrorLen {
			errMsg = errMsg[:constants.MaxLastErrorLen]
		}
		lastErr = errMsg
	}

	return d.withRetry(ctx, "mark job result", func() error {
		if _, err := d.db.ExecContext(ctx, markJobResultQuery,
			string(status), lastErr, utcNow(), messageGUID); err != nil {
			return fmt.Errorf("failed to mark job result: %w", err)
		}
		return nil
	})
}

// GetJob retrieves one processing job by its message guid, or nil when no
// such job exists.
func (d *Database) GetJob(ctx context.Context, messageGUID string) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	var status, createdAt, updatedAt string

	err := d.db.QueryRowContext(ctx, selectJobByGUIDQuery, messageGUID).Scan(
		&job.ID, &job.MessageGUID, &status, &job.Attempts, &job.LastError,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.Status = models.JobStatus(status)
	if t, err := time.Parse(utcLayout, createdAt); err == nil {
		job.CreatedAtUTC = t
	}
	if t, err := time.Parse(utcLayout, updatedAt); err == nil {
		job.UpdatedAtUTC = t
	}

	return &job, nil
}

// CountJobsByStatus returns the number of jobs currently in the given status.
func (d *Database) CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, countJobsByStatusQuery, string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// ResetStaleRunningJobs moves every running job back to queued. A crash
// between "mark running" and reconciliation leaves jobs the queued-job
// selector would never see again; the daemon calls this once at startup,
// before the first cycle, while the instance lock guarantees nothing else
// has those jobs in flight.
func (d *Database) ResetStaleRunningJobs(ctx context.Context) (int64, error) {
	var reset int64
	err := d.withRetry(ctx, "reset stale running jobs", func() error {
		res, err := d.db.ExecContext(ctx, resetStaleRunningJobsQuery, utcNow())
		if err != nil {
			return fmt.Errorf("failed to reset stale running jobs: %w", err)
		}
		reset, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		return nil
	})
	return reset, err
}
