package database

// Message event and job queries
const (
	insertMessageEventQuery = `
		INSERT OR IGNORE INTO message_events
		(guid, text, date_local, timestamp_epoch, raw_json, created_at_utc)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	insertProcessingJobQuery = `
		INSERT OR IGNORE INTO processing_jobs
		(message_guid, status, attempts, last_error, created_at_utc, updated_at_utc)
		VALUES (?, 'queued', 0, NULL, ?, ?)
	`

	selectQueuedJobsQuery = `
		SELECT
			j.id,
			j.message_guid,
			j.attempts,
			e.timestamp_epoch,
			e.date_local,
			e.text
		FROM processing_jobs j
		JOIN message_events e ON e.guid = j.message_guid
		WHERE j.status IN (%s)
		ORDER BY e.timestamp_epoch ASC
		LIMIT ?
	`

	selectJobByGUIDQuery = `
		SELECT id, message_guid, status, attempts, last_error, created_at_utc, updated_at_utc
		FROM processing_jobs
		WHERE message_guid = ?
	`

	markJobsRunningQuery = `
		UPDATE processing_jobs
		SET status = 'running',
		    attempts = attempts + 1,
		    updated_at_utc = ?
		WHERE id IN (%s)
	`

	markJobResultQuery = `
		UPDATE processing_jobs
		SET status = ?, last_error = ?, updated_at_utc = ?
		WHERE message_guid = ?
	`

	countJobsByStatusQuery = `
		SELECT COUNT(*) FROM processing_jobs WHERE status = ?
	`

	resetStaleRunningJobsQuery = `
		UPDATE processing_jobs
		SET status = 'queued', updated_at_utc = ?
		WHERE status = 'running'
	`
)

// Watermark queries
const (
	selectWatermarkQuery = `
		SELECT value FROM watermarks WHERE key = ?
	`

	upsertWatermarkQuery = `
		INSERT INTO watermarks(key, value, updated_at_utc)
		VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at_utc = excluded.updated_at_utc
	`
)
