package models

import "time"

// JobStatus is the lifecycle state of a ProcessingJob. Succeeded and failed
// are terminal; no cycle of this daemon leaves them.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Valid reports whether s is one of the four known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobRunning, JobSucceeded, JobFailed:
		return true
	}
	return false
}

// Terminal reports whether no further automatic transition leaves s.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// MessageEvent is an immutable record of one inbound message. GUID is the
// sole deduplication key; a guid is inserted at most once.
type MessageEvent struct {
	ID             int64
	GUID           string
	Text           string
	DateLocal      string
	TimestampEpoch int64
	RawJSON        string
	CreatedAtUTC   time.Time
}

// ProcessingJob is the unit of dispatch work, in 1:1 correspondence with a
// MessageEvent through its unique message_guid.
type ProcessingJob struct {
	ID           int64
	MessageGUID  string
	Status       JobStatus
	Attempts     int
	LastError    *string
	CreatedAtUTC time.Time
	UpdatedAtUTC time.Time
}

// QueuedJob is one row of the dispatch selection: a queued job joined with
// the message fields the dispatcher sizing needs.
type QueuedJob struct {
	JobID          int64
	MessageGUID    string
	Attempts       int
	TimestampEpoch int64
	DateLocal      string
	Text           string
}

// OutboundMessage is a provisioned ledger of per-channel delivery attempts.
// The table exists as a forward-compatible sink; the current dispatch logic
// does not populate it.
type OutboundMessage struct {
	ID           int64
	MessageGUID  *string
	Channel      string
	PayloadJSON  string
	Status       string
	CreatedAtUTC time.Time
	UpdatedAtUTC time.Time
}

// CycleResult summarizes one ingest+dispatch cycle.
type CycleResult struct {
	Ingested   int `json:"ingested"`
	Dispatched int `json:"dispatched"`
}
