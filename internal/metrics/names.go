package metrics

// Metric names recorded by the daemon loop
const (
	IngestCyclesTotal     = "ingest_cycles_total"
	DispatchCyclesTotal   = "dispatch_cycles_total"
	MessagesIngestedTotal = "messages_ingested_total"
	JobsSucceededTotal    = "jobs_succeeded_total"
	CycleErrorsTotal      = "cycle_errors_total"

	QueuedJobsGauge     = "queued_jobs"
	FailedJobsGauge     = "failed_jobs"
	WatermarkEpochGauge = "watermark_epoch"

	IngestCycleTimer   = "ingest_cycle_duration"
	DispatchCycleTimer = "dispatch_cycle_duration"
)
