package service

import "inboxd/internal/constants"

// IngestionLookbackMinutes computes how many minutes of history the reader
// is asked to scan. A cold store (no watermark) gets the bootstrap window;
// otherwise the window covers everything since the watermark plus a small
// buffer so a message timestamped just before the watermark still falls
// inside the requested window despite reader or clock skew.
func IngestionLookbackMinutes(watermarkEpoch, nowEpoch int64, bootstrapMinutes, maxMinutes int) int {
	if watermarkEpoch <= 0 {
		return bootstrapMinutes
	}

	ageSeconds := nowEpoch - watermarkEpoch
	if ageSeconds < 0 {
		ageSeconds = 0
	}

	minutes := int(ageSeconds/60) + constants.IngestionLookbackBufferMinutes
	if minutes < 1 {
		minutes = 1
	}
	if minutes > maxMinutes {
		minutes = maxMinutes
	}
	return minutes
}

// DispatchLookbackMinutes sizes the dispatcher's own window to the age of
// the oldest queued job, so a backlog is never silently outside the window
// the dispatcher resolves against. With nothing queued it falls back to a
// fixed default.
func DispatchLookbackMinutes(oldestQueuedEpoch, nowEpoch int64, maxMinutes int) int {
	if oldestQueuedEpoch <= 0 {
		return constants.DefaultDispatchLookbackMinutes
	}

	ageSeconds := nowEpoch - oldestQueuedEpoch
	if ageSeconds < 0 {
		ageSeconds = 0
	}

	minutes := int(ageSeconds/60) + constants.DispatchLookbackBufferMinutes
	if minutes < 1 {
		minutes = 1
	}
	if minutes > maxMinutes {
		minutes = maxMinutes
	}
	return minutes
}
