package cache

import (
	"fmt"
	"time"

	"github.com/mweidner/JadeFrame/app/models"
)

// Active jobs change state quickly, so their cached status expires fast;
// terminal statuses are immutable and can live for a day.
const (
	activeJobStatusTTL   = 5 * time.Second
	terminalJobStatusTTL = 24 * time.Hour
)

// The owner is part of the key: a cached status is only readable through the
// same user id that wrote it, so cache hits carry the same ownership scoping
// as the database reads they replace.
func jobStatusKey(userID uint, jobID string) string {
	return fmt.Sprintf("jobstatus:%d:%s", userID, jobID)
}

// SetJobStatus mirrors the latest known job status into the cache so the
// polling endpoint can answer without a database read. Best-effort only: the
// job row in the database stays the source of truth.
func SetJobStatus(userID uint, jobID, status string) error {
	ttl := activeJobStatusTTL
	switch status {
	case models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled:
		ttl = terminalJobStatusTTL
	}
	return Set(jobStatusKey(userID, jobID), status, ttl)
}

// GetJobStatus returns the cached status for a job owned by the given user,
// if present.
func GetJobStatus(userID uint, jobID string) (string, error) {
	return Get(jobStatusKey(userID, jobID))
}
