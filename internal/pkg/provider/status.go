package provider

import (
	"strings"

	"github.com/mweidner/JadeFrame/app/models"
)

// statusTable maps the provider's status vocabulary onto the internal job
// state machine. Remote queue positions still count as in_progress here:
// once submitted, the job occupies an admission slot until it terminates.
var statusTable = map[string]string{
	"IN_QUEUE":    models.JobStatusInProgress,
	"QUEUED":      models.JobStatusInProgress,
	"PENDING":     models.JobStatusInProgress,
	"RUNNING":     models.JobStatusInProgress,
	"IN_PROGRESS": models.JobStatusInProgress,
	"PROCESSING":  models.JobStatusInProgress,
	"SUCCESS":     models.JobStatusCompleted,
	"SUCCEEDED":   models.JobStatusCompleted,
	"COMPLETED":   models.JobStatusCompleted,
	"OK":          models.JobStatusCompleted,
	"FAILED":      models.JobStatusFailed,
	"FAILURE":     models.JobStatusFailed,
	"ERROR":       models.JobStatusFailed,
	"CANCELLED":   models.JobStatusCancelled,
	"CANCELED":    models.JobStatusCancelled,
	"ABORTED":     models.JobStatusCancelled,
}

// NormalizeStatus resolves a provider status term to an internal job state.
// Unknown terms return ok=false; callers keep the raw term as a diagnostic
// annotation and try again on the next poll.
func NormalizeStatus(providerStatus string) (string, bool) {
	state, ok := statusTable[strings.ToUpper(strings.TrimSpace(providerStatus))]
	return state, ok
}
