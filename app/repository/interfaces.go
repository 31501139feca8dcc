package repository

import (
	"github.com/mweidner/JadeFrame/app/models"
)

// JobRepository defines the database operations on video generation jobs.
// Every state transition is a conditional single-statement update guarded on
// the current status, so terminal states are immutable and concurrent
// writers cannot apply transitions out of order.
type JobRepository interface {
	Create(job *models.VideoJob) error
	GetByID(id string) (*models.VideoJob, error)
	GetByIDForUser(id string, userID uint) (*models.VideoJob, error)
	GetCurrentByUser(userID uint) (*models.VideoJob, error)
	ListByUser(userID uint, offset, limit int) ([]models.VideoJob, error)
	ListByStatus(status string, limit int) ([]models.VideoJob, error)
	CountActive() (int64, error)

	// ReserveSlot atomically moves a queued job into "dispatching" while the
	// number of slot-holding jobs is below maxActive. Returns false when the
	// cap is reached or the job is no longer queued.
	ReserveSlot(id string, maxActive int) (bool, error)
	// ReleaseSlot returns a dispatching job to "queued", annotating
	// provider_status with the failure reason for the next admission pass.
	ReleaseSlot(id string, annotation string) (bool, error)

	MarkSubmitted(id string, provider, providerRequestID string) (bool, error)
	MarkCompleted(id string, videoURL string) (bool, error)
	MarkFailed(id string, errMsg string) (bool, error)
	MarkCancelled(id string) (bool, error)
	UpdateProviderStatus(id string, providerStatus string) error
}
