package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mweidner/JadeFrame/app/models"
)

// videoJobRepository implements JobRepository backed by GORM.
type videoJobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a job repository instance.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &videoJobRepository{db: db}
}

func (r *videoJobRepository) Create(job *models.VideoJob) error {
	return r.db.Create(job).Error
}

func (r *videoJobRepository) GetByID(id string) (*models.VideoJob, error) {
	var job models.VideoJob
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *videoJobRepository) GetByIDForUser(id string, userID uint) (*models.VideoJob, error) {
	var job models.VideoJob
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// GetCurrentByUser returns the user's most recent non-terminal job, or
// gorm.ErrRecordNotFound when nothing is queued or running.
func (r *videoJobRepository) GetCurrentByUser(userID uint) (*models.VideoJob, error) {
	var job models.VideoJob
	err := r.db.
		Where("user_id = ? AND status NOT IN ?", userID, models.TerminalJobStatuses).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *videoJobRepository) ListByUser(userID uint, offset, limit int) ([]models.VideoJob, error) {
	var jobs []models.VideoJob
	err := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (r *videoJobRepository) ListByStatus(status string, limit int) ([]models.VideoJob, error) {
	var jobs []models.VideoJob
	err := r.db.
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (r *videoJobRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&models.VideoJob{}).
		Where("status IN ?", models.ActiveJobStatuses).
		Count(&count).Error
	return count, err
}

// ReserveSlot is the admission check-and-set. The slot count and the status
// flip happen in one UPDATE statement, so two concurrent callers can never
// both observe free capacity when only one slot remains. MySQL requires the
// self-referencing count to go through a derived table.
func (r *videoJobRepository) ReserveSlot(id string, maxActive int) (bool, error) {
	res := r.db.Exec(`
		UPDATE video_jobs SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
		AND (
			SELECT active FROM (
				SELECT COUNT(*) AS active FROM video_jobs WHERE status IN (?)
			) AS slot_counts
		) < ?`,
		models.JobStatusDispatching, time.Now(),
		id, models.JobStatusQueued,
		models.ActiveJobStatuses, maxActive,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *videoJobRepository) ReleaseSlot(id string, annotation string) (bool, error) {
	return r.transition(id,
		[]string{models.JobStatusDispatching},
		map[string]interface{}{
			"status":          models.JobStatusQueued,
			"provider_status": annotation,
		})
}

func (r *videoJobRepository) MarkSubmitted(id string, provider, providerRequestID string) (bool, error) {
	now := time.Now()
	return r.transition(id,
		[]string{models.JobStatusDispatching},
		map[string]interface{}{
			"status":              models.JobStatusInProgress,
			"provider":            provider,
			"provider_request_id": providerRequestID,
			"provider_status":     "",
			"started_at":          &now,
		})
}

func (r *videoJobRepository) MarkCompleted(id string, videoURL string) (bool, error) {
	if videoURL == "" {
		return false, errors.New("completed jobs require a video artifact url")
	}
	return r.transition(id,
		models.ActiveJobStatuses,
		map[string]interface{}{
			"status":    models.JobStatusCompleted,
			"video_url": videoURL,
		})
}

func (r *videoJobRepository) MarkFailed(id string, errMsg string) (bool, error) {
	if errMsg == "" {
		return false, errors.New("failed jobs require an error message")
	}
	return r.transition(id,
		[]string{models.JobStatusQueued, models.JobStatusDispatching, models.JobStatusInProgress},
		map[string]interface{}{
			"status": models.JobStatusFailed,
			"error":  errMsg,
		})
}

func (r *videoJobRepository) MarkCancelled(id string) (bool, error) {
	return r.transition(id,
		[]string{models.JobStatusQueued, models.JobStatusDispatching, models.JobStatusInProgress},
		map[string]interface{}{
			"status": models.JobStatusCancelled,
		})
}

// UpdateProviderStatus refreshes the diagnostic mirror of the remote status
// on still-active jobs. Terminal rows are left untouched.
func (r *videoJobRepository) UpdateProviderStatus(id string, providerStatus string) error {
	return r.db.Model(&models.VideoJob{}).
		Where("id = ? AND status NOT IN ?", id, models.TerminalJobStatuses).
		Updates(map[string]interface{}{
			"provider_status": providerStatus,
			"updated_at":      time.Now(),
		}).Error
}

// transition applies a guarded status change. RowsAffected == 0 means the
// job was not in any of the expected source states (already advanced by a
// concurrent writer, or terminal) and the caller should treat it as a no-op.
func (r *videoJobRepository) transition(id string, from []string, updates map[string]interface{}) (bool, error) {
	updates["updated_at"] = time.Now()
	res := r.db.Model(&models.VideoJob{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
