package models

import "time"

// Generation modes supported by the compute provider endpoints.
const (
	JobModeTextToVideo  = "t2v"
	JobModeImageToVideo = "i2v"
	JobModeVoiceToVideo = "voice_to_video"
)

// Job lifecycle states. Jobs are born "queued"; "dispatching" marks a job
// that holds an admission slot but has not yet been acknowledged by the
// compute provider, and counts against the global concurrency cap together
// with "in_progress".
const (
	JobStatusQueued      = "queued"
	JobStatusDispatching = "dispatching"
	JobStatusInProgress  = "in_progress"
	JobStatusCompleted   = "completed"
	JobStatusFailed      = "failed"
	JobStatusCancelled   = "cancelled"
)

// ActiveJobStatuses are the states that occupy an admission slot.
var ActiveJobStatuses = []string{JobStatusDispatching, JobStatusInProgress}

// TerminalJobStatuses permit no further mutation.
var TerminalJobStatuses = []string{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}

// VideoJob is the durable record of a generation request. Jobs are never
// deleted; terminal rows stay around as the audit trail for billing.
type VideoJob struct {
	ID                string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID            uint       `gorm:"not null;index:idx_video_jobs_user_status,priority:1" json:"user_id"`
	Mode              string     `gorm:"type:varchar(32);not null;index" json:"mode"`
	Status            string     `gorm:"type:varchar(20);not null;default:'queued';index;index:idx_video_jobs_user_status,priority:2" json:"status"`
	Prompt            string     `gorm:"type:text" json:"prompt"`
	NegativePrompt    string     `gorm:"type:text" json:"negative_prompt"`
	Width             int        `gorm:"not null;default:0" json:"width"`
	Height            int        `gorm:"not null;default:0" json:"height"`
	FPS               int        `gorm:"column:fps;not null;default:0" json:"fps"`
	NumFrames         int        `gorm:"not null;default:0" json:"num_frames"`
	Steps             int        `gorm:"not null;default:0" json:"steps"`
	GuidanceScale     float64    `gorm:"not null;default:0" json:"guidance_scale"`
	Payload           string     `gorm:"type:longtext" json:"-"`
	Provider          string     `gorm:"type:varchar(32)" json:"provider"`
	ProviderRequestID *string    `gorm:"type:varchar(191);index" json:"provider_request_id,omitempty"`
	ProviderStatus    string     `gorm:"type:varchar(255)" json:"provider_status"`
	VideoURL          string     `gorm:"type:text" json:"video_url"`
	Error             string     `gorm:"type:text" json:"error"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	StartedAt         *time.Time `gorm:"type:timestamp;default:null" json:"started_at,omitempty"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the job reached a final state.
func (j *VideoJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether the job currently occupies an admission slot.
func (j *VideoJob) IsActive() bool {
	return j.Status == JobStatusDispatching || j.Status == JobStatusInProgress
}
