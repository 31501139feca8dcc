package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/mweidner/JadeFrame/app/models"
	"github.com/mweidner/JadeFrame/internal/pkg/ledger"
	"github.com/mweidner/JadeFrame/internal/pkg/metrics"
)

// ErrInvalidRequest rejects malformed submissions before any ledger mutation.
var ErrInvalidRequest = errors.New("invalid generation request")

// Wallet is the ledger surface the submission path debits.
type Wallet interface {
	Debit(ctx context.Context, userID uint, amount int64, reason, reference string) (int64, error)
}

// JobCreator persists new job rows.
type JobCreator interface {
	Create(job *models.VideoJob) error
}

// Admitter grants and returns dispatch slots.
type Admitter interface {
	TryReserveSlot(jobID string) (bool, error)
}

// JobDispatcher submits a slot-holding job to the compute provider.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job *models.VideoJob) error
}

// Service orchestrates a generation submission: validate, debit, persist,
// admit, dispatch. Billing failures surface before any job row or provider
// call; a denied slot or failed dispatch leaves the job queued for the
// admission sweep, never failed.
type Service struct {
	wallet     Wallet
	jobs       JobCreator
	admission  Admitter
	dispatcher JobDispatcher
}

// NewService creates a generation service.
func NewService(wallet Wallet, jobs JobCreator, admission Admitter, dispatcher JobDispatcher) *Service {
	return &Service{wallet: wallet, jobs: jobs, admission: admission, dispatcher: dispatcher}
}

// Submit handles one generation request for the given user. The returned job
// is the persisted row; its status is in_progress when the provider accepted
// it immediately, queued otherwise.
func (s *Service) Submit(ctx context.Context, userID uint, req *GenerateRequest) (*models.VideoJob, error) {
	if err := req.Validate(); err != nil {
		metrics.Registry().GenerationRequests.WithLabelValues(req.Mode, "invalid").Inc()
		return nil, err
	}
	req.applyDefaults()

	jobID := uuid.New().String()
	cost := Cost(req.Mode)

	// Debit before the job row exists: no compute is ever consumed unpaid.
	// The reference carries the job id so a retried request body cannot
	// double-charge the same job.
	balance, err := s.wallet.Debit(ctx, userID, cost, "video generation ("+req.Mode+")", "generation:"+jobID)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			metrics.Registry().GenerationRequests.WithLabelValues(req.Mode, "insufficient_funds").Inc()
			return nil, err
		}
		metrics.Registry().GenerationRequests.WithLabelValues(req.Mode, "error").Inc()
		return nil, fmt.Errorf("debiting %d jades for job %s: %w", cost, jobID, err)
	}
	log.Infof("[Generation] debited %d jades from user %d for job %s (balance %d)", cost, userID, jobID, balance)

	job := &models.VideoJob{
		ID:             jobID,
		UserID:         userID,
		Mode:           req.Mode,
		Status:         models.JobStatusQueued,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
		FPS:            req.FPS,
		NumFrames:      req.NumFrames,
		Steps:          req.Steps,
		GuidanceScale:  req.GuidanceScale,
		Payload:        req.payloadJSON(),
	}
	if err := s.jobs.Create(job); err != nil {
		// The debit already happened; the job row is the record that earns
		// it. Surface loudly, the jades are not silently lost thanks to the
		// ledger reference.
		metrics.Registry().GenerationRequests.WithLabelValues(req.Mode, "error").Inc()
		return nil, fmt.Errorf("persisting job %s after debit (reference generation:%s): %w", jobID, jobID, err)
	}

	metrics.Registry().GenerationRequests.WithLabelValues(req.Mode, "accepted").Inc()

	granted, err := s.admission.TryReserveSlot(job.ID)
	if err != nil {
		log.Errorf("[Generation] slot reservation for job %s: %v", job.ID, err)
		return job, nil
	}
	if !granted {
		log.Infof("[Generation] job %s queued, no free slot", job.ID)
		return job, nil
	}

	job.Status = models.JobStatusDispatching
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		// Dispatch already released the slot and requeued the row.
		log.Warnf("[Generation] immediate dispatch of job %s failed, left queued: %v", job.ID, err)
		job.Status = models.JobStatusQueued
		return job, nil
	}

	job.Status = models.JobStatusInProgress
	return job, nil
}
