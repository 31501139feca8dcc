package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/mweidner/JadeFrame/app/models"
	"github.com/mweidner/JadeFrame/internal/pkg/dispatch"
	"github.com/mweidner/JadeFrame/internal/pkg/metrics"
	"github.com/mweidner/JadeFrame/internal/pkg/provider"
)

const (
	pollTimeout = 20 * time.Second
	sweepLimit  = 50

	// A job stuck in "dispatching" longer than this lost its dispatcher
	// (process crash between slot grant and submit) and gets its slot back.
	staleDispatchAfter = 10 * time.Minute
)

// StatusClient is the provider read surface the reconciler polls.
type StatusClient interface {
	GetStatus(ctx context.Context, endpoint, requestID string) (*provider.StatusResponse, error)
	GetResult(ctx context.Context, endpoint, requestID string) ([]byte, error)
}

// JobStore is the slice of the job repository the reconciler drives.
type JobStore interface {
	ListByStatus(status string, limit int) ([]models.VideoJob, error)
	MarkCompleted(id string, videoURL string) (bool, error)
	MarkFailed(id string, errMsg string) (bool, error)
	MarkCancelled(id string) (bool, error)
	UpdateProviderStatus(id string, providerStatus string) error
	ReleaseSlot(id string, annotation string) (bool, error)
}

// Reconciler polls the compute provider for in-flight jobs and advances the
// job state machine. Polling is idempotent: repeated calls for the same job
// have no effect beyond the status read and the resulting row update, and a
// job that already reached a terminal state is never touched again.
type Reconciler struct {
	jobs   JobStore
	client StatusClient
}

// New creates a reconciler.
func New(jobs JobStore, client StatusClient) *Reconciler {
	return &Reconciler{jobs: jobs, client: client}
}

// Sweep polls every in-flight job once and recovers jobs whose dispatcher
// died between slot grant and provider submit.
func (r *Reconciler) Sweep(ctx context.Context) {
	jobs, err := r.jobs.ListByStatus(models.JobStatusInProgress, sweepLimit)
	if err != nil {
		log.Errorf("[Reconcile] listing in-flight jobs: %v", err)
		return
	}
	for i := range jobs {
		if err := r.Poll(ctx, &jobs[i]); err != nil {
			log.Errorf("[Reconcile] poll job %s: %v", jobs[i].ID, err)
		}
	}

	r.recoverStaleDispatching()
}

// Poll queries the provider once for the given job and applies the
// normalized result.
func (r *Reconciler) Poll(ctx context.Context, job *models.VideoJob) error {
	if job.IsTerminal() {
		return nil
	}
	if job.ProviderRequestID == nil || *job.ProviderRequestID == "" {
		// Not submitted yet; nothing to reconcile.
		return nil
	}

	endpoint, err := dispatch.ResolveEndpoint(job.Mode)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	st, err := r.client.GetStatus(callCtx, endpoint, *job.ProviderRequestID)
	if err != nil {
		metrics.Registry().ReconcilePolls.WithLabelValues("poll_error").Inc()
		return fmt.Errorf("status poll for job %s: %w", job.ID, err)
	}

	state, known := provider.NormalizeStatus(st.Status)
	if !known {
		// Keep the raw term for diagnostics and try again next sweep.
		metrics.Registry().ReconcilePolls.WithLabelValues("unknown_status").Inc()
		return r.jobs.UpdateProviderStatus(job.ID, st.Status)
	}

	switch state {
	case models.JobStatusInProgress:
		metrics.Registry().ReconcilePolls.WithLabelValues("in_progress").Inc()
		return r.jobs.UpdateProviderStatus(job.ID, st.Status)

	case models.JobStatusCompleted:
		return r.complete(callCtx, job, endpoint, st)

	case models.JobStatusFailed:
		detail := provider.ExtractErrorDetail(st.Raw, fmt.Sprintf("provider reported terminal status %s", st.Status))
		metrics.Registry().ReconcilePolls.WithLabelValues("failed").Inc()
		_, err := r.jobs.MarkFailed(job.ID, detail)
		return err

	case models.JobStatusCancelled:
		metrics.Registry().ReconcilePolls.WithLabelValues("cancelled").Inc()
		_, err := r.jobs.MarkCancelled(job.ID)
		return err
	}
	return nil
}

// complete extracts the artifact URL for a successful job. A success without
// a usable artifact is a failure: completed is never surfaced without a
// video the user can fetch.
func (r *Reconciler) complete(ctx context.Context, job *models.VideoJob, endpoint string, st *provider.StatusResponse) error {
	url, ok := provider.ExtractArtifactURL(st.Raw)
	if !ok {
		// Some endpoint versions only serve the output on the result route.
		if raw, err := r.client.GetResult(ctx, endpoint, *job.ProviderRequestID); err == nil {
			url, ok = provider.ExtractArtifactURL(raw)
		} else {
			log.Warnf("[Reconcile] result fetch for job %s: %v", job.ID, err)
		}
	}

	if !ok {
		metrics.Registry().ReconcilePolls.WithLabelValues("completed_no_artifact").Inc()
		_, err := r.jobs.MarkFailed(job.ID, "provider reported success but returned no video artifact")
		return err
	}

	metrics.Registry().ReconcilePolls.WithLabelValues("completed").Inc()
	updated, err := r.jobs.MarkCompleted(job.ID, url)
	if err != nil {
		return err
	}
	if updated {
		log.Infof("[Reconcile] job %s completed: %s", job.ID, url)
	}
	return nil
}

// recoverStaleDispatching returns slots held by jobs whose dispatch never
// concluded, so the cap cannot leak capacity across process crashes.
func (r *Reconciler) recoverStaleDispatching() {
	jobs, err := r.jobs.ListByStatus(models.JobStatusDispatching, sweepLimit)
	if err != nil {
		log.Errorf("[Reconcile] listing dispatching jobs: %v", err)
		return
	}
	cutoff := time.Now().Add(-staleDispatchAfter)
	for i := range jobs {
		job := &jobs[i]
		if job.ProviderRequestID != nil || job.UpdatedAt.After(cutoff) {
			continue
		}
		log.Warnf("[Reconcile] recovering stale dispatching job %s (age=%s)", job.ID, time.Since(job.UpdatedAt))
		if _, err := r.jobs.ReleaseSlot(job.ID, "recovered by sweeper: dispatch never concluded"); err != nil {
			log.Errorf("[Reconcile] releasing stale slot for job %s: %v", job.ID, err)
		}
	}
}
