package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/mweidner/JadeFrame/app/models"
	"github.com/mweidner/JadeFrame/internal/pkg/metrics"
	"github.com/mweidner/JadeFrame/internal/pkg/provider"
)

// provider_status is varchar(255); failure annotations get truncated to fit.
const maxAnnotationLen = 250

const submitTimeout = 60 * time.Second

// SubmitClient is the provider call the dispatcher needs.
type SubmitClient interface {
	Submit(ctx context.Context, endpoint string, input map[string]interface{}) (string, error)
}

// JobStore is the slice of the job repository the dispatcher writes through.
type JobStore interface {
	MarkSubmitted(id string, provider, providerRequestID string) (bool, error)
	ReleaseSlot(id string, annotation string) (bool, error)
}

// Dispatcher submits slot-holding jobs to the compute provider. Exactly one
// submit attempt per admission cycle: any failure returns the job to the
// queue and releases its slot instead of failing it. If the remote actually
// received the job despite a client-observed failure, a later cycle may
// submit it again; that duplicate-submission risk is the accepted price for
// not losing jobs to transient provider trouble.
type Dispatcher struct {
	jobs   JobStore
	client SubmitClient
}

// New creates a dispatcher.
func New(jobs JobStore, client SubmitClient) *Dispatcher {
	return &Dispatcher{jobs: jobs, client: client}
}

// Dispatch submits a job that holds an admission slot. On success the job
// moves to in_progress with the provider's request id recorded; on any
// failure it goes back to queued with the reason annotated.
func (d *Dispatcher) Dispatch(ctx context.Context, job *models.VideoJob) error {
	endpoint, err := ResolveEndpoint(job.Mode)
	if err != nil {
		d.requeue(job.ID, "dispatch failed: "+err.Error())
		metrics.Registry().DispatchAttempts.WithLabelValues("config_error").Inc()
		return err
	}

	input := BuildProviderInput(job)

	callCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	requestID, err := d.client.Submit(callCtx, endpoint, input)
	if err != nil {
		d.requeue(job.ID, "dispatch failed: "+err.Error())
		metrics.Registry().DispatchAttempts.WithLabelValues("failed").Inc()
		return fmt.Errorf("submit job %s to %s: %w", job.ID, endpoint, err)
	}

	updated, err := d.jobs.MarkSubmitted(job.ID, provider.Name, requestID)
	if err != nil {
		// The provider has the job but our row update failed; the reconciler
		// cannot find it without the request id, so this is worth a loud log.
		log.Errorf("[Dispatch] job %s submitted as %s but state update failed: %v", job.ID, requestID, err)
		return err
	}
	if !updated {
		log.Warnf("[Dispatch] job %s changed state during submit, provider request %s may be orphaned", job.ID, requestID)
		return nil
	}

	log.Infof("[Dispatch] job %s submitted to %s as %s", job.ID, endpoint, requestID)
	metrics.Registry().DispatchAttempts.WithLabelValues("ok").Inc()
	return nil
}

func (d *Dispatcher) requeue(jobID, reason string) {
	if _, err := d.jobs.ReleaseSlot(jobID, truncateReason(reason)); err != nil {
		log.Errorf("[Dispatch] failed to requeue job %s: %v", jobID, err)
	}
}

func truncateReason(s string) string {
	if len(s) <= maxAnnotationLen {
		return s
	}
	return s[:maxAnnotationLen]
}
