package scheduler

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/mweidner/JadeFrame/app/models"
	"github.com/mweidner/JadeFrame/internal/pkg/admission"
	"github.com/mweidner/JadeFrame/internal/pkg/dispatch"
	"github.com/mweidner/JadeFrame/internal/pkg/env"
	"github.com/mweidner/JadeFrame/internal/pkg/metrics"
	"github.com/mweidner/JadeFrame/internal/pkg/reconcile"
)

const admissionBatchSize = 20

// QueueStore lists queued jobs and reports slot usage for the sweeps.
type QueueStore interface {
	ListByStatus(status string, limit int) ([]models.VideoJob, error)
	CountActive() (int64, error)
}

// Scheduler runs the periodic admission sweep and the status reconciliation
// pass. New submissions trigger admission inline; the sweep here is what
// drains the queue when slots free up without new traffic.
type Scheduler struct {
	cron       *cron.Cron
	queue      QueueStore
	admission  *admission.Controller
	dispatcher *dispatch.Dispatcher
	reconciler *reconcile.Reconciler
}

// New creates a scheduler; call Start to begin the sweeps.
func New(queue QueueStore, adm *admission.Controller, d *dispatch.Dispatcher, r *reconcile.Reconciler) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		queue:      queue,
		admission:  adm,
		dispatcher: d,
		reconciler: r,
	}
}

// Start registers the cron entries and launches them in the background.
// Intervals are cron @every specs, operator-configured.
func (s *Scheduler) Start() error {
	admissionSpec := "@every " + env.GetEnv("ADMISSION_SWEEP_INTERVAL", "15s")
	reconcileSpec := "@every " + env.GetEnv("RECONCILE_INTERVAL", "10s")

	if _, err := s.cron.AddFunc(admissionSpec, s.AdmissionSweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(reconcileSpec, s.ReconcileSweep); err != nil {
		return err
	}

	s.cron.Start()
	log.Infof("[Scheduler] started (admission %s, reconcile %s)", admissionSpec, reconcileSpec)
	return nil
}

// Stop halts the cron entries; running sweeps finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("[Scheduler] stopped")
}

// AdmissionSweep dispatches queued jobs, oldest first, until the queue is
// drained or a slot reservation is denied. Denial means the cap is reached,
// so younger jobs cannot be admitted either.
func (s *Scheduler) AdmissionSweep() {
	jobs, err := s.queue.ListByStatus(models.JobStatusQueued, admissionBatchSize)
	if err != nil {
		log.Errorf("[Scheduler] listing queued jobs: %v", err)
		return
	}

	for i := range jobs {
		job := &jobs[i]
		granted, err := s.admission.TryReserveSlot(job.ID)
		if err != nil {
			log.Errorf("[Scheduler] slot reservation for job %s: %v", job.ID, err)
			continue
		}
		if !granted {
			break
		}
		job.Status = models.JobStatusDispatching
		if err := s.dispatcher.Dispatch(context.Background(), job); err != nil {
			log.Warnf("[Scheduler] dispatch of job %s failed, requeued: %v", job.ID, err)
		}
	}

	s.updateActiveGauge()
}

// ReconcileSweep polls in-flight jobs and recovers stale dispatch claims.
func (s *Scheduler) ReconcileSweep() {
	s.reconciler.Sweep(context.Background())
	s.updateActiveGauge()
}

func (s *Scheduler) updateActiveGauge() {
	active, err := s.queue.CountActive()
	if err != nil {
		return
	}
	metrics.Registry().ActiveJobs.Set(float64(active))
}
