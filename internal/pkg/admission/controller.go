package admission

import (
	"github.com/gofiber/fiber/v2/log"
)

// SlotStore is the subset of the job repository the controller needs. The
// atomicity of the capacity check lives behind this interface: ReserveSlot
// must be a single check-and-set against current job state.
type SlotStore interface {
	ReserveSlot(id string, maxActive int) (bool, error)
	ReleaseSlot(id string, annotation string) (bool, error)
}

// Controller bounds the number of jobs simultaneously holding a dispatch
// slot. Capacity is one global counter across all generation modes; under
// multiple endpoint types this can starve one mode in favor of another,
// which is an operator policy knob to revisit, not a bug.
type Controller struct {
	store     SlotStore
	maxActive int
}

// New creates an admission controller with the given capacity. Capacity is
// clamped to at least one slot.
func New(store SlotStore, maxActive int) *Controller {
	if maxActive < 1 {
		maxActive = 1
	}
	return &Controller{store: store, maxActive: maxActive}
}

// Capacity returns the configured global slot count.
func (c *Controller) Capacity() int {
	return c.maxActive
}

// TryReserveSlot attempts to claim a dispatch slot for a queued job. A grant
// is the sole authorization to dispatch; on denial the job stays queued for
// a later admission pass.
func (c *Controller) TryReserveSlot(jobID string) (bool, error) {
	granted, err := c.store.ReserveSlot(jobID, c.maxActive)
	if err != nil {
		return false, err
	}
	if !granted {
		log.Debugf("[Admission] no slot for job %s (max_active=%d)", jobID, c.maxActive)
	}
	return granted, nil
}

// ReleaseSlot returns a slot-holding job to the queue, keeping the failure
// reason on the row for diagnostics.
func (c *Controller) ReleaseSlot(jobID, reason string) {
	released, err := c.store.ReleaseSlot(jobID, reason)
	if err != nil {
		log.Errorf("[Admission] failed to release slot for job %s: %v", jobID, err)
		return
	}
	if !released {
		log.Warnf("[Admission] job %s was not holding a slot", jobID)
	}
}
