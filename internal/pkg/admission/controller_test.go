package admission

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSlotStore reproduces the storage contract: the capacity check and the
// claim happen under one lock, like the single-statement UPDATE in MySQL.
type fakeSlotStore struct {
	mu      sync.Mutex
	holding map[string]bool
	queued  map[string]bool
}

func newFakeSlotStore(queuedJobs ...string) *fakeSlotStore {
	s := &fakeSlotStore{
		holding: make(map[string]bool),
		queued:  make(map[string]bool),
	}
	for _, id := range queuedJobs {
		s.queued[id] = true
	}
	return s
}

func (s *fakeSlotStore) ReserveSlot(id string, maxActive int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.queued[id] {
		return false, nil
	}
	if len(s.holding) >= maxActive {
		return false, nil
	}
	delete(s.queued, id)
	s.holding[id] = true
	return true, nil
}

func (s *fakeSlotStore) ReleaseSlot(id string, annotation string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.holding[id] {
		return false, nil
	}
	delete(s.holding, id)
	s.queued[id] = true
	return true, nil
}

func (s *fakeSlotStore) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.holding)
}

func TestCapacityClamp(t *testing.T) {
	c := New(newFakeSlotStore(), 0)
	assert.Equal(t, 1, c.Capacity())
	c = New(newFakeSlotStore(), -3)
	assert.Equal(t, 1, c.Capacity())
}

func TestSingleSlotAdmitsExactlyOne(t *testing.T) {
	store := newFakeSlotStore("job-a", "job-b")
	c := New(store, 1)

	grantedA, err := c.TryReserveSlot("job-a")
	require.NoError(t, err)
	grantedB, err := c.TryReserveSlot("job-b")
	require.NoError(t, err)

	assert.True(t, grantedA != grantedB, "exactly one of two jobs must win the single slot")
	assert.Equal(t, 1, store.active())
}

func TestDeniedJobStaysQueued(t *testing.T) {
	store := newFakeSlotStore("job-a", "job-b")
	c := New(store, 1)

	granted, err := c.TryReserveSlot("job-a")
	require.NoError(t, err)
	require.True(t, granted)

	granted, err = c.TryReserveSlot("job-b")
	require.NoError(t, err)
	assert.False(t, granted)
	assert.True(t, store.queued["job-b"], "denied job must remain queued for a later pass")
}

func TestConcurrentAdmissionNeverExceedsBound(t *testing.T) {
	const jobs = 25
	const maxActive = 3

	ids := make([]string, jobs)
	for i := range ids {
		ids[i] = fmt.Sprintf("job-%d", i)
	}
	store := newFakeSlotStore(ids...)
	c := New(store, maxActive)

	var wg sync.WaitGroup
	granted := make([]bool, jobs)
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := c.TryReserveSlot(ids[i])
			require.NoError(t, err)
			granted[i] = ok
		}(i)
	}
	wg.Wait()

	grantedCount := 0
	for _, ok := range granted {
		if ok {
			grantedCount++
		}
	}
	assert.Equal(t, maxActive, grantedCount)
	assert.Equal(t, maxActive, store.active())
}

func TestReleaseMakesRoomForNextJob(t *testing.T) {
	store := newFakeSlotStore("job-a", "job-b")
	c := New(store, 1)

	granted, err := c.TryReserveSlot("job-a")
	require.NoError(t, err)
	require.True(t, granted)

	c.ReleaseSlot("job-a", "dispatch failed: connection refused")

	granted, err = c.TryReserveSlot("job-b")
	require.NoError(t, err)
	assert.True(t, granted)
}
