package dispatch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/mweidner/JadeFrame/app/models"
	"github.com/mweidner/JadeFrame/internal/pkg/provider"
)

type fakeJobStore struct {
	mu         sync.Mutex
	submitted  map[string]string
	released   map[string]string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		submitted: make(map[string]string),
		released:  make(map[string]string),
	}
}

func (f *fakeJobStore) MarkSubmitted(id string, providerName, providerRequestID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted[id] = providerRequestID
	return true, nil
}

func (f *fakeJobStore) ReleaseSlot(id string, annotation string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released[id] = annotation
	return true, nil
}

func newProviderClient(baseURL string, timeout time.Duration) *provider.Client {
	return &provider.Client{
		BaseURL:    baseURL,
		APIKey:     "test",
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func dispatchableJob() *models.VideoJob {
	return &models.VideoJob{
		ID:      "job-1",
		UserID:  7,
		Mode:    models.JobModeTextToVideo,
		Status:  models.JobStatusDispatching,
		Prompt:  "a jade fox running through snow",
		Width:   1280,
		Height:  720,
		Steps:   30,
		Payload: `{"prompt":"tampered","width":9999,"seed":42}`,
	}
}

func TestDispatchSuccessMarksSubmitted(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"request_id":"req_9"}`))
	}))
	defer srv.Close()

	jobs := newFakeJobStore()
	d := New(jobs, newProviderClient(srv.URL, 2*time.Second))

	err := d.Dispatch(context.Background(), dispatchableJob())
	require.NoError(t, err)

	assert.Equal(t, "req_9", jobs.submitted["job-1"])
	assert.Empty(t, jobs.released)

	// Structured fields override payload-reconstructed ones; extra payload
	// fields pass through.
	assert.Equal(t, "a jade fox running through snow", gjson.GetBytes(gotBody, "prompt").String())
	assert.Equal(t, int64(1280), gjson.GetBytes(gotBody, "width").Int())
	assert.Equal(t, int64(42), gjson.GetBytes(gotBody, "seed").Int())
}

func TestDispatchProviderErrorRequeuesJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	jobs := newFakeJobStore()
	d := New(jobs, newProviderClient(srv.URL, 2*time.Second))

	err := d.Dispatch(context.Background(), dispatchableJob())
	require.Error(t, err)

	assert.Empty(t, jobs.submitted)
	annotation, ok := jobs.released["job-1"]
	require.True(t, ok, "failed dispatch must release the slot")
	assert.True(t, strings.HasPrefix(annotation, "dispatch failed:"), annotation)
}

func TestDispatchTimeoutRequeuesJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"request_id":"too_late"}`))
	}))
	defer srv.Close()

	jobs := newFakeJobStore()
	d := New(jobs, newProviderClient(srv.URL, 30*time.Millisecond))

	err := d.Dispatch(context.Background(), dispatchableJob())
	require.Error(t, err)

	assert.Empty(t, jobs.submitted, "timed-out dispatch must not reach in_progress")
	assert.Contains(t, jobs.released, "job-1")
}

func TestDispatchUnknownModeRequeuesJob(t *testing.T) {
	jobs := newFakeJobStore()
	d := New(jobs, newProviderClient("http://unused", time.Second))

	job := dispatchableJob()
	job.Mode = "hologram"

	err := d.Dispatch(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, jobs.released, "job-1")
}

func TestAnnotationTruncation(t *testing.T) {
	long := strings.Repeat("x", 1000)
	assert.Len(t, truncateReason(long), maxAnnotationLen)
	assert.Equal(t, "short", truncateReason("short"))
}
