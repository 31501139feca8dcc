package controllers

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"

	"github.com/mweidner/JadeFrame/app/models"
	"github.com/mweidner/JadeFrame/internal/pkg/billing"
	"github.com/mweidner/JadeFrame/internal/pkg/generation"
	"github.com/mweidner/JadeFrame/internal/pkg/ledger"
	"github.com/mweidner/JadeFrame/internal/pkg/middleware"
)

type fakeGenerator struct {
	job *models.VideoJob
	err error
}

func (f *fakeGenerator) Submit(ctx context.Context, userID uint, req *generation.GenerateRequest) (*models.VideoJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

type fakeJobReader struct {
	jobs map[string]*models.VideoJob
}

func (f *fakeJobReader) GetByIDForUser(id string, userID uint) (*models.VideoJob, error) {
	if job, ok := f.jobs[id]; ok && job.UserID == userID {
		return job, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeJobReader) GetCurrentByUser(userID uint) (*models.VideoJob, error) {
	for _, job := range f.jobs {
		if job.UserID == userID && !job.IsTerminal() {
			return job, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeJobReader) ListByUser(userID uint, offset, limit int) ([]models.VideoJob, error) {
	var out []models.VideoJob
	for _, job := range f.jobs {
		if job.UserID == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

type fakeWallet struct{ balance int64 }

func (f *fakeWallet) Balance(ctx context.Context, userID uint) (int64, error) {
	return f.balance, nil
}

type fakeIngestor struct{ outcome billing.Outcome }

func (f *fakeIngestor) Ingest(ctx context.Context, payload []byte, signatureHeader string) billing.Outcome {
	return f.outcome
}

type statusKey struct {
	userID uint
	jobID  string
}

type fakeStatusCache struct {
	statuses map[statusKey]string
}

func (f *fakeStatusCache) GetJobStatus(userID uint, jobID string) (string, error) {
	if s, ok := f.statuses[statusKey{userID, jobID}]; ok {
		return s, nil
	}
	return "", nil
}

func (f *fakeStatusCache) SetJobStatus(userID uint, jobID, status string) error {
	f.statuses[statusKey{userID, jobID}] = status
	return nil
}

func newTestApp(api *API) *fiber.App {
	app := fiber.New()
	v1 := app.Group("/api/v1", middleware.RequireUser)
	v1.Post("/generate", api.HandleGenerate)
	v1.Get("/jobs/active", api.HandleActiveJob)
	v1.Get("/jobs/:id", api.HandleGetJob)
	v1.Get("/jobs/:id/status", api.HandleJobStatus)
	v1.Get("/wallet", api.HandleWallet)
	app.Post("/webhooks/payment", api.HandlePaymentWebhook)
	return app
}

func newTestAPI() (*API, *fakeJobReader, *fakeStatusCache) {
	jobs := &fakeJobReader{jobs: make(map[string]*models.VideoJob)}
	statuses := &fakeStatusCache{statuses: make(map[statusKey]string)}
	api := NewAPI(
		&fakeGenerator{job: &models.VideoJob{ID: "job-1", UserID: 7, Status: models.JobStatusQueued}},
		jobs,
		&fakeWallet{balance: 42},
		&fakeIngestor{outcome: billing.Outcome{Applied: true}},
		statuses,
	)
	return api, jobs, statuses
}

func doJSON(t *testing.T, app *fiber.App, method, path, body, userID string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestGenerateRequiresIdentityHeader(t *testing.T) {
	api, _, _ := newTestAPI()
	app := newTestApp(api)

	status, body := doJSON(t, app, "POST", "/api/v1/generate", `{"mode":"t2v","prompt":"x"}`, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", gjson.Get(body, "error").String())

	status, _ = doJSON(t, app, "POST", "/api/v1/generate", `{"mode":"t2v","prompt":"x"}`, "abc")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGenerateAccepted(t *testing.T) {
	api, _, statuses := newTestAPI()
	app := newTestApp(api)

	status, body := doJSON(t, app, "POST", "/api/v1/generate", `{"mode":"t2v","prompt":"a fox"}`, "7")
	assert.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, "job-1", gjson.Get(body, "id").String())
	assert.Equal(t, models.JobStatusQueued, gjson.Get(body, "status").String())
	assert.Equal(t, models.JobStatusQueued, statuses.statuses[statusKey{7, "job-1"}])
}

func TestGenerateErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"insufficient funds", ledger.ErrInsufficientFunds, fiber.StatusPaymentRequired, "insufficient_funds"},
		{"invalid request", generation.ErrInvalidRequest, fiber.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, _, _ := newTestAPI()
			api.Generator = &fakeGenerator{err: tt.err}
			app := newTestApp(api)

			status, body := doJSON(t, app, "POST", "/api/v1/generate", `{"mode":"t2v","prompt":"x"}`, "7")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, gjson.Get(body, "error").String())
		})
	}
}

func TestGetJobScopedToOwner(t *testing.T) {
	api, jobs, _ := newTestAPI()
	jobs.jobs["job-1"] = &models.VideoJob{ID: "job-1", UserID: 7, Status: models.JobStatusCompleted, VideoURL: "https://cdn.example/v.mp4"}
	app := newTestApp(api)

	status, body := doJSON(t, app, "GET", "/api/v1/jobs/job-1", "", "7")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "https://cdn.example/v.mp4", gjson.Get(body, "video_url").String())

	// Someone else's id reads as not found, not forbidden.
	status, body = doJSON(t, app, "GET", "/api/v1/jobs/job-1", "", "8")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", gjson.Get(body, "error").String())
}

func TestJobStatusServedFromCache(t *testing.T) {
	api, _, statuses := newTestAPI()
	statuses.statuses[statusKey{7, "job-1"}] = models.JobStatusInProgress
	app := newTestApp(api)

	// The owner's cached status answers without a DB read.
	status, body := doJSON(t, app, "GET", "/api/v1/jobs/job-1/status", "", "7")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.JobStatusInProgress, gjson.Get(body, "status").String())
}

func TestJobStatusNeverServesAnotherUsersCacheEntry(t *testing.T) {
	api, jobs, statuses := newTestAPI()
	jobs.jobs["job-1"] = &models.VideoJob{ID: "job-1", UserID: 7, Status: models.JobStatusInProgress}
	statuses.statuses[statusKey{7, "job-1"}] = models.JobStatusInProgress
	app := newTestApp(api)

	// A different user with the same job id misses the cache and gets the
	// owner-scoped 404 from the store, even while the entry is hot.
	status, body := doJSON(t, app, "GET", "/api/v1/jobs/job-1/status", "", "8")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", gjson.Get(body, "error").String())
	// And the miss did not leak the status into user 8's cache slot.
	assert.Empty(t, statuses.statuses[statusKey{8, "job-1"}])
}

func TestJobStatusFallsBackToStore(t *testing.T) {
	api, jobs, statuses := newTestAPI()
	jobs.jobs["job-1"] = &models.VideoJob{ID: "job-1", UserID: 7, Status: models.JobStatusCompleted, VideoURL: "https://cdn.example/v.mp4"}
	app := newTestApp(api)

	status, body := doJSON(t, app, "GET", "/api/v1/jobs/job-1/status", "", "7")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.JobStatusCompleted, gjson.Get(body, "status").String())
	// The miss repopulated the cache under the owner's key.
	assert.Equal(t, models.JobStatusCompleted, statuses.statuses[statusKey{7, "job-1"}])
}

func TestActiveJob(t *testing.T) {
	api, jobs, _ := newTestAPI()
	app := newTestApp(api)

	status, body := doJSON(t, app, "GET", "/api/v1/jobs/active", "", "7")
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, gjson.Get(body, "job").Type == gjson.Null)

	jobs.jobs["job-1"] = &models.VideoJob{ID: "job-1", UserID: 7, Status: models.JobStatusInProgress}
	status, body = doJSON(t, app, "GET", "/api/v1/jobs/active", "", "7")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "job-1", gjson.Get(body, "job.id").String())
}

func TestWalletBalance(t *testing.T) {
	api, _, _ := newTestAPI()
	app := newTestApp(api)

	status, body := doJSON(t, app, "GET", "/api/v1/wallet", "", "7")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(42), gjson.Get(body, "balance").Int())
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	api, _, _ := newTestAPI()
	api.Webhooks = &fakeIngestor{outcome: billing.Outcome{Err: assert.AnError}}
	app := newTestApp(api)

	// Webhook route carries no identity header; the sender is the payment
	// provider, not a user.
	status, body := doJSON(t, app, "POST", "/webhooks/payment", `{"id":"evt_1"}`, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, gjson.Get(body, "received").Bool())
}
