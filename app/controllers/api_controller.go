package controllers

import (
	"context"
	"strconv"

	"github.com/mweidner/JadeFrame/app/models"
	"github.com/mweidner/JadeFrame/app/repository"
	"github.com/mweidner/JadeFrame/internal/pkg/admission"
	"github.com/mweidner/JadeFrame/internal/pkg/billing"
	"github.com/mweidner/JadeFrame/internal/pkg/cache"
	"github.com/mweidner/JadeFrame/internal/pkg/database"
	"github.com/mweidner/JadeFrame/internal/pkg/dispatch"
	"github.com/mweidner/JadeFrame/internal/pkg/env"
	"github.com/mweidner/JadeFrame/internal/pkg/generation"
	"github.com/mweidner/JadeFrame/internal/pkg/ledger"
	"github.com/mweidner/JadeFrame/internal/pkg/provider"
)

// Generator submits generation requests.
type Generator interface {
	Submit(ctx context.Context, userID uint, req *generation.GenerateRequest) (*models.VideoJob, error)
}

// JobReader serves the owner-scoped job query surface.
type JobReader interface {
	GetByIDForUser(id string, userID uint) (*models.VideoJob, error)
	GetCurrentByUser(userID uint) (*models.VideoJob, error)
	ListByUser(userID uint, offset, limit int) ([]models.VideoJob, error)
}

// WalletReader projects the current balance.
type WalletReader interface {
	Balance(ctx context.Context, userID uint) (int64, error)
}

// WebhookIngestor processes inbound payment events.
type WebhookIngestor interface {
	Ingest(ctx context.Context, payload []byte, signatureHeader string) billing.Outcome
}

// StatusCache mirrors job statuses for the polling endpoint. Entries are
// keyed by owner and job id together, so a hit never crosses users.
type StatusCache interface {
	GetJobStatus(userID uint, jobID string) (string, error)
	SetJobStatus(userID uint, jobID, status string) error
}

// API bundles the HTTP handlers with their injected collaborators.
type API struct {
	Generator Generator
	Jobs      JobReader
	Wallet    WalletReader
	Webhooks  WebhookIngestor
	Statuses  StatusCache
}

// NewAPI creates the handler set with explicit dependencies.
func NewAPI(g Generator, jobs JobReader, wallet WalletReader, webhooks WebhookIngestor, statuses StatusCache) *API {
	return &API{Generator: g, Jobs: jobs, Wallet: wallet, Webhooks: webhooks, Statuses: statuses}
}

// NewAPIFromGlobals wires the handler set from the process-wide database,
// cache, and environment configuration.
func NewAPIFromGlobals() *API {
	jobs := repository.GetGlobalFactory().GetJobRepository()
	wallet := ledger.NewServiceFromDB(database.GetDB())

	maxActive, err := strconv.Atoi(env.GetEnv("MAX_ACTIVE_JOBS", "3"))
	if err != nil {
		maxActive = 3
	}

	client := provider.NewClientFromEnv()
	gen := generation.NewService(
		wallet,
		jobs,
		admission.New(jobs, maxActive),
		dispatch.New(jobs, client),
	)

	return NewAPI(
		gen,
		jobs,
		wallet,
		billing.NewServiceFromDB(database.GetDB(), wallet),
		redisStatusCache{},
	)
}

// redisStatusCache adapts the cache package to the StatusCache interface.
type redisStatusCache struct{}

func (redisStatusCache) GetJobStatus(userID uint, jobID string) (string, error) {
	return cache.GetJobStatus(userID, jobID)
}

func (redisStatusCache) SetJobStatus(userID uint, jobID, status string) error {
	return cache.SetJobStatus(userID, jobID, status)
}
