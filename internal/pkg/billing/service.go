package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/mweidner/JadeFrame/app/models"
	"github.com/mweidner/JadeFrame/internal/pkg/metrics"
)

// CreditLedger is the ledger surface the ingestor needs for purchased
// credit packs.
type CreditLedger interface {
	Credit(ctx context.Context, userID uint, amount int64, reason, reference string) (int64, error)
}

// Service ingests payment provider webhooks. Every delivery walks the same
// four steps, each tolerant of the previous one failing: verify the
// signature, store the audit row, claim the event id, apply the effect.
// The caller acknowledges with 200 whatever the outcome; redelivery of an
// already-claimed event is a no-op.
type Service struct {
	repo     Repository
	ledger   CreditLedger
	verifier SignatureVerifier
}

// NewService creates a webhook ingestion service.
func NewService(repo Repository, ledger CreditLedger, verifier SignatureVerifier) *Service {
	return &Service{repo: repo, ledger: ledger, verifier: verifier}
}

// NewServiceFromDB wires the service against a GORM handle with the
// environment-configured verifier.
func NewServiceFromDB(db *gorm.DB, ledger CreditLedger) *Service {
	return NewService(NewRepository(db), ledger, NewVerifierFromEnv())
}

// Ingest processes one raw webhook delivery.
func (s *Service) Ingest(ctx context.Context, payload []byte, signatureHeader string) Outcome {
	var event WebhookEvent
	parseErr := json.Unmarshal(payload, &event)

	out := Outcome{
		EventID:   eventID(&event, payload),
		EventType: event.Type,
	}

	out.SignatureValid = s.verifier.Verify(ctx, payload, signatureHeader)
	if !out.SignatureValid {
		log.Warnf("[Billing] webhook %s failed signature verification, storing for audit only", out.EventID)
	}

	audit := &models.BillingWebhookEvent{
		Provider:        ProviderJadePay,
		ProviderEventID: out.EventID,
		EventType:       event.Type,
		PayloadJSON:     string(payload),
		SignatureValid:  out.SignatureValid,
	}
	if err := s.repo.StoreWebhookEvent(audit); err != nil {
		// Audit storage failing must not stop processing; the claim below
		// still deduplicates.
		log.Errorf("[Billing] storing webhook audit row for %s: %v", out.EventID, err)
	} else {
		out.Stored = true
	}

	if parseErr != nil {
		out.Err = fmt.Errorf("unparseable webhook payload: %w", parseErr)
		s.finish(audit, &out)
		return out
	}

	claimed, err := s.repo.ClaimEvent(out.EventID)
	if err != nil {
		out.Err = fmt.Errorf("claiming event %s: %w", out.EventID, err)
		s.finish(audit, &out)
		return out
	}
	if !claimed {
		out.Duplicate = true
		log.Infof("[Billing] webhook %s already processed, acknowledging redelivery", out.EventID)
		s.finish(audit, &out)
		return out
	}

	out.Applied, out.Err = s.apply(ctx, &event, payload)
	s.finish(audit, &out)
	return out
}

func (s *Service) apply(ctx context.Context, event *WebhookEvent, payload []byte) (bool, error) {
	switch event.Type {
	case EventSubscriptionActivated, EventSubscriptionUpdated:
		err := s.upsertSubscription(event, payload, subscriptionStatus(event.Data.Status, models.BillingStatusActive))
		return err == nil, err

	case EventSubscriptionCancelled:
		err := s.upsertSubscription(event, payload, models.BillingStatusCanceled)
		return err == nil, err

	case EventCreditsPurchased:
		if event.Data.UserID == 0 || event.Data.Credits <= 0 {
			return false, fmt.Errorf("credits.purchased event %s missing user_id or credits", event.ID)
		}
		reference := "payment:" + event.ID
		balance, err := s.ledger.Credit(ctx, event.Data.UserID, event.Data.Credits, "credit pack purchase", reference)
		if err != nil {
			return false, fmt.Errorf("crediting purchase %s: %w", event.ID, err)
		}
		log.Infof("[Billing] credited %d jades to user %d (balance %d)", event.Data.Credits, event.Data.UserID, balance)
		return true, nil

	default:
		// Unknown types are stored and acknowledged, nothing to apply.
		log.Infof("[Billing] ignoring webhook type %s", event.Type)
		return false, nil
	}
}

func (s *Service) upsertSubscription(event *WebhookEvent, payload []byte, status string) error {
	if event.Data.UserID == 0 || event.Data.SubscriptionID == "" {
		return fmt.Errorf("subscription event %s missing user_id or subscription_id", event.ID)
	}
	sub := &models.BillingSubscription{
		UserID:                 event.Data.UserID,
		Provider:               ProviderJadePay,
		ProviderSubscriptionID: event.Data.SubscriptionID,
		Plan:                   event.Data.Plan,
		Status:                 status,
		RawPayloadJSON:         string(payload),
	}
	if err := s.repo.UpsertSubscription(sub); err != nil {
		return fmt.Errorf("upserting subscription %s: %w", event.Data.SubscriptionID, err)
	}
	log.Infof("[Billing] subscription %s for user %d now %s", event.Data.SubscriptionID, event.Data.UserID, status)
	return nil
}

func (s *Service) finish(audit *models.BillingWebhookEvent, out *Outcome) {
	outcome := "applied"
	switch {
	case out.Err != nil:
		outcome = "error"
	case out.Duplicate:
		outcome = "duplicate"
	case !out.Applied:
		outcome = "ignored"
	}
	metrics.Registry().WebhookEvents.WithLabelValues(nonEmpty(out.EventType, "unknown"), outcome).Inc()

	if !out.Stored {
		return
	}
	errMsg := ""
	if out.Err != nil {
		errMsg = out.Err.Error()
	}
	if err := s.repo.MarkWebhookProcessed(audit.ID, errMsg); err != nil {
		log.Errorf("[Billing] marking webhook %s processed: %v", out.EventID, err)
	}
}

// eventID prefers the sender's id; deliveries without one fall back to a
// payload hash so redeliveries of the same body still deduplicate.
func eventID(event *WebhookEvent, payload []byte) string {
	if id := strings.TrimSpace(event.ID); id != "" {
		return id
	}
	sum := sha256.Sum256(payload)
	return "hash:" + hex.EncodeToString(sum[:])
}

func subscriptionStatus(reported, fallback string) string {
	switch reported {
	case models.BillingStatusActive, models.BillingStatusPastDue,
		models.BillingStatusCanceled, models.BillingStatusExpired,
		models.BillingStatusPaused:
		return reported
	}
	return fallback
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
