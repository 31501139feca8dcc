package billing

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mweidner/JadeFrame/app/models"
)

// Repository provides DB operations used by the webhook ingestor.
type Repository interface {
	StoreWebhookEvent(event *models.BillingWebhookEvent) error
	ClaimEvent(eventID string) (bool, error)
	MarkWebhookProcessed(id uint, processingError string) error
	UpsertSubscription(sub *models.BillingSubscription) error
	GetSubscription(provider, providerSubscriptionID string) (*models.BillingSubscription, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// StoreWebhookEvent appends to the audit trail. Duplicate deliveries get
// duplicate audit rows on purpose: the trail records deliveries, the
// processed-events set deduplicates processing.
func (r *gormRepository) StoreWebhookEvent(event *models.BillingWebhookEvent) error {
	return r.db.Create(event).Error
}

// ClaimEvent is the idempotency gate: an insert that hits the unique index
// means another delivery already claimed the event, and the caller must not
// re-run any business logic.
func (r *gormRepository) ClaimEvent(eventID string) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&models.ProcessedWebhookEvent{EventID: eventID})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	return r.db.Model(&models.BillingWebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": processingError,
		}).Error
}

func (r *gormRepository) UpsertSubscription(sub *models.BillingSubscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"plan",
			"status",
			"raw_payload_json",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider = ? AND provider_subscription_id = ?", sub.Provider, sub.ProviderSubscriptionID).
		First(sub).Error
}

func (r *gormRepository) GetSubscription(provider, providerSubscriptionID string) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	err := r.db.Where("provider = ? AND provider_subscription_id = ?", provider, providerSubscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
