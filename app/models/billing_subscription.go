package models

import "time"

const (
	BillingStatusActive   = "active"
	BillingStatusPastDue  = "past_due"
	BillingStatusCanceled = "canceled"
	BillingStatusExpired  = "expired"
	BillingStatusPaused   = "paused"
)

// BillingSubscription mirrors the payment provider's subscription state for a
// user. Keyed by the provider's subscription id, not the webhook event id:
// many events describe the same subscription over its lifetime.
type BillingSubscription struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	UserID                 uint      `gorm:"not null;index" json:"user_id"`
	Provider               string    `gorm:"type:varchar(20);not null;index:ux_billing_subscriptions_provider_subid,unique,priority:1" json:"provider"`
	ProviderSubscriptionID string    `gorm:"type:varchar(191);not null;index:ux_billing_subscriptions_provider_subid,unique,priority:2" json:"provider_subscription_id"`
	Plan                   string    `gorm:"type:varchar(50);not null;default:'free'" json:"plan"`
	Status                 string    `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	RawPayloadJSON         string    `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
