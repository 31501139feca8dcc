package models

import "time"

// ProcessedWebhookEvent is the insert-only idempotency gate for webhook
// processing. A successful insert claims the event; a duplicate-key conflict
// means another delivery already ran the business logic and the caller must
// short-circuit. Rows are never updated or deleted.
type ProcessedWebhookEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_processed_webhook_events_event" json:"event_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
