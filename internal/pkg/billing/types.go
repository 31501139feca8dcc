package billing

// ProviderJadePay tags rows originating from the JadePay payment provider.
const ProviderJadePay = "jadepay"

// Recognized webhook event types. Everything else is stored for audit and
// acknowledged without side effects.
const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionUpdated   = "subscription.updated"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventCreditsPurchased      = "credits.purchased"
)

// WebhookEvent is the JadePay webhook envelope.
type WebhookEvent struct {
	ID   string           `json:"id"`
	Type string           `json:"type"`
	Data WebhookEventData `json:"data"`
}

// WebhookEventData carries the payloads of all recognized event types;
// unused fields stay zero for a given type.
type WebhookEventData struct {
	UserID         uint   `json:"user_id"`
	SubscriptionID string `json:"subscription_id"`
	Plan           string `json:"plan"`
	Status         string `json:"status"`
	Credits        int64  `json:"credits"`
}

// Outcome reports what the ingestor did with a delivery. The HTTP handler
// acknowledges with 200 regardless; Err is for logs and the audit row only,
// never for the response code, so the sender does not redeliver on our
// internal failures.
type Outcome struct {
	EventID        string
	EventType      string
	SignatureValid bool
	Stored         bool
	Duplicate      bool
	Applied        bool
	Err            error
}
