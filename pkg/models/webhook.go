package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Webhook represents a webhook configuration
type Webhook struct {
	ID        string        `json:"id" db:"id"`
	CreatedBy string        `json:"created_by" db:"created_by"`
	URL       string        `json:"url" db:"url"`
	Events    WebhookEvents `json:"events" db:"events"`
	Secret    string        `json:"secret,omitempty" db:"secret"`
	IsActive  bool          `json:"is_active" db:"is_active"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// WebhookEvents holds the events a webhook subscribes to
type WebhookEvents struct {
	TicketCreated  bool `json:"ticket_created"`
	CouponRedeemed bool `json:"coupon_redeemed"`
	PlanExpired    bool `json:"plan_expired"`
}

// Subscribed reports whether the set includes event
func (we WebhookEvents) Subscribed(event string) bool {
	switch event {
	case WebhookEventTicketCreated:
		return we.TicketCreated
	case WebhookEventCouponRedeemed:
		return we.CouponRedeemed
	case WebhookEventPlanExpired:
		return we.PlanExpired
	}
	return false
}

// Value implements driver.Valuer for database storage
func (we WebhookEvents) Value() (driver.Value, error) {
	return json.Marshal(we)
}

// Scan implements sql.Scanner for database retrieval
func (we *WebhookEvents) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, we)
	case string:
		return json.Unmarshal([]byte(v), we)
	default:
		return fmt.Errorf("unsupported webhook events type %T", value)
	}
}

// WebhookDelivery represents a webhook delivery attempt
type WebhookDelivery struct {
	ID           string     `json:"id" db:"id"`
	WebhookID    string     `json:"webhook_id" db:"webhook_id"`
	Event        string     `json:"event" db:"event"`
	Payload      string     `json:"payload" db:"payload"`
	Status       string     `json:"status" db:"status"`
	StatusCode   int        `json:"status_code" db:"status_code"`
	ResponseBody string     `json:"response_body,omitempty" db:"response_body"`
	RetryCount   int        `json:"retry_count" db:"retry_count"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty" db:"next_retry_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// WebhookDeliveryStatus constants
const (
	WebhookDeliveryStatusPending   = "pending"
	WebhookDeliveryStatusDelivered = "delivered"
	WebhookDeliveryStatusFailed    = "failed"
)

// WebhookEvent represents the payload sent to webhooks and carried on the event queue
type WebhookEvent struct {
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Webhook event types
const (
	WebhookEventTicketCreated  = "ticket.created"
	WebhookEventCouponRedeemed = "coupon.redeemed"
	WebhookEventPlanExpired    = "plan.expired"
)

// CouponRedeemedEvent is the data of a coupon.redeemed event
type CouponRedeemedEvent struct {
	Code      string    `json:"code"`
	UserID    string    `json:"user_id"`
	Plan      Plan      `json:"plan"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PlanExpiredEvent is the data of a plan.expired event
type PlanExpiredEvent struct {
	UserID       string    `json:"user_id"`
	PreviousPlan Plan      `json:"previous_plan"`
	ExpiredAt    time.Time `json:"expired_at"`
}
