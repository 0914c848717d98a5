package models

import "time"

// Payment statuses. Only a completed payment may be applied to a user's
// entitlement; the processed flag then prevents reapplication.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Payment is a payment record owned by the gateway-facing subsystem and
// consumed exactly once by the entitlement processor.
type Payment struct {
	ID                  int64       `json:"id" db:"id"`
	PaymentID           string      `json:"payment_id" db:"payment_id"`
	UserID              int64       `json:"user_id" db:"user_id"`
	Amount              int64       `json:"amount" db:"amount"` // in cents
	Currency            string      `json:"currency" db:"currency"`
	Method              string      `json:"method" db:"method"`
	Status              string      `json:"status" db:"status"`
	PremiumTier         PremiumTier `json:"premium_tier" db:"premium_tier"`
	PremiumDurationDays int         `json:"premium_duration_days" db:"premium_duration_days"`
	Processed           bool        `json:"processed" db:"processed"`
	ProcessedAt         *time.Time  `json:"processed_at" db:"processed_at"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
}
