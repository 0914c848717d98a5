package models

import "time"

// Referral links a referrer to the user who signed up with their code.
// The two reward-paid flags are the idempotency guards for the signup and
// first-purchase bonuses.
type Referral struct {
	ID                      int64      `json:"id" db:"id"`
	ReferrerID              int64      `json:"referrer_id" db:"referrer_id"`
	RefereeID               int64      `json:"referee_id" db:"referee_id"`
	ReferralCode            string     `json:"referral_code" db:"referral_code"`
	SignupReward            int64      `json:"signup_reward" db:"signup_reward"`
	SignupRewardPaid        bool       `json:"signup_reward_paid" db:"signup_reward_paid"`
	FirstPurchaseReward     int64      `json:"first_purchase_reward" db:"first_purchase_reward"`
	FirstPurchaseRewardPaid bool       `json:"first_purchase_reward_paid" db:"first_purchase_reward_paid"`
	CompletedAt             *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt               time.Time  `json:"created_at" db:"created_at"`
}
