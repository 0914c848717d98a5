package models

import (
	"time"
)

// CreditAccount holds a user's spendable credit balance and the counters
// used for daily-cap enforcement and auditing. One row per user, created
// at registration with the signup bonus.
type CreditAccount struct {
	UserID         int64     `json:"user_id" db:"user_id"`
	Balance        int64     `json:"balance" db:"balance"`
	DailyEarned    int64     `json:"daily_earned" db:"daily_earned"`
	DailyResetAt   time.Time `json:"daily_reset_at" db:"daily_reset_at"`
	LifetimeEarned int64     `json:"lifetime_earned" db:"lifetime_earned"`
	LifetimeSpent  int64     `json:"lifetime_spent" db:"lifetime_spent"`
	ReferralEarned int64     `json:"referral_earned" db:"referral_earned"`
	Version        int       `json:"version" db:"version"` // for optimistic locking
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// LedgerEntry is an append-only audit row written alongside every balance
// mutation, carrying the post-mutation balance.
type LedgerEntry struct {
	ID        int64     `json:"id" db:"id"`
	EntryID   string    `json:"entry_id" db:"entry_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Amount    int64     `json:"amount" db:"amount"`
	EntryType string    `json:"entry_type" db:"entry_type"` // EARN or SPEND
	Reason    string    `json:"reason" db:"reason"`
	Balance   int64     `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

const (
	EntryTypeEarn  = "EARN"
	EntryTypeSpend = "SPEND"
)

// Earn reasons recognised by the ledger. "earned" is subject to the daily
// cap; bonus and referral credits are not.
const (
	ReasonEarned   = "earned"
	ReasonBonus    = "bonus"
	ReasonReferral = "referral"
	ReasonRefund   = "refund"
)
