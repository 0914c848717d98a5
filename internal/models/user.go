package models

import "time"

// PremiumTier enumerates the entitlement tiers a user can hold.
type PremiumTier string

const (
	TierFree  PremiumTier = "free"
	TierBasic PremiumTier = "basic"
	TierPro   PremiumTier = "pro"
	TierElite PremiumTier = "elite"
)

// Valid reports whether t is a known tier.
func (t PremiumTier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierPro, TierElite:
		return true
	}
	return false
}

type User struct {
	ID               int64       `json:"id" example:"1"`
	Email            string      `json:"email" example:"user@example.com"`
	Username         string      `json:"username" example:"creator42"`
	YouTubeChannel   string      `json:"youtubeChannel,omitempty"`
	IsPremium        bool        `json:"isPremium"`
	PremiumTier      PremiumTier `json:"premiumTier"`
	PremiumExpiry    *time.Time  `json:"premiumExpiry,omitempty"`
	PremiumAutoRenew bool        `json:"premiumAutoRenew"`
	IsBanned         bool        `json:"isBanned"`
	ReferralCode     string      `json:"referralCode,omitempty"`
	ReferralCount    int         `json:"referralCount"`
	QualityScore     int         `json:"qualityScore"`
	ReportCount      int         `json:"reportCount"`
	ManualAdjustment int         `json:"-"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// PremiumActive reports whether the user's entitlement window is still open
// at the given instant. The expiry reaper relies on the same predicate in SQL.
func (u *User) PremiumActive(now time.Time) bool {
	return u.IsPremium && u.PremiumExpiry != nil && u.PremiumExpiry.After(now)
}

// QualityMetrics are the inputs to the quality score computation.
// VerifiedActionsRatio and WatchCompletionRate are in [0,1].
type QualityMetrics struct {
	AccountAgeDays       int     `json:"accountAgeDays"`
	VerifiedActionsRatio float64 `json:"verifiedActionsRatio"`
	WatchCompletionRate  float64 `json:"watchCompletionRate"`
	ReportCount          int     `json:"reportCount"`
	ManualAdjustment     int     `json:"manualAdjustment"`
}
