package config

import (
	"os"
	"strconv"

	"github.com/sub4sub/backend/internal/models"
)

// CreditsConfig holds the economy knobs: signup bonus, daily earn caps per
// tier, per-minute watch earnings, premium multipliers and referral rewards.
type CreditsConfig struct {
	SignupBonus        int64
	DailyLimitFree     int64
	DailyLimitPremium  int64
	EarnPerWatchMinute int64
	PremiumMultipliers map[models.PremiumTier]float64
	ReferralSignup     int64
	ReferralPurchase   int64
}

func LoadCreditsConfig() *CreditsConfig {
	return &CreditsConfig{
		SignupBonus:        getEnvAsInt64("CREDITS_SIGNUP_BONUS", 100),
		DailyLimitFree:     getEnvAsInt64("CREDITS_DAILY_LIMIT_FREE", 50),
		DailyLimitPremium:  getEnvAsInt64("CREDITS_DAILY_LIMIT_PREMIUM", 200),
		EarnPerWatchMinute: getEnvAsInt64("CREDITS_EARN_WATCH_MINUTE", 2),
		PremiumMultipliers: map[models.PremiumTier]float64{
			models.TierBasic: getEnvAsFloat("CREDITS_MULTIPLIER_BASIC", 1.25),
			models.TierPro:   getEnvAsFloat("CREDITS_MULTIPLIER_PRO", 1.5),
			models.TierElite: getEnvAsFloat("CREDITS_MULTIPLIER_ELITE", 2.0),
		},
		ReferralSignup:   getEnvAsInt64("CREDITS_REFERRAL_SIGNUP", 50),
		ReferralPurchase: getEnvAsInt64("CREDITS_REFERRAL_PURCHASE", 200),
	}
}

// DailyCap returns the daily earn cap for a tier. The premium cap applies to
// every paid tier; only free accounts get the lower one.
func (c *CreditsConfig) DailyCap(tier models.PremiumTier) int64 {
	if tier != "" && tier != models.TierFree {
		return c.DailyLimitPremium
	}
	return c.DailyLimitFree
}

// Multiplier returns the earn multiplier for a tier, 1.0 for free accounts
// and unknown tiers.
func (c *CreditsConfig) Multiplier(tier models.PremiumTier) float64 {
	if m, ok := c.PremiumMultipliers[tier]; ok {
		return m
	}
	return 1.0
}

// SchedulerConfig carries the cron expressions for the periodic sweeps.
type SchedulerConfig struct {
	ExpirySchedule  string
	QualitySchedule string
}

func LoadSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		ExpirySchedule:  getEnv("SCHEDULE_PREMIUM_EXPIRY", "0 0 * * *"),
		QualitySchedule: getEnv("SCHEDULE_QUALITY_SCORE", "30 2 * * *"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}
