package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sub4sub/backend/internal/models"
)

const defaultPremiumDurationDays = 30

// EntitlementService applies completed payments to users' premium windows,
// exactly once per payment. The user update and the processed-flag flip share
// one transaction, and the flag flip is guarded with AND processed = FALSE so
// a concurrent apply of the same payment observes zero rows and backs off.
type EntitlementService struct {
	db       *sql.DB
	redis    *redis.Client
	referral *ReferralService
}

func NewEntitlementService(db *sql.DB, rdb *redis.Client, referral *ReferralService) *EntitlementService {
	return &EntitlementService{db: db, redis: rdb, referral: referral}
}

type UpgradeResult struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	Tier      models.PremiumTier `json:"premiumTier,omitempty"`
	ExpiresAt *time.Time         `json:"premiumExpiry,omitempty"`
}

// ApplyPayment extends or creates the user's premium window from a completed
// payment. An active window stacks additively: the extension starts from the
// current expiry, never retroactively shortened. Business rejections come
// back as sentinel errors with a filled-in result message.
func (s *EntitlementService) ApplyPayment(ctx context.Context, payment *models.Payment) (*UpgradeResult, error) {
	if payment.Processed {
		return &UpgradeResult{Message: "Payment already processed"}, ErrAlreadyProcessed
	}
	if payment.Status != models.PaymentCompleted {
		return &UpgradeResult{Message: "Payment not completed"}, ErrNotCompleted
	}

	// Unknown or free tiers on a paid record fall back to the entry tier.
	tier := payment.PremiumTier
	if !tier.Valid() || tier == models.TierFree {
		tier = models.TierBasic
	}
	duration := payment.PremiumDurationDays
	if duration <= 0 {
		duration = defaultPremiumDurationDays
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin upgrade: %w", err)
	}
	defer tx.Rollback()

	// Lock the user row so two payments for the same user stack instead of
	// clobbering each other's expiry.
	var currentExpiry sql.NullTime
	err = tx.QueryRow(`SELECT premium_expiry FROM users WHERE id = $1 FOR UPDATE`, payment.UserID).Scan(&currentExpiry)
	if err == sql.ErrNoRows {
		return &UpgradeResult{Message: "User not found"}, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	now := time.Now()
	base := now
	if currentExpiry.Valid && currentExpiry.Time.After(now) {
		base = currentExpiry.Time
	}
	newExpiry := base.AddDate(0, 0, duration)

	if _, err := tx.Exec(`
		UPDATE users
		SET is_premium = TRUE, premium_tier = $1, premium_expiry = $2, updated_at = $3
		WHERE id = $4`,
		tier, newExpiry, now, payment.UserID); err != nil {
		return nil, fmt.Errorf("upgrade user: %w", err)
	}

	// Final gating step: the processed flag. If another apply won the race
	// this matches nothing and the whole transaction rolls back.
	result, err := tx.Exec(`
		UPDATE payments
		SET processed = TRUE, processed_at = $1
		WHERE id = $2 AND processed = FALSE`,
		now, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("mark payment processed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mark payment processed: %w", err)
	}
	if rows == 0 {
		return &UpgradeResult{Message: "Payment already processed"}, ErrAlreadyProcessed
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit upgrade: %w", err)
	}

	payment.Processed = true
	payment.ProcessedAt = &now

	log.Printf("[PREMIUM] Upgraded: user=%d tier=%s until=%s payment=%s",
		payment.UserID, tier, newExpiry.Format(time.RFC3339), payment.PaymentID)

	pushNotification(ctx, s.redis, Notification{
		UserID:  payment.UserID,
		Title:   "Premium Activated!",
		Message: fmt.Sprintf("Your %s premium subscription is now active until %s!", strings.ToUpper(string(tier)), newExpiry.Format("Jan 2, 2006")),
		Type:    "success",
	})

	// One-time referral bonus for the referrer; the referral service keeps
	// its own idempotency flag.
	if payment.Amount > 0 && s.referral != nil {
		if err := s.referral.AwardFirstPurchaseBonus(ctx, payment.UserID); err != nil {
			log.Printf("[PREMIUM] First purchase bonus failed for user %d: %v", payment.UserID, err)
		}
	}

	return &UpgradeResult{
		Success:   true,
		Message:   "Premium upgrade successful",
		Tier:      tier,
		ExpiresAt: &newExpiry,
	}, nil
}

// FindPayment loads a payment row by its external payment id.
func (s *EntitlementService) FindPayment(paymentID string) (*models.Payment, error) {
	var (
		p           models.Payment
		processedAt sql.NullTime
	)
	err := s.db.QueryRow(`
		SELECT id, payment_id, user_id, amount, currency, method, status, premium_tier, premium_duration_days, processed, processed_at
		FROM payments
		WHERE payment_id = $1`,
		paymentID).Scan(&p.ID, &p.PaymentID, &p.UserID, &p.Amount, &p.Currency, &p.Method, &p.Status,
		&p.PremiumTier, &p.PremiumDurationDays, &p.Processed, &processedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payment query: %w", err)
	}
	if processedAt.Valid {
		p.ProcessedAt = &processedAt.Time
	}
	return &p, nil
}
