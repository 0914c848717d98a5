package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"image/png"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/sub4sub/backend/internal/config"
)

// ReferralService pays the signup and first-purchase referral rewards.
// Both rewards are idempotent: the signup reward is paid when the referral
// row is created, the purchase reward is gated by a conditional UPDATE on
// first_purchase_reward_paid.
type ReferralService struct {
	db      *sql.DB
	ledger  *LedgerService
	credits *config.CreditsConfig
	appURL  string
}

func NewReferralService(db *sql.DB, ledger *LedgerService, credits *config.CreditsConfig, appURL string) *ReferralService {
	return &ReferralService{db: db, ledger: ledger, credits: credits, appURL: appURL}
}

// GenerateReferralCode returns a short shareable code. Uniqueness comes from
// the users.referral_code unique index; collisions are practically absent at
// eight hex chars over the user population.
func GenerateReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

// RecordSignup links a new user to the owner of the referral code and pays
// the signup reward to the referrer. Unknown codes are ignored so a mistyped
// code never blocks registration.
func (s *ReferralService) RecordSignup(refereeID int64, referralCode string) error {
	if referralCode == "" {
		return nil
	}

	var referrerID int64
	err := s.db.QueryRow(`SELECT id FROM users WHERE referral_code = $1`, strings.ToUpper(referralCode)).Scan(&referrerID)
	if err == sql.ErrNoRows {
		log.Printf("[REFERRAL] Unknown referral code %q for user %d", referralCode, refereeID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("referral code lookup: %w", err)
	}
	if referrerID == refereeID {
		return nil
	}

	reward := s.credits.ReferralSignup
	_, err = s.db.Exec(`
		INSERT INTO referrals (referrer_id, referee_id, referral_code, signup_reward, signup_reward_paid, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)`,
		referrerID, refereeID, strings.ToUpper(referralCode), reward, time.Now())
	if err != nil {
		return fmt.Errorf("create referral: %w", err)
	}

	if _, err := s.db.Exec(`UPDATE users SET referral_count = referral_count + 1 WHERE id = $1`, referrerID); err != nil {
		return fmt.Errorf("bump referral count: %w", err)
	}

	if _, err := s.ledger.Earn(referrerID, reward, "referral", false); err != nil {
		return fmt.Errorf("pay signup reward: %w", err)
	}

	log.Printf("[REFERRAL] Signup: referrer=%d referee=%d reward=%d", referrerID, refereeID, reward)
	return nil
}

// AwardFirstPurchaseBonus pays the referrer once, the first time the referee
// completes a purchase. No referral, or a bonus already paid, is a quiet
// no-op.
func (s *ReferralService) AwardFirstPurchaseBonus(ctx context.Context, refereeID int64) error {
	bonus := s.credits.ReferralPurchase

	var referrerID int64
	err := s.db.QueryRow(`
		UPDATE referrals
		SET first_purchase_reward = $1, first_purchase_reward_paid = TRUE, completed_at = $2
		WHERE referee_id = $3 AND first_purchase_reward_paid = FALSE
		RETURNING referrer_id`,
		bonus, time.Now(), refereeID).Scan(&referrerID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim purchase reward: %w", err)
	}

	if _, err := s.ledger.Earn(referrerID, bonus, "referral", false); err != nil {
		return fmt.Errorf("pay purchase reward: %w", err)
	}

	log.Printf("[REFERRAL] First purchase bonus: referrer=%d referee=%d bonus=%d", referrerID, refereeID, bonus)
	return nil
}

// Stats returns a user's referral performance for the dashboard.
type ReferralStats struct {
	ReferralCode  string `json:"referralCode"`
	ReferralLink  string `json:"referralLink"`
	ReferralCount int    `json:"referralCount"`
	CreditsEarned int64  `json:"creditsEarned"`
	PurchaseBonus int    `json:"purchaseBonuses"`
}

func (s *ReferralService) Stats(userID int64) (*ReferralStats, error) {
	var stats ReferralStats
	err := s.db.QueryRow(`
		SELECT u.referral_code, u.referral_count, a.referral_earned,
		       (SELECT COUNT(*) FROM referrals r WHERE r.referrer_id = u.id AND r.first_purchase_reward_paid = TRUE)
		FROM users u
		JOIN credit_accounts a ON a.user_id = u.id
		WHERE u.id = $1`,
		userID).Scan(&stats.ReferralCode, &stats.ReferralCount, &stats.CreditsEarned, &stats.PurchaseBonus)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("referral stats: %w", err)
	}
	stats.ReferralLink = s.referralLink(stats.ReferralCode)
	return &stats, nil
}

// ReferralQR renders the user's referral link as a base64 PNG QR code.
func (s *ReferralService) ReferralQR(userID int64) (string, error) {
	var code string
	err := s.db.QueryRow(`SELECT referral_code FROM users WHERE id = $1`, userID).Scan(&code)
	if err == sql.ErrNoRows {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("referral code query: %w", err)
	}

	qr, err := qrcode.New(s.referralLink(code), qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("qr encode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", fmt.Errorf("qr render: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (s *ReferralService) referralLink(code string) string {
	return fmt.Sprintf("%s/register?ref=%s", s.appURL, code)
}
