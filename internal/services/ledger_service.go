package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sub4sub/backend/internal/config"
	"github.com/sub4sub/backend/internal/models"
)

// LedgerService owns every mutation of credit_accounts. Spends use a single
// conditional UPDATE so two concurrent spends can never jointly overdraw the
// balance; earns lock the account row so the daily-cap check and the
// increment form one atomic unit.
type LedgerService struct {
	db      *sql.DB
	credits *config.CreditsConfig
}

func NewLedgerService(db *sql.DB, credits *config.CreditsConfig) *LedgerService {
	return &LedgerService{db: db, credits: credits}
}

type SpendResult struct {
	Success    bool  `json:"success"`
	NewBalance int64 `json:"newBalance"`
}

type EarnResult struct {
	Success       bool  `json:"success"`
	AmountGranted int64 `json:"amountGranted"`
	NewBalance    int64 `json:"newBalance"`
}

// BalanceSnapshot is the read model returned to balance enquiries.
type BalanceSnapshot struct {
	Balance        int64 `json:"balance"`
	DailyEarned    int64 `json:"dailyEarned"`
	DailyLimit     int64 `json:"dailyLimit"`
	LifetimeEarned int64 `json:"lifetimeEarned"`
	LifetimeSpent  int64 `json:"lifetimeSpent"`
	ReferralEarned int64 `json:"referralEarned"`
}

// Spend debits amount from the user's account. The balance check and the
// decrement are issued as one statement; zero rows affected means the check
// failed, never that a partial write happened.
func (s *LedgerService) Spend(userID int64, amount int64, reason string) (*SpendResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin spend: %w", err)
	}
	defer tx.Rollback()

	result, err := s.SpendTx(tx, userID, amount, reason)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit spend: %w", err)
	}

	return result, nil
}

// SpendTx runs the spend inside an existing transaction so callers can debit
// and record the purchased thing atomically (e.g. watch room creation).
func (s *LedgerService) SpendTx(tx *sql.Tx, userID int64, amount int64, reason string) (*SpendResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var newBalance int64
	err := tx.QueryRow(`
		UPDATE credit_accounts
		SET balance = balance - $1, lifetime_spent = lifetime_spent + $1, version = version + 1, updated_at = $2
		WHERE user_id = $3 AND balance >= $1
		RETURNING balance`,
		amount, time.Now(), userID).Scan(&newBalance)
	if err == sql.ErrNoRows {
		// The guarded update matched nothing: either the account does not
		// exist or the balance is short.
		var balance int64
		if checkErr := tx.QueryRow(`SELECT balance FROM credit_accounts WHERE user_id = $1`, userID).Scan(&balance); checkErr == sql.ErrNoRows {
			return nil, ErrUserNotFound
		} else if checkErr != nil {
			return nil, fmt.Errorf("spend balance check: %w", checkErr)
		}
		return nil, ErrInsufficientFunds
	}
	if err != nil {
		return nil, fmt.Errorf("spend update: %w", err)
	}

	if err := s.createLedgerEntry(tx, userID, -amount, models.EntryTypeSpend, reason, newBalance); err != nil {
		return nil, err
	}

	log.Printf("[LEDGER] Spend: user=%d amount=%d balance=%d reason=%s", userID, amount, newBalance, reason)
	return &SpendResult{Success: true, NewBalance: newBalance}, nil
}

// Earn credits amount to the user's account. When enforceDailyCap is set and
// the reason is "earned", the grant is clamped to what remains of the
// tier-specific daily cap; the account row stays locked for the duration so
// concurrent earns cannot jointly exceed the cap.
func (s *LedgerService) Earn(userID int64, amount int64, reason string, enforceDailyCap bool) (*EarnResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin earn: %w", err)
	}
	defer tx.Rollback()

	result, err := s.EarnTx(tx, userID, amount, reason, enforceDailyCap)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit earn: %w", err)
	}
	return result, nil
}

// EarnTx runs the earn inside an existing transaction so callers can credit
// the user and flip their own exactly-once flags atomically (e.g. watch
// session payout).
func (s *LedgerService) EarnTx(tx *sql.Tx, userID int64, amount int64, reason string, enforceDailyCap bool) (*EarnResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := s.lockAccount(tx, userID)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}

	now := time.Now()
	dailyEarned := account.DailyEarned
	if !sameDay(account.DailyResetAt, now) {
		dailyEarned = 0
	}

	granted := amount
	if enforceDailyCap && reason == models.ReasonEarned {
		tier, err := s.userTier(tx, userID)
		if err != nil {
			return nil, err
		}
		available := s.credits.DailyCap(tier) - dailyEarned
		if available <= 0 {
			return nil, ErrDailyLimitReached
		}
		if granted > available {
			granted = available
		}
		dailyEarned += granted
	}

	var newBalance int64
	if reason == models.ReasonReferral {
		err = tx.QueryRow(`
			UPDATE credit_accounts
			SET balance = balance + $1, referral_earned = referral_earned + $1,
			    daily_earned = $2, daily_reset_at = $3, version = version + 1, updated_at = $4
			WHERE user_id = $5 AND version = $6
			RETURNING balance`,
			granted, dailyEarned, now, now, userID, account.Version).Scan(&newBalance)
	} else {
		err = tx.QueryRow(`
			UPDATE credit_accounts
			SET balance = balance + $1, lifetime_earned = lifetime_earned + $1,
			    daily_earned = $2, daily_reset_at = $3, version = version + 1, updated_at = $4
			WHERE user_id = $5 AND version = $6
			RETURNING balance`,
			granted, dailyEarned, now, now, userID, account.Version).Scan(&newBalance)
	}
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("optimistic lock failed for account %d", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("earn update: %w", err)
	}

	if err := s.createLedgerEntry(tx, userID, granted, models.EntryTypeEarn, reason, newBalance); err != nil {
		return nil, err
	}

	log.Printf("[LEDGER] Earn: user=%d granted=%d/%d balance=%d reason=%s", userID, granted, amount, newBalance, reason)
	return &EarnResult{Success: true, AmountGranted: granted, NewBalance: newBalance}, nil
}

// Balance returns the account state plus the caller's current daily limit.
// Daily-earned reads as zero once the stored reset date has rolled over,
// even before the next earn persists the rollover.
func (s *LedgerService) Balance(userID int64) (*BalanceSnapshot, error) {
	var (
		snap    BalanceSnapshot
		resetAt time.Time
		tier    models.PremiumTier
	)
	err := s.db.QueryRow(`
		SELECT a.balance, a.daily_earned, a.daily_reset_at, a.lifetime_earned, a.lifetime_spent, a.referral_earned, u.premium_tier
		FROM credit_accounts a
		JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1`,
		userID).Scan(&snap.Balance, &snap.DailyEarned, &resetAt, &snap.LifetimeEarned, &snap.LifetimeSpent, &snap.ReferralEarned, &tier)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("balance query: %w", err)
	}

	if !sameDay(resetAt, time.Now()) {
		snap.DailyEarned = 0
	}
	snap.DailyLimit = s.credits.DailyCap(tier)
	return &snap, nil
}

// CreateAccountTx seeds a new credit account with the signup bonus. Runs in
// the registration transaction so user and account appear together.
func (s *LedgerService) CreateAccountTx(tx *sql.Tx, userID int64) error {
	bonus := s.credits.SignupBonus
	now := time.Now()
	_, err := tx.Exec(`
		INSERT INTO credit_accounts (user_id, balance, daily_earned, daily_reset_at, lifetime_earned, lifetime_spent, referral_earned, version, updated_at)
		VALUES ($1, $2, 0, $3, $2, 0, 0, 1, $3)`,
		userID, bonus, now)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return s.createLedgerEntry(tx, userID, bonus, models.EntryTypeEarn, models.ReasonBonus, bonus)
}

func (s *LedgerService) lockAccount(tx *sql.Tx, userID int64) (*models.CreditAccount, error) {
	var account models.CreditAccount
	err := tx.QueryRow(`
		SELECT user_id, balance, daily_earned, daily_reset_at, version
		FROM credit_accounts
		WHERE user_id = $1
		FOR UPDATE`, userID).Scan(&account.UserID, &account.Balance, &account.DailyEarned, &account.DailyResetAt, &account.Version)
	return &account, err
}

func (s *LedgerService) userTier(tx *sql.Tx, userID int64) (models.PremiumTier, error) {
	var tier models.PremiumTier
	err := tx.QueryRow(`SELECT premium_tier FROM users WHERE id = $1`, userID).Scan(&tier)
	if err == sql.ErrNoRows {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("tier query: %w", err)
	}
	return tier, nil
}

func (s *LedgerService) createLedgerEntry(tx *sql.Tx, userID int64, amount int64, entryType, reason string, balance int64) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (entry_id, user_id, amount, entry_type, reason, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), userID, amount, entryType, reason, balance, time.Now())
	if err != nil {
		return fmt.Errorf("ledger entry: %w", err)
	}
	return nil
}

// sameDay compares two instants by wall-clock date.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
