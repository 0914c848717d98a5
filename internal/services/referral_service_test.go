package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestGenerateReferralCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateReferralCode()
		assert.Len(t, code, 8)
		assert.Equal(t, strings.ToUpper(code), code)
		assert.False(t, seen[code], "codes should not repeat")
		seen[code] = true
	}
}

func newReferralService(db *sql.DB) *ReferralService {
	credits := testCredits()
	return NewReferralService(db, NewLedgerService(db, credits), credits, "https://sub4sub.example.com")
}

func TestReferralService_RecordSignup(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newReferralService(db)

	lockCols := []string{"user_id", "balance", "daily_earned", "daily_reset_at", "version"}

	t.Run("pays the referrer the signup reward", func(t *testing.T) {
		referrerID := int64(1)
		refereeID := int64(2)

		mock.ExpectQuery("SELECT id FROM users WHERE referral_code = \\$1").
			WithArgs("ABCD1234").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(referrerID))

		mock.ExpectExec("INSERT INTO referrals").
			WithArgs(referrerID, refereeID, "ABCD1234", int64(50), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE users SET referral_count = referral_count \\+ 1").
			WithArgs(referrerID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT user_id, balance, daily_earned, daily_reset_at, version FROM credit_accounts WHERE user_id = \\$1 FOR UPDATE").
			WithArgs(referrerID).
			WillReturnRows(sqlmock.NewRows(lockCols).AddRow(referrerID, 100, 0, time.Now(), 1))

		mock.ExpectQuery("UPDATE credit_accounts SET balance = balance \\+ \\$1, referral_earned = referral_earned \\+ \\$1").
			WithArgs(int64(50), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg(), referrerID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(150))

		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), referrerID, int64(50), "EARN", "referral", int64(150), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		err := service.RecordSignup(refereeID, "abcd1234")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown code never blocks registration", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM users WHERE referral_code = \\$1").
			WithArgs("NOSUCH00").
			WillReturnError(sql.ErrNoRows)

		err := service.RecordSignup(2, "NOSUCH00")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self-referral is ignored", func(t *testing.T) {
		mock.ExpectQuery("SELECT id FROM users WHERE referral_code = \\$1").
			WithArgs("ABCD1234").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))

		err := service.RecordSignup(2, "ABCD1234")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty code is a no-op", func(t *testing.T) {
		assert.NoError(t, service.RecordSignup(2, ""))
	})
}

func TestReferralService_AwardFirstPurchaseBonus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newReferralService(db)
	ctx := context.Background()

	lockCols := []string{"user_id", "balance", "daily_earned", "daily_reset_at", "version"}

	t.Run("pays once on first purchase", func(t *testing.T) {
		referrerID := int64(1)
		refereeID := int64(2)

		mock.ExpectQuery("UPDATE referrals SET first_purchase_reward = \\$1, first_purchase_reward_paid = TRUE").
			WithArgs(int64(200), sqlmock.AnyArg(), refereeID).
			WillReturnRows(sqlmock.NewRows([]string{"referrer_id"}).AddRow(referrerID))

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT user_id, balance, daily_earned, daily_reset_at, version FROM credit_accounts WHERE user_id = \\$1 FOR UPDATE").
			WithArgs(referrerID).
			WillReturnRows(sqlmock.NewRows(lockCols).AddRow(referrerID, 150, 0, time.Now(), 2))

		mock.ExpectQuery("UPDATE credit_accounts SET balance = balance \\+ \\$1, referral_earned = referral_earned \\+ \\$1").
			WithArgs(int64(200), int64(0), sqlmock.AnyArg(), sqlmock.AnyArg(), referrerID, 2).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(350))

		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), referrerID, int64(200), "EARN", "referral", int64(350), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		err := service.AwardFirstPurchaseBonus(ctx, refereeID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second purchase is a quiet no-op", func(t *testing.T) {
		mock.ExpectQuery("UPDATE referrals SET first_purchase_reward = \\$1, first_purchase_reward_paid = TRUE").
			WithArgs(int64(200), sqlmock.AnyArg(), int64(2)).
			WillReturnError(sql.ErrNoRows)

		err := service.AwardFirstPurchaseBonus(ctx, 2)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReferralService_Stats(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newReferralService(db)

	t.Run("dashboard numbers", func(t *testing.T) {
		mock.ExpectQuery("SELECT u.referral_code, u.referral_count, a.referral_earned").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"referral_code", "referral_count", "referral_earned", "count"}).
				AddRow("ABCD1234", 4, 350, 1))

		stats, err := service.Stats(1)
		assert.NoError(t, err)
		assert.Equal(t, "ABCD1234", stats.ReferralCode)
		assert.Equal(t, 4, stats.ReferralCount)
		assert.Equal(t, int64(350), stats.CreditsEarned)
		assert.Equal(t, 1, stats.PurchaseBonus)
		assert.Equal(t, "https://sub4sub.example.com/register?ref=ABCD1234", stats.ReferralLink)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		mock.ExpectQuery("SELECT u.referral_code, u.referral_count, a.referral_earned").
			WithArgs(int64(404)).
			WillReturnError(sql.ErrNoRows)

		_, err := service.Stats(404)
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReferralService_ReferralQR(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newReferralService(db)

	mock.ExpectQuery("SELECT referral_code FROM users WHERE id = \\$1").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"referral_code"}).AddRow("ABCD1234"))

	image, err := service.ReferralQR(1)
	assert.NoError(t, err)
	assert.NotEmpty(t, image)

	decoded, err := base64.StdEncoding.DecodeString(image)
	assert.NoError(t, err)
	// PNG magic bytes
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, decoded[:4])
	assert.NoError(t, mock.ExpectationsWereMet())
}
