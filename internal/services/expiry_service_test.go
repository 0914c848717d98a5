package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestExpiryService_Sweep(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewExpiryService(db, nil)
	ctx := context.Background()

	t.Run("downgrades every expired user", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username FROM users WHERE is_premium = TRUE AND premium_expiry <= \\$1").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).
				AddRow(1, "alice").
				AddRow(2, "bob"))

		mock.ExpectExec("UPDATE users SET is_premium = FALSE").
			WithArgs("free", sqlmock.AnyArg(), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("UPDATE users SET is_premium = FALSE").
			WithArgs("free", sqlmock.AnyArg(), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := service.Sweep(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 2, result.Checked)
		assert.Equal(t, 2, result.Downgraded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("renewal between query and update is left alone", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username FROM users WHERE is_premium = TRUE AND premium_expiry <= \\$1").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).
				AddRow(1, "alice").
				AddRow(2, "bob"))

		// alice renewed mid-sweep: the guarded update matches nothing
		mock.ExpectExec("UPDATE users SET is_premium = FALSE").
			WithArgs("free", sqlmock.AnyArg(), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectExec("UPDATE users SET is_premium = FALSE").
			WithArgs("free", sqlmock.AnyArg(), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := service.Sweep(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 2, result.Checked)
		assert.Equal(t, 1, result.Downgraded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing expired", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, username FROM users WHERE is_premium = TRUE AND premium_expiry <= \\$1").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username"}))

		result, err := service.Sweep(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 0, result.Checked)
		assert.Equal(t, 0, result.Downgraded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
