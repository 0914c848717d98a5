package services

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func setupAuthConfig() {
	viper.Set("argon2.salt_length", 16)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 24)
}

func TestAuthService_Register(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	setupAuthConfig()

	credits := testCredits()
	service := NewAuthService(db, nil, NewLedgerService(db, credits), nil)

	t.Run("successful registration seeds the signup bonus", func(t *testing.T) {
		req := RegisterRequest{
			Email:    "creator@example.com",
			Username: "creator42",
			Password: "password123",
		}

		mock.ExpectBegin()

		mock.ExpectQuery("INSERT INTO users").
			WithArgs(req.Email, req.Username, sqlmock.AnyArg(), "", "free", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		mock.ExpectExec("INSERT INTO credit_accounts").
			WithArgs(int64(1), int64(100), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), int64(1), int64(100), "EARN", "bonus", int64(100), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, req.Email, response.User.Email)
		assert.Len(t, response.User.ReferralCode, 8)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid request body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer([]byte("invalid")))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short password fails validation", func(t *testing.T) {
		body, _ := json.Marshal(RegisterRequest{
			Email:    "creator@example.com",
			Username: "creator42",
			Password: "short",
		})
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	setupAuthConfig()

	credits := testCredits()
	service := NewAuthService(db, nil, NewLedgerService(db, credits), nil)

	loginCols := []string{"id", "email", "username", "password", "is_premium", "premium_tier", "premium_expiry", "is_banned", "referral_code"}

	t.Run("successful login", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")

		mock.ExpectQuery("SELECT id, email, username, password, is_premium").
			WithArgs("creator@example.com").
			WillReturnRows(sqlmock.NewRows(loginCols).
				AddRow(1, "creator@example.com", "creator42", hashedPassword, false, "free", nil, false, "ABCD1234"))

		body, _ := json.Marshal(LoginRequest{Email: "creator@example.com", Password: "password123"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "creator42", response.User.Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("active premium survives login", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")
		expiry := time.Now().AddDate(0, 0, 10)

		mock.ExpectQuery("SELECT id, email, username, password, is_premium").
			WithArgs("pro@example.com").
			WillReturnRows(sqlmock.NewRows(loginCols).
				AddRow(3, "pro@example.com", "prouser", hashedPassword, true, "pro", expiry, false, "PROX9999"))

		body, _ := json.Marshal(LoginRequest{Email: "pro@example.com", Password: "password123"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.True(t, response.User.IsPremium)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lapsed premium reads as free before the reaper runs", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")
		expiry := time.Now().AddDate(0, 0, -1)

		mock.ExpectQuery("SELECT id, email, username, password, is_premium").
			WithArgs("lapsed@example.com").
			WillReturnRows(sqlmock.NewRows(loginCols).
				AddRow(4, "lapsed@example.com", "lapsed1", hashedPassword, true, "pro", expiry, false, "LPSD0000"))

		body, _ := json.Marshal(LoginRequest{Email: "lapsed@example.com", Password: "password123"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.False(t, response.User.IsPremium)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")

		mock.ExpectQuery("SELECT id, email, username, password, is_premium").
			WithArgs("creator@example.com").
			WillReturnRows(sqlmock.NewRows(loginCols).
				AddRow(1, "creator@example.com", "creator42", hashedPassword, false, "free", nil, false, "ABCD1234"))

		body, _ := json.Marshal(LoginRequest{Email: "creator@example.com", Password: "wrongpassword"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("banned account", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")

		mock.ExpectQuery("SELECT id, email, username, password, is_premium").
			WithArgs("banned@example.com").
			WillReturnRows(sqlmock.NewRows(loginCols).
				AddRow(2, "banned@example.com", "banned1", hashedPassword, false, "free", nil, true, "EFGH5678"))

		body, _ := json.Marshal(LoginRequest{Email: "banned@example.com", Password: "password123"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("user not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, username, password, is_premium").
			WithArgs("nonexistent@example.com").
			WillReturnError(sql.ErrNoRows)

		body, _ := json.Marshal(LoginRequest{Email: "nonexistent@example.com", Password: "password123"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPasswordHashing(t *testing.T) {
	setupAuthConfig()

	hashed, err := hashPassword("correct horse battery staple")
	assert.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hashed)

	assert.True(t, verifyPassword("correct horse battery staple", hashed))
	assert.False(t, verifyPassword("wrong password", hashed))
	assert.False(t, verifyPassword("anything", "not-a-valid-hash"))
}
