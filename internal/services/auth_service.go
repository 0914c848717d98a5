package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/sub4sub/backend/internal/models"
	"golang.org/x/crypto/argon2"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	ledger    *LedgerService
	referral  *ReferralService
	validator *validator.Validate
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=8" example:"password123"`
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Email          string `json:"email" validate:"required,email" example:"user@example.com"`
	Username       string `json:"username" validate:"required,min=3,max=30" example:"creator42"`
	Password       string `json:"password" validate:"required,min=8" example:"password123"`
	YouTubeChannel string `json:"youtubeChannel,omitempty" validate:"omitempty,url"`
	ReferralCode   string `json:"referralCode,omitempty" validate:"omitempty,len=8"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	User  models.User `json:"user"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, ledger *LedgerService, referral *ReferralService) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		ledger:    ledger,
		referral:  referral,
		validator: validator.New(),
	}
}

// Register handles user registration
// @Summary Register a new user
// @Description Register a new user and seed their credit account with the signup bonus
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 200 {object} AuthResponse "Registration successful"
// @Failure 400 {string} string "Invalid request"
// @Failure 409 {string} string "Email or username already exists"
// @Failure 500 {string} string "Internal server error"
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req RegisterRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Registration failed - invalid request: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	referralCode := GenerateReferralCode()

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[AUTH] Transaction start failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRow(`
		INSERT INTO users (email, username, password, youtube_channel, premium_tier, referral_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id`,
		strings.ToLower(req.Email), req.Username, hashedPassword, req.YouTubeChannel, models.TierFree, referralCode).Scan(&userID)
	if err != nil {
		log.Printf("[AUTH] User creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Email or username already exists", http.StatusConflict, nil)
		return
	}

	// Seed the credit account with the signup bonus in the same transaction.
	if err := s.ledger.CreateAccountTx(tx, userID); err != nil {
		log.Printf("[AUTH] Account creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	if err = tx.Commit(); err != nil {
		log.Printf("[AUTH] Transaction commit failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	// Referral reward is best-effort; a bad code never blocks registration.
	if req.ReferralCode != "" && s.referral != nil {
		if err := s.referral.RecordSignup(userID, req.ReferralCode); err != nil {
			log.Printf("[AUTH] Referral signup reward failed for user %d: %v", userID, err)
		}
	}

	log.Printf("[AUTH] User created successfully - ID: %d, Email: %s", userID, req.Email)

	token, err := generateJWT(userID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	response := AuthResponse{
		Token: token,
		User: models.User{
			ID:           userID,
			Email:        strings.ToLower(req.Email),
			Username:     req.Username,
			PremiumTier:  models.TierFree,
			ReferralCode: referralCode,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Login handles user authentication
// @Summary Login user
// @Description Authenticate user with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {string} string "Invalid request"
// @Failure 401 {string} string "Invalid credentials"
// @Failure 403 {string} string "Account banned"
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var (
		user           models.User
		hashedPassword string
		premiumExpiry  sql.NullTime
	)
	err := s.db.QueryRow(`
		SELECT id, email, username, password, is_premium, premium_tier, premium_expiry, is_banned, referral_code
		FROM users WHERE email = $1`,
		strings.ToLower(req.Email)).Scan(&user.ID, &user.Email, &user.Username, &hashedPassword,
		&user.IsPremium, &user.PremiumTier, &premiumExpiry, &user.IsBanned, &user.ReferralCode)
	if err != nil {
		log.Printf("[AUTH] User not found for email: %s", req.Email)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !verifyPassword(req.Password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for user: %s", req.Email)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if user.IsBanned {
		log.Printf("[AUTH] Banned user login attempt: %s", req.Email)
		SendErrorResponse(w, "Account is banned", http.StatusForbidden, nil)
		return
	}

	if premiumExpiry.Valid {
		user.PremiumExpiry = &premiumExpiry.Time
	}
	// Entitlements are honored strictly by expiry; the stored flag may lag
	// behind the reaper.
	user.IsPremium = user.PremiumActive(time.Now())

	token, err := generateJWT(user.ID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for user %d", user.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, User: user})
}

// Logout handles user logout
// @Summary Logout user
// @Description Logout user and denylist the token
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:] // Remove "Bearer " prefix

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to denylist token: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

func generateJWT(userID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
