package services

import (
	"database/sql"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sub4sub/backend/internal/config"
	"github.com/sub4sub/backend/internal/models"
)

// WatchService is the watch-time economy caller of the ledger: room creation
// debits the creator's full credit budget up front, session completion pays
// the viewer with the premium multiplier applied and the daily cap enforced.
type WatchService struct {
	db      *sql.DB
	ledger  *LedgerService
	credits *config.CreditsConfig
}

func NewWatchService(db *sql.DB, ledger *LedgerService, credits *config.CreditsConfig) *WatchService {
	return &WatchService{db: db, ledger: ledger, credits: credits}
}

type CreateRoomResult struct {
	RoomID       string `json:"roomId"`
	CreditsSpent int64  `json:"creditsSpent"`
	NewBalance   int64  `json:"newBalance"`
}

// CreateRoom charges requiredMinutes * earnPerMinute * maxParticipants and
// records the room in the same transaction, so the debit and the room are
// all-or-nothing.
func (s *WatchService) CreateRoom(creatorID int64, contentURL, contentTitle string, requiredMinutes, maxParticipants int) (*CreateRoomResult, error) {
	if requiredMinutes <= 0 || maxParticipants <= 0 {
		return nil, ErrInvalidAmount
	}

	perMinute := s.credits.EarnPerWatchMinute
	cost := int64(requiredMinutes) * perMinute * int64(maxParticipants)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin room: %w", err)
	}
	defer tx.Rollback()

	spend, err := s.ledger.SpendTx(tx, creatorID, cost, "watch_room")
	if err != nil {
		return nil, err
	}

	roomID := uuid.New().String()
	_, err = tx.Exec(`
		INSERT INTO watch_rooms (room_id, creator_id, content_url, content_title, required_watch_minutes, credits_per_minute, max_participants, total_credits_spent, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)`,
		roomID, creatorID, contentURL, contentTitle, requiredMinutes, perMinute, maxParticipants, models.RoomActive, time.Now())
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit room: %w", err)
	}

	log.Printf("[WATCH] Room created: room=%s creator=%d cost=%d", roomID, creatorID, cost)
	return &CreateRoomResult{RoomID: roomID, CreditsSpent: cost, NewBalance: spend.NewBalance}, nil
}

type CompleteSessionResult struct {
	CreditsEarned int64 `json:"creditsEarned"`
	NewBalance    int64 `json:"newBalance"`
}

// CompleteSession marks the caller's session completed and pays the viewer
// floor(minutesWatched * creditsPerMinute * multiplier(tier)) once. The
// lookup is scoped to the calling user and to active sessions, so a session
// id alone is not enough to claim someone else's payout. The payout and the
// credits_paid flag share one transaction, and the flag flip is guarded with
// AND credits_paid = FALSE, so a repeated or concurrent completion pays
// nothing.
func (s *WatchService) CompleteSession(userID int64, sessionID string, minutesWatched int) (*CompleteSessionResult, error) {
	if minutesWatched <= 0 {
		return nil, ErrInvalidAmount
	}

	var (
		perMinute int64
		required  int
		tier      models.PremiumTier
	)
	err := s.db.QueryRow(`
		SELECT wr.credits_per_minute, wr.required_watch_minutes, u.premium_tier
		FROM watch_sessions ws
		JOIN watch_rooms wr ON wr.id = ws.room_id
		JOIN users u ON u.id = ws.user_id
		WHERE ws.session_id = $1 AND ws.user_id = $2 AND ws.status = $3`,
		sessionID, userID, models.SessionActive).Scan(&perMinute, &required, &tier)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session query: %w", err)
	}

	if minutesWatched > required {
		minutesWatched = required
	}
	multiplier := s.credits.Multiplier(tier)
	earned := int64(math.Floor(float64(int64(minutesWatched)*perMinute) * multiplier))

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin completion: %w", err)
	}
	defer tx.Rollback()

	earn, err := s.ledger.EarnTx(tx, userID, earned, models.ReasonEarned, true)
	if err == ErrDailyLimitReached {
		// Session stays unpaid; a later completion attempt can pay it.
		log.Printf("[WATCH] Daily limit reached for user %d, session %s not paid", userID, sessionID)
		return &CompleteSessionResult{CreditsEarned: 0}, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res, err := tx.Exec(`
		UPDATE watch_sessions
		SET status = $1, minutes_watched = $2, credits_earned = $3, credits_paid = TRUE, completed_at = $4
		WHERE session_id = $5 AND credits_paid = FALSE`,
		models.SessionCompleted, minutesWatched, earn.AmountGranted, now, sessionID)
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	if rows == 0 {
		// Another completion won the race; rolling back undoes the earn.
		log.Printf("[WATCH] Session %s already paid, skipping", sessionID)
		return &CompleteSessionResult{CreditsEarned: 0}, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit completion: %w", err)
	}

	log.Printf("[WATCH] Session complete: session=%s user=%d earned=%d", sessionID, userID, earn.AmountGranted)
	return &CompleteSessionResult{CreditsEarned: earn.AmountGranted, NewBalance: earn.NewBalance}, nil
}

// StartSession registers a viewer in a room.
func (s *WatchService) StartSession(roomID string, userID int64) (string, error) {
	var roomPK int64
	err := s.db.QueryRow(`SELECT id FROM watch_rooms WHERE room_id = $1 AND status = $2`, roomID, models.RoomActive).Scan(&roomPK)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("room %s not found or closed", roomID)
	}
	if err != nil {
		return "", fmt.Errorf("room query: %w", err)
	}

	sessionID := uuid.New().String()
	_, err = s.db.Exec(`
		INSERT INTO watch_sessions (session_id, room_id, user_id, minutes_watched, status, credits_earned, credits_paid, started_at)
		VALUES ($1, $2, $3, 0, $4, 0, FALSE, $5)`,
		sessionID, roomPK, userID, models.SessionActive, time.Now())
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sessionID, nil
}
