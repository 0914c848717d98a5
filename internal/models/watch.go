package models

import "time"

// WatchRoom is a watch-time exchange room. The creator pre-pays the full
// credit budget when the room is created.
type WatchRoom struct {
	ID                   int64     `json:"id" db:"id"`
	RoomID               string    `json:"room_id" db:"room_id"`
	CreatorID            int64     `json:"creator_id" db:"creator_id"`
	ContentURL           string    `json:"content_url" db:"content_url"`
	ContentTitle         string    `json:"content_title" db:"content_title"`
	RequiredWatchMinutes int       `json:"required_watch_minutes" db:"required_watch_minutes"`
	CreditsPerMinute     int64     `json:"credits_per_minute" db:"credits_per_minute"`
	MaxParticipants      int       `json:"max_participants" db:"max_participants"`
	TotalCreditsSpent    int64     `json:"total_credits_spent" db:"total_credits_spent"`
	Status               string    `json:"status" db:"status"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// WatchSession tracks one viewer's progress in a room. credits_paid is the
// exactly-once guard for the payout on completion.
type WatchSession struct {
	ID             int64      `json:"id" db:"id"`
	SessionID      string     `json:"session_id" db:"session_id"`
	RoomID         int64      `json:"room_id" db:"room_id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	MinutesWatched int        `json:"minutes_watched" db:"minutes_watched"`
	Status         string     `json:"status" db:"status"`
	CreditsEarned  int64      `json:"credits_earned" db:"credits_earned"`
	CreditsPaid    bool       `json:"credits_paid" db:"credits_paid"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at" db:"completed_at"`
}

const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionAbandoned = "abandoned"

	RoomActive    = "active"
	RoomExhausted = "exhausted"
	RoomClosed    = "closed"
)
