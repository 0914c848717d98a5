package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sub4sub/backend/internal/models"
)

// ExpiryService downgrades premium users whose entitlement window has
// elapsed. It runs from the scheduler; each user is downgraded in its own
// statement so one failure never aborts the rest of the sweep.
type ExpiryService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewExpiryService(db *sql.DB, rdb *redis.Client) *ExpiryService {
	return &ExpiryService{db: db, redis: rdb}
}

// SweepResult reports what one reaper pass saw and did.
type SweepResult struct {
	Checked    int `json:"checked"`
	Downgraded int `json:"downgraded"`
}

// Sweep finds every user with is_premium set and an expiry at or before now
// and resets them to the free tier.
func (s *ExpiryService) Sweep(ctx context.Context) (*SweepResult, error) {
	now := time.Now()
	log.Printf("[REAPER] Premium expiry sweep starting")

	rows, err := s.db.Query(`
		SELECT id, username FROM users
		WHERE is_premium = TRUE AND premium_expiry <= $1`, now)
	if err != nil {
		return nil, fmt.Errorf("expired users query: %w", err)
	}
	defer rows.Close()

	type expired struct {
		id       int64
		username string
	}
	var candidates []expired
	for rows.Next() {
		var e expired
		if err := rows.Scan(&e.id, &e.username); err != nil {
			return nil, fmt.Errorf("scan expired user: %w", err)
		}
		candidates = append(candidates, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("expired users rows: %w", err)
	}

	result := &SweepResult{Checked: len(candidates)}
	for _, e := range candidates {
		if err := s.downgrade(e.id, now); err != nil {
			log.Printf("[REAPER] Failed to downgrade user %d: %v", e.id, err)
			continue
		}
		result.Downgraded++
		log.Printf("[REAPER] Downgraded user: %s (%d)", e.username, e.id)

		pushNotification(ctx, s.redis, Notification{
			UserID:  e.id,
			Title:   "Premium Expired",
			Message: "Your premium subscription has expired. Upgrade again to restore premium benefits!",
			Type:    "warning",
		})
	}

	log.Printf("[REAPER] Sweep complete: checked=%d downgraded=%d", result.Checked, result.Downgraded)
	return result, nil
}

func (s *ExpiryService) downgrade(userID int64, now time.Time) error {
	// Guarded on premium_expiry so a renewal landing between the query and
	// this update is not clobbered.
	res, err := s.db.Exec(`
		UPDATE users
		SET is_premium = FALSE, premium_tier = $1, premium_auto_renew = FALSE, updated_at = $2
		WHERE id = $3 AND is_premium = TRUE AND premium_expiry <= $2`,
		models.TierFree, now, userID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("user %d no longer eligible for downgrade", userID)
	}
	return nil
}
