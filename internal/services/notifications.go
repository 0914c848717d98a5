package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Notification is the payload pushed to the per-user redis list that the
// delivery subsystem drains. Kept here because the ledger core is the only
// producer in this service.
type Notification struct {
	UserID    int64     `json:"userId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"` // success, warning, info
	CreatedAt time.Time `json:"createdAt"`
}

const notificationBacklog = 100

// pushNotification queues a notification for the user. Redis being down is
// not fatal to the business operation that triggered the notification.
func pushNotification(ctx context.Context, rdb *redis.Client, n Notification) {
	if rdb == nil {
		return
	}
	n.CreatedAt = time.Now()
	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("[NOTIFY] Failed to marshal notification for user %d: %v", n.UserID, err)
		return
	}

	key := fmt.Sprintf("notifications:%d", n.UserID)
	if err := rdb.LPush(ctx, key, string(payload)).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to queue notification for user %d: %v", n.UserID, err)
		return
	}
	rdb.LTrim(ctx, key, 0, notificationBacklog-1)
}
