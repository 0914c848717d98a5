package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sub4sub/backend/internal/models"
)

// QualityService recomputes the bounded 0-100 quality score that gates
// matching eligibility. Batch recomputation pulls per-user aggregates in two
// GROUP BY queries instead of walking users one at a time.
type QualityService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewQualityService(db *sql.DB, rdb *redis.Client) *QualityService {
	return &QualityService{db: db, redis: rdb}
}

const qualityCacheTTL = 24 * time.Hour

// ComputeScore derives the quality score from its inputs:
// up to 25 points for account age (1 point per 4 days), up to 30 for the
// verified-action ratio, up to 25 for watch completion, -10 per report
// capped at -50, +10 for any paid tier, plus the admin adjustment.
func ComputeScore(m models.QualityMetrics, premium bool) int {
	accountAgeScore := math.Min(25, float64(m.AccountAgeDays)/4)
	verifiedScore := m.VerifiedActionsRatio * 30
	watchScore := m.WatchCompletionRate * 25
	reportPenalty := math.Max(-50, float64(m.ReportCount)*-10)
	premiumBonus := 0.0
	if premium {
		premiumBonus = 10
	}

	score := accountAgeScore + verifiedScore + watchScore + reportPenalty + premiumBonus + float64(m.ManualAdjustment)
	score = math.Round(score)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

// RecomputeOne refreshes a single user's score, e.g. after an admin
// adjustment or a report.
func (s *QualityService) RecomputeOne(ctx context.Context, userID int64) (int, error) {
	var (
		createdAt        time.Time
		isPremium        bool
		tier             models.PremiumTier
		reportCount      int
		manualAdjustment int
	)
	err := s.db.QueryRow(`
		SELECT created_at, is_premium, premium_tier, report_count, manual_adjustment
		FROM users WHERE id = $1`, userID).
		Scan(&createdAt, &isPremium, &tier, &reportCount, &manualAdjustment)
	if err == sql.ErrNoRows {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("quality user query: %w", err)
	}

	var totalActions, verifiedActions int
	err = s.db.QueryRow(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'verified')
		FROM engagement_actions WHERE user_id = $1`, userID).
		Scan(&totalActions, &verifiedActions)
	if err != nil {
		return 0, fmt.Errorf("quality action stats: %w", err)
	}

	var totalSessions, completedSessions int
	err = s.db.QueryRow(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'completed')
		FROM watch_sessions WHERE user_id = $1`, userID).
		Scan(&totalSessions, &completedSessions)
	if err != nil {
		return 0, fmt.Errorf("quality session stats: %w", err)
	}

	metrics := models.QualityMetrics{
		AccountAgeDays:   int(time.Since(createdAt).Hours() / 24),
		ReportCount:      reportCount,
		ManualAdjustment: manualAdjustment,
	}
	if totalActions > 0 {
		metrics.VerifiedActionsRatio = float64(verifiedActions) / float64(totalActions)
	}
	if totalSessions > 0 {
		metrics.WatchCompletionRate = float64(completedSessions) / float64(totalSessions)
	}

	score := ComputeScore(metrics, isPremium || (tier != "" && tier != models.TierFree))
	if err := s.persistScore(userID, score, metrics); err != nil {
		return 0, err
	}
	s.cacheScore(ctx, userID, score)
	return score, nil
}

// RecomputeAll refreshes every non-banned user's score using aggregate
// statistics, the batch equivalent of RecomputeOne.
func (s *QualityService) RecomputeAll(ctx context.Context) (int, error) {
	start := time.Now()
	log.Printf("[QUALITY] Score sweep starting")

	type userRow struct {
		id               int64
		createdAt        time.Time
		premium          bool
		reportCount      int
		manualAdjustment int
	}

	rows, err := s.db.Query(`
		SELECT id, created_at, (is_premium OR premium_tier <> 'free'), report_count, manual_adjustment
		FROM users WHERE is_banned = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("quality users query: %w", err)
	}
	defer rows.Close()

	var users []userRow
	for rows.Next() {
		var u userRow
		if err := rows.Scan(&u.id, &u.createdAt, &u.premium, &u.reportCount, &u.manualAdjustment); err != nil {
			return 0, fmt.Errorf("scan quality user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("quality users rows: %w", err)
	}

	actionStats, err := s.aggregate(`
		SELECT user_id, COUNT(*), COUNT(*) FILTER (WHERE status = 'verified')
		FROM engagement_actions GROUP BY user_id`)
	if err != nil {
		return 0, err
	}
	sessionStats, err := s.aggregate(`
		SELECT user_id, COUNT(*), COUNT(*) FILTER (WHERE status = 'completed')
		FROM watch_sessions GROUP BY user_id`)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, u := range users {
		metrics := models.QualityMetrics{
			AccountAgeDays:   int(time.Since(u.createdAt).Hours() / 24),
			ReportCount:      u.reportCount,
			ManualAdjustment: u.manualAdjustment,
		}
		if stat, ok := actionStats[u.id]; ok && stat.total > 0 {
			metrics.VerifiedActionsRatio = float64(stat.matched) / float64(stat.total)
		}
		if stat, ok := sessionStats[u.id]; ok && stat.total > 0 {
			metrics.WatchCompletionRate = float64(stat.matched) / float64(stat.total)
		}

		score := ComputeScore(metrics, u.premium)
		if err := s.persistScore(u.id, score, metrics); err != nil {
			log.Printf("[QUALITY] Failed to update user %d: %v", u.id, err)
			continue
		}
		s.cacheScore(ctx, u.id, score)
		updated++
	}

	log.Printf("[QUALITY] Sweep complete: updated=%d/%d in %s", updated, len(users), time.Since(start).Round(time.Millisecond))
	return updated, nil
}

type ratioStat struct {
	total   int
	matched int
}

func (s *QualityService) aggregate(query string) (map[int64]ratioStat, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("quality aggregate: %w", err)
	}
	defer rows.Close()

	stats := make(map[int64]ratioStat)
	for rows.Next() {
		var (
			userID int64
			stat   ratioStat
		)
		if err := rows.Scan(&userID, &stat.total, &stat.matched); err != nil {
			return nil, fmt.Errorf("scan quality aggregate: %w", err)
		}
		stats[userID] = stat
	}
	return stats, rows.Err()
}

func (s *QualityService) persistScore(userID int64, score int, m models.QualityMetrics) error {
	_, err := s.db.Exec(`
		UPDATE users
		SET quality_score = $1, verified_actions_ratio = $2, watch_completion_rate = $3, updated_at = $4
		WHERE id = $5`,
		score, m.VerifiedActionsRatio, m.WatchCompletionRate, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("persist score: %w", err)
	}
	return nil
}

func (s *QualityService) cacheScore(ctx context.Context, userID int64, score int) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf("quality:%d", userID)
	if err := s.redis.Set(ctx, key, score, qualityCacheTTL).Err(); err != nil {
		log.Printf("[QUALITY] Failed to cache score for user %d: %v", userID, err)
	}
}
