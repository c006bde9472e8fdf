package redis

import (
	"context"
	"fmt"

	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "leaderboard:points"

// Ledger keeps per-user point totals in a sorted set so every instance shares
// one leaderboard.
type Ledger struct {
	client *redis.Client
	key    string
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client, key: leaderboardKey}
}

func (l *Ledger) Award(ctx context.Context, userID uuid.UUID, points int) error {
	if err := l.client.ZIncrBy(ctx, l.key, float64(points), userID.String()).Err(); err != nil {
		return fmt.Errorf("award points: %w", err)
	}
	return nil
}

// Top returns up to n users by points desc. Equal totals follow Redis ordering
// (member desc).
func (l *Ledger) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n - 1)
	}
	members, err := l.client.ZRevRangeWithScores(ctx, l.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(members))
	for _, m := range members {
		raw, ok := m.Member.(string)
		if !ok {
			continue
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{UserID: userID, Points: int(m.Score)})
	}
	return entries, nil
}
