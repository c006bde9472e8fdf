package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"learning-progress-service/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error)
}

// QuizCatalog caches full quiz content in Redis and falls back to a loader on miss.
// Quizzes are stored as JSON under quiz:{quizID}:content. Redis errors degrade to
// the loader so a cache outage never fails a read.
type QuizCatalog struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizCatalog(client *redis.Client, loader QuizLoader, ttl time.Duration, logger *zap.Logger) *QuizCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizCatalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCatalog) GetQuiz(ctx context.Context, quizID uuid.UUID) (domain.Quiz, error) {
	if quiz, ok := c.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(quizID.String(), func() (interface{}, error) {
		// another caller may have filled the cache meanwhile
		if quiz, ok := c.cached(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := c.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		payload, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("encode quiz %s: %w", quizID, err)
		}
		if err := c.client.Set(ctx, contentKey(quizID), payload, c.ttlWithJitter()).Err(); err != nil {
			c.logger.Warn("quiz cache write failed", zap.String("quiz_id", quizID.String()), zap.Error(err))
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate removes a cached quiz.
func (c *QuizCatalog) Invalidate(ctx context.Context, quizID uuid.UUID) error {
	return c.client.Del(ctx, contentKey(quizID)).Err()
}

func (c *QuizCatalog) cached(ctx context.Context, quizID uuid.UUID) (domain.Quiz, bool) {
	payload, err := c.client.Get(ctx, contentKey(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("quiz cache read failed", zap.String("quiz_id", quizID.String()), zap.Error(err))
		}
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(payload, &quiz); err != nil {
		c.logger.Warn("quiz cache entry corrupt", zap.String("quiz_id", quizID.String()), zap.Error(err))
		return domain.Quiz{}, false
	}
	return quiz, true
}

func contentKey(quizID uuid.UUID) string {
	return "quiz:" + quizID.String() + ":content"
}

func (c *QuizCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
