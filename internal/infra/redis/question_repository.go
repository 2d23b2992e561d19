package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-live/internal/app"
	"trivia-live/internal/domain"
)

// QuestionRepository caches whole question sets in Redis and falls back to a
// loader on cache miss. Sets are stored as:
//
//	SET trivia:questions:{setID} {[]Question JSON} EX ttl
//
// The shuffled answersOrder is part of the cached value, so every instance
// serving a set presents the same order until the entry expires.
type QuestionRepository struct {
	client *redis.Client
	loader app.QuestionSource
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader app.QuestionSource, ttl time.Duration, logger *slog.Logger) *QuestionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	if questions, ok := r.cached(ctx, setID); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.cached(ctx, setID); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadQuestions(ctx, setID)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(questions)
		if err != nil {
			return nil, err
		}
		if err := r.client.Set(ctx, r.key(setID), data, r.ttlWithJitter()).Err(); err != nil {
			r.logger.Warn("question set cache write failed", "set", setID, "error", err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cached(ctx context.Context, setID string) ([]domain.Question, bool) {
	data, err := r.client.Get(ctx, r.key(setID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("question set cache read failed", "set", setID, "error", err)
		}
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		r.logger.Warn("dropping malformed cached question set", "set", setID, "error", err)
		return nil, false
	}
	return questions, true
}

func (r *QuestionRepository) key(setID string) string {
	return "trivia:questions:" + setID
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
