package memory

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-live/internal/app"
	"trivia-live/internal/domain"
)

// QuestionRepository caches question sets with TTL to avoid repeated loads
// from the backing source (Postgres, object storage).
type QuestionRepository struct {
	loader app.QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader app.QuestionSource, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (r *QuestionRepository) LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	if questions, ok := r.cached(setID); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(setID, func() (interface{}, error) {
		if questions, ok := r.cached(setID); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadQuestions(ctx, setID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[setID] = cachedSet{
			questions: questions,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(result.([]domain.Question)), nil
}

func (r *QuestionRepository) cached(setID string) ([]domain.Question, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[setID]; ok && entry.expiresAt.After(now) {
		return slices.Clone(entry.questions), true
	}
	return nil, false
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionSource is a simple source backed by an in-memory map (useful for tests/demos).
type StaticQuestionSource struct {
	sets map[string][]domain.Question
}

func NewStaticQuestionSource(sets map[string][]domain.Question) *StaticQuestionSource {
	return &StaticQuestionSource{sets: sets}
}

func (s *StaticQuestionSource) LoadQuestions(_ context.Context, setID string) ([]domain.Question, error) {
	if questions, ok := s.sets[setID]; ok {
		return slices.Clone(questions), nil
	}
	return nil, domain.ErrQuestionSetNotFound
}

// QuestionSets lists the ids of the stored sets.
func (s *StaticQuestionSource) QuestionSets(context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.sets))
	for id := range s.sets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
