package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-live/internal/domain"
	"trivia-live/internal/metrics"
)

// DefaultQuestionTimer is the per-question countdown of a new session.
const DefaultQuestionTimer = 5

// Service contains the session lifecycle use cases: create, publish, play,
// score and archive. It keeps exactly one Controller per session on this
// instance, so each session has a single authoritative countdown.
type Service struct {
	store     SessionStore
	questions QuestionSource
	media     MediaResolver
	inventory MediaInventory
	collector *AnswerCollector
	scores    *ScoreAggregator
	logger    *slog.Logger

	defaultTimer int
	timerOpts    []TimerOption
	now          func() time.Time
	newID        func() string

	mu          sync.Mutex
	controllers map[string]*Controller
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMediaResolver sets the resolver used before publishing.
func WithMediaResolver(media MediaResolver) ServiceOption {
	return func(s *Service) { s.media = media }
}

// WithMediaInventory sets the storage checked for missing media files.
func WithMediaInventory(inventory MediaInventory) ServiceOption {
	return func(s *Service) { s.inventory = inventory }
}

// WithDefaultQuestionTimer sets the countdown given to new sessions.
func WithDefaultQuestionTimer(seconds int) ServiceOption {
	return func(s *Service) {
		if seconds >= MinQuestionTimer && seconds <= MaxQuestionTimer {
			s.defaultTimer = seconds
		}
	}
}

// WithTimerOptions passes options to every controller's TimerEngine.
func WithTimerOptions(opts ...TimerOption) ServiceOption {
	return func(s *Service) { s.timerOpts = append(s.timerOpts, opts...) }
}

// WithCollector replaces the default answer collector.
func WithCollector(c *AnswerCollector) ServiceOption {
	return func(s *Service) { s.collector = c }
}

// WithAggregator replaces the default score aggregator.
func WithAggregator(a *ScoreAggregator) ServiceOption {
	return func(s *Service) { s.scores = a }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator is test-only for predictable session ids.
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) { s.newID = newID }
}

func NewService(store SessionStore, questions QuestionSource, opts ...ServiceOption) *Service {
	s := &Service{
		store:        store,
		questions:    questions,
		logger:       slog.Default(),
		defaultTimer: DefaultQuestionTimer,
		now:          time.Now,
		newID:        uuid.NewString,
		controllers:  make(map[string]*Controller),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.collector == nil {
		s.collector = NewAnswerCollector(store, WithCollectorLogger(s.logger))
	}
	if s.scores == nil {
		s.scores = NewScoreAggregator(store,
			WithAggregatorPolicy(s.collector.Policy()),
			WithAggregatorLogger(s.logger))
	}
	return s
}

// Collector returns the service's answer collector.
func (s *Service) Collector() *AnswerCollector {
	return s.collector
}

// CreateSession initializes a waiting session document. A zero questionTimer
// takes the configured default.
func (s *Service) CreateSession(ctx context.Context, role domain.Role, questionTimer int) (domain.GameSession, error) {
	if err := requireQuizmaster(role); err != nil {
		return domain.GameSession{}, err
	}
	if questionTimer == 0 {
		questionTimer = s.defaultTimer
	}
	if questionTimer < MinQuestionTimer || questionTimer > MaxQuestionTimer {
		return domain.GameSession{}, fmt.Errorf("%w: %d not in [%d,%d]", domain.ErrInvalidTimer, questionTimer, MinQuestionTimer, MaxQuestionTimer)
	}

	now := s.now()
	session := domain.GameSession{
		ID:            s.newID(),
		Questions:     []domain.Question{},
		Current:       0,
		Timer:         domain.TimerInactive,
		TimerActive:   false,
		State:         domain.StateWaiting,
		QuestionTimer: questionTimer,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return domain.GameSession{}, storeErr(err)
	}
	s.logger.Info("session created", "session", session.ID, "questionTimer", questionTimer)
	return session, nil
}

// Session returns the stored session document.
func (s *Service) Session(ctx context.Context, sessionID string) (domain.GameSession, error) {
	return s.store.Get(ctx, sessionID)
}

// Controller returns the session's controller, creating it on first use.
func (s *Service) Controller(ctx context.Context, sessionID string) (*Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.controllers[sessionID]; ok {
		return c, nil
	}
	c, err := NewController(ctx, sessionID, s.store, s.logger, s.timerOpts...)
	if err != nil {
		return nil, err
	}
	s.controllers[sessionID] = c
	metrics.ActiveSessions.Inc()
	return c, nil
}

// Controls reports whether this instance holds the session's controller.
func (s *Service) Controls(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.controllers[sessionID]
	return ok
}

// LoadQuestionSet loads setID from the question source, resolves its media
// and publishes it into the session.
func (s *Service) LoadQuestionSet(ctx context.Context, role domain.Role, sessionID, setID string) ([]domain.Question, error) {
	if err := requireQuizmaster(role); err != nil {
		return nil, err
	}
	questions, err := s.questions.LoadQuestions(ctx, setID)
	if err != nil {
		return nil, err
	}
	resolver := s.media
	if resolver == nil {
		resolver = noMedia{}
	}
	resolved, err := ResolveMedia(ctx, resolver, questions, s.logger)
	if err != nil {
		return nil, err
	}

	c, err := s.Controller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.PublishQuestions(ctx, role, resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}

// Archive ends a session: the countdown stops, the document is marked
// archived and the controller is released.
func (s *Service) Archive(ctx context.Context, role domain.Role, sessionID string) error {
	if err := requireQuizmaster(role); err != nil {
		return err
	}
	c, err := s.Controller(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.Archive(ctx, role); err != nil {
		return err
	}
	s.release(sessionID)
	return nil
}

// DeleteSession discards a session: its countdown stops and the document and
// answers are removed from the store. Subscribers see their channels close.
func (s *Service) DeleteSession(ctx context.Context, role domain.Role, sessionID string) error {
	if err := requireQuizmaster(role); err != nil {
		return err
	}
	if _, err := s.store.Get(ctx, sessionID); err != nil {
		return err
	}
	s.release(sessionID)
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return storeErr(err)
	}
	s.logger.Info("session deleted", "session", sessionID)
	return nil
}

// MissingMedia lists the media files setID references that storage does not
// hold yet, so the quizmaster can upload them before publishing. Without an
// inventory every referenced file is reported, since none would resolve.
func (s *Service) MissingMedia(ctx context.Context, setID string) ([]string, error) {
	questions, err := s.questions.LoadQuestions(ctx, setID)
	if err != nil {
		return nil, err
	}
	names := MediaNames(questions)
	if s.inventory == nil || len(names) == 0 {
		return names, nil
	}
	return s.inventory.Missing(ctx, names)
}

// Join opens a player for team in a session.
func (s *Service) Join(ctx context.Context, sessionID, team string) (*Player, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State == domain.StateArchived {
		return nil, domain.ErrSessionNotActive
	}
	return NewPlayer(sessionID, team, s.collector)
}

// Subscribe forwards to the store's change notifications.
func (s *Service) Subscribe(ctx context.Context, sessionID string, mask domain.EventKind) (<-chan domain.Event, func(), error) {
	return s.store.Subscribe(ctx, sessionID, mask)
}

// Standings returns the full ranking of a session.
func (s *Service) Standings(ctx context.Context, sessionID string) ([]domain.Standing, error) {
	if _, err := s.store.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.scores.Standings(ctx, sessionID)
}

// RunScoreboard streams paged scoreboards until ctx ends.
func (s *Service) RunScoreboard(ctx context.Context, sessionID string, emit func(domain.Scoreboard)) error {
	return s.scores.Run(ctx, sessionID, emit)
}

// Close stops every countdown this instance owns.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.controllers {
		c.Close()
		delete(s.controllers, id)
		metrics.ActiveSessions.Dec()
	}
}

func (s *Service) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.controllers[sessionID]; ok {
		c.Close()
		delete(s.controllers, sessionID)
		metrics.ActiveSessions.Dec()
	}
}

// noMedia resolves nothing, so every bare filename becomes null.
type noMedia struct{}

func (noMedia) Resolve(context.Context, string) (string, bool, error) {
	return "", false, nil
}
