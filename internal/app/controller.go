package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"trivia-live/internal/domain"
)

const (
	MinQuestionTimer = 1
	MaxQuestionTimer = 120
)

// Controller is the quizmaster side of a session: it is the only writer of
// the question list, the cursor and the countdown. Commands are serialized
// by mu, and the controller owns the session's single TimerEngine.
type Controller struct {
	sessionID string
	store     SessionStore
	timer     *TimerEngine
	logger    *slog.Logger

	mu            sync.Mutex
	view          domain.View
	state         domain.SessionState
	current       int
	count         int
	questionTimer int
}

// NewController hydrates a controller from the stored session document.
func NewController(ctx context.Context, sessionID string, store SessionStore, logger *slog.Logger, timerOpts ...TimerOption) (*Controller, error) {
	session, err := store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		sessionID:     sessionID,
		store:         store,
		logger:        logger.With("session", sessionID),
		view:          domain.ViewQuestions,
		state:         session.State,
		current:       session.Current,
		count:         len(session.Questions),
		questionTimer: session.QuestionTimer,
	}
	opts := append([]TimerOption{WithTimerLogger(c.logger), WithStartRound(session.TimerRound)}, timerOpts...)
	c.timer = NewTimerEngine(c.publishTimer, opts...)
	return c, nil
}

// SessionID returns the controlled session.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Current returns the question index the controller last wrote.
func (c *Controller) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// View returns the quizmaster's display context.
func (c *Controller) View() domain.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// TimerRunning reports whether a countdown is in flight.
func (c *Controller) TimerRunning() bool {
	return c.timer.Running()
}

// Advance moves the cursor by delta, clamped to the question list, and
// restarts the countdown. Hitting an edge is a no-op.
func (c *Controller) Advance(ctx context.Context, role domain.Role, delta int) (int, error) {
	if err := requireQuizmaster(role); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view != domain.ViewQuestions {
		return c.current, domain.ErrNavigationDisabled
	}
	if c.state != domain.StateActive {
		return c.current, domain.ErrSessionNotActive
	}
	if c.count == 0 {
		return c.current, domain.ErrNoQuestions
	}

	next := clampIndex(c.current, delta, c.count)
	if next == c.current {
		return c.current, nil
	}

	c.timer.Stop()
	if err := c.store.Update(ctx, c.sessionID, domain.SessionPatch{Current: &next}); err != nil {
		return c.current, storeErr(err)
	}
	c.current = next
	c.logger.Info("question advanced", "current", next, "timer", c.questionTimer)

	if err := c.timer.Start(ctx, c.questionTimer); err != nil {
		return next, storeErr(err)
	}
	return next, nil
}

// PublishQuestions replaces the session's question set and resets the
// cursor. Media must already be resolved to URLs or null.
func (c *Controller) PublishQuestions(ctx context.Context, role domain.Role, questions []domain.Question) error {
	if err := requireQuizmaster(role); err != nil {
		return err
	}
	if len(questions) == 0 {
		return domain.ErrNoQuestions
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
		if !q.MediaResolved() {
			return fmt.Errorf("question %d: %w", i, domain.ErrUnresolvedMedia)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.StateArchived {
		return domain.ErrSessionNotActive
	}

	c.timer.Stop()
	zero := 0
	timer := domain.TimerInactive
	inactive := false
	state := domain.StateActive
	patch := domain.SessionPatch{
		Questions:   questions,
		Current:     &zero,
		State:       &state,
		Timer:       &timer,
		TimerActive: &inactive,
	}
	if err := c.store.Update(ctx, c.sessionID, patch); err != nil {
		return storeErr(err)
	}
	c.current = 0
	c.count = len(questions)
	c.state = domain.StateActive
	c.logger.Info("questions published", "count", len(questions))
	return nil
}

// UpdateSettings stores the per-question duration. A running countdown keeps
// its duration; the new value applies from the next Advance.
func (c *Controller) UpdateSettings(ctx context.Context, role domain.Role, questionTimer int) error {
	if err := requireQuizmaster(role); err != nil {
		return err
	}
	if questionTimer < MinQuestionTimer || questionTimer > MaxQuestionTimer {
		return fmt.Errorf("%w: %d not in [%d,%d]", domain.ErrInvalidTimer, questionTimer, MinQuestionTimer, MaxQuestionTimer)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Update(ctx, c.sessionID, domain.SessionPatch{QuestionTimer: &questionTimer}); err != nil {
		return storeErr(err)
	}
	c.questionTimer = questionTimer
	return nil
}

// SetView switches the display context; navigation works only in the
// questions view.
func (c *Controller) SetView(role domain.Role, view domain.View) error {
	if err := requireQuizmaster(role); err != nil {
		return err
	}
	switch view {
	case domain.ViewQuestions, domain.ViewScores, domain.ViewSettings:
	default:
		return fmt.Errorf("unknown view %q", view)
	}
	c.mu.Lock()
	c.view = view
	c.mu.Unlock()
	return nil
}

// StartTimer restarts the countdown for the current question. The restart is
// a new round, so teams that already answered may answer again.
func (c *Controller) StartTimer(ctx context.Context, role domain.Role) error {
	if err := requireQuizmaster(role); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateActive {
		return domain.ErrSessionNotActive
	}
	if c.count == 0 {
		return domain.ErrNoQuestions
	}
	if err := c.timer.Start(ctx, c.questionTimer); err != nil {
		return storeErr(err)
	}
	return nil
}

// Archive stops the countdown and marks the session archived.
func (c *Controller) Archive(ctx context.Context, role domain.Role) error {
	if err := requireQuizmaster(role); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timer.Stop()
	state := domain.StateArchived
	inactive := false
	if err := c.store.Update(ctx, c.sessionID, domain.SessionPatch{State: &state, TimerActive: &inactive}); err != nil {
		return storeErr(err)
	}
	c.state = domain.StateArchived
	c.logger.Info("session archived")
	return nil
}

// Close stops the countdown without touching the document.
func (c *Controller) Close() {
	c.timer.Stop()
}

func (c *Controller) publishTimer(ctx context.Context, round, remaining int, active bool) error {
	return c.store.Update(ctx, c.sessionID, domain.SessionPatch{Timer: &remaining, TimerActive: &active, TimerRound: &round})
}

func requireQuizmaster(role domain.Role) error {
	if role != domain.RoleQuizmaster {
		return fmt.Errorf("%w: %q", domain.ErrForbidden, role)
	}
	return nil
}

// clampIndex returns current+delta limited to [0, count-1] without overflowing.
func clampIndex(current, delta, count int) int {
	last := count - 1
	switch {
	case delta > 0 && delta > last-current:
		return last
	case delta < 0 && delta < -current:
		return 0
	default:
		return current + delta
	}
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}
