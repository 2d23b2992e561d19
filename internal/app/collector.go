package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"trivia-live/internal/domain"
	"trivia-live/internal/metrics"
)

// Trigger tells how a submission was initiated.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerAuto   Trigger = "auto"
)

// AnswerCollector scores selections against the authoritative question and
// records one answer per (question, team).
//
// Conflict policy: last write wins. A manual submission racing the
// timer-expiry auto-submission for the same key is not an error; whichever
// write reaches the store last is the record.
type AnswerCollector struct {
	store  SessionStore
	policy ScoringPolicy
	now    func() time.Time
	logger *slog.Logger
}

// CollectorOption customizes an AnswerCollector.
type CollectorOption func(*AnswerCollector)

// WithScoringPolicy replaces the fixed ten-point policy.
func WithScoringPolicy(policy ScoringPolicy) CollectorOption {
	return func(c *AnswerCollector) {
		if policy != nil {
			c.policy = policy
		}
	}
}

// WithClock is test-only for deterministic record timestamps.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *AnswerCollector) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCollectorLogger sets the collector's logger.
func WithCollectorLogger(logger *slog.Logger) CollectorOption {
	return func(c *AnswerCollector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewAnswerCollector(store SessionStore, opts ...CollectorOption) *AnswerCollector {
	c := &AnswerCollector{
		store:  store,
		policy: FixedPoints{Points: DefaultPoints},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the scoring policy in use.
func (c *AnswerCollector) Policy() ScoringPolicy {
	return c.policy
}

// Submit scores selected display indices for team on questionIndex and
// writes the record. An empty selection is recorded as incorrect.
func (c *AnswerCollector) Submit(ctx context.Context, sessionID, team string, questionIndex int, selected []int) (domain.AnswerRecord, error) {
	return c.submit(ctx, sessionID, team, questionIndex, selected, TriggerManual)
}

func (c *AnswerCollector) submit(ctx context.Context, sessionID, team string, questionIndex int, selected []int, trigger Trigger) (domain.AnswerRecord, error) {
	team = strings.TrimSpace(team)
	if team == "" {
		return domain.AnswerRecord{}, domain.ErrTeamRequired
	}

	session, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	if session.State != domain.StateActive {
		return domain.AnswerRecord{}, domain.ErrSessionNotActive
	}
	if questionIndex < 0 || questionIndex >= len(session.Questions) {
		return domain.AnswerRecord{}, fmt.Errorf("%w: index %d", domain.ErrQuestionNotFound, questionIndex)
	}
	question := session.Questions[questionIndex]

	display := domain.NormalizeSelection(selected)
	answerIndices := make([]int, 0, len(display))
	for _, d := range display {
		idx, err := question.AnswerIndex(d)
		if err != nil {
			return domain.AnswerRecord{}, err
		}
		answerIndices = append(answerIndices, idx)
	}

	correct, points := c.policy.Score(question, answerIndices)
	rec := domain.AnswerRecord{
		Team:    team,
		Q:       questionIndex,
		Answer:  display,
		Correct: correct,
		Points:  points,
		Time:    c.now(),
	}
	if err := c.store.PutAnswer(ctx, sessionID, rec); err != nil {
		return domain.AnswerRecord{}, storeErr(err)
	}

	metrics.AnswersRecorded.WithLabelValues(strconv.FormatBool(correct), string(trigger)).Inc()
	c.logger.Debug("answer recorded",
		"session", sessionID, "team", team, "q", questionIndex,
		"correct", correct, "points", points, "trigger", trigger)
	return rec, nil
}
