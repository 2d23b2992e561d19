package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trivia-live/internal/app"
	"trivia-live/internal/domain"
	"trivia-live/internal/infra/memory"
)

const tick = 5 * time.Millisecond

// triviaQuestions: q0 shows Berlin, Paris, Rome; q1 is multi-choice with
// correct answers "2" and "5" shown at display 3 and 1.
func triviaQuestions() []domain.Question {
	return []domain.Question{
		{
			Question:      "Capital of France?",
			Answers:       []string{"Paris", "Rome", "Berlin"},
			AnswersOrder:  []int{2, 0, 1},
			Type:          domain.SingleChoice,
			CorrectAnswer: 0,
		},
		{
			Question:       "Which are prime?",
			Answers:        []string{"2", "4", "5", "9"},
			AnswersOrder:   []int{3, 2, 1, 0},
			Type:           domain.MultiChoice,
			CorrectAnswers: []int{0, 2},
		},
		{
			Question:      "Is water wet?",
			Answers:       []string{"Yes", "No"},
			AnswersOrder:  []int{0, 1},
			Type:          domain.SingleChoice,
			CorrectAnswer: 1,
		},
	}
}

// activeSession stores a published session and returns the store.
func activeSession(t *testing.T, id string) *memory.SessionStore {
	t.Helper()
	store := memory.NewSessionStore()
	err := store.Create(context.Background(), domain.GameSession{
		ID:            id,
		Questions:     triviaQuestions(),
		Timer:         domain.TimerInactive,
		State:         domain.StateActive,
		QuestionTimer: 2,
	})
	require.NoError(t, err)
	return store
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

type timerState struct {
	remaining int
	active    bool
}

// recorder collects published countdown states and their rounds.
type recorder struct {
	mu     sync.Mutex
	states []timerState
	rounds []int
}

func (r *recorder) publish(_ context.Context, round, remaining int, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, timerState{remaining, active})
	r.rounds = append(r.rounds, round)
	return nil
}

func (r *recorder) roundsSeen() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.rounds...)
}

func (r *recorder) snapshot() []timerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]timerState(nil), r.states...)
}

func (r *recorder) last() (timerState, bool) {
	states := r.snapshot()
	if len(states) == 0 {
		return timerState{}, false
	}
	return states[len(states)-1], true
}

var _ app.TimerPublisher = (&recorder{}).publish
