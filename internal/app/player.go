package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"trivia-live/internal/domain"
)

// Player holds one team's local answering state for a session. It mirrors
// the published countdown and never runs its own: "time's up" is whatever
// the quizmaster's engine last wrote.
type Player struct {
	sessionID string
	team      string
	collector *AnswerCollector

	mu       sync.Mutex
	synced   bool
	session  domain.GameSession
	question int
	round    int
	selected []int
	answered bool
	armed    bool
	result   *domain.AnswerRecord
}

// PlayerState is a read-only view of a Player for rendering.
type PlayerState struct {
	Team        string               `json:"team"`
	Current     int                  `json:"current"`
	Timer       int                  `json:"timer"`
	TimerActive bool                 `json:"timerActive"`
	Selected    []int                `json:"selected"`
	Answered    bool                 `json:"answered"`
	Result      *domain.AnswerRecord `json:"result,omitempty"`
}

func NewPlayer(sessionID, team string, collector *AnswerCollector) (*Player, error) {
	team = strings.TrimSpace(team)
	if team == "" {
		return nil, domain.ErrTeamRequired
	}
	return &Player{sessionID: sessionID, team: team, collector: collector}, nil
}

// Team returns the player's team name.
func (p *Player) Team() string {
	return p.team
}

// Observe mirrors a session snapshot. Local selection resets whenever the
// question changes or a new countdown round starts. When a countdown seen running for this question reaches
// zero and nothing was submitted, the pending selection (possibly empty) is
// submitted and the resulting record returned.
func (p *Player) Observe(ctx context.Context, ev domain.Event) (*domain.AnswerRecord, error) {
	if !ev.Kind.Has(domain.EventSession) {
		return nil, nil
	}
	s := ev.Session

	p.mu.Lock()
	if !p.synced || s.Current != p.question || s.TimerRound != p.round || ev.Kind.Has(domain.EventQuestions) {
		p.question = s.Current
		p.round = s.TimerRound
		p.selected = nil
		p.answered = false
		p.armed = false
		p.result = nil
	}
	p.synced = true
	p.session = s
	if s.TimerActive && s.Timer > 0 {
		p.armed = true
	}
	fire := p.armed && !s.TimerActive && s.Timer == 0 && !p.answered && s.State == domain.StateActive
	if !fire {
		p.mu.Unlock()
		return nil, nil
	}
	p.answered = true
	question, round := p.question, p.round
	pending := append([]int(nil), p.selected...)
	p.mu.Unlock()

	rec, err := p.collector.submit(ctx, p.sessionID, p.team, question, pending, TriggerAuto)
	if err != nil {
		p.unlockAnswer(question, round)
		return nil, err
	}
	p.storeResult(question, round, rec)
	return &rec, nil
}

// Select replaces the pending selection with display indices. Single-choice
// questions take exactly one index.
func (p *Player) Select(indices []int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	q, err := p.lockedQuestion()
	if err != nil {
		return err
	}
	if p.answered || p.session.Timer == 0 {
		return domain.ErrAnswerLocked
	}
	selection := domain.NormalizeSelection(indices)
	if q.Type == domain.SingleChoice && len(selection) > 1 {
		return fmt.Errorf("%w: single-choice takes one answer", domain.ErrInvalidSelection)
	}
	for _, idx := range selection {
		if idx < 0 || idx >= len(q.Answers) {
			return fmt.Errorf("%w: display index %d", domain.ErrInvalidSelection, idx)
		}
	}
	p.selected = selection
	return nil
}

// Toggle flips one display index: it replaces the choice on single-choice
// questions and adds or removes it on multi-choice ones.
func (p *Player) Toggle(index int) error {
	p.mu.Lock()
	q, err := p.lockedQuestion()
	if err != nil {
		p.mu.Unlock()
		return err
	}
	next := []int{index}
	if q.Type == domain.MultiChoice {
		next = next[:0]
		found := false
		for _, idx := range p.selected {
			if idx == index {
				found = true
				continue
			}
			next = append(next, idx)
		}
		if !found {
			next = append(next, index)
		}
	}
	p.mu.Unlock()
	return p.Select(next)
}

// Submit sends the pending selection for the current question.
func (p *Player) Submit(ctx context.Context) (domain.AnswerRecord, error) {
	p.mu.Lock()
	if _, err := p.lockedQuestion(); err != nil {
		p.mu.Unlock()
		return domain.AnswerRecord{}, err
	}
	if p.answered {
		p.mu.Unlock()
		return domain.AnswerRecord{}, domain.ErrAnswerLocked
	}
	p.answered = true
	question, round := p.question, p.round
	pending := append([]int(nil), p.selected...)
	p.mu.Unlock()

	rec, err := p.collector.submit(ctx, p.sessionID, p.team, question, pending, TriggerManual)
	if err != nil {
		p.unlockAnswer(question, round)
		return domain.AnswerRecord{}, err
	}
	p.storeResult(question, round, rec)
	return rec, nil
}

// State returns a copy of the local state.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PlayerState{
		Team:        p.team,
		Current:     p.question,
		Timer:       p.session.Timer,
		TimerActive: p.session.TimerActive,
		Selected:    append([]int{}, p.selected...),
		Answered:    p.answered,
	}
	if !p.synced {
		st.Timer = domain.TimerInactive
	}
	if p.result != nil {
		rec := *p.result
		st.Result = &rec
	}
	return st
}

func (p *Player) lockedQuestion() (domain.Question, error) {
	if !p.synced || p.session.State != domain.StateActive {
		return domain.Question{}, domain.ErrSessionNotActive
	}
	q, ok := p.session.CurrentQuestion()
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (p *Player) unlockAnswer(question, round int) {
	p.mu.Lock()
	if p.question == question && p.round == round {
		p.answered = false
	}
	p.mu.Unlock()
}

func (p *Player) storeResult(question, round int, rec domain.AnswerRecord) {
	p.mu.Lock()
	if p.question == question && p.round == round {
		p.result = &rec
	}
	p.mu.Unlock()
}
