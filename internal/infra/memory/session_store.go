package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"trivia-live/internal/domain"
)

const subscriberBuffer = 16

// SessionStore is an in-memory implementation of app.SessionStore. Writes
// and fan-out happen under one lock, so subscribers see each session's
// writes in the order they were applied.
type SessionStore struct {
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	session     domain.GameSession
	answers     map[string]domain.AnswerRecord
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan domain.Event
	mask domain.EventKind
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *SessionStore) Create(_ context.Context, session domain.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[session.ID]
	if !ok {
		entry = &sessionEntry{subscribers: make(map[*subscriber]struct{})}
		s.sessions[session.ID] = entry
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = s.now()
	}
	entry.session = cloneSession(session)
	entry.answers = make(map[string]domain.AnswerRecord)
	s.broadcastLocked(entry, domain.EventAll)
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (domain.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return cloneSession(entry.session), nil
}

func (s *SessionStore) Update(_ context.Context, sessionID string, patch domain.SessionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	patch.Apply(&entry.session)
	entry.session.UpdatedAt = s.now()
	s.broadcastLocked(entry, patch.Kinds())
	return nil
}

func (s *SessionStore) PutAnswer(_ context.Context, sessionID string, rec domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	rec.Answer = slices.Clone(rec.Answer)
	entry.answers[rec.Key()] = rec
	s.broadcastLocked(entry, domain.EventAnswers)
	return nil
}

func (s *SessionStore) Answers(_ context.Context, sessionID string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return answersLocked(entry), nil
}

func (s *SessionStore) Subscribe(ctx context.Context, sessionID string, mask domain.EventKind) (<-chan domain.Event, func(), error) {
	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, nil, domain.ErrSessionNotFound
	}
	sub := &subscriber{ch: make(chan domain.Event, subscriberBuffer), mask: mask}
	entry.subscribers[sub] = struct{}{}
	s.mu.Unlock()

	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			s.mu.Lock()
			if _, ok := entry.subscribers[sub]; ok {
				delete(entry.subscribers, sub)
				close(sub.ch)
			}
			s.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	return sub.ch, cancel, nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	for sub := range entry.subscribers {
		delete(entry.subscribers, sub)
		close(sub.ch)
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *SessionStore) broadcastLocked(entry *sessionEntry, kind domain.EventKind) {
	if len(entry.subscribers) == 0 {
		return
	}
	ev := domain.Event{
		Kind:      kind,
		SessionID: entry.session.ID,
		Session:   cloneSession(entry.session),
	}
	if kind.Has(domain.EventAnswers) {
		ev.Answers = answersLocked(entry)
	}
	for sub := range entry.subscribers {
		if !kind.Has(sub.mask) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// slow subscriber: drop its oldest event, every event carries a full snapshot
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- ev
		}
	}
}

func answersLocked(entry *sessionEntry) []domain.AnswerRecord {
	out := make([]domain.AnswerRecord, 0, len(entry.answers))
	for _, rec := range entry.answers {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Q != out[j].Q {
			return out[i].Q < out[j].Q
		}
		return out[i].Team < out[j].Team
	})
	return out
}

func cloneSession(s domain.GameSession) domain.GameSession {
	s.Questions = slices.Clone(s.Questions)
	return s
}
