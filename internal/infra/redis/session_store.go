package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-live/internal/domain"
)

const (
	subscriberBuffer = 16
	maxTxRetries     = 8
)

// SessionStore keeps each session document in Redis so every instance sees
// the same game:
//
//	HSET trivia:session:{id}          questions|current|timer|timerActive|timerRound|state|questionTimer|createdAt|updatedAt
//	HSET trivia:session:{id}:answers  {q}-{team} -> AnswerRecord JSON
//	PUBLISH trivia:session:{id}:events {changed kind mask}
//
// A write and its notification go out in one MULTI/EXEC, so a single
// writer's changes are announced in order. Updates WATCH the session hash
// and abort when it has expired, so a write never recreates a partial
// document. Subscribers reload the snapshot
// when notified, which can coalesce rapid writes into the latest state.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		client: client,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func (s *SessionStore) Create(ctx context.Context, session domain.GameSession) error {
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = s.now()
	}
	fields, err := encodeSession(session)
	if err != nil {
		return err
	}
	key := s.key(session.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key, s.answersKey(session.ID))
		pipe.HSet(ctx, key, fields)
		s.expire(ctx, pipe, session.ID)
		pipe.Publish(ctx, s.channel(session.ID), kindPayload(domain.EventAll))
		return nil
	})
	return err
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.GameSession, error) {
	raw, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return domain.GameSession{}, err
	}
	if len(raw) == 0 {
		return domain.GameSession{}, domain.ErrSessionNotFound
	}
	return decodeSession(sessionID, raw)
}

func (s *SessionStore) Update(ctx context.Context, sessionID string, patch domain.SessionPatch) error {
	fields, err := encodePatch(patch)
	if err != nil {
		return err
	}
	fields["updatedAt"] = s.now().Format(time.RFC3339Nano)
	return s.writeExisting(ctx, sessionID, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, s.key(sessionID), fields)
		s.expire(ctx, pipe, sessionID)
		pipe.Publish(ctx, s.channel(sessionID), kindPayload(patch.Kinds()))
	})
}

func (s *SessionStore) PutAnswer(ctx context.Context, sessionID string, rec domain.AnswerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	return s.writeExisting(ctx, sessionID, func(pipe redis.Pipeliner) {
		// HSET on the (q, team) field: a later submission replaces the earlier one
		pipe.HSet(ctx, s.answersKey(sessionID), rec.Key(), data)
		// The session hash is watched; leaving its TTL alone keeps concurrent
		// answers from aborting each other.
		if s.ttl > 0 {
			pipe.Expire(ctx, s.answersKey(sessionID), s.ttl)
		}
		pipe.Publish(ctx, s.channel(sessionID), kindPayload(domain.EventAnswers))
	})
}

// writeExisting queues write in a MULTI/EXEC guarded by WATCH on the session
// hash. The transaction is dropped when the hash is gone and retried when
// another client changed it first.
func (s *SessionStore) writeExisting(ctx context.Context, sessionID string, write func(redis.Pipeliner)) error {
	key := s.key(sessionID)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrSessionNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe)
			return nil
		})
		return err
	}
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("write session %s: %w", sessionID, redis.TxFailedErr)
}

func (s *SessionStore) Answers(ctx context.Context, sessionID string) ([]domain.AnswerRecord, error) {
	raw, err := s.client.HGetAll(ctx, s.answersKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.AnswerRecord, 0, len(raw))
	for field, value := range raw {
		var rec domain.AnswerRecord
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			s.logger.Warn("skipping malformed answer record", "session", sessionID, "field", field, "error", err)
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Q != out[j].Q {
			return out[i].Q < out[j].Q
		}
		return out[i].Team < out[j].Team
	})
	return out, nil
}

func (s *SessionStore) Subscribe(ctx context.Context, sessionID string, mask domain.EventKind) (<-chan domain.Event, func(), error) {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return nil, nil, err
	}
	ps := s.client.Subscribe(ctx, s.channel(sessionID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", sessionID, err)
	}

	subCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	out := make(chan domain.Event, subscriberBuffer)
	done := make(chan struct{})
	messages := ps.Channel()

	go func() {
		defer close(done)
		defer close(out)
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				n, err := strconv.ParseUint(msg.Payload, 10, 8)
				if err != nil {
					s.logger.Warn("ignoring malformed session notification", "session", sessionID, "payload", msg.Payload)
					continue
				}
				kind := domain.EventKind(n)
				if !kind.Has(mask) {
					continue
				}
				ev, err := s.snapshot(subCtx, sessionID, kind)
				if errors.Is(err, domain.ErrSessionNotFound) {
					return
				}
				if err != nil {
					if subCtx.Err() == nil {
						s.logger.Warn("session snapshot failed", "session", sessionID, "error", err)
					}
					continue
				}
				deliver(out, ev)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			_ = ps.Close()
			<-done
		})
	}
	return out, cancel, nil
}

// Delete removes the document and its answers. Subscribers are notified and
// end their subscription once the document is gone.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID), s.answersKey(sessionID))
		pipe.Publish(ctx, s.channel(sessionID), kindPayload(domain.EventAll))
		return nil
	})
	return err
}

func (s *SessionStore) snapshot(ctx context.Context, sessionID string, kind domain.EventKind) (domain.Event, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return domain.Event{}, err
	}
	ev := domain.Event{Kind: kind, SessionID: sessionID, Session: session}
	if kind.Has(domain.EventAnswers) {
		if ev.Answers, err = s.Answers(ctx, sessionID); err != nil {
			return domain.Event{}, err
		}
	}
	return ev, nil
}

// deliver drops the oldest queued event when the subscriber lags; every
// event carries a full snapshot.
func deliver(out chan domain.Event, ev domain.Event) {
	select {
	case out <- ev:
	default:
		select {
		case <-out:
		default:
		}
		out <- ev
	}
}

func (s *SessionStore) requireSession(ctx context.Context, sessionID string) error {
	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) expire(ctx context.Context, pipe redis.Pipeliner, sessionID string) {
	if s.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, s.key(sessionID), s.ttl)
	pipe.Expire(ctx, s.answersKey(sessionID), s.ttl)
}

func (s *SessionStore) key(sessionID string) string {
	return "trivia:session:" + sessionID
}

func (s *SessionStore) answersKey(sessionID string) string {
	return s.key(sessionID) + ":answers"
}

func (s *SessionStore) channel(sessionID string) string {
	return s.key(sessionID) + ":events"
}

func encodeSession(session domain.GameSession) (map[string]interface{}, error) {
	questions := session.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	fields, err := encodePatch(domain.SessionPatch{
		Questions:     questions,
		Current:       &session.Current,
		Timer:         &session.Timer,
		TimerActive:   &session.TimerActive,
		TimerRound:    &session.TimerRound,
		State:         &session.State,
		QuestionTimer: &session.QuestionTimer,
	})
	if err != nil {
		return nil, err
	}
	fields["createdAt"] = session.CreatedAt.Format(time.RFC3339Nano)
	fields["updatedAt"] = session.UpdatedAt.Format(time.RFC3339Nano)
	return fields, nil
}

func encodePatch(p domain.SessionPatch) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if p.Questions != nil {
		data, err := json.Marshal(p.Questions)
		if err != nil {
			return nil, fmt.Errorf("marshal questions: %w", err)
		}
		fields["questions"] = data
	}
	if p.Current != nil {
		fields["current"] = *p.Current
	}
	if p.Timer != nil {
		fields["timer"] = *p.Timer
	}
	if p.TimerActive != nil {
		fields["timerActive"] = strconv.FormatBool(*p.TimerActive)
	}
	if p.TimerRound != nil {
		fields["timerRound"] = *p.TimerRound
	}
	if p.State != nil {
		fields["state"] = string(*p.State)
	}
	if p.QuestionTimer != nil {
		fields["questionTimer"] = *p.QuestionTimer
	}
	return fields, nil
}

func decodeSession(sessionID string, raw map[string]string) (domain.GameSession, error) {
	session := domain.GameSession{
		ID:    sessionID,
		Timer: domain.TimerInactive,
		State: domain.SessionState(raw["state"]),
	}
	var errs []error
	if v, ok := raw["questions"]; ok {
		if err := json.Unmarshal([]byte(v), &session.Questions); err != nil {
			errs = append(errs, fmt.Errorf("questions: %w", err))
		}
	}
	intField := func(name string, dst *int) {
		if v, ok := raw[name]; ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	intField("current", &session.Current)
	intField("timer", &session.Timer)
	intField("timerRound", &session.TimerRound)
	intField("questionTimer", &session.QuestionTimer)
	if v, ok := raw["timerActive"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("timerActive: %w", err))
		}
		session.TimerActive = b
	}
	session.CreatedAt, _ = time.Parse(time.RFC3339Nano, raw["createdAt"])
	session.UpdatedAt, _ = time.Parse(time.RFC3339Nano, raw["updatedAt"])
	if len(errs) > 0 {
		return domain.GameSession{}, fmt.Errorf("decode session %s: %w", sessionID, errors.Join(errs...))
	}
	return session, nil
}

func kindPayload(kind domain.EventKind) string {
	return strconv.Itoa(int(kind))
}
