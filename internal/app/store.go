package app

import (
	"context"

	"trivia-live/internal/domain"
)

// SessionStore abstracts the shared live document of each game (in-memory, Redis).
//
// Writes from one client are observed by subscribers in the order written;
// nothing is ordered across clients. The document is never locked: the
// controller is the only writer of questions, current and timer by
// convention, and answer records live under distinct (q, team) keys.
type SessionStore interface {
	// Create initializes the full session document, replacing any previous one.
	Create(ctx context.Context, session domain.GameSession) error
	Get(ctx context.Context, sessionID string) (domain.GameSession, error)
	// Update merges the non-nil fields of patch into the document.
	Update(ctx context.Context, sessionID string, patch domain.SessionPatch) error
	// PutAnswer stores rec under its (q, team) key; an existing record is replaced.
	PutAnswer(ctx context.Context, sessionID string, rec domain.AnswerRecord) error
	Answers(ctx context.Context, sessionID string) ([]domain.AnswerRecord, error)
	// Subscribe delivers events whose kind intersects mask until cancel is
	// called or ctx ends. The caller must invoke cancel to avoid leaks.
	Subscribe(ctx context.Context, sessionID string, mask domain.EventKind) (<-chan domain.Event, func(), error)
	// Delete removes the document and its answers; deleting an unknown
	// session is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// QuestionSource loads an ordered question set (Postgres, object storage, static).
type QuestionSource interface {
	LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error)
}

// MediaResolver turns a raw media filename into a fetchable URL. ok is false
// when the file does not exist.
type MediaResolver interface {
	Resolve(ctx context.Context, ref string) (url string, ok bool, err error)
}

// MediaInventory reports which media filenames storage does not hold.
type MediaInventory interface {
	Missing(ctx context.Context, names []string) ([]string, error)
}
