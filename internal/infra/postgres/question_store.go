package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"trivia-live/internal/domain"
)

// questionSetRow maps the question_sets table for writes.
type questionSetRow struct {
	bun.BaseModel `bun:"table:question_sets"`

	ID        string          `bun:"id,pk"`
	Title     string          `bun:"title"`
	Data      json.RawMessage `bun:"data,type:jsonb"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// QuestionStore writes question sets imported from files.
type QuestionStore struct {
	db *bun.DB
}

// OpenDB opens a bun handle on dsn.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func NewQuestionStore(db *bun.DB) *QuestionStore {
	return &QuestionStore{db: db}
}

// SaveQuestionSet validates questions and upserts them under id.
func (s *QuestionStore) SaveQuestionSet(ctx context.Context, id, title string, questions []domain.Question) error {
	if id == "" {
		return fmt.Errorf("question set id required")
	}
	if len(questions) == 0 {
		return domain.ErrNoQuestions
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal question set: %w", err)
	}
	row := &questionSetRow{ID: id, Title: title, Data: data}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save question set: %w", err)
	}
	return nil
}
