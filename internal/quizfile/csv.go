// Package quizfile reads QuizXpress-style CSV exports into question sets.
package quizfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"trivia-live/internal/domain"
)

const (
	catMultiChoice    = "MULTICHOICE"
	catVanishingImage = "VANISHING_IMAGE"
	catMultiAnswer    = "MULTIANSWER"
)

var answerColumns = []string{"A1", "A2", "A3", "A4", "A5", "A6"}

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// Shuffler permutes n indices in place via swap.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Parser converts CSV rows into questions.
type Parser struct {
	shuffle Shuffler
}

// Option customizes a Parser.
type Option func(*Parser)

// WithShuffler fixes the answer order source; tests use a seeded rand.
func WithShuffler(s Shuffler) Option {
	return func(p *Parser) {
		if s != nil {
			p.shuffle = s
		}
	}
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{shuffle: rand.New(rand.NewSource(time.Now().UnixNano()))}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads a header row and one question per data row. Rows whose CAT is
// not a supported type are skipped. Empty answer cells are dropped. Without a
// CORRECT column the first answer is the correct one; CORRECT holds 1-based
// answer numbers separated by ';'.
func (p *Parser) Parse(r io.Reader) ([]domain.Question, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{"Q", "CAT", "A1"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	var questions []domain.Question
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := rowReader{cols: cols, record: record}
		if row.empty() {
			continue
		}
		q, ok, err := p.question(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ok {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return questions, nil
}

func (p *Parser) question(row rowReader) (domain.Question, bool, error) {
	var qType domain.QuestionType
	switch strings.ToUpper(row.get("CAT")) {
	case catMultiChoice, catVanishingImage:
		qType = domain.SingleChoice
	case catMultiAnswer:
		qType = domain.MultiChoice
	default:
		return domain.Question{}, false, nil
	}

	var answers []string
	for _, col := range answerColumns {
		if a := row.get(col); a != "" {
			answers = append(answers, a)
		}
	}

	q := domain.Question{
		Question:     row.get("Q"),
		Answers:      answers,
		AnswersOrder: p.order(len(answers)),
		Type:         qType,
		Sound:        row.optional("SOUND"),
		Video:        row.optional("VIDEO"),
		Background:   row.optional("BACKGROUND"),
		ClueImage:    row.optional("P1"),
	}

	correct, err := parseCorrect(row.get("CORRECT"), len(answers))
	if err != nil {
		return domain.Question{}, false, err
	}
	if qType == domain.SingleChoice {
		if len(correct) != 1 {
			return domain.Question{}, false, fmt.Errorf("%w: single-choice needs one correct answer", domain.ErrInvalidQuestion)
		}
		q.CorrectAnswer = correct[0]
	} else {
		q.CorrectAnswers = correct
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, false, err
	}
	return q, true, nil
}

func (p *Parser) order(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	p.shuffle.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// parseCorrect turns "1;3" into zero-based indices; empty means the first answer.
func parseCorrect(raw string, answers int) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return []int{0}, nil
	}
	var out []int
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: correct %q", domain.ErrInvalidQuestion, part)
		}
		if n < 1 || n > answers {
			return nil, fmt.Errorf("%w: correct answer %d of %d", domain.ErrInvalidQuestion, n, answers)
		}
		out = append(out, n-1)
	}
	return domain.NormalizeSelection(out), nil
}

type rowReader struct {
	cols   map[string]int
	record []string
}

func (r rowReader) get(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r rowReader) optional(col string) *string {
	v := r.get(col)
	if v == "" {
		return nil
	}
	return &v
}

func (r rowReader) empty() bool {
	for _, v := range r.record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
