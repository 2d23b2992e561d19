package domain

import (
	"fmt"
	"sort"
	"strings"
)

const (
	MinAnswers = 2
	MaxAnswers = 6
)

// Validate checks answer count, the shuffle permutation and the correct indices.
func (q Question) Validate() error {
	n := len(q.Answers)
	if n < MinAnswers || n > MaxAnswers {
		return fmt.Errorf("%w: %d answers, want %d..%d", ErrInvalidQuestion, n, MinAnswers, MaxAnswers)
	}
	if len(q.AnswersOrder) != n {
		return fmt.Errorf("%w: answersOrder has %d entries for %d answers", ErrInvalidQuestion, len(q.AnswersOrder), n)
	}
	seen := make([]bool, n)
	for _, idx := range q.AnswersOrder {
		if idx < 0 || idx >= n || seen[idx] {
			return fmt.Errorf("%w: answersOrder is not a permutation", ErrInvalidQuestion)
		}
		seen[idx] = true
	}
	switch q.Type {
	case SingleChoice:
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= n {
			return fmt.Errorf("%w: correctAnswer %d out of range", ErrInvalidQuestion, q.CorrectAnswer)
		}
	case MultiChoice:
		if len(q.CorrectAnswers) == 0 {
			return fmt.Errorf("%w: multi-choice question without correct answers", ErrInvalidQuestion)
		}
		for _, idx := range q.CorrectAnswers {
			if idx < 0 || idx >= n {
				return fmt.Errorf("%w: correctAnswers index %d out of range", ErrInvalidQuestion, idx)
			}
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, q.Type)
	}
	return nil
}

// AnswerIndex maps a display position back to the unshuffled answer index.
func (q Question) AnswerIndex(display int) (int, error) {
	if display < 0 || display >= len(q.Answers) {
		return 0, fmt.Errorf("%w: display index %d", ErrInvalidSelection, display)
	}
	if len(q.AnswersOrder) == 0 {
		return display, nil
	}
	return q.AnswersOrder[display], nil
}

// DisplayIndex maps an answer index to the position it is shown at, or -1.
func (q Question) DisplayIndex(answer int) int {
	if len(q.AnswersOrder) == 0 {
		if answer >= 0 && answer < len(q.Answers) {
			return answer
		}
		return -1
	}
	for display, idx := range q.AnswersOrder {
		if idx == answer {
			return display
		}
	}
	return -1
}

// DisplayedAnswers returns the answers in presentation order.
func (q Question) DisplayedAnswers() []string {
	if len(q.AnswersOrder) == 0 {
		return append([]string(nil), q.Answers...)
	}
	out := make([]string, 0, len(q.AnswersOrder))
	for _, idx := range q.AnswersOrder {
		out = append(out, q.Answers[idx])
	}
	return out
}

// CorrectSet returns the sorted unshuffled correct indices.
func (q Question) CorrectSet() []int {
	if q.Type == MultiChoice {
		return NormalizeSelection(q.CorrectAnswers)
	}
	return []int{q.CorrectAnswer}
}

// MediaRefs returns pointers to every media field so callers can rewrite them.
func (q *Question) MediaRefs() []**string {
	return []**string{&q.Sound, &q.Video, &q.Background, &q.ClueImage}
}

// MediaResolved reports whether every media field is null or an http(s) URL.
func (q Question) MediaResolved() bool {
	for _, ref := range []*string{q.Sound, q.Video, q.Background, q.ClueImage} {
		if ref != nil && !IsURL(*ref) {
			return false
		}
	}
	return true
}

// IsURL reports whether a media reference is already fetchable.
func IsURL(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// NormalizeSelection sorts and de-duplicates indices.
func NormalizeSelection(indices []int) []int {
	out := append([]int{}, indices...)
	sort.Ints(out)
	j := 0
	for i, v := range out {
		if i > 0 && v == out[j-1] {
			continue
		}
		out[j] = v
		j++
	}
	return out[:j]
}
