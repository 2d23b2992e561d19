package app

import "trivia-live/internal/domain"

// DefaultPoints is awarded for an exactly correct answer.
const DefaultPoints = 10

// ScoringPolicy scores a selection already mapped back to answer indices.
type ScoringPolicy interface {
	Score(q domain.Question, answerIndices []int) (correct bool, points int)
	// MaxPoints is the most one question can award.
	MaxPoints() int
}

// FixedPoints awards Points for an exact match and nothing otherwise.
type FixedPoints struct {
	Points int
}

func (p FixedPoints) Score(q domain.Question, answerIndices []int) (bool, int) {
	if isCorrect(q, answerIndices) {
		return true, p.points()
	}
	return false, 0
}

func (p FixedPoints) MaxPoints() int {
	return p.points()
}

func (p FixedPoints) points() int {
	if p.Points <= 0 {
		return DefaultPoints
	}
	return p.Points
}

// PartialCredit keeps the exact-match rule for Correct but gives multi-choice
// answers a share of Points: (right picks - wrong picks) / correct count,
// floored at zero.
type PartialCredit struct {
	Points int
}

func (p PartialCredit) Score(q domain.Question, answerIndices []int) (bool, int) {
	full := FixedPoints(p).points()
	if isCorrect(q, answerIndices) {
		return true, full
	}
	if q.Type != domain.MultiChoice {
		return false, 0
	}
	correct := q.CorrectSet()
	want := make(map[int]bool, len(correct))
	for _, idx := range correct {
		want[idx] = true
	}
	net := 0
	for _, idx := range domain.NormalizeSelection(answerIndices) {
		if want[idx] {
			net++
		} else {
			net--
		}
	}
	if net <= 0 {
		return false, 0
	}
	return false, full * net / len(correct)
}

func (p PartialCredit) MaxPoints() int {
	return FixedPoints(p).points()
}

// isCorrect applies the correctness rule on unshuffled indices: exactly the
// one correct index for single-choice, set equality for multi-choice.
func isCorrect(q domain.Question, answerIndices []int) bool {
	switch q.Type {
	case domain.SingleChoice:
		return len(answerIndices) == 1 && answerIndices[0] == q.CorrectAnswer
	case domain.MultiChoice:
		got := domain.NormalizeSelection(answerIndices)
		want := q.CorrectSet()
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}
	return false
}
