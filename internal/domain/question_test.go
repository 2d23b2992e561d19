package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestAnswerIndexRoundTrip(t *testing.T) {
	orders := [][]int{
		{0, 1},
		{1, 0},
		{2, 0, 1},
		{3, 1, 0, 2},
		{5, 4, 3, 2, 1, 0},
	}
	for _, order := range orders {
		answers := make([]string, len(order))
		for i := range answers {
			answers[i] = string(rune('A' + i))
		}
		q := Question{Answers: answers, AnswersOrder: order, Type: SingleChoice}
		for display := range order {
			idx, err := q.AnswerIndex(display)
			if err != nil {
				t.Fatalf("order %v display %d: %v", order, display, err)
			}
			if back := q.DisplayIndex(idx); back != display {
				t.Fatalf("order %v: display %d -> answer %d -> display %d", order, display, idx, back)
			}
		}
	}
}

func TestAnswerIndexRejectsOutOfRange(t *testing.T) {
	q := Question{Answers: []string{"a", "b"}, AnswersOrder: []int{1, 0}}
	if _, err := q.AnswerIndex(2); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
	if _, err := q.AnswerIndex(-1); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
}

func TestDisplayedAnswers(t *testing.T) {
	q := Question{Answers: []string{"Paris", "Rome", "Berlin"}, AnswersOrder: []int{2, 0, 1}}
	got := q.DisplayedAnswers()
	want := []string{"Berlin", "Paris", "Rome"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		q    Question
		ok   bool
	}{
		{"single ok", Question{Answers: []string{"a", "b"}, AnswersOrder: []int{1, 0}, Type: SingleChoice}, true},
		{"multi ok", Question{Answers: []string{"a", "b", "c"}, AnswersOrder: []int{0, 2, 1}, Type: MultiChoice, CorrectAnswers: []int{0, 2}}, true},
		{"too few answers", Question{Answers: []string{"a"}, AnswersOrder: []int{0}, Type: SingleChoice}, false},
		{"too many answers", Question{Answers: make([]string, 7), AnswersOrder: []int{0, 1, 2, 3, 4, 5, 6}, Type: SingleChoice}, false},
		{"not a permutation", Question{Answers: []string{"a", "b"}, AnswersOrder: []int{0, 0}, Type: SingleChoice}, false},
		{"correct out of range", Question{Answers: []string{"a", "b"}, AnswersOrder: []int{0, 1}, Type: SingleChoice, CorrectAnswer: 2}, false},
		{"multi without correct", Question{Answers: []string{"a", "b"}, AnswersOrder: []int{0, 1}, Type: MultiChoice}, false},
		{"unknown type", Question{Answers: []string{"a", "b"}, AnswersOrder: []int{0, 1}, Type: "poll"}, false},
	}
	for _, tc := range cases {
		err := tc.q.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidQuestion) {
			t.Fatalf("%s: expected ErrInvalidQuestion, got %v", tc.name, err)
		}
	}
}

func TestMediaResolved(t *testing.T) {
	url := "https://cdn.example.com/a.mp3"
	raw := "a.mp3"
	if !(Question{Sound: &url}).MediaResolved() {
		t.Fatalf("url should count as resolved")
	}
	if !(Question{}).MediaResolved() {
		t.Fatalf("null media should count as resolved")
	}
	if (Question{Video: &raw}).MediaResolved() {
		t.Fatalf("bare filename should not count as resolved")
	}
}

func TestNormalizeSelection(t *testing.T) {
	got := NormalizeSelection([]int{3, 1, 3, 0, 1})
	if !reflect.DeepEqual(got, []int{0, 1, 3}) {
		t.Fatalf("unexpected normalization %v", got)
	}
	if got := NormalizeSelection(nil); len(got) != 0 {
		t.Fatalf("expected empty selection, got %v", got)
	}
}

func TestPatchKinds(t *testing.T) {
	timer := 3
	current := 1
	k := SessionPatch{Timer: &timer, Current: &current}.Kinds()
	if !k.Has(EventTimer) || !k.Has(EventCursor) || k.Has(EventAnswers) {
		t.Fatalf("unexpected kinds %s", k)
	}
}
