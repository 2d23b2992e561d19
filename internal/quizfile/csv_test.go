package quizfile

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"trivia-live/internal/domain"
)

// reverse is a deterministic shuffle: order becomes n-1..0.
type reverse struct{}

func (reverse) Shuffle(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}

const sample = `Q,CAT,A1,A2,A3,A4,A5,A6,SOUND,VIDEO,BACKGROUND,P1,CORRECT
Capital of France?,MULTICHOICE,Paris,Rome,Berlin,,,,anthem.mp3?alt=media,,,,
Primes?,MULTIANSWER,2,4,5,9,,,,,,,1;3
Whose face?,VANISHING_IMAGE,Einstein,Curie,,,,,,,bg.png,face.jpg,2
Open question,OPEN,anything,,,,,,,,,,

`

func TestParseMapsTypesAndCorrectAnswers(t *testing.T) {
	questions, err := NewParser(WithShuffler(reverse{})).Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, questions, 3)

	france := questions[0]
	require.Equal(t, domain.SingleChoice, france.Type)
	require.Equal(t, []string{"Paris", "Rome", "Berlin"}, france.Answers)
	require.Equal(t, []int{2, 1, 0}, france.AnswersOrder)
	require.Equal(t, 0, france.CorrectAnswer)
	require.NotNil(t, france.Sound)
	require.Equal(t, "anthem.mp3?alt=media", *france.Sound)
	require.Nil(t, france.Video)

	primes := questions[1]
	require.Equal(t, domain.MultiChoice, primes.Type)
	require.Equal(t, []int{0, 2}, primes.CorrectAnswers)

	face := questions[2]
	require.Equal(t, domain.SingleChoice, face.Type)
	require.Equal(t, 1, face.CorrectAnswer)
	require.Equal(t, "bg.png", *face.Background)
	require.Equal(t, "face.jpg", *face.ClueImage)
}

func TestParseShuffleIsPermutation(t *testing.T) {
	questions, err := NewParser().Parse(strings.NewReader(sample))
	require.NoError(t, err)
	for _, q := range questions {
		require.NoError(t, q.Validate())
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		csv  string
		want error
	}{
		{"missing column", "Q,A1,A2\nx,1,2\n", ErrMissingColumn},
		{"no supported rows", "Q,CAT,A1,A2\nx,OPEN,1,2\n", domain.ErrNoQuestions},
		{"correct out of range", "Q,CAT,A1,A2,CORRECT\nx,MULTICHOICE,1,2,3\n", domain.ErrInvalidQuestion},
		{"two correct on single", "Q,CAT,A1,A2,CORRECT\nx,MULTICHOICE,1,2,1;2\n", domain.ErrInvalidQuestion},
		{"one answer", "Q,CAT,A1,A2\nx,MULTICHOICE,only,\n", domain.ErrInvalidQuestion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewParser().Parse(strings.NewReader(tc.csv))
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}
