package objectstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"trivia-live/internal/domain"
)

func TestMediaKey(t *testing.T) {
	key, err := mediaKey(" anthem.mp3 ")
	require.NoError(t, err)
	require.Equal(t, "media/anthem.mp3", key)

	for _, bad := range []string{"", "../secret.png", "nested/file.png", `dir\file.png`} {
		_, err := mediaKey(bad)
		require.True(t, errors.Is(err, domain.ErrMediaNotFound), "name %q", bad)
	}
}

func TestQuizKeys(t *testing.T) {
	require.Equal(t, "quizzes/nineties.csv", quizKey("nineties"))
	require.Equal(t, "quizzes/nineties.csv", quizKey("nineties.csv"))

	id, ok := setIDFromKey("quizzes/pub night/round1.CSV")
	require.True(t, ok)
	require.Equal(t, "pub night/round1", id)

	_, ok = setIDFromKey("quizzes/readme.txt")
	require.False(t, ok)
	_, ok = setIDFromKey("media/song.csv")
	require.False(t, ok)
}

func TestIsNotFound(t *testing.T) {
	require.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	require.True(t, isNotFound(fmt.Errorf("wrapped: %w", minio.ErrorResponse{Code: "NoSuchKey"})))
	require.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	require.False(t, isNotFound(errors.New("boom")))
}
