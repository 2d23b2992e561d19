package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"

	"trivia-live/internal/domain"
	"trivia-live/internal/quizfile"
)

const csvExt = ".csv"

// QuizLibrary serves CSV question sets stored as quizzes/{setID}.csv.
type QuizLibrary struct {
	client *minio.Client
	bucket string
	parser *quizfile.Parser
}

func NewQuizLibrary(client *minio.Client, bucket string, parser *quizfile.Parser) *QuizLibrary {
	if parser == nil {
		parser = quizfile.NewParser()
	}
	return &QuizLibrary{client: client, bucket: bucket, parser: parser}
}

// LoadQuestions implements app.QuestionSource. Each load reshuffles answers;
// wrap the library in a cache to keep one order per set.
func (l *QuizLibrary) LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	key := quizKey(setID)
	obj, err := l.client.GetObject(ctx, l.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrQuestionSetNotFound, setID)
		}
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	questions, err := l.parser.Parse(obj)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	return questions, nil
}

// QuestionSets lists the set ids available in the library.
func (l *QuizLibrary) QuestionSets(ctx context.Context) ([]string, error) {
	var ids []string
	for obj := range l.client.ListObjects(ctx, l.bucket, minio.ListObjectsOptions{Prefix: quizPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list quizzes: %w", obj.Err)
		}
		if id, ok := setIDFromKey(obj.Key); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func quizKey(setID string) string {
	return quizPrefix + strings.TrimSuffix(setID, csvExt) + csvExt
}

func setIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, quizPrefix) || !strings.EqualFold(path.Ext(key), csvExt) {
		return "", false
	}
	name := strings.TrimPrefix(key, quizPrefix)
	return name[:len(name)-len(csvExt)], true
}

// Put stores a CSV question set under setID.
func (l *QuizLibrary) Put(ctx context.Context, setID string, r io.Reader, size int64) error {
	key := quizKey(setID)
	if _, err := l.client.PutObject(ctx, l.bucket, key, r, size, minio.PutObjectOptions{ContentType: "text/csv"}); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
