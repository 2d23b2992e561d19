package memory

import (
	"context"
	"io"
	"strings"
	"sync"
)

// MediaLibrary is an in-memory media store resolving filenames to URLs under
// a base URL. Lookups are case-insensitive like the uploaded-file matching
// quizmasters rely on.
type MediaLibrary struct {
	baseURL string

	mu    sync.RWMutex
	files map[string]string
}

func NewMediaLibrary(baseURL string, names ...string) *MediaLibrary {
	l := &MediaLibrary{
		baseURL: strings.TrimRight(baseURL, "/"),
		files:   make(map[string]string),
	}
	for _, name := range names {
		l.files[strings.ToLower(name)] = name
	}
	return l
}

func (l *MediaLibrary) Resolve(_ context.Context, ref string) (string, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	name, ok := l.files[strings.ToLower(ref)]
	if !ok {
		return "", false, nil
	}
	return l.baseURL + "/media/" + name, true, nil
}

// Upload stores name; the content is discarded.
func (l *MediaLibrary) Upload(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	l.mu.Lock()
	l.files[strings.ToLower(name)] = name
	l.mu.Unlock()
	return nil
}

// Missing returns the names not stored yet, in input order.
func (l *MediaLibrary) Missing(_ context.Context, names []string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var missing []string
	for _, name := range names {
		if _, ok := l.files[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
