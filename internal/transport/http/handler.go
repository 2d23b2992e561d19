package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"trivia-live/internal/app"
)

// QuestionCatalog lists the question sets a quizmaster can publish.
type QuestionCatalog interface {
	QuestionSets(ctx context.Context) ([]string, error)
}

// MediaUploader stores a media file for later resolution.
type MediaUploader interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
}

// Handler serves the JSON API and the quizmaster, player and scoreboard sockets.
type Handler struct {
	service  *app.Service
	catalog  QuestionCatalog
	media    MediaUploader
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// Option customizes a Handler.
type Option func(*Handler)

func WithCatalog(c QuestionCatalog) Option {
	return func(h *Handler) { h.catalog = c }
}

func WithMediaUploader(m MediaUploader) Option {
	return func(h *Handler) { h.media = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(service *app.Service, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		logger:  slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /sessions", h.createSession)
	mux.HandleFunc("GET /sessions/{id}", h.getSession)
	mux.HandleFunc("DELETE /sessions/{id}", h.deleteSession)
	mux.HandleFunc("POST /sessions/{id}/publish", h.publish)
	mux.HandleFunc("POST /sessions/{id}/archive", h.archive)
	mux.HandleFunc("GET /sessions/{id}/scores", h.scores)
	mux.HandleFunc("GET /question-sets", h.questionSets)
	mux.HandleFunc("GET /question-sets/{id}/missing-media", h.missingMedia)
	mux.HandleFunc("POST /media/{name}", h.uploadMedia)

	mux.HandleFunc("GET /ws/quizmaster", h.ServeQuizmaster)
	mux.HandleFunc("GET /ws/player", h.ServePlayer)
	mux.HandleFunc("GET /ws/scores", h.ServeScores)
}
