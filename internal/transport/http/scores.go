package http

import (
	"net/http"

	"trivia-live/internal/domain"
)

// ServeScores streams the paged leaderboard of a session.
func (h *Handler) ServeScores(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	if _, err := h.service.Session(r.Context(), sessionID); err != nil {
		h.writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	defer watch("scoreboard")()

	out := newOutbox(r.Context(), conn, h.logger.With("session", sessionID))
	defer out.close()

	// Reads only detect the peer leaving.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				out.cancel()
				return
			}
		}
	}()

	err = h.service.RunScoreboard(out.ctx, sessionID, func(b domain.Scoreboard) {
		out.push("scoreboard", b)
	})
	if err != nil {
		out.pushError(err)
	}
}
