package http

import (
	"fmt"
	"net/http"

	"trivia-live/internal/app"
	"trivia-live/internal/domain"
)

type selectPayload struct {
	Indices []int `json:"indices"`
}

type togglePayload struct {
	Index int `json:"index"`
}

// playerQuestion is a question as players see it: answers in display order
// and no correct indices.
type playerQuestion struct {
	Question   string              `json:"question"`
	Answers    []string            `json:"answers"`
	Type       domain.QuestionType `json:"type"`
	Sound      *string             `json:"sound"`
	Video      *string             `json:"video"`
	Background *string             `json:"background"`
	ClueImage  *string             `json:"clueImage"`
}

type playerSession struct {
	ID          string              `json:"id"`
	State       domain.SessionState `json:"state"`
	Current     int                 `json:"current"`
	Count       int                 `json:"count"`
	Timer       int                 `json:"timer"`
	TimerActive bool                `json:"timerActive"`
	Question    *playerQuestion     `json:"question"`
}

func playerView(s domain.GameSession) playerSession {
	view := playerSession{
		ID:          s.ID,
		State:       s.State,
		Current:     s.Current,
		Count:       len(s.Questions),
		Timer:       s.Timer,
		TimerActive: s.TimerActive,
	}
	if q, ok := s.CurrentQuestion(); ok {
		view.Question = &playerQuestion{
			Question:   q.Question,
			Answers:    q.DisplayedAnswers(),
			Type:       q.Type,
			Sound:      q.Sound,
			Video:      q.Video,
			Background: q.Background,
			ClueImage:  q.ClueImage,
		}
	}
	return view
}

// ServePlayer connects one team to a session. The team answers with display
// indices; when the countdown ends unanswered the pending selection is
// submitted for it.
func (h *Handler) ServePlayer(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	team := r.URL.Query().Get("team")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	player, err := h.service.Join(r.Context(), sessionID, team)
	if err != nil {
		h.writeError(w, err)
		return
	}
	events, cancel, err := h.service.Subscribe(r.Context(), sessionID, domain.EventSession)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	defer watch(domain.RolePlayer)()

	logger := h.logger.With("session", sessionID, "team", player.Team())
	out := newOutbox(r.Context(), conn, logger)
	defer out.close()

	session, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		out.pushError(err)
		return
	}
	h.observe(out, player, domain.Event{Kind: domain.EventSession, SessionID: sessionID, Session: session})

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		for {
			select {
			case <-out.ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				h.observe(out, player, ev)
			}
		}
	}()

	readLoop(out.ctx, conn, func(msg inboundMessage) {
		var err error
		switch msg.Type {
		case "select":
			var p selectPayload
			if err = decodePayload(msg, &p); err == nil {
				err = player.Select(p.Indices)
			}
		case "toggle":
			var p togglePayload
			if err = decodePayload(msg, &p); err == nil {
				err = player.Toggle(p.Index)
			}
		case "submit":
			var rec domain.AnswerRecord
			rec, err = player.Submit(out.ctx)
			if err == nil {
				out.push("result", rec)
			}
		default:
			err = fmt.Errorf("unsupported message type %q", msg.Type)
		}
		if err != nil {
			out.pushError(err)
			return
		}
		out.push("state", player.State())
	})

	out.cancel()
	<-relayDone
}

func (h *Handler) observe(out *outbox, player *app.Player, ev domain.Event) {
	rec, err := player.Observe(out.ctx, ev)
	if onlyTimer(ev.Kind) {
		out.push("timer", timerOf(ev.Session))
	} else {
		out.push("session", playerView(ev.Session))
	}
	switch {
	case err != nil:
		out.pushError(err)
	case rec != nil:
		out.push("result", *rec)
	}
}
