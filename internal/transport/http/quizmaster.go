package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"trivia-live/internal/domain"
)

type advancePayload struct {
	Delta int `json:"delta"`
}

type settingsPayload struct {
	QuestionTimer int `json:"questionTimer"`
}

type viewPayload struct {
	View domain.View `json:"view"`
}

// ServeQuizmaster drives one session: it relays session changes to the
// quizmaster and applies its navigation, settings and publish commands.
func (h *Handler) ServeQuizmaster(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	ctrl, err := h.service.Controller(r.Context(), sessionID)
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
	defer watch(domain.RoleQuizmaster)()

	logger := h.logger.With("session", sessionID, "role", domain.RoleQuizmaster)
	out := newOutbox(r.Context(), conn, logger)
	defer out.close()

	session, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		out.pushError(err)
		return
	}
	out.push("session", session)

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
				if onlyTimer(ev.Kind) {
					out.push("timer", timerOf(ev.Session))
				} else {
					out.push("session", ev.Session)
				}
			}
		}
	}()

	role := domain.RoleQuizmaster
	readLoop(out.ctx, conn, func(msg inboundMessage) {
		ctx := out.ctx
		var err error
		ack := ackPayload{Command: msg.Type}
		switch msg.Type {
		case "advance":
			var p advancePayload
			if err = decodePayload(msg, &p); err == nil {
				var next int
				next, err = ctrl.Advance(ctx, role, p.Delta)
				ack.Current = &next
			}
		case "settings":
			var p settingsPayload
			if err = decodePayload(msg, &p); err == nil {
				err = ctrl.UpdateSettings(ctx, role, p.QuestionTimer)
			}
		case "view":
			var p viewPayload
			if err = decodePayload(msg, &p); err == nil {
				err = ctrl.SetView(role, p.View)
			}
		case "publish":
			var p publishRequest
			if err = decodePayload(msg, &p); err == nil {
				_, err = h.service.LoadQuestionSet(ctx, role, sessionID, p.QuestionSet)
			}
		case "startTimer":
			err = ctrl.StartTimer(ctx, role)
		default:
			err = fmt.Errorf("unsupported message type %q", msg.Type)
		}
		if err != nil {
			logger.Debug("command rejected", "command", msg.Type, "error", err)
			out.pushError(err)
			return
		}
		out.push("ack", ack)
	})

	out.cancel()
	<-relayDone
}

func decodePayload(msg inboundMessage, v any) error {
	if len(msg.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	return nil
}
