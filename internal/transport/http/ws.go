package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"trivia-live/internal/domain"
	"trivia-live/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	outboxSize = 32
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type timerPayload struct {
	Current     int  `json:"current"`
	Timer       int  `json:"timer"`
	TimerActive bool `json:"timerActive"`
}

type ackPayload struct {
	Command string `json:"command"`
	Current *int   `json:"current,omitempty"`
}

// outbox serializes writes to one connection: gorilla connections allow a
// single concurrent writer.
type outbox struct {
	conn   *websocket.Conn
	send   chan outboundMessage
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	done   chan struct{}
}

func newOutbox(ctx context.Context, conn *websocket.Conn, logger *slog.Logger) *outbox {
	ctx, cancel := context.WithCancel(ctx)
	o := &outbox{
		conn:   conn,
		send:   make(chan outboundMessage, outboxSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		done:   make(chan struct{}),
	}
	go o.writeLoop()
	return o
}

func (o *outbox) writeLoop() {
	defer close(o.done)
	for {
		select {
		case <-o.ctx.Done():
			return
		case msg := <-o.send:
			_ = o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteJSON(msg); err != nil {
				o.logger.Debug("ws write failed", "error", err)
				o.cancel()
				return
			}
		}
	}
}

// push queues a message; it reports false once the connection is closing.
func (o *outbox) push(typ string, payload any) bool {
	select {
	case o.send <- outboundMessage{Type: typ, Payload: payload}:
		return true
	case <-o.ctx.Done():
		return false
	}
}

func (o *outbox) pushError(err error) bool {
	_, code := classify(err)
	return o.push("error", errorPayload{Code: code, Message: err.Error()})
}

// close stops the writer after it drains nothing further.
func (o *outbox) close() {
	o.cancel()
	<-o.done
}

// readLoop decodes inbound messages until the peer leaves or ctx ends.
func readLoop(ctx context.Context, conn *websocket.Conn, handle func(inboundMessage)) {
	for ctx.Err() == nil {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		handle(msg)
	}
}

// watch tracks an open connection in the metrics gauge.
func watch(role domain.Role) func() {
	metrics.Connections.WithLabelValues(string(role)).Inc()
	return func() { metrics.Connections.WithLabelValues(string(role)).Dec() }
}

// onlyTimer reports whether an event changed nothing but the countdown.
func onlyTimer(kind domain.EventKind) bool {
	return kind&^domain.EventTimer == 0
}

func timerOf(s domain.GameSession) timerPayload {
	return timerPayload{Current: s.Current, Timer: s.Timer, TimerActive: s.TimerActive}
}
