package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trivia-live/internal/domain"
	"trivia-live/internal/metrics"
)

// TimerPublisher writes one countdown state to the session document. round
// numbers the countdown the state belongs to.
type TimerPublisher func(ctx context.Context, round, remaining int, active bool) error

// TimerEngine runs the single authoritative countdown of a session. At most
// one loop exists per engine: Start cancels and waits out the previous loop
// before publishing anything for the new one.
type TimerEngine struct {
	publish  TimerPublisher
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	round  int
	cancel context.CancelFunc
	done   chan struct{}
}

// TimerOption customizes a TimerEngine.
type TimerOption func(*TimerEngine)

// WithTickInterval overrides the one-second cadence (tests use milliseconds).
func WithTickInterval(d time.Duration) TimerOption {
	return func(e *TimerEngine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithStartRound continues round numbering after rounds already stored.
func WithStartRound(round int) TimerOption {
	return func(e *TimerEngine) { e.round = round }
}

// WithTimerLogger sets the logger used for failed tick writes.
func WithTimerLogger(logger *slog.Logger) TimerOption {
	return func(e *TimerEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewTimerEngine(publish TimerPublisher, opts ...TimerOption) *TimerEngine {
	e := &TimerEngine{
		publish:  publish,
		interval: time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start publishes seconds as the active countdown and ticks it down to zero.
// The first state is written synchronously so the caller sees store failures;
// later ticks are written by the loop. Every Start opens a new round, even on
// the same question. A zero duration publishes the terminal state without
// starting a loop.
func (e *TimerEngine) Start(ctx context.Context, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: %d seconds", domain.ErrInvalidTimer, seconds)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.round++
	round := e.round

	if seconds == 0 {
		return e.write(ctx, round, 0, false)
	}
	if err := e.write(ctx, round, seconds, true); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	go e.run(loopCtx, round, seconds, done)
	return nil
}

// Stop cancels the running countdown, if any, and waits until it has
// stopped writing.
func (e *TimerEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Running reports whether a countdown loop is in flight.
func (e *TimerEngine) Running() bool {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (e *TimerEngine) stopLocked() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil
}

// run decrements on the ticker and hands each state to an ordered writer so
// a slow store never delays the cadence. Queued states of a cancelled loop
// are dropped.
func (e *TimerEngine) run(ctx context.Context, round, remaining int, done chan struct{}) {
	defer close(done)

	queue := make(chan int, remaining)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for next := range queue {
			if ctx.Err() != nil {
				continue
			}
			if err := e.write(ctx, round, next, next > 0); err != nil && ctx.Err() == nil {
				e.logger.Warn("timer tick write failed", "remaining", next, "error", err)
			}
		}
	}()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for remaining > 0 {
		select {
		case <-ctx.Done():
			close(queue)
			<-writerDone
			return
		case <-ticker.C:
			remaining--
			queue <- remaining
		}
	}
	close(queue)
	<-writerDone
}

func (e *TimerEngine) write(ctx context.Context, round, remaining int, active bool) error {
	if err := e.publish(ctx, round, remaining, active); err != nil {
		metrics.TimerWriteFailures.Inc()
		return err
	}
	metrics.TimerTicks.Inc()
	return nil
}
