package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TimerTicks counts countdown states written to the session store.
	TimerTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trivia_timer_ticks_total",
			Help: "Total number of countdown states published",
		},
	)

	// TimerWriteFailures counts countdown writes the store rejected.
	TimerWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trivia_timer_write_failures_total",
			Help: "Total number of failed countdown writes",
		},
	)

	// AnswersRecorded counts answer records by outcome and trigger.
	AnswersRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_answers_recorded_total",
			Help: "Total number of answer records written",
		},
		[]string{"correct", "trigger"}, // trigger: manual/auto
	)

	// ActiveSessions tracks sessions with a live controller on this instance.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trivia_active_sessions_current",
			Help: "Current number of sessions controlled by this instance",
		},
	)

	// Connections tracks open websocket connections by role.
	Connections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trivia_ws_connections_current",
			Help: "Current number of open websocket connections",
		},
		[]string{"role"},
	)

	// MediaLookups counts media resolutions by result.
	MediaLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_media_lookups_total",
			Help: "Total number of media references resolved",
		},
		[]string{"result"}, // result: url/missing/error
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
