package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	coachTurnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_turns_total",
		Help: "Total coach turns by outcome",
	}, []string{"outcome"})

	coachFallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_fallback_total",
		Help: "Total turns answered by the heuristic responder, by reason",
	}, []string{"reason"})

	coachSchemaRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coach_schema_retries_total",
		Help: "Total corrective retries after a schema validation failure",
	})

	coachActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_actions_total",
		Help: "Total proposed actions by kind and outcome",
	}, []string{"kind", "status"})

	coachFeedbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_feedback_total",
		Help: "Total user feedback votes by helpfulness",
	}, []string{"helpful"})

	httpRateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Total requests rejected by the rate limiter, by group",
	}, []string{"group"})

	coachEvalScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "coach_eval_score",
		Help:    "Deterministic eval score per turn",
		Buckets: []float64{20, 40, 50, 60, 70, 80, 90, 100},
	})

	coachTurnDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "coach_turn_duration_ms",
		Help:    "Coach turn duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 1200, 2500, 5000, 10000, 30000, 60000},
	})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		coachTurnsTotal,
		coachFallbackTotal,
		coachSchemaRetriesTotal,
		coachActionsTotal,
		coachFeedbackTotal,
		httpRateLimitedTotal,
		coachEvalScore,
		coachTurnDuration,
	)
}

// IncTurn counts a finished turn. Outcome is ok, schema_failed or error.
func IncTurn(outcome string) {
	coachTurnsTotal.WithLabelValues(outcome).Inc()
}

// IncFallback counts a turn served by the heuristic responder.
func IncFallback(reason string) {
	coachFallbackTotal.WithLabelValues(reason).Inc()
}

// IncSchemaRetry counts a corrective retry.
func IncSchemaRetry() {
	coachSchemaRetriesTotal.Inc()
}

// IncAction counts one proposed action outcome.
func IncAction(kind, status string) {
	coachActionsTotal.WithLabelValues(kind, status).Inc()
}

// IncFeedback counts a helpfulness vote.
func IncFeedback(helpful bool) {
	coachFeedbackTotal.WithLabelValues(strconv.FormatBool(helpful)).Inc()
}

// IncRateLimited counts a request rejected with 429.
func IncRateLimited(group string) {
	httpRateLimitedTotal.WithLabelValues(group).Inc()
}

// ObserveEvalScore records a turn's total eval score.
func ObserveEvalScore(score int) {
	coachEvalScore.Observe(float64(score))
}

// ObserveTurnDurationMs records a turn duration in milliseconds.
func ObserveTurnDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	coachTurnDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
