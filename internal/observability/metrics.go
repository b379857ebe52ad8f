package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/domain/week"
)

var (
	mutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weekly",
		Subsystem: "timetable",
		Name:      "mutations_total",
		Help:      "Timetable operations by kind and outcome.",
	}, []string{"op", "outcome"})
	rolloversTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weekly",
		Subsystem: "timetable",
		Name:      "rollovers_total",
		Help:      "Week rollovers, split by whether the closed week was archived.",
	}, []string{"archived"})
	conflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "weekly",
		Subsystem: "timetable",
		Name:      "version_conflicts_total",
		Help:      "Compare-and-swap saves that lost to a concurrent writer.",
	})
	lastRolloverGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "weekly",
		Subsystem: "timetable",
		Name:      "last_rollover_timestamp_seconds",
		Help:      "Unix timestamp of the most recent rollover.",
	})
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weekly",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Domain events handed to the broker by type and outcome.",
	}, []string{"type", "outcome"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "weekly",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "REST request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "weekly",
		Subsystem: "mcp",
		Name:      "tool_call_duration_seconds",
		Help:      "MCP tool call latency by tool and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool", "outcome"})
)

func init() {
	prometheus.MustRegister(mutationsTotal, rolloversTotal, conflictsTotal, lastRolloverGauge, eventsTotal, httpDuration, toolDuration)
}

// TimetableMetrics reports service outcomes to Prometheus.
type TimetableMetrics struct{}

// ObserveMutation counts one operation.
func (TimetableMetrics) ObserveMutation(op string, err error) {
	mutationsTotal.WithLabelValues(op, Outcome(err)).Inc()
}

// ObserveRollover counts a rollover and moves the watermark.
func (TimetableMetrics) ObserveRollover(archived bool) {
	rolloversTotal.WithLabelValues(strconv.FormatBool(archived)).Inc()
	lastRolloverGauge.Set(float64(time.Now().Unix()))
}

// ObserveConflict counts a lost compare-and-swap.
func (TimetableMetrics) ObserveConflict() {
	conflictsTotal.Inc()
}

// RecordEventPublished counts one event delivery attempt.
func RecordEventPublished(eventType string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	eventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordToolCall observes one MCP tool call. outcome is ok, rejected or error.
func RecordToolCall(tool, outcome string, elapsed time.Duration) {
	toolDuration.WithLabelValues(tool, outcome).Observe(elapsed.Seconds())
}

// Outcome classifies an operation error into a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, timetable.ErrNoActiveTimetable), errors.Is(err, timetable.ErrTimetableNotFound):
		return "not_found"
	case errors.Is(err, week.ErrInvalidArgument):
		return "rejected"
	case errors.Is(err, timetable.ErrConflict), errors.Is(err, timetable.ErrNameTaken):
		return "conflict"
	default:
		return "error"
	}
}

// HTTPMetrics records request latency labelled with the matched chi route.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
