// Package metrics registers the Prometheus collectors exposed at /metrics
// (SPEC_FULL.md's domain-stack wiring for github.com/prometheus/client_golang):
// a tick-duration histogram, a rules-evaluated counter and an
// alert-transition counter broken down by state, plus HTTP request
// instrumentation for the façade itself.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every collector registered by this package.
	Registry = prometheus.NewRegistry()

	tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ruleengine",
		Subsystem: "evaluator",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one Trigger/Evaluator tick.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	rulesEvaluated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ruleengine",
		Subsystem: "evaluator",
		Name:      "rules_evaluated_total",
		Help:      "Total number of rule evaluations attempted across all ticks.",
	})

	alertTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ruleengine",
		Subsystem: "alert",
		Name:      "transitions_total",
		Help:      "Total number of alert state transitions, by resulting state.",
	}, []string{"state"})

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ruleengine",
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ruleengine",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ruleengine",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	mailboxDispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ruleengine",
		Subsystem: "mailbox",
		Name:      "dispatches_total",
		Help:      "Total number of mailbox commands dispatched, by command and outcome.",
	}, []string{"command", "outcome"})

	mailboxDispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ruleengine",
		Subsystem: "mailbox",
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of one mailbox command dispatch.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"command"})
)

func init() {
	Registry.MustRegister(
		tickDuration,
		rulesEvaluated,
		alertTransitions,
		httpInFlight,
		httpRequests,
		httpDuration,
		mailboxDispatches,
		mailboxDispatchDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveTick records the wallclock duration of one evaluator tick.
func ObserveTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// RecordRuleEvaluations adds n to the rules-evaluated counter.
func RecordRuleEvaluations(n int) {
	if n <= 0 {
		return
	}
	rulesEvaluated.Add(float64(n))
}

// RecordAlertTransition increments the transition counter for state.
func RecordAlertTransition(state string) {
	alertTransitions.WithLabelValues(state).Inc()
}

// RecordMailboxDispatch records one mailbox command dispatch's outcome and
// duration.
func RecordMailboxDispatch(command, outcome string, d time.Duration) {
	mailboxDispatches.WithLabelValues(command, outcome).Inc()
	mailboxDispatchDuration.WithLabelValues(command).Observe(d.Seconds())
}

// InstrumentHandler wraps next with request-count and duration metrics.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath collapses path segments after the second one so per-rule
// paths like /v1/rules/temp.high@rack-1 don't each mint a distinct label
// series.
func canonicalPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) <= 2 {
		return "/" + strings.Join(parts, "/")
	}
	return "/" + strings.Join(parts[:2], "/") + "/*"
}
