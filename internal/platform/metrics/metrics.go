// Package metrics holds the process wide prometheus collectors
// counters here are diagnostics only and never feed back into decisions
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clockrelay"

var (
	syncOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "outcomes_total",
		Help:      "Clock sync requests by outcome or error kind.",
	}, []string{"outcome"})

	syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Wall time of a clock sync including CRM round trips.",
		Buckets:   prometheus.DefBuckets,
	})

	lockContention = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "contention_total",
		Help:      "Sync attempts that found the subject lock already held.",
	})

	crmRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "crm",
		Name:      "requests_total",
		Help:      "CRM calls by operation and classified result.",
	}, []string{"op", "result"})

	pgQueries = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pg",
		Name:      "query_duration_seconds",
		Help:      "Postgres statement latency by leading verb and result.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"verb", "result"})

	httpRequests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP latency by route pattern, method and status class.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	panics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "panics_total",
		Help:      "Handler panics turned into 500 responses.",
	})

	breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "crm",
		Name:      "breaker_state",
		Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})
)

func init() {
	prometheus.MustRegister(syncOutcomes, syncDuration, lockContention, crmRequests, pgQueries, httpRequests, panics, breakerState)
}

// RecordSync counts one finished sync and its latency
func RecordSync(outcome string, elapsed time.Duration) {
	syncOutcomes.WithLabelValues(outcome).Inc()
	syncDuration.Observe(elapsed.Seconds())
}

// RecordLockContention counts a request that lost the subject lock
func RecordLockContention() { lockContention.Inc() }

// RecordCRM counts a CRM call result such as ok, auth, transient, rejected
func RecordCRM(op, result string) { crmRequests.WithLabelValues(op, result).Inc() }

// ObserveQuery records one Postgres statement
func ObserveQuery(verb string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	pgQueries.WithLabelValues(verb, result).Observe(elapsed.Seconds())
}

// ObserveRequest records one served request; status is bucketed to its class
func ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status/100)+"xx").Observe(elapsed.Seconds())
}

// RecordPanic counts a recovered handler panic
func RecordPanic() { panics.Inc() }

// SetBreakerState publishes the breaker state for name
func SetBreakerState(name string, state float64) { breakerState.WithLabelValues(name).Set(state) }

// Handler serves the default registry
func Handler() http.Handler { return promhttp.Handler() }
