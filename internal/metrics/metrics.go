package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the service exports. A nil *Metrics is valid and
// records nothing, which keeps unit tests free of registries.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	cacheErrors  *prometheus.CounterVec
	settlements  *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	cartRetries  prometheus.Counter
}

func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "lookups_total",
			Help: "Cache lookups by cache name and result (hit, miss, error).",
		}, []string{"cache", "result"}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "errors_total",
			Help: "Cache failures served from the store instead.",
		}, []string{"cache", "op"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "settlement", Name: "runs_total",
			Help: "Stock settlement runs by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fsm", Name: "transitions_total",
			Help: "Applied status transitions by entity and target status.",
		}, []string{"entity", "status"}),
		cartRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cart", Name: "conflict_retries_total",
			Help: "Cart writes retried after a concurrent modification.",
		}),
	}
	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.cacheLookups,
		m.cacheErrors,
		m.settlements,
		m.transitions,
		m.cartRetries,
	)
	return m
}

func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheLookup(cache, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) CacheError(cache, op string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(cache, op).Inc()
}

func (m *Metrics) Settlement(outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Transition(entity, status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, status).Inc()
}

func (m *Metrics) CartRetry() {
	if m == nil {
		return
	}
	m.cartRetries.Inc()
}
