package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "article_analyzer"

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by method and route",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	llmRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM provider calls by provider, model, call and result",
		},
		[]string{"provider", "model", "call", "result"},
	)

	llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM provider call duration by provider, model and call",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"provider", "model", "call"},
	)

	analyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Article analyses by result (success or error class)",
		},
		[]string{"result"},
	)

	entityParseFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_parse_failures_total",
			Help:      "Entity responses that could not be parsed and were replaced by an empty list",
		},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_rate_limited_total",
			Help:      "Requests rejected by the inbound rate limiter",
		},
	)

	registerOnce sync.Once
)

// Init registers collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpLatency, llmRequests, llmLatency, analyses, entityParseFailures, rateLimited)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveHTTP(method, route string, status int, dur time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func ObserveLLM(provider, model, call, result string, dur time.Duration) {
	llmRequests.WithLabelValues(provider, model, call, result).Inc()
	llmLatency.WithLabelValues(provider, model, call).Observe(dur.Seconds())
}

func IncAnalysis(result string) { analyses.WithLabelValues(result).Inc() }
func IncEntityParseFailure()    { entityParseFailures.Inc() }
func IncRateLimited()           { rateLimited.Inc() }
