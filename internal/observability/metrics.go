package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "efterskole_rides", Name: "searches_total", Help: "Total ride searches executed"})
	SearchResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "efterskole_rides",
		Name:      "search_results",
		Help:      "Result-set size per search",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})
	RidesCreated      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "efterskole_rides", Name: "rides_created_total", Help: "Total rides posted"})
	RequestsSubmitted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "efterskole_rides", Name: "requests_submitted_total", Help: "Total seat requests admitted by the guard"})
	DuplicateRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "efterskole_rides", Name: "duplicate_requests_total", Help: "Seat requests rejected by the duplicate guard"},
		[]string{"blocking_state"},
	)
	RequestResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "efterskole_rides", Name: "request_responses_total", Help: "Driver responses applied to requests"},
		[]string{"decision"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "efterskole_rides", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "efterskole_rides",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
