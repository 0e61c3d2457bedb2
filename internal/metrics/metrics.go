package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "advocat"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Gateway HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	remoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Latency of calls to the remote API by operation and status code.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "code"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published on the bus.",
		},
		[]string{"type"},
	)

	visitorsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "visitors_active",
			Help:      "Visitors currently held in memory.",
		},
	)

	sheetsTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_tasks_total",
			Help:      "Sheets sync tasks by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, remoteDuration, eventsPublished, visitorsActive, sheetsTasks)
	})
}

// IncHTTP counts one gateway request.
func IncHTTP(route string, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

func ObserveRemote(op, code string, d time.Duration) {
	remoteDuration.WithLabelValues(op, code).Observe(d.Seconds())
}

func IncEvent(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

func SetVisitors(n int) {
	visitorsActive.Set(float64(n))
}

// IncSheets counts a sheets task outcome: done, retry or dead.
func IncSheets(outcome string) {
	sheetsTasks.WithLabelValues(outcome).Inc()
}
