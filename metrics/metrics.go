// Package metrics exposes Prometheus instruments for the feed server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaupal_http_requests_total",
		Help: "The total number of served HTTP requests",
	}, []string{"route", "method", "status_code"})

	requestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaupal_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"route", "method"},
	)

	rankingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaupal_ranking_duration_seconds",
			Help:    "Histogram of the time spent ranking a feed",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"feed"},
	)

	feedSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chaupal_feed_size",
		Help: "Number of posts in the last ranked feed",
	}, []string{"feed"})

	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaupal_notifications_total",
		Help: "The total number of notifications created",
	}, []string{"source"})

	hookFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaupal_post_hook_failures_total",
		Help: "The total number of failed post hooks",
	}, []string{"hook"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records a served request.
func ObserveRequest(route string, method string, status int, elapsed time.Duration) {
	requestsServed.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	requestLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveRanking records how long ranking feed took and how many posts it returned.
func ObserveRanking(feed string, size int, elapsed time.Duration) {
	rankingLatency.WithLabelValues(feed).Observe(elapsed.Seconds())
	feedSize.WithLabelValues(feed).Set(float64(size))
}

func NotificationSent(source string) {
	notificationsSent.WithLabelValues(source).Inc()
}

func HookFailed(hook string) {
	hookFailures.WithLabelValues(hook).Inc()
}
