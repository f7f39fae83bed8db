// Package metrics holds the Prometheus collectors of the client. They are
// registered on the default registry; callers expose them with promhttp if
// they want to.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "strapi_client"

// Transfer directions and results.
const (
	DirectionExport = "export"
	DirectionImport = "import"

	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
	ResultDryRun  = "dry_run"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests sent to Strapi, by method and status code.",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests to Strapi, retries included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	transferEntitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_entities_total",
			Help:      "Entities processed by export and import runs.",
		},
		[]string{"direction", "content_type", "result"},
	)

	transferMediaTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_media_total",
			Help:      "Media files processed by export and import runs.",
		},
		[]string{"direction", "result"},
	)
)

// ObserveHTTP records one HTTP exchange. A status of 0 means the request
// never got a response.
func ObserveHTTP(method string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}

	httpRequestsTotal.WithLabelValues(method, label).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Entity records one entity outcome.
func Entity(direction, contentType, result string) {
	transferEntitiesTotal.WithLabelValues(direction, contentType, result).Inc()
}

// Media records one media file outcome.
func Media(direction, result string) {
	transferMediaTotal.WithLabelValues(direction, result).Inc()
}

// HTTPRequestsCounter exposes the request counter for tests.
func HTTPRequestsCounter() *prometheus.CounterVec {
	return httpRequestsTotal
}

// EntitiesCounter exposes the entity counter for tests.
func EntitiesCounter() *prometheus.CounterVec {
	return transferEntitiesTotal
}
