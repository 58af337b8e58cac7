// Package metrics defines the Prometheus metrics for vaultd.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline and stage metrics.
var (
	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vaultd",
			Name:      "ingest_total",
			Help:      "Total number of ingest operations",
		},
		[]string{"status"},
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vaultd",
			Name:      "ingest_duration_seconds",
			Help:      "End-to-end ingest duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vaultd",
			Name:      "query_total",
			Help:      "Total number of query operations",
		},
		[]string{"status"},
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vaultd",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	AnomalyFlaggedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vaultd",
			Name:      "anomaly_flagged_total",
			Help:      "Queries flagged anomalous by the per-tenant gate",
		},
		[]string{"tenant"},
	)

	DecryptDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vaultd",
			Name:      "decrypt_dropped_total",
			Help:      "Query results dropped due to fetch or decryption failure",
		},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vaultd",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vaultd",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)
)

var registered bool

// Register registers all vaultd metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(IngestTotal)
	prometheus.MustRegister(IngestDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(AnomalyFlaggedTotal)
	prometheus.MustRegister(DecryptDroppedTotal)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	registered = true
}
