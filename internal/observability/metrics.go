// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Core operation metrics
	TokensCreated  prometheus.Counter
	CreateRejected *prometheus.CounterVec
	Transfers      *prometheus.CounterVec
	Mints          *prometheus.CounterVec
	AuthorityOps   *prometheus.CounterVec

	// Archive metrics
	EventsArchived *prometheus.CounterVec
	ArchiveErrors  *prometheus.CounterVec

	// Sampler metrics
	SupplyPointsWritten prometheus.Counter
	SampleDuration      prometheus.Histogram

	// Event feed metrics
	FeedSubscribers  prometheus.Gauge
	FeedFramesSent   prometheus.Counter
	FeedFramesDropped prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_forge"
	}

	return &Metrics{
		TokensCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "tokens_created_total",
			Help:      "Total number of ledgers created",
		}),
		CreateRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "create_rejected_total",
			Help:      "Total number of rejected create calls by reason",
		}, []string{"reason"}),
		Transfers: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transfers_total",
			Help:      "Total number of transfer operations by result",
		}, []string{"result"}),
		Mints: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "mints_total",
			Help:      "Total number of mint operations by result",
		}, []string{"result"}),
		AuthorityOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "authority_updates_total",
			Help:      "Total number of mint-authority updates by result",
		}, []string{"result"}),

		EventsArchived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "events_archived_total",
			Help:      "Total number of events written to the event store by kind",
		}, []string{"kind"}),
		ArchiveErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "errors_total",
			Help:      "Total number of archive write errors by record type",
		}, []string{"record"}),

		SupplyPointsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "supply_points_written_total",
			Help:      "Total number of supply timeseries points written",
		}),
		SampleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "sample_duration_seconds",
			Help:      "Supply sampling pass duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of event feed subscribers",
		}),
		FeedFramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "frames_sent_total",
			Help:      "Total number of event frames sent to subscribers",
		}),
		FeedFramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "frames_dropped_total",
			Help:      "Total number of event frames dropped on slow subscribers",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTokenCreated increments the tokens created counter.
func RecordTokenCreated() {
	DefaultMetrics.TokensCreated.Inc()
}

// RecordCreateRejected counts a rejected create call.
func RecordCreateRejected(reason string) {
	DefaultMetrics.CreateRejected.WithLabelValues(reason).Inc()
}

// RecordTransfer counts a transfer operation outcome.
func RecordTransfer(result string) {
	DefaultMetrics.Transfers.WithLabelValues(result).Inc()
}

// RecordMint counts a mint operation outcome.
func RecordMint(result string) {
	DefaultMetrics.Mints.WithLabelValues(result).Inc()
}

// RecordAuthorityUpdate counts a mint-authority update outcome.
func RecordAuthorityUpdate(result string) {
	DefaultMetrics.AuthorityOps.WithLabelValues(result).Inc()
}

// RecordEventArchived counts an archived event.
func RecordEventArchived(kind string) {
	DefaultMetrics.EventsArchived.WithLabelValues(kind).Inc()
}

// RecordArchiveError counts an archive write error.
func RecordArchiveError(record string) {
	DefaultMetrics.ArchiveErrors.WithLabelValues(record).Inc()
}

// RecordSupplySample records one sampling pass.
func RecordSupplySample(points int, durationSeconds float64) {
	DefaultMetrics.SupplyPointsWritten.Add(float64(points))
	DefaultMetrics.SampleDuration.Observe(durationSeconds)
}

// SetFeedSubscribers updates the subscriber gauge.
func SetFeedSubscribers(n int) {
	DefaultMetrics.FeedSubscribers.Set(float64(n))
}

// RecordFeedFrame counts one frame sent or dropped.
func RecordFeedFrame(dropped bool) {
	if dropped {
		DefaultMetrics.FeedFramesDropped.Inc()
		return
	}
	DefaultMetrics.FeedFramesSent.Inc()
}
