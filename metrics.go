package interact

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultMetricsPath is where the CLI writes the metrics of a run.
const DefaultMetricsPath = "interactor_metrics.prom"

// Metrics are the dispatcher's Prometheus collectors.
type Metrics struct {
	submitted    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	queries      prometheus.Counter
	queryRetries prometheus.Counter
	finality     prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		submitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interact",
			Name:      "transactions_submitted_total",
			Help:      "Transactions handed to the ledger, by kind.",
		}, []string{"kind"}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interact",
			Name:      "transactions_failed_total",
			Help:      "Transactions that did not finalize successfully, by kind.",
		}, []string{"kind"}),
		queries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "interact",
			Name:      "queries_total",
			Help:      "Read-only queries issued.",
		}),
		queryRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "interact",
			Name:      "query_retries_total",
			Help:      "Query attempts repeated after a failure.",
		}),
		finality: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "interact",
			Name:      "finality_seconds",
			Help:      "Time from submission to finalized result.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

// WriteMetrics writes everything g gathers to path in the Prometheus text
// format, for the node exporter textfile collector. An empty path writes
// nothing.
func WriteMetrics(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
