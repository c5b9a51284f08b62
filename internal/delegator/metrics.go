package delegator

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"

	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem is a subsystem shared by all metrics exposed by this
// package.
const MetricsSubsystem = "delegator"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of commands waiting in the queue.
	QueueDepth metrics.Gauge

	// Total number of commands executed.
	Commands metrics.Counter

	// Total number of commands rejected with a domain error.
	CommandErrors metrics.Counter

	// Number of log entries replayed at the last bootstrap.
	ReplayedEntries metrics.Gauge

	// Total number of entries appended to the command log.
	AppendedEntries metrics.Counter
}

// PrometheusMetrics returns Metrics built using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		QueueDepth: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "queue_depth",
			Help:      "Number of commands waiting in the queue.",
		}, labels).With(labelsAndValues...),
		Commands: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "commands",
			Help:      "Total number of commands executed.",
		}, labels).With(labelsAndValues...),
		CommandErrors: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "command_errors",
			Help:      "Total number of commands rejected with a domain error.",
		}, labels).With(labelsAndValues...),
		ReplayedEntries: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "replayed_entries",
			Help:      "Number of log entries replayed at the last bootstrap.",
		}, labels).With(labelsAndValues...),
		AppendedEntries: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "appended_entries",
			Help:      "Total number of entries appended to the command log.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		QueueDepth:      discard.NewGauge(),
		Commands:        discard.NewCounter(),
		CommandErrors:   discard.NewCounter(),
		ReplayedEntries: discard.NewGauge(),
		AppendedEntries: discard.NewCounter(),
	}
}
