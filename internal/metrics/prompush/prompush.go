// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// It adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the run labels (job, status, kind) onto Prometheus labels; the
//     job label doubles as the Pushgateway grouping key.
//   - Pushing collected metrics to a Pushgateway instead of exposing an HTTP
//     scrape endpoint, because ingestion and validation are short-lived
//     batch processes.
//
// All Prometheus-specific dependencies live here so the rest of the module
// stays decoupled and can swap to alternative backends (e.g. Datadog)
// without changes to the core pipeline.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"marketcal/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	fileCounter   *prometheus.CounterVec // "marketcal_files_total"
	fileDuration  *prometheus.SummaryVec // "marketcal_file_duration_seconds"
	rowCounter    *prometheus.CounterVec // "marketcal_rows_total"
	issueCounter  *prometheus.CounterVec // "marketcal_issues_total"
	repairCounter prometheus.Counter     // "marketcal_repairs_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName is the Pushgateway "job" grouping name; gatewayURL is the base URL
// of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "marketcal"
	}

	reg := prometheus.NewRegistry()

	fileCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcal_files_total",
			Help: "Store files processed by a validation run, partitioned by outcome.",
		},
		[]string{"status"},
	)
	fileDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "marketcal_file_duration_seconds",
			Help:       "Per-file load/validate/repair duration in seconds, partitioned by outcome.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcal_rows_total",
			Help: "Row-level counts per kind (ingested, appended).",
		},
		[]string{"kind"},
	)
	issueCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketcal_issues_total",
			Help: "Validation findings per kind (shape-mismatch, cast-failure, domain-violation, normalization-drift).",
		},
		[]string{"kind"},
	)
	repairCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketcal_repairs_total",
			Help: "Drift cells rewritten back to canonical form.",
		},
	)

	for _, c := range []prometheus.Collector{fileCounter, fileDuration, rowCounter, issueCounter, repairCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		fileCounter:   fileCounter,
		fileDuration:  fileDuration,
		rowCounter:    rowCounter,
		issueCounter:  issueCounter,
		repairCounter: repairCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "marketcal_files_total":
		if b.fileCounter == nil {
			return
		}
		b.fileCounter.WithLabelValues(labels["status"]).Add(delta)

	case "marketcal_rows_total":
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)

	case "marketcal_issues_total":
		if b.issueCounter == nil {
			return
		}
		b.issueCounter.WithLabelValues(labels["kind"]).Add(delta)

	case "marketcal_repairs_total":
		if b.repairCounter == nil {
			return
		}
		b.repairCounter.Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "marketcal_file_duration_seconds" || b.fileDuration == nil {
		return
	}
	b.fileDuration.WithLabelValues(labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
