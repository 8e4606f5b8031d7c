// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from ingestion and validation runs.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data.
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete metric systems are isolated in subpackages; the rest of the
//     module depends only on this interface.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, Datadog, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordFile records one validated store file: its outcome and how long the
// load/validate/repair cycle took.
func RecordFile(job string, failed bool, d time.Duration) {
	status := "pass"
	if failed {
		status = "fail"
	}
	lbls := Labels{"job": job, "status": status}
	backend.IncCounter("marketcal_files_total", 1, lbls)
	backend.ObserveHistogram("marketcal_file_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given job and kind.
//
// Typical kinds:
//   - "ingested"
//   - "appended"
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("marketcal_rows_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordIssues counts validation findings by kind (shape-mismatch,
// cast-failure, domain-violation, normalization-drift).
func RecordIssues(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("marketcal_issues_total", float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordRepairs counts drift cells rewritten back to canonical form.
func RecordRepairs(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("marketcal_repairs_total", float64(delta), Labels{"job": job})
}
