package datadog

import (
	"sort"
	"strings"
	"testing"

	"marketcal/internal/metrics"
)

func TestNewBackend(t *testing.T) {
	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("NewBackend accepted empty Addr, want error")
	}

	// DogStatsD is UDP; client creation needs no listening server.
	b, err := NewBackend(Config{
		Addr:       "127.0.0.1:8125",
		Namespace:  "marketcal.",
		GlobalTags: []string{"env:test"},
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Flush()

	// must not panic with a live client
	b.IncCounter("files_total", 1, metrics.Labels{"status": "pass"})
	b.ObserveHistogram("file_duration_seconds", 0.25, nil)
}

func TestLabelsToTags(t *testing.T) {
	if got := labelsToTags(nil); got != nil {
		t.Errorf("labelsToTags(nil) = %v, want nil", got)
	}
	got := labelsToTags(metrics.Labels{"job": "validate", "status": "fail"})
	sort.Strings(got)
	if want := "job:validate,status:fail"; strings.Join(got, ",") != want {
		t.Errorf("labelsToTags = %v, want %s", got, want)
	}
}
