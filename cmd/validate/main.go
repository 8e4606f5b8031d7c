// Command validate checks Feather store files against the deployment schema
// and optionally repairs normalization drift in place.
//
// By default it validates the store files version control reports as
// changed, falling back to every file under -root when git is unavailable;
// -all-files skips git entirely. Exit code 0 only if every selected file
// passes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"marketcal/internal/changed"
	"marketcal/internal/history"
	"marketcal/internal/history/sqlitelog"
	"marketcal/internal/metrics"
	"marketcal/internal/metrics/datadog"
	"marketcal/internal/metrics/prompush"
	"marketcal/internal/runner"
	"marketcal/internal/schema"
	"marketcal/internal/store"
)

func main() {
	var (
		allFiles          bool
		root              string
		jobs              int
		failFast          bool
		fix               bool
		historyPath       string
		metricsBackendFlg string
		pushGatewayURLFlg string
	)

	flag.BoolVar(&allFiles, "all-files", false, "validate every store file under -root (ignore git status)")
	flag.StringVar(&root, "root", "data", "directory holding the store files")
	flag.IntVar(&jobs, "jobs", 0, "number of parallel workers (default: CPU count)")
	flag.BoolVar(&failFast, "fail-fast", false, "stop on first failure")
	flag.BoolVar(&fix, "fix", false, "automatically rewrite unnormalized strings in place")
	flag.StringVar(&historyPath, "history", "", "SQLite run-ledger path (empty disables)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, dogstatsd, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	setupMetrics("marketcal_validate", metricsBackendFlg, pushGatewayURLFlg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	paths, err := selectFiles(root, allFiles)
	if err != nil {
		fatalf("%v", err)
	}
	if len(paths) == 0 {
		log.Printf("no store files detected to validate")
		return
	}
	if *verbose {
		log.Printf("validating %d files with jobs=%d fix=%v fail-fast=%v", len(paths), jobs, fix, failFast)
	}

	ctx := context.Background()
	recorder := openRecorder(ctx, historyPath)
	defer recorder.Close()

	start := time.Now()
	results, allOK := runner.Run(ctx, paths, runner.Options{
		Registry: schema.Market(),
		Workers:  jobs,
		Repair:   fix,
		FailFast: failFast,
		Writer:   store.Writer{Logf: log.Printf},
		Job:      "validate",
		Logf:     log.Printf,
	})

	run := history.Run{Kind: "validate", Started: start}
	for _, res := range results {
		run.Files = append(run.Files, history.FileEntry{
			Path:        res.Path,
			OK:          res.OK(),
			Issues:      len(res.Issues),
			Repaired:    res.Repaired,
			Fingerprint: res.Fingerprint,
			Duration:    res.Duration,
		})
	}
	if err := recorder.RecordRun(ctx, run); err != nil {
		log.Printf("history: %v", err)
	}

	if !allOK {
		fatalf("some store files failed validation")
	}
	log.Printf("all %d store files passed validation", len(results))
}

// selectFiles resolves the file list: git-changed files by default, with a
// warn-and-fallback to a full walk when git is unavailable.
func selectFiles(root string, allFiles bool) ([]string, error) {
	if !allFiles {
		paths, err := changed.FromGit(root)
		if err == nil {
			return paths, nil
		}
		log.Printf("[WARN] git not available (%v), falling back to all files", err)
	}
	return changed.All(root)
}

// setupMetrics resolves the backend by flag, then environment, then default
// (disabled), and installs it globally.
func setupMetrics(job, backendFlg, gatewayFlg string, verbose bool) {
	backendName := backendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := gatewayFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		if verbose {
			log.Printf("metrics: url=%v backend=%v job=%v", gwURL, backendName, job)
		}
		metrics.SetBackend(b)

	case "dogstatsd":
		addr := os.Getenv("DOGSTATSD_ADDR")
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "marketcal."})
		if err != nil {
			log.Printf("metrics: failed to init dogstatsd backend: %v; using nop", err)
			return
		}
		if verbose {
			log.Printf("metrics: addr=%v backend=%v job=%v", addr, backendName, job)
		}
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

// openRecorder returns the SQLite ledger at path, or the no-op recorder when
// no path was given or the ledger cannot be opened.
func openRecorder(ctx context.Context, path string) history.Recorder {
	if path == "" {
		return history.Nop{}
	}
	rec, err := sqlitelog.Open(ctx, path)
	if err != nil {
		log.Printf("history: %v; run will not be recorded", err)
		return history.Nop{}
	}
	return rec
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
