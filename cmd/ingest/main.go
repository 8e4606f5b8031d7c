// Command ingest loads a CSV of market sessions, enforces the deployment
// schema, and writes the canonical rows to a Feather store file.
//
// Usage:
//
//	ingest [flags] input.csv store.feather
//
// The default mode appends to an existing store (whose schema must match
// exactly); -mode=overwrite replaces it. Exit code 0 means the store now
// holds the input; any validation or I/O failure exits non-zero with the
// reason on stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"marketcal/internal/history"
	"marketcal/internal/history/sqlitelog"
	"marketcal/internal/ingest"
	"marketcal/internal/metrics"
	"marketcal/internal/metrics/datadog"
	"marketcal/internal/metrics/prompush"
	"marketcal/internal/schema"
	"marketcal/internal/store"
)

func main() {
	var (
		mode              string
		historyPath       string
		metricsBackendFlg string
		pushGatewayURLFlg string
	)

	flag.StringVar(&mode, "mode", "append", "write mode: append or overwrite")
	flag.StringVar(&historyPath, "history", "", "SQLite run-ledger path (empty disables)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, dogstatsd, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	if flag.NArg() != 2 {
		fatalf("usage: ingest [flags] input.csv store.feather")
	}
	if mode != "append" && mode != "overwrite" {
		fatalf("invalid -mode %q: want append or overwrite", mode)
	}
	csvPath, storePath := flag.Arg(0), flag.Arg(1)

	setupMetrics("marketcal_ingest", metricsBackendFlg, pushGatewayURLFlg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx := context.Background()
	recorder := openRecorder(ctx, historyPath)
	defer recorder.Close()

	start := time.Now()
	total, appended, sum, err := run(csvPath, storePath, mode, *verbose)

	entry := history.FileEntry{
		Path:        storePath,
		OK:          err == nil,
		Fingerprint: sum,
		Duration:    time.Since(start),
	}
	var rejected *ingest.SchemaRejectedError
	var mismatch *store.SchemaMismatchError
	switch {
	case errors.As(err, &rejected):
		entry.Issues = len(rejected.Issues)
	case errors.As(err, &mismatch):
		entry.Issues = len(mismatch.Issues)
	}
	if herr := recorder.RecordRun(ctx, history.Run{
		Kind: "ingest", Started: start, Files: []history.FileEntry{entry},
	}); herr != nil {
		log.Printf("history: %v", herr)
	}

	if err != nil {
		fatalf("%v", err)
	}
	metrics.RecordRows("ingest", "ingested", int64(appended))
	if mode == "overwrite" {
		log.Printf("wrote %d rows to %s", total, storePath)
	} else {
		log.Printf("appended %d rows (total %d) to %s", appended, total, storePath)
	}
}

// run executes the parse → ingest → write pipeline and returns the total
// rows persisted, the rows added by this invocation, and the store
// fingerprint.
func run(csvPath, storePath, mode string, verbose bool) (total, appended int, sum uint64, err error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	raw, err := ingest.ReadCSV(f)
	if err != nil {
		return 0, 0, 0, err
	}
	tbl, err := ingest.Ingest(raw, schema.Market())
	if err != nil {
		return 0, 0, 0, err
	}
	if verbose {
		log.Printf("ingested %d canonical rows from %s", tbl.Len(), csvPath)
	}

	w := store.Writer{}
	if verbose {
		w.Logf = log.Printf
	}

	if mode == "overwrite" {
		sum, err = w.Overwrite(storePath, tbl)
		return tbl.Len(), tbl.Len(), sum, err
	}
	total, sum, err = w.Append(storePath, tbl)
	return total, tbl.Len(), sum, err
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
