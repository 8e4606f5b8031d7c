// Package runner applies the validator, and optionally in-place repair,
// across many store files concurrently.
//
// Each worker owns one file end-to-end: load, validate, repair, rewrite. No
// state is shared between workers; results arrive in completion order, so
// output interleaves across files but each file's own issue list keeps its
// deterministic order.
package runner

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"marketcal/internal/metrics"
	"marketcal/internal/schema"
	"marketcal/internal/store"
	"marketcal/internal/validate"
)

// Result is the outcome for a single store file.
type Result struct {
	Path string

	// Err is set when the file could not be read or rewritten. A read
	// failure is fatal for this file only, never for the batch.
	Err error

	// Issues are the findings discovered before any repair, so repaired
	// problems stay visible in the run's output.
	Issues []validate.Issue

	// Repaired counts drift cells rewritten back to canonical form.
	Repaired int

	// Fingerprint identifies the file content as of this run.
	Fingerprint uint64

	Duration time.Duration
}

// OK reports whether the file passed cleanly.
func (r Result) OK() bool { return r.Err == nil && len(r.Issues) == 0 }

// Options configures a run.
type Options struct {
	// Registry is the schema every file must conform to.
	Registry schema.Schema

	// Workers bounds the pool. Zero means GOMAXPROCS.
	Workers int

	// Repair rewrites normalization drift back to canonical form. Shape,
	// cast, and domain problems are never auto-repaired.
	Repair bool

	// FailFast stops consuming results after the first observed failure.
	// Workers already dispatched are abandoned, not cancelled; their results
	// are drained harmlessly.
	FailFast bool

	// Writer performs the atomic rewrite of repaired files.
	Writer store.Writer

	// Job is the metrics job label for this run.
	Job string

	// Logf receives per-file progress lines. Nil disables them.
	Logf func(format string, args ...any)
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) logf(format string, args ...any) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
}

// Run validates (and optionally repairs) every path. It returns the results
// collected in completion order and whether every selected file passed. With
// FailFast set, the returned slice may cover only a prefix of the paths.
func Run(ctx context.Context, paths []string, opts Options) ([]Result, bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	// Buffered to len(paths): abandoned workers can always deliver and exit.
	resCh := make(chan Result, len(paths))

	go func() {
		for _, path := range paths {
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				resCh <- processFile(path, opts)
				return nil
			})
		}
		g.Wait()
		close(resCh)
	}()

	var results []Result
	allOK := true
	for res := range resCh {
		results = append(results, res)
		report(res, opts)

		if !res.OK() {
			allOK = false
			if opts.FailFast {
				opts.logf("[FAIL-FAST] stopping after %s", res.Path)
				cancel()
				break
			}
		}
	}
	return results, allOK
}

// processFile runs the full load → validate → repair → rewrite cycle for one
// file.
func processFile(path string, opts Options) Result {
	start := time.Now()
	res := Result{Path: path}

	tbl, err := store.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("read store: %w", err)
		res.Duration = time.Since(start)
		return res
	}

	res.Issues = validate.Table(tbl, opts.Registry)

	var drift []validate.Issue
	for _, iss := range res.Issues {
		if iss.Kind == validate.NormalizationDrift {
			drift = append(drift, iss)
		}
	}

	if opts.Repair && len(drift) > 0 {
		repaired := tbl.Clone()
		for _, iss := range drift {
			repaired.ColumnByName(iss.Field).SetString(iss.Row, iss.Canonical)
		}
		sum, err := opts.Writer.Write(path, repaired)
		if err != nil {
			res.Err = fmt.Errorf("rewrite repaired store: %w", err)
			res.Duration = time.Since(start)
			return res
		}
		res.Repaired = len(drift)
		res.Fingerprint = sum
	} else if sum, err := store.FingerprintFile(path); err == nil {
		res.Fingerprint = sum
	}

	res.Duration = time.Since(start)
	return res
}

// report logs one file's outcome and records metrics. Issues are logged
// before the repair note, in the order the work happened.
func report(res Result, opts Options) {
	opts.logf("validating %s", res.Path)
	switch {
	case res.Err != nil:
		opts.logf("[ERROR] %v", res.Err)
	case len(res.Issues) == 0:
		opts.logf("[OK]")
	default:
		byKind := make(map[string]int64)
		for _, iss := range res.Issues {
			opts.logf("[ERROR] %s", iss)
			byKind[string(iss.Kind)]++
		}
		for kind, n := range byKind {
			metrics.RecordIssues(opts.Job, kind, n)
		}
	}
	if res.Repaired > 0 {
		opts.logf("[FIXED] %s (%d cells)", res.Path, res.Repaired)
		metrics.RecordRepairs(opts.Job, int64(res.Repaired))
	}
	metrics.RecordFile(opts.Job, !res.OK(), res.Duration)
}
