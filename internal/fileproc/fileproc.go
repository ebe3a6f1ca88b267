// Package fileproc runs the pruning pipeline over many files concurrently.
// Each task gets its own optimizer since tree-sitter parsers are not safe
// for concurrent use.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/cpptrim/cpptrim/internal/optimizer"
)

// ProcessingError is an error from one file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// ProcessingErrors collects errors across a batch.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection. Safe for concurrent use.
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors reports whether any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker
// count. 2x suits the mixed I/O and CGO workload.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// Outcome is the pruning result for one file.
type Outcome struct {
	Path   string
	Output string
	Report *optimizer.Report
}

// Map processes files in parallel, calling fn for each file with a
// dedicated optimizer. Results arrive in arbitrary order. Individual file
// errors are collected, never aborting the batch; a canceled context stops
// scheduling and records the remaining files as errors.
func Map[T any](ctx context.Context, files []string, opts optimizer.Options, maxWorkers int, fn func(*optimizer.Optimizer, string) (T, error), onProgress ProgressFunc) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() * DefaultWorkerMultiplier
	}

	results := make([]T, 0, len(files))
	errs := &ProcessingErrors{}
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(maxWorkers)
	for _, path := range files {
		p.Go(func() {
			if err := ctx.Err(); err != nil {
				errs.Add(path, err)
				if onProgress != nil {
					onProgress()
				}
				return
			}

			o := optimizer.New(opts)
			defer o.Close()

			result, err := fn(o, path)
			if onProgress != nil {
				onProgress()
			}
			if err != nil {
				errs.Add(path, err)
				return
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		})
	}
	p.Wait()

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}

// PruneFiles prunes every file in the batch and returns the outcomes.
func PruneFiles(ctx context.Context, files []string, opts optimizer.Options, maxWorkers int, onProgress ProgressFunc) ([]Outcome, *ProcessingErrors) {
	return Map(ctx, files, opts, maxWorkers, func(o *optimizer.Optimizer, path string) (Outcome, error) {
		out, report, err := o.OptimizeFile(path)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Path: path, Output: out, Report: report}, nil
	}, onProgress)
}
