package parallel

import (
	"context"
	"runtime"
	"sync"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// Workers resolves an n_jobs style setting: values <= 0 mean one worker per CPU.
func Workers(nJobs int) int {
	if nJobs <= 0 {
		return runtime.NumCPU()
	}
	return nJobs
}

// Parallelize divides items across one worker per CPU core and calls fn for
// each contiguous range [start, end).
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeWithWorkers(items, runtime.NumCPU(), fn)
}

// ParallelizeWithWorkers is Parallelize with an explicit worker count.
func ParallelizeWithWorkers(items, workers int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs sequentially when items <= threshold.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ForEach calls fn(i) for every i in [0, items) on at most workers goroutines.
// Panics inside fn become errors. The first error is returned; remaining
// items are skipped once an error occurs or ctx is done.
func ForEach(ctx context.Context, items, workers int, operation string, fn func(i int) error) error {
	var (
		mu       sync.Mutex
		firstErr error
	)
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	ParallelizeWithWorkers(items, Workers(workers), func(start, end int) {
		for i := start; i < end; i++ {
			if failed() {
				return
			}
			if err := ctx.Err(); err != nil {
				record(err)
				return
			}
			if err := errors.SafeExecute(operation, func() error { return fn(i) }); err != nil {
				record(err)
				return
			}
		}
	})
	return firstErr
}
