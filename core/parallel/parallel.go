// Package parallel provides the worker helpers used to fit trees, run
// cross-validation folds and execute slow service calls off the caller's
// goroutine.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
)

// Parallelize divides the specified total number (items) according to the number of CPU cores,
// and executes the specified function (fn) in parallel for each range (start, end)
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
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

// ParallelizeWithThreshold performs parallelization only when the number of items exceeds the threshold
// If below threshold, normal sequential processing is performed
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ForEach runs fn(ctx, i) for every i in [0, items) on at most workers
// goroutines (NumCPU when workers <= 0). The first error cancels the context
// passed to the remaining calls and is returned. A panic inside fn is
// converted to a PanicError. When ctx is cancelled no new index is started
// and ctx.Err() is returned.
func ForEach(ctx context.Context, items, workers int, fn func(ctx context.Context, i int) error) error {
	if items == 0 {
		return ctx.Err()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	next := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				if err := run(ctx, i, fn); err != nil {
					fail(err)
				}
			}
		}()
	}

feed:
	for i := 0; i < items; i++ {
		select {
		case <-ctx.Done():
			break feed
		case next <- i:
		}
	}
	close(next)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	// parent cancellation; our own cancel only fires through fail
	return ctx.Err()
}

func run(ctx context.Context, i int, fn func(ctx context.Context, i int) error) (err error) {
	defer errors.Recover(&err, "parallel.ForEach")
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, i)
}
