package parallel

import (
	"context"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
)

// Future is the pending result of a task started with Go.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn on its own goroutine. A panic inside fn becomes a PanicError.
// Cancelling ctx is the caller's signal to abandon the task; fn receives ctx
// and is expected to stop at its next checkpoint.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.err = errors.SafeExecute("parallel.Go", func() error {
			v, err := fn(ctx)
			f.value = v
			return err
		})
	}()
	return f
}

// Done is closed when the task has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the task finishes or ctx is done. When ctx ends first the
// task result is discarded and ctx.Err() is returned.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
