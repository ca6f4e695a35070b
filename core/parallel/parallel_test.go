package parallel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	tests := []struct {
		name      string
		items     int
		threshold int
	}{
		{"empty", 0, 0},
		{"sequential", 10, 100},
		{"parallel", 1000, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make([]int32, tt.items)
			ParallelizeWithThreshold(tt.items, tt.threshold, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
				}
			})
			for i, n := range seen {
				assert.Equal(t, int32(1), n, "item %d", i)
			}
		})
	}
}

func TestForEach(t *testing.T) {
	t.Run("runs every index", func(t *testing.T) {
		var sum int64
		err := ForEach(context.Background(), 100, 4, func(_ context.Context, i int) error {
			atomic.AddInt64(&sum, int64(i))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(4950), sum)
	})

	t.Run("returns first error", func(t *testing.T) {
		boom := errors.New("fold failed")
		err := ForEach(context.Background(), 20, 2, func(_ context.Context, i int) error {
			if i == 3 {
				return boom
			}
			return nil
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("recovers panics", func(t *testing.T) {
		err := ForEach(context.Background(), 3, 1, func(_ context.Context, i int) error {
			if i == 1 {
				panic("index out of range")
			}
			return nil
		})
		var pe *errors.PanicError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "index out of range", pe.PanicValue)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var started int32
		err := ForEach(ctx, 1000, 2, func(ctx context.Context, i int) error {
			if atomic.AddInt32(&started, 1) == 5 {
				cancel()
			}
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, atomic.LoadInt32(&started), int32(1000))
	})
}

func TestFuture(t *testing.T) {
	f := Go(context.Background(), func(context.Context) (int, error) { return 42, nil })
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	release := make(chan struct{})
	slow := Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = slow.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
	<-slow.Done()

	p := Go(context.Background(), func(context.Context) (string, error) { panic("boom") })
	_, err = p.Await(context.Background())
	var pe *errors.PanicError
	assert.True(t, errors.As(err, &pe))
}
