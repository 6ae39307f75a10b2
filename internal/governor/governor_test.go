package governor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptive(t *testing.T) {
	tests := []struct {
		n, override, want int
	}{
		{0, 0, 1},
		{1, 0, 1},
		{2, 0, 2},
		{3, 0, 3},
		{9, 0, 3},
		{16, 0, 4},
		{30, 0, 8},
		{100, 0, 8},
		{100, 2, 2},
		{5, 20, 5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Adaptive(tt.n, tt.override), "n=%d override=%d", tt.n, tt.override)
	}
}

func TestRunBoundedNeverExceedsLimit(t *testing.T) {
	const limit = 3

	var running, peak atomic.Int32

	tasks := make([]Task[int], 20)
	for i := range tasks {
		tasks[i] = func(context.Context) (int, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)
			running.Add(-1)

			return i * 10, nil
		}
	}

	results := RunBounded(context.Background(), tasks, limit)

	require.Len(t, results, 20)
	assert.LessOrEqual(t, peak.Load(), int32(limit))

	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, i*10, r.Value)
		assert.NoError(t, r.Err)
	}
}

func TestRunBoundedIsolatesFailures(t *testing.T) {
	boom := errors.New("model error")

	tasks := []Task[string]{
		func(context.Context) (string, error) { return "a", nil },
		func(context.Context) (string, error) { return "", boom },
		func(context.Context) (string, error) { panic("bad tensor") },
		func(context.Context) (string, error) { return "d", nil },
	}

	results := RunBounded(context.Background(), tasks, 2)

	assert.Equal(t, "a", results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.ErrorIs(t, results[2].Err, ErrTaskPanicked)
	assert.Equal(t, "d", results[3].Value)
	assert.NoError(t, results[3].Err)
}

func TestRunBoundedStopsSchedulingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started atomic.Int32

	tasks := make([]Task[int], 10)
	for i := range tasks {
		tasks[i] = func(context.Context) (int, error) {
			started.Add(1)
			if i == 0 {
				cancel()
			}

			time.Sleep(10 * time.Millisecond)

			return i, nil
		}
	}

	results := RunBounded(ctx, tasks, 1)

	assert.Equal(t, int32(1), started.Load())
	assert.NoError(t, results[0].Err)

	for _, r := range results[1:] {
		assert.ErrorIs(t, r.Err, ErrNotStarted)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestRunBoundedEmpty(t *testing.T) {
	assert.Empty(t, RunBounded[int](context.Background(), nil, 3))
}
