// Package governor bounds how many model-calling tasks run at once.
package governor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Adaptive concurrency bounds.
const (
	MinConcurrency = 3
	MaxConcurrency = 8
	imagesPerSlot  = 4
)

var (
	// ErrNotStarted is reported for tasks that were still queued when the context was cancelled.
	ErrNotStarted = errors.New("task not started")
	// ErrTaskPanicked is reported for a task whose body panicked.
	ErrTaskPanicked = errors.New("task panicked")
)

// Task is one unit of bounded work. The caller owns its identity through the slice index.
type Task[T any] func(ctx context.Context) (T, error)

// Result is the outcome of the task at Index.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Adaptive returns the concurrency for a batch of n tasks: ceil(n/4) clamped to [3, 8],
// never more than n. A positive override replaces the scaled value but is still capped at n.
func Adaptive(n, override int) int {
	if n <= 0 {
		return 1
	}

	limit := override
	if limit <= 0 {
		limit = (n + imagesPerSlot - 1) / imagesPerSlot
		limit = max(MinConcurrency, min(limit, MaxConcurrency))
	}

	return min(limit, n)
}

// RunBounded runs tasks with at most maxConcurrency executing at the same time and
// returns one Result per task in task order. A failing or panicking task does not
// affect its siblings. Once ctx is done no further tasks are started; those report
// ErrNotStarted. Tasks already running receive ctx and decide for themselves.
func RunBounded[T any](ctx context.Context, tasks []Task[T], maxConcurrency int) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	sem := make(chan struct{}, maxConcurrency)

	var wg sync.WaitGroup

	for i, task := range tasks {
		results[i].Index = i

		select {
		case <-ctx.Done():
			results[i].Err = fmt.Errorf("%w: %w", ErrNotStarted, context.Cause(ctx))

			continue
		case sem <- struct{}{}: // acquire (blocks if at cap)
		}

		// The slot may have been won in a race with cancellation.
		if ctx.Err() != nil {
			<-sem
			results[i].Err = fmt.Errorf("%w: %w", ErrNotStarted, context.Cause(ctx))

			continue
		}

		wg.Add(1)

		go func(i int, task Task[T]) {
			defer wg.Done()
			defer func() { <-sem }() // release

			results[i].Value, results[i].Err = run(ctx, i, task)
		}(i, task)
	}

	wg.Wait()

	return results
}

func run[T any](ctx context.Context, i int, task Task[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "task panicked", "task", i, "panic", r)
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()

	return task(ctx)
}
