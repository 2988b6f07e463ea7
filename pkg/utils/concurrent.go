package utils

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxConcurrency bounds fan-out when a caller passes a non-positive limit.
const DefaultMaxConcurrency = 5

// ErrCallTimeout is returned by CallWithTimeout when the deadline passes before fn returns.
var ErrCallTimeout = fmt.Errorf("call timed out: %w", context.DeadlineExceeded)

// ConcurrentExecutor manages concurrent execution of functions with a semaphore
type ConcurrentExecutor struct {
	semaphore chan struct{}
}

// NewConcurrentExecutor creates a new concurrent executor with the specified max concurrency
func NewConcurrentExecutor(maxConcurrency int) *ConcurrentExecutor {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &ConcurrentExecutor{
		semaphore: make(chan struct{}, maxConcurrency),
	}
}

// Limit reports how many functions may run at once.
func (e *ConcurrentExecutor) Limit() int {
	return cap(e.semaphore)
}

// Execute runs functions concurrently with semaphore control.
// Panics in goroutines are recovered and converted to PanicError.
func (e *ConcurrentExecutor) Execute(ctx context.Context, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}

	results := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func() error) {
			defer wg.Done()
			defer RecoverWithCallback(func(err error) {
				results[index] = err
			})

			select {
			case e.semaphore <- struct{}{}:
				defer func() { <-e.semaphore }()
			case <-ctx.Done():
				results[index] = ctx.Err()
				return
			}

			results[index] = function()
		}(i, fn)
	}

	wg.Wait()
	return results
}

// ExecuteWithResults runs functions concurrently and returns one result and one
// error slot per function, in input order. Every function settles before it
// returns; a failure in one slot never cancels the others.
func ExecuteWithResults[T any](ctx context.Context, maxConcurrency int, functions ...func() (T, error)) ([]T, []error) {
	if len(functions) == 0 {
		return nil, nil
	}

	executor := NewConcurrentExecutor(maxConcurrency)
	results := make([]T, len(functions))
	errs := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func() (T, error)) {
			defer wg.Done()
			defer RecoverWithCallback(func(err error) {
				errs[index] = err
			})

			select {
			case executor.semaphore <- struct{}{}:
				defer func() { <-executor.semaphore }()
			case <-ctx.Done():
				errs[index] = ctx.Err()
				return
			}

			results[index], errs[index] = function()
		}(i, fn)
	}

	wg.Wait()
	return results, errs
}

// SemaphoreGatherWithResults executes functions concurrently and returns both results and errors
func SemaphoreGatherWithResults[T any](ctx context.Context, maxConcurrency int, functions ...func() (T, error)) ([]T, []error) {
	return ExecuteWithResults(ctx, maxConcurrency, functions...)
}

// CallWithTimeout runs fn with a derived context that expires after timeout.
// The deadline is enforced even when fn ignores its context: the caller gets
// ErrCallTimeout and fn's eventual result is discarded.
func CallWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		var out outcome
		defer func() { done <- out }()
		defer RecoverWithCallback(func(err error) {
			out.err = err
		})
		out.value, out.err = fn(callCtx)
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, ErrCallTimeout
	}
}
