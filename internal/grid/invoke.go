package grid

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Invoke calls fn, converting a panic into an error. With a positive timeout
// fn runs under a derived deadline and Invoke returns once the deadline
// passes, even if fn ignores its context; the late result is discarded.
// Cancelling the parent context is not a timeout: Invoke then waits for fn
// and returns whatever it produced.
func Invoke[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return recovered(ctx, fn)
	}

	cellCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := recovered(cellCtx, fn)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-cellCtx.Done():
		if ctx.Err() != nil {
			r := <-done
			return r.v, r.err
		}
		var zero T
		return zero, fmt.Errorf("cell timed out after %s: %w", timeout, cellCtx.Err())
	}
}

// Interrupted reports whether err is the cancellation of ctx itself rather
// than a failure of the cell.
func Interrupted(ctx context.Context, err error) bool {
	cause := ctx.Err()
	return err != nil && cause != nil && errors.Is(err, cause)
}

func recovered[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
