package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rpggio/flowscribe/internal/domain"
)

// Timeouts bounds how long a caller waits on each pipeline step.
// Zero means wait as long as the caller's context allows.
type Timeouts struct {
	Stop       time.Duration
	Classify   time.Duration
	Synthesize time.Duration
	Validate   time.Duration
}

// DefaultTimeouts returns the budgets used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Stop:       5 * time.Second,
		Classify:   5 * time.Second,
		Synthesize: 30 * time.Second,
		Validate:   60 * time.Second,
	}
}

type result[T any] struct {
	value T
	err   error
}

// await runs fn and waits for it until budget or ctx runs out. fn keeps the
// values of ctx but not its cancellation, so a step that outlives its caller
// completes in the background and is never retried.
func await[T any](ctx context.Context, budget time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	done := make(chan result[T], 1)
	work := context.WithoutCancel(ctx)
	go func() {
		v, err := fn(work)
		done <- result[T]{v, err}
	}()
	return wait(ctx, budget, op, done)
}

// wait receives one result from done, or fails with domain.ErrTimeout once
// budget or ctx runs out.
func wait[T any](ctx context.Context, budget time.Duration, op string, done <-chan result[T]) (T, error) {
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %s: %w", domain.ErrTimeout, op, ctx.Err())
	}
}
