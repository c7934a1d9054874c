// Package poll repeats a fetch at a fixed interval until a condition holds
// or a wall-clock budget runs out.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBudgetExhausted is returned when MaxWait elapsed before the condition held.
var ErrBudgetExhausted = errors.New("poll: wait budget exhausted")

// Options bounds a polling loop. Both durations must be positive.
type Options struct {
	Interval time.Duration
	MaxWait  time.Duration
}

// Validate checks that both durations are positive.
func (o Options) Validate() error {
	if o.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", o.Interval)
	}
	if o.MaxWait <= 0 {
		return fmt.Errorf("max wait time must be positive, got %s", o.MaxWait)
	}
	return nil
}

// Result describes a finished loop.
type Result[T any] struct {
	Value    T
	Attempts int
	Elapsed  time.Duration
}

// Until calls fetch until done reports true for its value.
//
// A fetch error ends the loop immediately and is returned unchanged. When the
// budget runs out Until returns the last value with ErrBudgetExhausted. The
// context is checked before every fetch and interrupts the sleep between fetches.
func Until[T any](
	ctx context.Context,
	opts Options,
	fetch func(context.Context) (T, error),
	done func(T) bool,
) (Result[T], error) {
	var res Result[T]
	if err := opts.Validate(); err != nil {
		return res, err
	}
	start := time.Now()
	for {
		elapsed := time.Since(start)
		if elapsed >= opts.MaxWait {
			res.Elapsed = elapsed
			return res, ErrBudgetExhausted
		}
		if err := ctx.Err(); err != nil {
			res.Elapsed = elapsed
			return res, fmt.Errorf("poll canceled: %w", err)
		}
		value, err := fetch(ctx)
		res.Attempts++
		if err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
		res.Value = value
		if done(value) {
			res.Elapsed = time.Since(start)
			return res, nil
		}
		remaining := opts.MaxWait - time.Since(start)
		if remaining <= 0 {
			continue
		}
		if err := sleep(ctx, min(opts.Interval, remaining)); err != nil {
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("poll canceled: %w", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
