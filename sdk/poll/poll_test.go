package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(values ...int) func(context.Context) (int, error) {
	i := 0
	return func(context.Context) (int, error) {
		v := values[min(i, len(values)-1)]
		i++
		return v, nil
	}
}

func TestUntil(t *testing.T) {
	t.Parallel()
	t.Run("Should return the first value satisfying the condition", func(t *testing.T) {
		t.Parallel()
		res, err := Until(t.Context(), Options{Interval: time.Millisecond, MaxWait: time.Second},
			counter(1, 2, 3), func(v int) bool { return v == 3 })

		require.NoError(t, err)
		assert.Equal(t, 3, res.Value)
		assert.Equal(t, 3, res.Attempts)
	})
	t.Run("Should stop after the budget elapsed", func(t *testing.T) {
		t.Parallel()
		started := time.Now()
		res, err := Until(t.Context(), Options{Interval: 10 * time.Millisecond, MaxWait: 50 * time.Millisecond},
			counter(1), func(int) bool { return false })

		require.ErrorIs(t, err, ErrBudgetExhausted)
		assert.GreaterOrEqual(t, time.Since(started), 50*time.Millisecond)
		assert.Less(t, time.Since(started), time.Second)
		assert.Equal(t, 1, res.Value)
		assert.GreaterOrEqual(t, res.Attempts, 2)
	})
	t.Run("Should return fetch errors without retrying", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		calls := 0
		_, err := Until(t.Context(), Options{Interval: time.Millisecond, MaxWait: time.Second},
			func(context.Context) (int, error) {
				calls++
				return 0, boom
			}, func(int) bool { return true })

		assert.Same(t, boom, err)
		assert.Equal(t, 1, calls)
	})
	t.Run("Should stop sleeping when the context is canceled", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(t.Context())
		time.AfterFunc(20*time.Millisecond, cancel)
		started := time.Now()

		_, err := Until(ctx, Options{Interval: time.Hour, MaxWait: 2 * time.Hour},
			counter(1), func(int) bool { return false })

		require.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(started), time.Second)
	})
	t.Run("Should not fetch with an already canceled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		res, err := Until(ctx, Options{Interval: time.Millisecond, MaxWait: time.Second},
			counter(1), func(int) bool { return true })

		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, res.Attempts)
	})
	t.Run("Should reject non-positive durations", func(t *testing.T) {
		t.Parallel()
		_, err := Until(t.Context(), Options{MaxWait: time.Second}, counter(1), func(int) bool { return true })
		assert.ErrorContains(t, err, "poll interval must be positive")
		_, err = Until(t.Context(), Options{Interval: time.Second}, counter(1), func(int) bool { return true })
		assert.ErrorContains(t, err, "max wait time must be positive")
	})
}
