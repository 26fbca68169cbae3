package eventbus_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventbus"
)

func TestEmitAsync_Retries(t *testing.T) {
	t.Parallel()

	t.Run("handler failing n times then succeeding completes with retry count n", func(t *testing.T) {
		t.Parallel()

		bus := eventbus.New()

		var attempts atomic.Int32
		_, err := bus.Subscribe("billing.charge", eventbus.HandlerFunc(
			func(ctx context.Context, event eventbus.Event) (any, error) {
				if attempts.Add(1) <= 3 {
					return nil, errors.New("transient failure")
				}
				return "charged", nil
			},
		), eventbus.SubscriptionConfig{MaxRetries: 3})
		require.NoError(t, err)

		results := bus.EmitAsync(context.Background(), "billing.charge", nil)
		require.Len(t, results, 1)

		assert.Equal(t, eventbus.StatusCompleted, results[0].Status)
		assert.Equal(t, 3, results[0].RetryCount)
		assert.Equal(t, "charged", results[0].Result)
		assert.Equal(t, int32(4), attempts.Load())
		assert.Empty(t, bus.DeadLetterQueue())
	})

	t.Run("handler always failing is dead lettered with retry count n", func(t *testing.T) {
		t.Parallel()

		bus := eventbus.New()

		var attempts atomic.Int32
		failure := errors.New("permanent failure")
		subID, err := bus.Subscribe("billing.charge", eventbus.HandlerFunc(
			func(ctx context.Context, event eventbus.Event) (any, error) {
				attempts.Add(1)
				return nil, failure
			},
		), eventbus.SubscriptionConfig{MaxRetries: 2})
		require.NoError(t, err)

		results := bus.EmitAsync(context.Background(), "billing.charge", nil)
		require.Len(t, results, 1)

		assert.Equal(t, eventbus.StatusFailed, results[0].Status)
		assert.Equal(t, 2, results[0].RetryCount)
		assert.ErrorIs(t, results[0].Err, failure)
		assert.Equal(t, int32(3), attempts.Load())

		entries := bus.DeadLetterQueue()
		require.Len(t, entries, 1)
		assert.Equal(t, subID, entries[0].SubscriptionID)
		assert.Equal(t, 3, entries[0].Attempts)
		assert.ErrorIs(t, entries[0].LastError, failure)
	})

	t.Run("zero max retries fails on first error", func(t *testing.T) {
		t.Parallel()

		bus := eventbus.New()

		var attempts atomic.Int32
		_, err := bus.Subscribe("billing.charge", eventbus.HandlerFunc(
			func(ctx context.Context, event eventbus.Event) (any, error) {
				attempts.Add(1)
				return nil, errors.New("boom")
			},
		))
		require.NoError(t, err)

		results := bus.EmitAsync(context.Background(), "billing.charge", nil)
		require.Len(t, results, 1)
		assert.Equal(t, eventbus.StatusFailed, results[0].Status)
		assert.Zero(t, results[0].RetryCount)
		assert.Equal(t, int32(1), attempts.Load())
	})
}

func TestEmitSync_AsyncHandlerMismatch(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()

	var invoked atomic.Bool
	_, err := bus.Subscribe("report.generate", eventbus.HandlerFunc(
		func(ctx context.Context, event eventbus.Event) (any, error) {
			invoked.Store(true)
			return nil, nil
		},
	)) // default config: ModeAsync
	require.NoError(t, err)

	done := make(chan []eventbus.HandlerResult, 1)
	go func() {
		done <- bus.EmitSync(context.Background(), "report.generate", nil)
	}()

	select {
	case results := <-done:
		require.Len(t, results, 1)
		assert.Equal(t, eventbus.StatusFailed, results[0].Status)
		assert.ErrorIs(t, results[0].Err, eventbus.ErrAsyncHandlerInSync)
		assert.False(t, invoked.Load(), "async-mode handler must not be invoked synchronously")
	case <-time.After(2 * time.Second):
		t.Fatal("EmitSync must not hang on async handler mismatch")
	}
}

func TestSubscriptionFilter(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()

	var invoked atomic.Bool
	_, err := bus.Subscribe("audit.log", eventbus.HandlerFunc(
		func(ctx context.Context, event eventbus.Event) (any, error) {
			invoked.Store(true)
			return nil, nil
		},
	), eventbus.SubscriptionConfig{
		Mode:   eventbus.ModeSync,
		Filter: func(event eventbus.Event) bool { return false },
	})
	require.NoError(t, err)

	results := bus.EmitSync(context.Background(), "audit.log", nil)

	assert.Empty(t, results, "filtered handlers produce no result at all")
	assert.False(t, invoked.Load())
	stats := bus.Stats("audit.log")
	assert.Zero(t, stats.SuccessfulEvents)
	assert.Zero(t, stats.FailedEvents)
}

func TestLifecycleHooks(t *testing.T) {
	t.Parallel()

	t.Run("before and after hooks bracket a successful handler", func(t *testing.T) {
		t.Parallel()

		bus := eventbus.New()

		var order []string
		_, err := bus.Subscribe("job.run", eventbus.HandlerFunc(
			func(ctx context.Context, event eventbus.Event) (any, error) {
				order = append(order, "handler")
				return 42, nil
			},
		), eventbus.SubscriptionConfig{
			Mode: eventbus.ModeSync,
			BeforeHandler: func(ctx context.Context, event eventbus.Event) {
				order = append(order, "before")
			},
			AfterHandler: func(ctx context.Context, event eventbus.Event, result any) {
				order = append(order, "after")
				assert.Equal(t, 42, result)
			},
		})
		require.NoError(t, err)

		results := bus.EmitSync(context.Background(), "job.run", nil)
		require.Len(t, results, 1)
		assert.Equal(t, []string{"before", "handler", "after"}, order)
	})

	t.Run("error hook fires on terminal failure only", func(t *testing.T) {
		t.Parallel()

		bus := eventbus.New()

		var hookErrs atomic.Int32
		failure := errors.New("boom")
		_, err := bus.Subscribe("job.run", eventbus.HandlerFunc(
			func(ctx context.Context, event eventbus.Event) (any, error) {
				return nil, failure
			},
		), eventbus.SubscriptionConfig{
			Mode:       eventbus.ModeSync,
			MaxRetries: 2,
			ErrorHandler: func(ctx context.Context, event eventbus.Event, err error) {
				hookErrs.Add(1)
				assert.ErrorIs(t, err, failure)
			},
		})
		require.NoError(t, err)

		bus.EmitSync(context.Background(), "job.run", nil)
		assert.Equal(t, int32(1), hookErrs.Load(), "error hook fires once, after retries are exhausted")
	})
}

func TestHandlerTimeout(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()

	_, err := bus.Subscribe("slow.task", eventbus.HandlerFunc(
		func(ctx context.Context, event eventbus.Event) (any, error) {
			select {
			case <-time.After(5 * time.Second):
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	), eventbus.SubscriptionConfig{
		Mode:    eventbus.ModeSync,
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	results := bus.EmitSync(context.Background(), "slow.task", nil)
	require.Len(t, results, 1)

	assert.Equal(t, eventbus.StatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, eventbus.ErrHandlerTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	entries := bus.DeadLetterQueue()
	require.Len(t, entries, 1, "timeout counts as a failed attempt")
}

func TestHandlerPanic(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()

	_, err := bus.Subscribe("fragile.task", eventbus.HandlerFunc(
		func(ctx context.Context, event eventbus.Event) (any, error) {
			panic("kaboom")
		},
	), eventbus.SubscriptionConfig{Mode: eventbus.ModeSync})
	require.NoError(t, err)

	results := bus.EmitSync(context.Background(), "fragile.task", nil)
	require.Len(t, results, 1)
	assert.Equal(t, eventbus.StatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, eventbus.ErrHandlerPanic)
}

func TestEmitAsync_CollectsAllResults(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()

	_, err := bus.Subscribe("mixed.outcome", eventbus.HandlerFunc(
		func(ctx context.Context, event eventbus.Event) (any, error) {
			return "ok", nil
		},
	))
	require.NoError(t, err)
	_, err = bus.Subscribe("mixed.outcome", eventbus.HandlerFunc(
		func(ctx context.Context, event eventbus.Event) (any, error) {
			return nil, errors.New("boom")
		},
	))
	require.NoError(t, err)

	results := bus.EmitAsync(context.Background(), "mixed.outcome", nil)
	require.Len(t, results, 2, "emit resolves with a result per subscription even when handlers fail")

	statuses := map[eventbus.ResultStatus]int{}
	for _, res := range results {
		statuses[res.Status]++
	}
	assert.Equal(t, 1, statuses[eventbus.StatusCompleted])
	assert.Equal(t, 1, statuses[eventbus.StatusFailed])
}

func TestSubscriptionPriority_OrdersExecution(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()

	var order []string
	record := func(name string) eventbus.Handler {
		return eventbus.HandlerFunc(func(ctx context.Context, event eventbus.Event) (any, error) {
			order = append(order, name)
			return nil, nil
		})
	}

	_, err := bus.Subscribe("cache.invalidate", record("normal"),
		eventbus.SubscriptionConfig{Mode: eventbus.ModeSync})
	require.NoError(t, err)
	_, err = bus.Subscribe("cache.invalidate", record("high"),
		eventbus.SubscriptionConfig{Mode: eventbus.ModeSync, Priority: eventbus.PriorityHigh})
	require.NoError(t, err)

	bus.EmitSync(context.Background(), "cache.invalidate", nil)
	assert.Equal(t, []string{"high", "normal"}, order)
}
