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

func TestDeadLetterQueue_Replay(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()

	var healthy atomic.Bool
	var succeeded atomic.Int32
	_, err := bus.Subscribe("email.send", eventbus.HandlerFunc(
		func(ctx context.Context, event eventbus.Event) (any, error) {
			if !healthy.Load() {
				return nil, errors.New("smtp unavailable")
			}
			succeeded.Add(1)
			return nil, nil
		},
	))
	require.NoError(t, err)

	ctx := context.Background()

	// First dispatch fails and lands in the dead letter store.
	results := bus.EmitAsync(ctx, "email.send", "welcome")
	require.Len(t, results, 1)
	require.Equal(t, eventbus.StatusFailed, results[0].Status)
	require.Len(t, bus.DeadLetterQueue(), 1)

	// Replay once the downstream recovers.
	healthy.Store(true)
	require.NoError(t, bus.Initialize(ctx))
	defer bus.Shutdown(context.Background())

	replayed := bus.RetryDeadLetterEvents()
	assert.Equal(t, 1, replayed)
	assert.Empty(t, bus.DeadLetterQueue(), "replayed entries are removed once re-enqueued")

	require.Eventually(t, func() bool {
		return succeeded.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeadLetterQueue_ReplayKeepsEntriesOnClosedBus(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()

	_, err := bus.Subscribe("email.send", eventbus.HandlerFunc(
		func(ctx context.Context, event eventbus.Event) (any, error) {
			return nil, errors.New("boom")
		},
	))
	require.NoError(t, err)

	ctx := context.Background()
	bus.EmitAsync(ctx, "email.send", nil)
	require.Len(t, bus.DeadLetterQueue(), 1)

	require.NoError(t, bus.Initialize(ctx))
	require.NoError(t, bus.Shutdown(context.Background()))

	assert.Zero(t, bus.RetryDeadLetterEvents(), "closed scheduler rejects re-enqueue")
	assert.Len(t, bus.DeadLetterQueue(), 1, "entries survive a failed replay")
}

func TestClearDeadLetterQueue(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()

	_, err := bus.Subscribe("email.send", eventbus.HandlerFunc(
		func(ctx context.Context, event eventbus.Event) (any, error) {
			return nil, errors.New("boom")
		},
	))
	require.NoError(t, err)

	ctx := context.Background()
	bus.EmitAsync(ctx, "email.send", nil)
	bus.EmitAsync(ctx, "email.send", nil)
	require.Len(t, bus.DeadLetterQueue(), 2)

	assert.Equal(t, 2, bus.ClearDeadLetterQueue())
	assert.Empty(t, bus.DeadLetterQueue())
	assert.Zero(t, bus.ClearDeadLetterQueue())
}
