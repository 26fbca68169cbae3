package eventbus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventbus"
)

func TestHistory_EvictsOldestFirst(t *testing.T) {
	t.Parallel()

	bus := eventbus.New(eventbus.WithHistoryLimit(10))
	ctx := context.Background()

	// 15 events against a limit of 10 must retain events 6-15.
	for i := 1; i <= 15; i++ {
		_, err := bus.Publish(ctx, "sensor.reading", i)
		require.NoError(t, err)
	}

	history := bus.History("sensor.reading", 0)
	require.Len(t, history, 10)
	assert.Equal(t, 6, history[0].Payload)
	assert.Equal(t, 15, history[9].Payload)
}

func TestHistory_LimitWindow(t *testing.T) {
	t.Parallel()

	bus := eventbus.New(eventbus.WithHistoryLimit(10))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := bus.Publish(ctx, "sensor.reading", i)
		require.NoError(t, err)
	}

	// Most recent 3, oldest-first within the window.
	history := bus.History("sensor.reading", 3)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[0].Payload)
	assert.Equal(t, 5, history[2].Payload)
}

func TestHistory_AcrossAllTypes(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	ctx := context.Background()

	_, err := bus.Publish(ctx, "order.created", "a")
	require.NoError(t, err)
	_, err = bus.Publish(ctx, "user.created", "b")
	require.NoError(t, err)
	_, err = bus.Publish(ctx, "order.created", "c")
	require.NoError(t, err)

	all := bus.History("", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Payload)
	assert.Equal(t, "b", all[1].Payload)
	assert.Equal(t, "c", all[2].Payload)

	window := bus.History("", 2)
	require.Len(t, window, 2)
	assert.Equal(t, "b", window[0].Payload)
	assert.Equal(t, "c", window[1].Payload)
}

func TestHistory_UnknownType(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	assert.Empty(t, bus.History("never.published", 0))
}
