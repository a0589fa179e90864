package bus_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinri/neural-forge/core/bus"
)

func TestBus_PublishFIFOOrder(t *testing.T) {
	b := bus.New()

	var mu sync.Mutex
	var order []string
	record := func(name string) bus.Handler {
		return bus.NewHandlerFunc(name, func(ctx context.Context, e bus.Event) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	b.Subscribe("conversation.message", record("first"))
	b.Subscribe("conversation.message", record("second"))
	b.Subscribe("conversation.message", record("third"))

	evt, err := bus.NewEvent("conversation.message", "p1", nil)
	require.NoError(t, err)

	b.Publish(context.Background(), evt)

	assert.Equal(t, []string{"first", "second", "third"}, order)
	snap := b.Snapshot("conversation.message")
	assert.Equal(t, int64(1), snap.Published)
	assert.Equal(t, int64(3), snap.Consumed)
	assert.Equal(t, int64(0), snap.HandlerErrors)
}

func TestBus_ErrorIsolation(t *testing.T) {
	b := bus.New()

	var h2Ran bool
	h1 := bus.NewHandlerFunc("h1", func(ctx context.Context, e bus.Event) error {
		return errors.New("boom")
	})
	h2 := bus.NewHandlerFunc("h2", func(ctx context.Context, e bus.Event) error {
		h2Ran = true
		return nil
	})

	b.Subscribe("conversation.message", h1)
	b.Subscribe("conversation.message", h2)

	evt, err := bus.NewEvent("conversation.message", "p1", nil)
	require.NoError(t, err)

	b.Publish(context.Background(), evt)

	assert.True(t, h2Ran)
	snap := b.Snapshot("conversation.message")
	assert.Equal(t, int64(1), snap.Published)
	assert.Equal(t, int64(1), snap.Consumed)
	assert.Equal(t, int64(1), snap.HandlerErrors)
}

func TestBus_SubscribeDedup(t *testing.T) {
	b := bus.New()

	calls := 0
	h := bus.NewHandlerFunc("h", func(ctx context.Context, e bus.Event) error {
		calls++
		return nil
	})

	b.Subscribe("t", h)
	b.Subscribe("t", h)

	evt, err := bus.NewEvent("t", "p1", nil)
	require.NoError(t, err)
	b.Publish(context.Background(), evt)

	assert.Equal(t, 1, calls)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := bus.New()

	calls := 0
	h := bus.NewHandlerFunc("h", func(ctx context.Context, e bus.Event) error {
		calls++
		return nil
	})

	b.Subscribe("t", h)
	b.Unsubscribe("t", h)

	evt, err := bus.NewEvent("t", "p1", nil)
	require.NoError(t, err)
	b.Publish(context.Background(), evt)

	assert.Equal(t, 0, calls)
}

func TestBus_EmptyFieldsRejected(t *testing.T) {
	_, err := bus.NewEvent("", "p1", nil)
	assert.Error(t, err)

	_, err = bus.NewEvent("t", "", nil)
	assert.Error(t, err)
}
