package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
		panic("unreachable")
	}
}

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub1 := b.Subscribe(ctx)
	sub2 := b.Subscribe(ctx)
	require.Equal(t, 2, b.SubscriberCount())

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, 1, receive(t, sub1))
	assert.Equal(t, 2, receive(t, sub1))
	assert.Equal(t, 1, receive(t, sub2))
	assert.Equal(t, 2, receive(t, sub2))
}

func TestBrokerCancelRemovesOnlyThatSubscriber(t *testing.T) {
	b := NewBroker[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keepCtx, keepCancel := context.WithCancel(ctx)
	defer keepCancel()
	kept := b.Subscribe(keepCtx)

	dropCtx, dropCancel := context.WithCancel(ctx)
	dropped := b.Subscribe(dropCtx)

	dropCancel()
	assert.Eventually(t, func() bool {
		return b.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	_, open := <-dropped
	assert.False(t, open)

	b.Publish(7)
	assert.Equal(t, 7, receive(t, kept))
}

func TestBrokerSlowSubscriberGetsEveryValue(t *testing.T) {
	b := NewBroker[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := b.Subscribe(ctx)

	// Nobody is reading yet; publishing must neither block nor lose values.
	const n = 1000
	for i := 0; i < n; i++ {
		b.Publish(i)
	}

	for i := 0; i < n; i++ {
		assert.Equal(t, i, receive(t, sub))
	}
}

func TestBrokerShutdownDrainsPending(t *testing.T) {
	b := NewBroker[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := b.Subscribe(ctx)
	for i := 0; i < 10; i++ {
		b.Publish(i)
	}
	b.Shutdown()

	// Values published before shutdown arrive, then the channel closes.
	for i := 0; i < 10; i++ {
		assert.Equal(t, i, receive(t, sub))
	}
	_, open := <-sub
	assert.False(t, open)
}

func TestBrokerShutdown(t *testing.T) {
	b := NewBroker[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := b.Subscribe(ctx)
	b.Shutdown()

	_, open := <-sub
	assert.False(t, open, "subscription should close on shutdown")
	assert.Equal(t, 0, b.SubscriberCount())

	// Idempotent, and publish after shutdown is a no-op.
	b.Shutdown()
	b.Publish(1)

	late := b.Subscribe(ctx)
	_, open = <-late
	assert.False(t, open, "subscribing after shutdown yields a closed channel")
}
