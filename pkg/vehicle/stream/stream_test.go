package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestBroadcaster_FanOut(t *testing.T) {
	b := New[int](4)
	ctx := context.Background()
	a := b.Subscribe(ctx)
	c := b.Subscribe(ctx)

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, 1, recv(t, a))
	assert.Equal(t, 2, recv(t, a))
	assert.Equal(t, 1, recv(t, c))
	assert.Equal(t, 2, recv(t, c))
}

func TestBroadcaster_ReplaysLatest(t *testing.T) {
	b := New[string](1)
	b.Publish("old")
	b.Publish("new")

	ch := b.Subscribe(context.Background())
	assert.Equal(t, "new", recv(t, ch))

	last, ok := b.Last()
	assert.True(t, ok)
	assert.Equal(t, "new", last)
}

func TestBroadcaster_SlowSubscriberKeepsNewest(t *testing.T) {
	b := New[int](2)
	ch := b.Subscribe(context.Background())
	for i := 1; i <= 10; i++ {
		b.Publish(i)
	}
	assert.Equal(t, 9, recv(t, ch))
	assert.Equal(t, 10, recv(t, ch))
}

func TestBroadcaster_ContextCancelCloses(t *testing.T) {
	b := New[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBroadcaster_Close(t *testing.T) {
	b := New[int](1)
	ch := b.Subscribe(context.Background())
	b.Close()
	b.Publish(5)

	_, ok := <-ch
	assert.False(t, ok)

	late := b.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok, "subscribe after close returns a closed channel")
	b.Close()
}
