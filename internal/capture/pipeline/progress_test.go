package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressBroadcaster_FanOut(t *testing.T) {
	b := NewProgressBroadcaster()
	defer b.Close()

	a := b.Subscribe("a", 4)
	c := b.Subscribe("c", 4)
	require.Equal(t, 2, b.SubscriberCount())

	ev := ProgressEvent{Job: "job-1", Phase: "sampling", Done: 3, Total: 90}
	b.Publish(ev)

	assert.Equal(t, ev, <-a)
	assert.Equal(t, ev, <-c)
}

func TestProgressBroadcaster_ReplaysLastEvent(t *testing.T) {
	b := NewProgressBroadcaster()
	defer b.Close()

	b.Publish(ProgressEvent{Job: "job-1", Phase: "recording", Done: 1, Total: 1})

	late := b.Subscribe("late", 4)
	select {
	case ev := <-late:
		assert.Equal(t, "recording", ev.Phase)
	default:
		t.Fatal("late subscriber did not receive the last event")
	}
}

func TestProgressBroadcaster_DropsSlowSubscriber(t *testing.T) {
	b := NewProgressBroadcaster()
	defer b.Close()

	slow := b.Subscribe("slow", 1)
	b.Publish(ProgressEvent{Job: "job-1", Done: 1})
	b.Publish(ProgressEvent{Job: "job-1", Done: 2})

	assert.Zero(t, b.SubscriberCount(), "undrained subscriber is dropped")

	// The buffered event is still there, then the channel closes.
	ev, ok := <-slow
	require.True(t, ok)
	assert.Equal(t, 1, ev.Done)
	_, ok = <-slow
	assert.False(t, ok)
}

func TestProgressBroadcaster_Unsubscribe(t *testing.T) {
	b := NewProgressBroadcaster()
	defer b.Close()

	ch := b.Subscribe("a", 4)
	b.Unsubscribe("a")

	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, b.SubscriberCount())

	b.Publish(ProgressEvent{Job: "job-1"})
}

func TestProgressBroadcaster_CloseIsIdempotent(t *testing.T) {
	b := NewProgressBroadcaster()

	ch := b.Subscribe("a", 4)
	b.Close()
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	closed := b.Subscribe("late", 4)
	_, ok = <-closed
	assert.False(t, ok, "subscribing after close yields a closed channel")

	b.Publish(ProgressEvent{Job: "ignored"})
}
