package bus

import (
	"io"
	"testing"

	"github.com/joeycumines/qsys/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestBus_FanOut(t *testing.T) {
	b := New(logging.New(io.Discard, logging.LevelDebug))

	ch1, unsub1 := b.Subscribe("udev_events")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("udev_events")
	defer unsub2()

	n := b.Publish("udev_events", []byte("hello"))
	require.Equal(t, 2, n)
	require.Equal(t, []byte("hello"), <-ch1)
	require.Equal(t, []byte("hello"), <-ch2)
}

func TestBus_NoCrossTopicDelivery(t *testing.T) {
	b := New(logging.New(io.Discard, logging.LevelDebug))

	ch, unsub := b.Subscribe("a")
	defer unsub()

	n := b.Publish("b", []byte("x"))
	require.Equal(t, 0, n)
	select {
	case <-ch:
		t.Fatal("unexpected delivery across topics")
	default:
	}
}

func TestBus_EvictsSlowSubscriber(t *testing.T) {
	b := New(logging.New(io.Discard, logging.LevelDebug))

	ch, unsub := b.Subscribe("topic")
	defer unsub()

	// fill the subscriber's queue to capacity, then one more publish should
	// evict it (non-blocking enqueue fails) and close its channel.
	for i := 0; i < QueueCapacity; i++ {
		b.Publish("topic", []byte{byte(i)})
	}
	b.Publish("topic", []byte("overflow"))

	for i := 0; i < QueueCapacity; i++ {
		<-ch
	}
	_, ok := <-ch
	require.False(t, ok, "subscriber channel should be closed after eviction")
}
