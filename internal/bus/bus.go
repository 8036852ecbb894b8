// Package bus implements the in-memory publish/subscribe message bus shared
// by udevd and its consumers: topics are created on demand, each subscriber
// gets a bounded queue, and a slow subscriber is evicted rather than allowed
// to back-pressure the rest of the topic.
package bus

import (
	"sync"

	"github.com/joeycumines/qsys/internal/logging"
)

// QueueCapacity is the number of buffered frames per subscriber before it is
// considered slow and evicted.
const QueueCapacity = 100

// MaxFrameSize is the largest payload a single publish may carry, matching
// the u16 length prefix used on the wire.
const MaxFrameSize = 65535

// Bus is a registry of topics, each fanning frames out to its subscribers.
// The zero value is not usable; construct with New.
type Bus struct {
	log *logging.Logger

	mu     sync.Mutex
	topics map[string]*topic
}

type topic struct {
	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	ch chan []byte
}

// New returns an empty Bus.
func New(log *logging.Logger) *Bus {
	return &Bus{log: log, topics: make(map[string]*topic)}
}

func (b *Bus) topicFor(name string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[name]
	if !ok {
		t = &topic{subscribers: make(map[*subscriber]struct{})}
		b.topics[name] = t
	}
	return t
}

// Subscribe registers a new bounded queue on topic and returns it along with
// an unsubscribe function that must be called exactly once, when the
// subscriber connection ends.
func (b *Bus) Subscribe(name string) (ch <-chan []byte, unsubscribe func()) {
	t := b.topicFor(name)
	sub := &subscriber{ch: make(chan []byte, QueueCapacity)}

	t.mu.Lock()
	t.subscribers[sub] = struct{}{}
	t.mu.Unlock()

	return sub.ch, func() {
		t.mu.Lock()
		delete(t.subscribers, sub)
		t.mu.Unlock()
	}
}

// Publish fans frame out to every subscriber of topic, evicting any whose
// queue is full. It returns the number of subscribers the frame was
// delivered to.
func (b *Bus) Publish(name string, frame []byte) int {
	t := b.topicFor(name)

	t.mu.Lock()
	delivered := 0
	var evicted []*subscriber
	for sub := range t.subscribers {
		select {
		case sub.ch <- frame:
			delivered++
		default:
			evicted = append(evicted, sub)
		}
	}
	for _, sub := range evicted {
		delete(t.subscribers, sub)
		close(sub.ch)
	}
	t.mu.Unlock()

	if b.log != nil {
		ev := b.log.Debug().Str("topic", name).Int("delivered", delivered)
		if len(evicted) > 0 {
			ev = ev.Int("evicted", len(evicted))
		}
		ev.Msg("published frame")
	}
	return delivered
}
