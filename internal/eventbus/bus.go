// Package eventbus fans monitor events out to live subscribers, such as
// the status API's event stream.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Event types published by the monitor.
const (
	TypeStarted    = "monitor.started"
	TypeStopped    = "monitor.stopped"
	TypeChange     = "status.changed"
	TypeHeartbeat  = "heartbeat.sent"
	TypeFetchError = "fetch.failed"
)

// Event is one thing that happened in the loop. It is JSON-serializable.
type Event struct {
	Type   string    `json:"type"`
	Time   time.Time `json:"time"`
	Key    string    `json:"key,omitempty"`
	Status string    `json:"status,omitempty"`
	Err    string    `json:"error,omitempty"`
}

// Bus is an in-memory fanout. Publish never blocks: a subscriber whose
// buffer is full misses the event and the drop is counted.
//
// It does not own any goroutines.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64

	published atomic.Uint64
	dropped   atomic.Uint64
}

func New() *Bus {
	return &Bus{subs: map[uint64]chan Event{}}
}

func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	b.published.Add(1)

	// Held for reading so Unsubscribe cannot close a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a buffered channel of future events and a function
// that unsubscribes and closes it. Calling the function twice is safe.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Stats returns how many events were published and how many deliveries
// were dropped because a subscriber was slow.
func (b *Bus) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}

// Collectors exposes Stats and the subscriber count to Prometheus.
func (b *Bus) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "provermon_events_published_total",
			Help: "Loop events published on the bus.",
		}, func() float64 { return float64(b.published.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "provermon_events_dropped_total",
			Help: "Event deliveries dropped because a subscriber was full.",
		}, func() float64 { return float64(b.dropped.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "provermon_event_subscribers",
			Help: "Live event stream subscribers.",
		}, func() float64 { return float64(b.Subscribers()) }),
	}
}
