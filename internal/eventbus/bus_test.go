package eventbus

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: TypeChange, Key: "ASSIGNED:aa:1"})

	for _, ch := range []<-chan Event{a, c} {
		e := <-ch
		assert.Equal(t, TypeChange, e.Type)
		assert.Equal(t, "ASSIGNED:aa:1", e.Key)
		assert.False(t, e.Time.IsZero())
	}
	assert.Equal(t, 2, b.Subscribers())
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TypeHeartbeat})
	b.Publish(Event{Type: TypeFetchError})

	e := <-ch
	assert.Equal(t, TypeHeartbeat, e.Type)
	published, dropped := b.Stats()
	assert.EqualValues(t, 2, published)
	assert.EqualValues(t, 1, dropped)
}

func TestUnsubscribeClosesOnce(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(0)
	unsub()
	unsub()

	_, ok := <-ch
	require.False(t, ok)
	assert.Zero(t, b.Subscribers())

	// Publishing with no subscribers is a no-op.
	b.Publish(Event{Type: TypeStopped})
}

func TestCollectors(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()
	b.Publish(Event{Type: TypeChange})
	b.Publish(Event{Type: TypeChange})

	reg := prometheus.NewRegistry()
	reg.MustRegister(b.Collectors()...)

	want := `
# HELP provermon_events_dropped_total Event deliveries dropped because a subscriber was full.
# TYPE provermon_events_dropped_total counter
provermon_events_dropped_total 1
# HELP provermon_events_published_total Loop events published on the bus.
# TYPE provermon_events_published_total counter
provermon_events_published_total 2
# HELP provermon_event_subscribers Live event stream subscribers.
# TYPE provermon_event_subscribers gauge
provermon_event_subscribers 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want)))
}
