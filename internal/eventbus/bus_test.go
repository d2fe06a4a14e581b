package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe("mission.m1")
	defer bus.Unsubscribe(sub)

	bus.Publish("mission.m1", Envelope{Topic: "mission.m1", Type: "status_change"})

	select {
	case evt := <-sub.Events():
		require.Equal(t, "status_change", evt.Type)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestBus_PublishIgnoresUnrelatedTopics(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe("mission.m1")
	defer bus.Unsubscribe(sub)

	bus.Publish("mission.m2", Envelope{Topic: "mission.m2", Type: "status_change"})

	select {
	case <-sub.Events():
		t.Fatal("subscriber on mission.m1 must not receive mission.m2 events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_DropsOldestWhenQueueFull(t *testing.T) {
	bus := New(2)
	sub := bus.Subscribe("topic")
	defer bus.Unsubscribe(sub)

	bus.Publish("topic", Envelope{Type: "first"})
	bus.Publish("topic", Envelope{Type: "second"})
	bus.Publish("topic", Envelope{Type: "third"})

	require.Equal(t, int64(1), sub.Dropped())

	first := <-sub.Events()
	second := <-sub.Events()
	require.Equal(t, "second", first.Type)
	require.Equal(t, "third", second.Type)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := New(4)
	sub := bus.Subscribe("topic")
	bus.Unsubscribe(sub)

	require.Equal(t, 0, bus.SubscriberCount("topic"))
	bus.Publish("topic", Envelope{Type: "after-unsubscribe"})

	select {
	case <-sub.Events():
		t.Fatal("unsubscribed consumer must not receive further events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_MultipleSubscribersEachReceive(t *testing.T) {
	bus := New(4)
	sub1 := bus.Subscribe("topic")
	sub2 := bus.Subscribe("topic")
	defer bus.Unsubscribe(sub1)
	defer bus.Unsubscribe(sub2)

	bus.Publish("topic", Envelope{Type: "broadcast"})

	e1 := <-sub1.Events()
	e2 := <-sub2.Events()
	require.Equal(t, "broadcast", e1.Type)
	require.Equal(t, "broadcast", e2.Type)
}
