// Package eventbus is the in-process topic-keyed fanout the outbox worker
// publishes into and the WebSocket Authority subscribes from. Generalised
// from the teacher's pkg/events.ConnectionManager, which keeps a
// channel -> set-of-connection-ids subscriber table guarded by a mutex;
// here the subscriber unit is a bounded Go channel rather than a
// WebSocket connection, so both the WS Authority and tests can consume
// directly without going through a connection object.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Envelope is one published event.
type Envelope struct {
	Topic   string
	Type    string
	Payload []byte
}

// Subscription is a bounded per-subscriber queue on one topic.
type Subscription struct {
	ID      string
	Topic   string
	queue   chan Envelope
	dropped atomic.Int64
}

// Events returns the channel to range over for delivered envelopes.
func (s *Subscription) Events() <-chan Envelope { return s.queue }

// Dropped reports how many envelopes were discarded because this
// subscriber's queue was full (drop-oldest overflow policy).
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Bus is an in-process, topic-keyed publish/subscribe fanout.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscription // topic -> subscription id -> subscription
	queueDepth  int
	log         *slog.Logger
}

// New constructs a Bus whose subscriber queues each hold queueDepth
// envelopes before the drop-oldest policy engages.
func New(queueDepth int) *Bus {
	if queueDepth <= 0 {
		queueDepth = 1024
	}
	return &Bus{
		subscribers: make(map[string]map[string]*Subscription),
		queueDepth:  queueDepth,
		log:         slog.With("component", "eventbus"),
	}
}

// Subscribe registers a new bounded queue for topic.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		ID:    uuid.NewString(),
		Topic: topic,
		queue: make(chan Envelope, b.queueDepth),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[string]*Subscription)
	}
	b.subscribers[topic][sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription. Safe to call more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subscribers[sub.Topic]; ok {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(b.subscribers, sub.Topic)
		}
	}
}

// Publish enqueues an event to every subscriber of topic without blocking.
// A subscriber whose queue is full has its oldest entry dropped to make
// room — publishers never block on a slow subscriber.
func (b *Bus) Publish(topic string, evt Envelope) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subscribers[topic]))
	for _, s := range b.subscribers[topic] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		b.enqueue(sub, evt)
	}
}

func (b *Bus) enqueue(sub *Subscription, evt Envelope) {
	select {
	case sub.queue <- evt:
		return
	default:
	}

	// Queue full: drop the oldest entry, then retry once. If a concurrent
	// consumer drains a slot between the drop and the retry, the retry
	// simply succeeds immediately.
	select {
	case <-sub.queue:
		sub.dropped.Add(1)
		b.log.Warn("subscriber queue full, dropped oldest event", "topic", sub.Topic, "subscription_id", sub.ID)
	default:
	}

	select {
	case sub.queue <- evt:
	default:
		// Another publisher won the race and refilled the queue first;
		// count this as a drop too rather than blocking.
		sub.dropped.Add(1)
	}
}

// SubscriberCount reports the number of active subscribers on topic,
// mirroring the teacher's subscriberCount test helper.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// Drain blocks until ctx is done or a single event arrives, a small
// convenience used by handlers that only want the next event.
func Drain(ctx context.Context, sub *Subscription) (Envelope, bool) {
	select {
	case evt := <-sub.queue:
		return evt, true
	case <-ctx.Done():
		return Envelope{}, false
	}
}
