package pubsub

import (
	"context"
	"sync"
)

const subscriptionBuffer = 32

// Subscription is a stream of events for one topic. C is never closed; select on Done to
// learn the subscription ended.
type Subscription struct {
	Topic string
	C     <-chan Event

	ch     chan Event
	done   chan struct{}
	once   sync.Once
	broker *MemoryBroker
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unsubscribes. It is safe to call more than once and concurrently with Publish.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.done)
	})
}

// MemoryBroker is an in-process Broker.
type MemoryBroker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]map[*Subscription]struct{})}
}

func (b *MemoryBroker) Subscribe(topic string) (*Subscription, error) {
	ch := make(chan Event, subscriptionBuffer)
	sub := &Subscription{
		Topic:  topic,
		C:      ch,
		ch:     ch,
		done:   make(chan struct{}),
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	return sub, nil
}

// Publish delivers event to every current subscriber of topic. A full subscriber buffer
// blocks the publisher until the subscriber drains, closes, or ctx ends.
func (b *MemoryBroker) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]*Subscription, 0, len(b.topics[topic]))
	for sub := range b.topics[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions on topic.
func (b *MemoryBroker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close ends every subscription and rejects further use.
func (b *MemoryBroker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var subs []*Subscription
	for _, set := range b.topics {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (b *MemoryBroker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[sub.Topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, sub.Topic)
	}
}
