// Package store implements the hierarchical realtime key/value sync store:
// an in-process Tree with live value and child-added subscriptions, and a
// Client/Server pair that mirror the same contract over WebSocket.
package store

import (
	"encoding/json"
	"sync"
)

// Event is a single delivery from a subscription.
//
// For value subscriptions Key is empty and Data is the value at the path
// (nil when the path is absent). For child-added subscriptions Key is the
// child key and Data is the child's value.
type Event struct {
	Key  string
	Data json.RawMessage
}

// Subscription is a live feed of store events. Events are delivered in
// order; Close is idempotent and ends the feed by closing the channel.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// subscription is the shared Subscription implementation used by both Tree
// and Client. Deliveries go through an unbounded in-order queue so a slow
// consumer can never cause the producer to drop or block.
type subscription struct {
	mu    sync.Mutex
	queue []Event

	wake   chan struct{} // cap 1, signals the pump that the queue is non-empty
	done   chan struct{}
	events chan Event

	closeOnce sync.Once
	detach    func() // removes this subscription from its source
}

func newSubscription(detach func()) *subscription {
	s := &subscription{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		events: make(chan Event),
		detach: detach,
	}
	go s.pump()
	return s
}

// deliver enqueues an event. Safe to call from under the source's lock.
func (s *subscription) deliver(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pump moves events from the queue to the consumer channel, preserving
// order. It exits (closing the channel) when the subscription is closed.
func (s *subscription) pump() {
	defer close(s.events)
	for {
		s.mu.Lock()
		var next *Event
		if len(s.queue) > 0 {
			next = &s.queue[0]
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.events <- *next:
			s.mu.Lock()
			s.queue = s.queue[1:]
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

func (s *subscription) Events() <-chan Event {
	return s.events
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.detach != nil {
			s.detach()
		}
	})
	return nil
}
