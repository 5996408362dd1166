package hooks

import (
	"context"
	"errors"
	"sync"

	"github.com/agentgrove/corert/runtime/agent/telemetry"
)

type (
	// Bus publishes runtime events to registered subscribers in a fan-out
	// pattern. Events are delivered synchronously, in registration order, in
	// the publisher's goroutine, which is what gives a single run's events
	// their "emission order" guarantee (spec.md §4.I); ordering across
	// different runs publishing concurrently is not guaranteed.
	//
	// Unlike the teacher's original Bus, which stops at the first subscriber
	// error, this Bus isolates subscriber failures: per spec.md §4.I,
	// "Subscribers that throw are isolated; exceptions are logged and do not
	// affect siblings." A failing subscriber never blocks delivery to the
	// others, and never fails the publisher's call.
	Bus interface {
		// Publish delivers the event to every currently registered
		// subscriber, in registration order. A subscriber error is logged
		// and does not stop delivery to the remaining subscribers; Publish
		// itself only returns an error if event is nil.
		Publish(ctx context.Context, event Event) error

		// Register adds a subscriber to the bus and returns a Subscription
		// that can be closed to unregister. Returns an error if sub is nil.
		Register(sub Subscriber) (Subscription, error)
	}

	// Subscriber reacts to published runtime events.
	Subscriber interface {
		// HandleEvent processes a single event. A returned error is logged
		// by the Bus and isolated to this subscriber; it never halts
		// delivery to siblings (spec.md §4.I).
		HandleEvent(ctx context.Context, event Event) error
	}

	// SubscriberFunc adapts a plain function to the Subscriber interface.
	SubscriberFunc func(ctx context.Context, event Event) error

	// Subscription represents an active registration on a Bus.
	Subscription interface {
		// Close removes the subscriber from the bus. Idempotent.
		Close() error
	}

	bus struct {
		mu          sync.RWMutex
		subscribers map[*subscription]Subscriber
		log         telemetry.Logger
	}

	subscription struct {
		bus  *bus
		once sync.Once
	}
)

// HandleEvent implements Subscriber by calling fn.
func (fn SubscriberFunc) HandleEvent(ctx context.Context, event Event) error { return fn(ctx, event) }

// NewBus constructs an in-memory event bus. log receives isolated subscriber
// errors; a nil log discards them.
func NewBus(log telemetry.Logger) Bus {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &bus{subscribers: make(map[*subscription]Subscriber), log: log}
}

// Publish delivers event to every subscriber registered at call time, in
// registration order, isolating each subscriber's failures (spec.md §4.I).
func (b *bus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return errors.New("hooks: event is required")
	}
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()
	for _, sub := range subs {
		if err := sub.HandleEvent(ctx, event); err != nil {
			b.log.Warn(ctx, "hooks: subscriber failed, isolating",
				"event_type", string(event.Type()), "run_id", event.RunID(), "error", err.Error())
		}
	}
	return nil
}

// Register adds sub to the bus.
func (b *bus) Register(sub Subscriber) (Subscription, error) {
	if sub == nil {
		return nil, errors.New("hooks: subscriber is required")
	}
	s := &subscription{bus: b}
	b.mu.Lock()
	b.subscribers[s] = sub
	b.mu.Unlock()
	return s, nil
}

// Close unregisters the subscriber. Idempotent.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subscribers, s)
		s.bus.mu.Unlock()
	})
	return nil
}
