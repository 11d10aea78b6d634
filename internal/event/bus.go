// internal/event/bus.go
package event

import (
	"sync"
	"time"
)

// Handler receives events synchronously on the emitting goroutine.
type Handler func(Event)

// SubscriptionID identifies a subscription for Unsubscribe.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
	types   map[Type]struct{} // nil = all
}

// Bus fans events out to subscribers in subscription order.
// It is safe for concurrent use.
type Bus struct {
	mu   sync.RWMutex
	next SubscriptionID
	subs []subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for every event type.
func (b *Bus) Subscribe(h Handler) SubscriptionID {
	return b.add(h, nil)
}

// SubscribeTypes registers h for the listed event types only.
func (b *Bus) SubscribeTypes(h Handler, types ...Type) SubscriptionID {
	set := make(map[Type]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return b.add(h, set)
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers e to every matching subscriber. A zero timestamp is set to now.
func (b *Bus) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		if s.types != nil {
			if _, ok := s.types[e.Type]; !ok {
				continue
			}
		}
		s.handler(e)
	}
}

func (b *Bus) add(h Handler, types map[Type]struct{}) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	// copy-on-write so Emit can iterate without the lock
	subs := make([]subscription, len(b.subs), len(b.subs)+1)
	copy(subs, b.subs)
	b.subs = append(subs, subscription{id: b.next, handler: h, types: types})
	return b.next
}
