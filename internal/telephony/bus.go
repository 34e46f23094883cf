package telephony

import (
	"context"
	"sync"
)

// Handler receives one normalized call event.
type Handler func(ctx context.Context, ev CallEvent)

// Subscriber is the registration side of the telephony event bus.
// The returned function removes the handler; calling it twice is a no-op.
type Subscriber interface {
	Subscribe(name EventName, h Handler) (unsubscribe func())
}

// Bus is an in-process fan-out of telephony events. It is shared by every
// agent console in the process, so handlers must filter for their own agent.
type Bus struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[EventName]map[uint64]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[EventName]map[uint64]Handler)}
}

func (b *Bus) Subscribe(name EventName, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	if b.handlers[name] == nil {
		b.handlers[name] = make(map[uint64]Handler)
	}
	b.handlers[name][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[name], id)
		})
	}
}

// Publish delivers ev synchronously to every handler registered for ev.Name.
func (b *Bus) Publish(ctx context.Context, ev CallEvent) int {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[ev.Name]))
	for _, h := range b.handlers[ev.Name] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(ctx, ev)
	}
	return len(hs)
}

// Subscriptions reports the number of live handlers for name.
func (b *Bus) Subscriptions(name EventName) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}
