package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
)

// Handler consumes an event.
type Handler func(ctx context.Context, event Event)

type subscription struct {
	id      uint64
	filter  Type
	handler Handler
}

// Bus is an in-process publish/subscribe hub safe for concurrent use.
// Handlers run synchronously on the publishing goroutine in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for one event type and returns a func removing it.
func (b *Bus) Subscribe(eventType Type, handler Handler) func() {
	return b.add(eventType, handler)
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) func() {
	return b.add("", handler)
}

func (b *Bus) add(filter Type, handler Handler) func() {
	if handler == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, filter: filter, handler: handler})
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len reports the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers event to matching handlers. A panicking handler is logged and skipped.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.filter == "" || sub.filter == event.Type {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()
	for _, sub := range matched {
		b.dispatch(ctx, sub, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, sub subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("event handler panicked",
				"event", string(event.Type),
				"error", fmt.Sprint(r),
			)
		}
	}()
	sub.handler(ctx, event)
}
