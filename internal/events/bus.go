package events

import (
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Sakenfor/pixsim7-sub008/internal/logger"
)

// Handler receives published events. Handlers run on the publisher's
// goroutine, outside the bus lock, so a handler may publish or subscribe
// without deadlocking.
type Handler func(Event)

// Subscription is the token returned by Subscribe and accepted by
// Unsubscribe.
type Subscription struct {
	ID      string
	Pattern string
	handler Handler
}

// Stats is a read-only snapshot of bus activity.
type Stats struct {
	EventCount      uint64 `json:"event_count"`
	ErrorCount      uint64 `json:"error_count"`
	SubscriberCount int    `json:"subscriber_count"`
	Patterns        int    `json:"patterns"`
}

// Bus delivers every published event to every subscription whose pattern
// matches, deduplicated by handler, in first-registered order.
type Bus struct {
	mu         sync.RWMutex
	subs       []*Subscription
	eventCount uint64
	errorCount uint64
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler under an exact event type or a wildcard
// pattern ("prefix.*", "*.suffix", "*"). Registering the same handler under
// the same pattern twice returns the existing subscription.
func (b *Bus) Subscribe(pattern string, handler Handler) *Subscription {
	ptr := reflect.ValueOf(handler).Pointer()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.Pattern == pattern && reflect.ValueOf(sub.handler).Pointer() == ptr {
			return sub
		}
	}

	sub := &Subscription{
		ID:      uuid.NewString(),
		Pattern: pattern,
		handler: handler,
	}
	b.subs = append(b.subs, sub)
	return sub
}

// Unsubscribe removes a subscription. Removing an unknown or already-removed
// subscription is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.ID == sub.ID {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every matching subscription. The matching
// set is computed under the lock; handlers are invoked after it is released.
// A panicking handler is counted and never prevents the remaining handlers
// from running.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	b.eventCount++
	matched := make([]*Subscription, 0, len(b.subs))
	seen := make(map[uintptr]bool, len(b.subs))
	for _, sub := range b.subs {
		if !Matches(sub.Pattern, event.Type) {
			continue
		}
		ptr := reflect.ValueOf(sub.handler).Pointer()
		if seen[ptr] {
			continue
		}
		seen[ptr] = true
		matched = append(matched, sub)
	}
	b.mu.Unlock()

	for _, sub := range matched {
		b.invoke(sub, event)
	}
}

// invoke runs one handler, absorbing panics so one bad subscriber cannot
// break the publisher or its peers.
func (b *Bus) invoke(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.errorCount++
			b.mu.Unlock()
			logger.WithFields(logger.Fields{
				"pattern": sub.Pattern,
				"type":    event.Type,
				"panic":   r,
			}).Error("Event handler panicked")
		}
	}()
	sub.handler(event)
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	patterns := make(map[string]bool, len(b.subs))
	for _, sub := range b.subs {
		patterns[sub.Pattern] = true
	}
	return Stats{
		EventCount:      b.eventCount,
		ErrorCount:      b.errorCount,
		SubscriberCount: len(b.subs),
		Patterns:        len(patterns),
	}
}

// Matches reports whether an event type matches a subscription pattern.
// Supported patterns: exact type, "*", "prefix.*" and "*.suffix".
func Matches(pattern, eventType string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(eventType, pattern[:len(pattern)-1])
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(eventType, pattern[1:])
	default:
		return pattern == eventType
	}
}
