package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/linanwx/hypermath/logger"
)

const defaultQueueSize = 64

// Handler is a function that handles events.
type Handler func(ctx context.Context, event *Event)

// Subscription represents a subscription to events. Each subscription drains
// its own queue, so a handler sees events in publish order.
type Subscription struct {
	ID        string
	EventType EventType
	Handler   Handler

	queue chan *Event
	done  chan struct{}
}

// Bus fans events out to subscribers.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	subCounter    int64
	queueSize     int
	closed        bool

	wg sync.WaitGroup
}

// New creates a bus whose subscriptions buffer up to queueSize events.
func New(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Bus{
		subscriptions: make(map[string]*Subscription),
		queueSize:     queueSize,
	}
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subCounter++
	id := fmt.Sprintf("sub-%d", b.subCounter)

	sub := &Subscription{
		ID:        id,
		EventType: eventType,
		Handler:   handler,
		queue:     make(chan *Event, b.queueSize),
		done:      make(chan struct{}),
	}
	if b.closed {
		close(sub.done)
		return id
	}
	b.subscriptions[id] = sub

	b.wg.Add(1)
	go b.run(sub)

	logger.Debug("subscription added", "id", id, "eventType", eventType)
	return id
}

// Unsubscribe removes a subscription and waits for its queued events to be
// handled. It must not be called from the subscription's own handler.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subscriptions[id]
	if ok {
		delete(b.subscriptions, id)
		close(sub.queue)
	}
	b.mu.Unlock()
	if ok {
		<-sub.done
	}
}

// Publish queues an event for every matching subscriber without blocking.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		logger.Warn("bus closed, event dropped", "type", event.Type)
		return
	}
	for _, sub := range b.subscriptions {
		if sub.EventType != event.Type {
			continue
		}
		select {
		case sub.queue <- event:
		default:
			logger.Warn("subscriber queue full, event dropped", "subscription", sub.ID, "type", event.Type, "version", event.Version)
		}
	}
}

// Close stops all subscriptions after draining their queues.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, sub := range b.subscriptions {
		close(sub.queue)
		delete(b.subscriptions, id)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bus) run(sub *Subscription) {
	defer b.wg.Done()
	defer close(sub.done)

	ctx := context.Background()
	for event := range sub.queue {
		b.dispatch(ctx, sub, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, sub *Subscription, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panic", "subscription", sub.ID, "panic", r)
		}
	}()
	sub.Handler(ctx, event)
}
