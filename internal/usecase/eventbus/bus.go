package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Topic names a stream of messages on a bus.
type Topic string

const (
	TopicSubmissionReceived Topic = "submission.received"
	TopicEventsCollected    Topic = "events.collected"
)

// Handler consumes one message.
type Handler[T any] func(ctx context.Context, topic Topic, msg T)

type subscription[T any] struct {
	id      uint64
	handler Handler[T]
}

// Bus is an in-process, goroutine-safe message bus. Handlers run in their
// own goroutine with a context that outlives the publisher's.
type Bus[T any] struct {
	mu      sync.RWMutex
	typed   map[Topic][]subscription[T]
	allSubs []subscription[T]
	nextID  atomic.Uint64
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  bool
}

// New creates a bus.
func New[T any](logger *slog.Logger) *Bus[T] {
	return &Bus[T]{
		typed:  make(map[Topic][]subscription[T]),
		logger: logger,
	}
}

// Publish fans msg out to topic subscribers and all-topic subscribers.
// Panicking handlers are recovered. Publishing on a closed bus is a no-op.
func (b *Bus[T]) Publish(ctx context.Context, topic Topic, msg T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	// Delivery must not be cut short when the request that published returns.
	ctx = context.WithoutCancel(ctx)
	for _, sub := range b.typed[topic] {
		b.dispatch(ctx, topic, msg, sub)
	}
	for _, sub := range b.allSubs {
		b.dispatch(ctx, topic, msg, sub)
	}
}

func (b *Bus[T]) dispatch(ctx context.Context, topic Topic, msg T, sub subscription[T]) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("bus handler panicked",
					"topic", string(topic),
					"panic", r,
				)
			}
		}()
		sub.handler(ctx, topic, msg)
	}()
}

// Subscribe registers a handler for one topic.
// Returns an unsubscribe function.
func (b *Bus[T]) Subscribe(topic Topic, handler Handler[T]) func() {
	id := b.nextID.Add(1)
	sub := subscription[T]{id: id, handler: handler}

	b.mu.Lock()
	b.typed[topic] = append(b.typed[topic], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.typed[topic] = without(b.typed[topic], id)
	}
}

// SubscribeAll registers a handler that receives every topic.
// Returns an unsubscribe function.
func (b *Bus[T]) SubscribeAll(handler Handler[T]) func() {
	id := b.nextID.Add(1)
	sub := subscription[T]{id: id, handler: handler}

	b.mu.Lock()
	b.allSubs = append(b.allSubs, sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.allSubs = without(b.allSubs, id)
	}
}

func without[T any](subs []subscription[T], id uint64) []subscription[T] {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// Close rejects further publishes and waits for in-flight handlers.
// Close is idempotent.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}
