package eventbus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestBus() *Bus[string] {
	return New[string](slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(TopicSubmissionReceived, func(_ context.Context, topic Topic, msg string) {
		if topic == TopicSubmissionReceived && msg == "hello" {
			got.Add(1)
		}
	})
	bus.Subscribe(TopicEventsCollected, func(_ context.Context, _ Topic, _ string) {
		t.Error("handler for another topic fired")
	})

	bus.Publish(context.Background(), TopicSubmissionReceived, "hello")
	bus.Close() // drain
	if got.Load() != 1 {
		t.Fatalf("expected 1, got %d", got.Load())
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ Topic, _ string) {
		got.Add(1)
	})

	bus.Publish(context.Background(), TopicSubmissionReceived, "a")
	bus.Publish(context.Background(), TopicEventsCollected, "b")
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2, got %d", got.Load())
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	unsub := bus.Subscribe(TopicSubmissionReceived, func(_ context.Context, _ Topic, _ string) {
		got.Add(1)
	})
	unsubAll := bus.SubscribeAll(func(_ context.Context, _ Topic, _ string) {
		got.Add(1)
	})
	unsub()
	unsubAll()

	bus.Publish(context.Background(), TopicSubmissionReceived, "x")
	bus.Close()

	if got.Load() != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", got.Load())
	}
}

func TestHandlerContextOutlivesPublisher(t *testing.T) {
	bus := newTestBus()

	errc := make(chan error, 1)
	bus.Subscribe(TopicSubmissionReceived, func(ctx context.Context, _ Topic, _ string) {
		time.Sleep(20 * time.Millisecond)
		errc <- ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, TopicSubmissionReceived, "x")
	cancel()
	bus.Close()

	if err := <-errc; err != nil {
		t.Fatalf("handler context cancelled with publisher: %v", err)
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(TopicSubmissionReceived, func(_ context.Context, _ Topic, _ string) {
		got.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), TopicSubmissionReceived, "x")
		}()
	}
	wg.Wait()
	bus.Close()

	if got.Load() != 100 {
		t.Fatalf("expected 100, got %d", got.Load())
	}
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(TopicSubmissionReceived, func(_ context.Context, _ Topic, _ string) {
		panic("boom")
	})
	bus.Subscribe(TopicSubmissionReceived, func(_ context.Context, _ Topic, _ string) {
		got.Add(1)
	})

	bus.Publish(context.Background(), TopicSubmissionReceived, "x")
	bus.Close()

	if got.Load() != 1 {
		t.Fatalf("expected 1 (second handler), got %d", got.Load())
	}
}

func TestCloseDrainsAndRejectsNew(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(TopicSubmissionReceived, func(_ context.Context, _ Topic, _ string) {
		time.Sleep(50 * time.Millisecond)
		got.Add(1)
	})

	bus.Publish(context.Background(), TopicSubmissionReceived, "x")
	bus.Close() // blocks until the handler finishes

	if got.Load() != 1 {
		t.Fatalf("expected handler to have run, got %d", got.Load())
	}

	bus.Publish(context.Background(), TopicSubmissionReceived, "x")
	time.Sleep(20 * time.Millisecond)
	if got.Load() != 1 {
		t.Fatalf("expected no delivery after close, got %d", got.Load())
	}
	bus.Close()
}
