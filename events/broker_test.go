package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type brokerFactory func(t *testing.T) Broker

// runBrokerTests exercises the Broker contract against any implementation.
func runBrokerTests(t *testing.T, factory brokerFactory) {
	t.Run("PublishAndSubscribe", func(t *testing.T) { testPublishAndSubscribe(t, factory) })
	t.Run("ResumeFromLastEventID", func(t *testing.T) { testResume(t, factory) })
	t.Run("TopicIsolation", func(t *testing.T) { testTopicIsolation(t, factory) })
	t.Run("HandlerErrorStopsSubscription", func(t *testing.T) { testHandlerError(t, factory) })
	t.Run("ContextCancellation", func(t *testing.T) { testCancellation(t, factory) })
	t.Run("EmptyTopic", func(t *testing.T) { testEmptyTopic(t, factory) })
}

// subscribeAsync starts a subscription and waits until it is registered
// by publishing a probe event on topic.
func subscribeAsync(t *testing.T, b Broker, ctx context.Context, topic string, want int) (<-chan []Envelope, <-chan error) {
	t.Helper()
	got := make(chan []Envelope, 1)
	errc := make(chan error, 1)
	ready := make(chan struct{})
	var once sync.Once

	var mu sync.Mutex
	var received []Envelope
	go func() {
		errc <- b.Subscribe(ctx, topic, "", func(_ context.Context, env Envelope) error {
			if string(env.Data) == "probe" {
				once.Do(func() { close(ready) })
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			received = append(received, env)
			if len(received) == want {
				got <- append([]Envelope(nil), received...)
			}
			return nil
		})
	}()

	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := b.Publish(context.Background(), topic, []byte("probe")); err != nil {
			t.Fatalf("Publish(probe) error = %v", err)
		}
		select {
		case <-ready:
			return got, errc
		case <-deadline:
			t.Fatal("subscription never became ready")
		case <-tick.C:
		}
	}
}

func testPublishAndSubscribe(t *testing.T, factory brokerFactory) {
	b := factory(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, _ := subscribeAsync(t, b, ctx, "orders", 3)
	var published []string
	for _, msg := range []string{"one", "two", "three"} {
		id, err := b.Publish(ctx, "orders", []byte(msg))
		if err != nil {
			t.Fatalf("Publish error = %v", err)
		}
		published = append(published, id)
	}

	select {
	case envs := <-got:
		for i, env := range envs {
			if env.ID != published[i] {
				t.Errorf("event %d ID = %s, want %s", i, env.ID, published[i])
			}
		}
		if string(envs[0].Data) != "one" || string(envs[2].Data) != "three" {
			t.Errorf("events out of order: %q", envs)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for events")
	}
}

func testResume(t *testing.T, factory brokerFactory) {
	b := factory(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := b.Publish(ctx, "resume", []byte("a"))
	if err != nil {
		t.Fatalf("Publish error = %v", err)
	}
	if _, err := b.Publish(ctx, "resume", []byte("b")); err != nil {
		t.Fatalf("Publish error = %v", err)
	}

	var got []string
	err = b.Subscribe(ctx, "resume", first, func(_ context.Context, env Envelope) error {
		got = append(got, string(env.Data))
		return errStop
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("Subscribe error = %v, want errStop", err)
	}
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("resumed events = %v, want [b]", got)
	}
}

var errStop = errors.New("stop")

func testTopicIsolation(t *testing.T, factory brokerFactory) {
	b := factory(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, _ := subscribeAsync(t, b, ctx, "left", 1)
	if _, err := b.Publish(ctx, "right", []byte("wrong")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Publish(ctx, "left", []byte("right")); err != nil {
		t.Fatal(err)
	}
	select {
	case envs := <-got:
		if string(envs[0].Data) != "right" {
			t.Errorf("received %q from another topic", envs[0].Data)
		}
	case <-ctx.Done():
		t.Fatal("timed out")
	}
}

func testHandlerError(t *testing.T, factory brokerFactory) {
	b := factory(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := b.Publish(ctx, "errors", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	_, _ = b.Publish(ctx, "errors", []byte("y"))

	err = b.Subscribe(ctx, "errors", id, func(context.Context, Envelope) error { return errStop })
	if !errors.Is(err, errStop) {
		t.Errorf("Subscribe error = %v, want errStop", err)
	}
}

func testCancellation(t *testing.T, factory brokerFactory) {
	b := factory(t)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- b.Subscribe(ctx, "cancel", "", func(context.Context, Envelope) error { return nil })
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Subscribe error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

func testEmptyTopic(t *testing.T, factory brokerFactory) {
	b := factory(t)
	if _, err := b.Publish(context.Background(), "", nil); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(\"\") error = %v, want ErrInvalidTopic", err)
	}
}
