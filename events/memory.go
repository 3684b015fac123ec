package events

import (
	"context"
	"strconv"
	"sync"
)

// DefaultHistory is how many events per topic Memory keeps for resumption.
const DefaultHistory = 256

// Memory is an in-process Broker. Slow subscribers whose buffer is full
// miss events rather than blocking publishers.
type Memory struct {
	mu      sync.Mutex
	topics  map[string]*memTopic
	history int
	closed  bool
	done    chan struct{}
}

type memTopic struct {
	seq    int64
	events []Envelope
	subs   map[chan Envelope]struct{}
}

// NewMemory creates an in-memory broker that keeps history events per
// topic. history <= 0 uses DefaultHistory.
func NewMemory(history int) *Memory {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Memory{
		topics:  make(map[string]*memTopic),
		history: history,
		done:    make(chan struct{}),
	}
}

func (m *Memory) topicLocked(name string) *memTopic {
	t, ok := m.topics[name]
	if !ok {
		t = &memTopic{subs: make(map[chan Envelope]struct{})}
		m.topics[name] = t
	}
	return t
}

// Publish implements Broker.
func (m *Memory) Publish(ctx context.Context, topic string, data []byte) (string, error) {
	if topic == "" {
		return "", ErrInvalidTopic
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}

	t := m.topicLocked(topic)
	t.seq++
	env := Envelope{ID: strconv.FormatInt(t.seq, 10), Data: append([]byte(nil), data...)}
	t.events = append(t.events, env)
	if len(t.events) > m.history {
		t.events = t.events[len(t.events)-m.history:]
	}
	for ch := range t.subs {
		select {
		case ch <- env:
		default:
		}
	}
	return env.ID, nil
}

// Subscribe implements Broker. A lastEventID still in history replays the
// events after it.
func (m *Memory) Subscribe(ctx context.Context, topic, lastEventID string, h Handler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	ch := make(chan Envelope, 64)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	t := m.topicLocked(topic)
	var backlog []Envelope
	if lastEventID != "" {
		for i, env := range t.events {
			if env.ID == lastEventID {
				backlog = append(backlog, t.events[i+1:]...)
				break
			}
		}
	}
	t.subs[ch] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(t.subs, ch)
		m.mu.Unlock()
	}()

	for _, env := range backlog {
		if err := h(ctx, env); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return ErrClosed
		case env := <-ch:
			if err := h(ctx, env); err != nil {
				return err
			}
		}
	}
}

// Subscribers returns the number of active subscriptions on topic.
func (m *Memory) Subscribers(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.topics[topic]; ok {
		return len(t.subs)
	}
	return 0
}

// Ping implements Broker.
func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close stops every subscription. It is idempotent.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

var _ Broker = (*Memory)(nil)
