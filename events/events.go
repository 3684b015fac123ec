// Package events fans out application events to subscribers.
//
// Two brokers are provided: Memory for single-node deployments and
// tests, and Redis (Redis Streams) when several API instances must see
// the same events.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for broker operations.
var (
	ErrClosed       = errors.New("events: broker closed")
	ErrInvalidTopic = errors.New("events: topic is required")
)

// TopicTodoCreated carries TodoCreated events.
const TopicTodoCreated = "todos.created"

// Envelope is a delivered event.
type Envelope struct {
	// ID is unique and increasing within a topic.
	ID   string `json:"id"`
	Data []byte `json:"data"`
}

// Handler receives events. Returning an error stops the subscription and
// Subscribe returns that error.
type Handler func(ctx context.Context, env Envelope) error

// Broker publishes and delivers events by topic.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ordering: events within a topic are delivered in publish order.
// - Subscribe blocks until ctx is done, the handler fails or the broker
// closes. An empty lastEventID starts after the newest event.
type Broker interface {
	Publish(ctx context.Context, topic string, data []byte) (eventID string, err error)
	Subscribe(ctx context.Context, topic, lastEventID string, h Handler) error
	Ping(ctx context.Context) error
	Close() error
}

// TodoCreated is published after a todo is stored.
type TodoCreated struct {
	ID    string `json:"id"`
	Owner string `json:"owner,omitempty"`
}

// PublishTodoCreated encodes and publishes a TodoCreated event.
func PublishTodoCreated(ctx context.Context, b Broker, ev TodoCreated) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("events: encode: %w", err)
	}
	return b.Publish(ctx, TopicTodoCreated, data)
}

// DecodeTodoCreated decodes an envelope published by PublishTodoCreated.
func DecodeTodoCreated(env Envelope) (TodoCreated, error) {
	var ev TodoCreated
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		return TodoCreated{}, fmt.Errorf("events: decode: %w", err)
	}
	return ev, nil
}
