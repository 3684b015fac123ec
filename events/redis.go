package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis Streams broker.
type RedisConfig struct {
	// Client is the Redis client to use. If nil, one is created for Addr.
	Client redis.UniversalClient

	// Addr is used when Client is nil.
	// Default: "localhost:6379"
	Addr string

	// KeyPrefix is prepended to every stream key.
	// Default: "todoauth:events:"
	KeyPrefix string

	// MaxLen caps each stream approximately.
	// Default: 10000
	MaxLen int64

	// Block is how long one XREAD waits before re-checking ctx.
	// Default: 1 second
	Block time.Duration
}

// Redis is a Broker backed by Redis Streams. Every subscriber reads the
// whole stream, so all API instances see every event.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
	maxLen    int64
	block     time.Duration
}

// NewRedis creates a Redis Streams broker.
func NewRedis(cfg RedisConfig) *Redis {
	client := cfg.Client
	if client == nil {
		addr := cfg.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		client = redis.NewClient(&redis.Options{Addr: addr})
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "todoauth:events:"
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 10000
	}
	if cfg.Block <= 0 {
		cfg.Block = time.Second
	}
	return &Redis{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		maxLen:    cfg.MaxLen,
		block:     cfg.Block,
	}
}

func (r *Redis) streamKey(topic string) string {
	return r.keyPrefix + "stream:" + topic
}

// Publish implements Broker.
func (r *Redis) Publish(ctx context.Context, topic string, data []byte) (string, error) {
	if topic == "" {
		return "", ErrInvalidTopic
	}
	key := r.streamKey(topic)
	id, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{"data": data},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("events: publish to %s: %w", key, err)
	}
	return id, nil
}

// Subscribe implements Broker.
func (r *Redis) Subscribe(ctx context.Context, topic, lastEventID string, h Handler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	key := r.streamKey(topic)

	startID := lastEventID
	if startID == "" {
		// Pin the start to the current tail so events published between
		// blocking reads are not skipped.
		latest, err := r.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("events: read tail of %s: %w", key, err)
		}
		startID = "0"
		if len(latest) > 0 {
			startID = latest[0].ID
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		streams, err := r.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{key, startID},
			Count:   16,
			Block:   r.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, redis.ErrClosed) {
				return ErrClosed
			}
			return fmt.Errorf("events: read from %s: %w", key, err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				startID = msg.ID
				data, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}
				if err := h(ctx, Envelope{ID: msg.ID, Data: []byte(data)}); err != nil {
					return err
				}
			}
		}
	}
}

// Ping implements Broker.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("events: ping: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Broker = (*Redis)(nil)
