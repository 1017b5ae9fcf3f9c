// Package store is the key-value and pub/sub backend the engine reads its
// configuration and alerts from. Redis is the production implementation;
// Memory backs tests and offline runs.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("store: key not found")

// Message is one pub/sub delivery. Pattern is the subscription pattern that
// matched Channel.
type Message struct {
	Pattern string
	Channel string
	Payload string
}

// Subscription delivers messages for a set of patterns.
type Subscription interface {
	// Receive waits up to timeout for the next message. It returns nil, nil
	// when the timeout elapses with nothing delivered.
	Receive(ctx context.Context, timeout time.Duration) (*Message, error)
	Close() error
}

// Reader reads keys.
type Reader interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Scan(ctx context.Context, match string) ([]string, error)
	// TTL returns the remaining time to live, or a negative duration when the
	// key has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Writer writes keys. A zero ttl means no expiry.
type Writer interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int, error)
}

// PubSub publishes and subscribes by pattern.
type PubSub interface {
	Publish(ctx context.Context, channel, payload string) error
	PSubscribe(ctx context.Context, patterns ...string) (Subscription, error)
	// EnableKeyspaceEvents turns on keyspace notifications for all keys.
	EnableKeyspaceEvents(ctx context.Context) error
}

// Store combines every capability the engine and the CLI need.
type Store interface {
	Reader
	Writer
	PubSub
	Close() error
}
