package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a go-redis client.
type Redis struct {
	client *redis.Client
	db     int
}

// RedisOptions addresses the server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis returns a client for opts. It does not dial until first use.
func NewRedis(opts RedisOptions) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		db: opts.DB,
	}
}

// DB is the logical database index, which keyspace channel names embed.
func (r *Redis) DB() int { return r.db }

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", key, err)
	}
	return b, nil
}

func (r *Redis) Scan(ctx context.Context, match string) ([]string, error) {
	var keys []string
	seen := make(map[string]struct{})
	iter := r.client.Scan(ctx, 0, match, 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: scan %s: %w", match, err)
	}
	return keys, nil
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("store: ttl %s: %w", key, err)
	}
	if d == -2 {
		return 0, ErrNotFound
	}
	return d, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Del(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("store: del: %w", err)
	}
	return int(n), nil
}

func (r *Redis) Publish(ctx context.Context, channel, payload string) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("store: publish %s: %w", channel, err)
	}
	return nil
}

func (r *Redis) PSubscribe(ctx context.Context, patterns ...string) (Subscription, error) {
	ps := r.client.PSubscribe(ctx, patterns...)
	// Wait for the subscribe confirmation so no event is missed afterwards.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("store: psubscribe: %w", err)
	}
	return &redisSubscription{ps: ps}, nil
}

func (r *Redis) EnableKeyspaceEvents(ctx context.Context) error {
	if err := r.client.ConfigSet(ctx, "notify-keyspace-events", "KEA").Err(); err != nil {
		return fmt.Errorf("store: enable keyspace events: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type redisSubscription struct {
	ps *redis.PubSub
}

func (s *redisSubscription) Receive(ctx context.Context, timeout time.Duration) (*Message, error) {
	msg, err := s.ps.ReceiveTimeout(ctx, timeout)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("store: receive: %w", err)
	}
	if m, ok := msg.(*redis.Message); ok {
		return &Message{Pattern: m.Pattern, Channel: m.Channel, Payload: m.Payload}, nil
	}
	// subscription confirmations and pongs
	return nil, nil
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}
