package store

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"
)

// memorySubscriptionBuffer bounds undelivered messages per subscription;
// further messages are dropped, matching pub/sub's at-most-once delivery.
const memorySubscriptionBuffer = 256

// Memory is an in-process Store. It emits Redis-style keyspace
// notifications ("__keyspace@<db>__:<key>" with the command name as payload)
// on every write once EnableKeyspaceEvents has been called.
type Memory struct {
	db  int
	now func() time.Time

	mu       sync.Mutex
	data     map[string]memoryEntry
	subs     map[*memorySubscription]struct{}
	keyspace bool
}

type memoryEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// NewMemory returns an empty Memory store for logical database db.
func NewMemory(db int) *Memory {
	return &Memory{
		db:   db,
		now:  time.Now,
		data: make(map[string]memoryEntry),
		subs: make(map[*memorySubscription]struct{}),
	}
}

// DB is the logical database index used in keyspace channel names.
func (m *Memory) DB() int { return m.db }

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (m *Memory) Scan(_ context.Context, match string) ([]string, error) {
	if _, err := path.Match(match, ""); err != nil {
		return nil, fmt.Errorf("store: scan %s: %w", match, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if _, ok := m.lookup(k); !ok {
			continue
		}
		if ok, _ := path.Match(match, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return 0, ErrNotFound
	}
	if e.expires.IsZero() {
		return -1, nil
	}
	return e.expires.Sub(m.now()), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = e
	m.notifyKeyspace(key, "set")
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := m.lookup(k); !ok {
			continue
		}
		delete(m.data, k)
		n++
		m.notifyKeyspace(k, "del")
	}
	return n, nil
}

func (m *Memory) Publish(_ context.Context, channel, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliver(channel, payload)
	return nil
}

func (m *Memory) PSubscribe(_ context.Context, patterns ...string) (Subscription, error) {
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("store: psubscribe %s: %w", p, err)
		}
	}
	s := &memorySubscription{
		m:        m,
		patterns: patterns,
		ch:       make(chan *Message, memorySubscriptionBuffer),
	}
	m.mu.Lock()
	m.subs[s] = struct{}{}
	m.mu.Unlock()
	return s, nil
}

func (m *Memory) EnableKeyspaceEvents(context.Context) error {
	m.mu.Lock()
	m.keyspace = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for s := range m.subs {
		delete(m.subs, s)
		close(s.ch)
	}
	return nil
}

// lookup must be called with mu held. Expired keys are evicted.
func (m *Memory) lookup(key string) (memoryEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.data, key)
		m.notifyKeyspace(key, "expired")
		return memoryEntry{}, false
	}
	return e, true
}

func (m *Memory) notifyKeyspace(key, event string) {
	if !m.keyspace {
		return
	}
	m.deliver(fmt.Sprintf("__keyspace@%d__:%s", m.db, key), event)
}

func (m *Memory) deliver(channel, payload string) {
	for s := range m.subs {
		for _, p := range s.patterns {
			if ok, _ := path.Match(p, channel); !ok {
				continue
			}
			select {
			case s.ch <- &Message{Pattern: p, Channel: channel, Payload: payload}:
			default:
			}
			break
		}
	}
}

type memorySubscription struct {
	m        *Memory
	patterns []string
	ch       chan *Message
}

func (s *memorySubscription) Receive(ctx context.Context, timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return nil, fmt.Errorf("store: receive: subscription closed")
		}
		return msg, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *memorySubscription) Close() error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.subs[s]; ok {
		delete(s.m.subs, s)
		close(s.ch)
	}
	return nil
}
