package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func receive(t *testing.T, s Subscription) *Message {
	t.Helper()
	msg, err := s.Receive(context.Background(), 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	return msg
}

func TestMemory_KeyspaceNotifications(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	sub, err := m.PSubscribe(ctx, "__keyspace@0__:kurokku:config*", "__keyspace@0__:kurokku:alert*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sub.Close() }()

	// no events before keyspace notifications are enabled
	_ = m.Set(ctx, "kurokku:config", []byte("{}"), 0)
	if msg := receive(t, sub); msg != nil {
		t.Fatalf("unexpected event %+v", msg)
	}

	if err := m.EnableKeyspaceEvents(ctx); err != nil {
		t.Fatal(err)
	}
	_ = m.Set(ctx, "kurokku:config", []byte("{}"), 0)
	msg := receive(t, sub)
	if msg == nil {
		t.Fatal("expected keyspace event for config")
	}
	if msg.Pattern != "__keyspace@0__:kurokku:config*" || msg.Channel != "__keyspace@0__:kurokku:config" || msg.Payload != "set" {
		t.Errorf("event = %+v", msg)
	}

	_ = m.Set(ctx, "kurokku:alert:1", []byte("{}"), time.Minute)
	if msg := receive(t, sub); msg == nil || msg.Pattern != "__keyspace@0__:kurokku:alert*" {
		t.Errorf("alert event = %+v", msg)
	}

	if n, _ := m.Del(ctx, "kurokku:alert:1", "missing"); n != 1 {
		t.Errorf("Del = %d, want 1", n)
	}
	if msg := receive(t, sub); msg == nil || msg.Payload != "del" {
		t.Errorf("del event = %+v", msg)
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_ = m.Set(ctx, "kurokku:alert:a", []byte("x"), 10*time.Second)
	if ttl, err := m.TTL(ctx, "kurokku:alert:a"); err != nil || ttl != 10*time.Second {
		t.Errorf("TTL = %v, %v", ttl, err)
	}

	now = now.Add(10 * time.Second)
	if _, err := m.Get(ctx, "kurokku:alert:a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after expiry: %v", err)
	}
	if keys, _ := m.Scan(ctx, "kurokku:alert:*"); len(keys) != 0 {
		t.Errorf("Scan after expiry = %v", keys)
	}
}

func TestMemory_ScanSorted(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	for _, k := range []string{"kurokku:alert:b", "kurokku:alert:a", "kurokku:config"} {
		_ = m.Set(ctx, k, []byte("x"), 0)
	}
	keys, err := m.Scan(ctx, "kurokku:alert:*")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "kurokku:alert:a" || keys[1] != "kurokku:alert:b" {
		t.Errorf("Scan = %v", keys)
	}
}

func TestMemory_PublishAndClose(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	sub, _ := m.PSubscribe(ctx, "kurokku:channel:*")

	_ = m.Publish(ctx, "kurokku:channel:control", "ALERT")
	_ = m.Publish(ctx, "elsewhere", "STOP")
	msg := receive(t, sub)
	if msg == nil || msg.Payload != "ALERT" {
		t.Fatalf("got %+v, want ALERT", msg)
	}
	if msg := receive(t, sub); msg != nil {
		t.Errorf("unmatched channel delivered %+v", msg)
	}

	_ = sub.Close()
	_ = sub.Close()
	if _, err := sub.Receive(ctx, 10*time.Millisecond); err == nil {
		t.Error("Receive on closed subscription should fail")
	}
}

func TestMemory_ReceiveContextCancelled(t *testing.T) {
	m := NewMemory(0)
	sub, _ := m.PSubscribe(context.Background(), "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sub.Receive(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
