package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/store"
)

// Compile-time checks.
var (
	_ store.Store = (*store.Redis)(nil)
	_ store.Store = (*store.Memory)(nil)
)

func newRedis(t *testing.T) (*store.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := store.NewRedis(store.RedisOptions{Addr: mr.Addr()})
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis_GetSet(t *testing.T) {
	ctx := context.Background()
	r, _ := newRedis(t)

	if _, err := r.Get(ctx, "kurokku:config"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get missing: got %v, want ErrNotFound", err)
	}
	if err := r.Set(ctx, "kurokku:config", []byte(`{"widgets":[]}`), 0); err != nil {
		t.Fatal(err)
	}
	got, err := r.Get(ctx, "kurokku:config")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"widgets":[]}` {
		t.Errorf("Get = %q", got)
	}
	if ttl, err := r.TTL(ctx, "kurokku:config"); err != nil || ttl >= 0 {
		t.Errorf("TTL without expiry = %v, %v; want negative", ttl, err)
	}
}

func TestRedis_Ping(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedis(t)
	if err := r.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	mr.Close()
	if err := r.Ping(ctx); err == nil {
		t.Error("Ping after server shutdown should fail")
	}
}

func TestRedis_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedis(t)

	if err := r.Set(ctx, "kurokku:alert:a", []byte(`{}`), 300*time.Second); err != nil {
		t.Fatal(err)
	}
	ttl, err := r.TTL(ctx, "kurokku:alert:a")
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > 300*time.Second {
		t.Errorf("TTL = %v, want (0, 300s]", ttl)
	}

	mr.FastForward(301 * time.Second)
	if _, err := r.Get(ctx, "kurokku:alert:a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after expiry: got %v, want ErrNotFound", err)
	}
	if _, err := r.TTL(ctx, "kurokku:alert:a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("TTL after expiry: got %v, want ErrNotFound", err)
	}
}

func TestRedis_ScanAndDel(t *testing.T) {
	ctx := context.Background()
	r, _ := newRedis(t)

	for _, k := range []string{"kurokku:alert:1", "kurokku:alert:2", "kurokku:config", "other"} {
		if err := r.Set(ctx, k, []byte("x"), 0); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := r.Scan(ctx, "kurokku:alert:*")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("Scan = %v, want 2 alert keys", keys)
	}

	n, err := r.Del(ctx, keys...)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Del removed %d, want 2", n)
	}
	if n, _ := r.Del(ctx); n != 0 {
		t.Errorf("Del with no keys = %d", n)
	}
}

func TestRedis_PublishPSubscribe(t *testing.T) {
	ctx := context.Background()
	r, _ := newRedis(t)

	sub, err := r.PSubscribe(ctx, "kurokku:channel:*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sub.Close() }()

	if err := r.Publish(ctx, "kurokku:channel:control", "STOP"); err != nil {
		t.Fatal(err)
	}

	var msg *store.Message
	deadline := time.Now().Add(2 * time.Second)
	for msg == nil && time.Now().Before(deadline) {
		msg, err = sub.Receive(ctx, 200*time.Millisecond)
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
	}
	if msg == nil {
		t.Fatal("no message received")
	}
	if msg.Pattern != "kurokku:channel:*" || msg.Channel != "kurokku:channel:control" || msg.Payload != "STOP" {
		t.Errorf("message = %+v", msg)
	}
}

func TestRedis_ReceiveTimeout(t *testing.T) {
	ctx := context.Background()
	r, _ := newRedis(t)

	sub, err := r.PSubscribe(ctx, "kurokku:channel:*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = sub.Close() }()

	msg, err := sub.Receive(ctx, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if msg != nil {
		t.Errorf("expected no message, got %+v", msg)
	}
}
