package engine

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/display"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/document"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/signal"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/store"
)

const (
	hiConfig = `{"widgets":[{"widget_type":"message","message":"HI","duration":5}]}`
	okConfig = `{"widgets":[{"widget_type":"message","message":"OK","duration":5}]}`
)

var (
	hiDigits = [4]int{0x76, 0x30, 0, 0}
	okDigits = [4]int{0x3F, 0x76, 0, 0}
)

func discard() *log.Logger { return log.New(io.Discard) }

// recorder collects events from a hook.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) hook(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func receiveSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("no snapshot received")
		return Snapshot{}
	}
}

func expectNoSnapshot(t *testing.T, ch <-chan Snapshot) {
	t.Helper()
	select {
	case s := <-ch:
		t.Fatalf("unexpected snapshot %s", s.Hash)
	case <-time.After(300 * time.Millisecond):
	}
}

type listenerHarness struct {
	store     *store.Memory
	listener  *Listener
	snapshots chan Snapshot
	done      chan error
	cancel    context.CancelFunc
}

func startListener(t *testing.T, initial string, hook func(Event)) *listenerHarness {
	t.Helper()
	mem := store.NewMemory(0)
	if initial != "" {
		if err := mem.Set(context.Background(), document.ConfigKey, []byte(initial), 0); err != nil {
			t.Fatal(err)
		}
	}
	h := &listenerHarness{
		store:     mem,
		snapshots: make(chan Snapshot, SnapshotBuffer),
		done:      make(chan error, 1),
	}
	h.listener = &Listener{
		Store:     mem,
		Log:       discard(),
		Snapshots: h.snapshots,
		Changed:   signal.New(),
		Stop:      signal.New(),
		emitter:   emitter{hook: hook},
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.listener.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

// settle consumes the next snapshot and waits for the change signal it
// raises, then clears it.
func (h *listenerHarness) settle(t *testing.T) Snapshot {
	t.Helper()
	s := receiveSnapshot(t, h.snapshots)
	eventually(t, "change signal", h.listener.Changed.IsSet)
	h.listener.Changed.Clear()
	return s
}

func (h *listenerHarness) set(t *testing.T, key, value string) {
	t.Helper()
	if err := h.store.Set(context.Background(), key, []byte(value), 0); err != nil {
		t.Fatal(err)
	}
}

func TestNewSnapshot(t *testing.T) {
	a := NewSnapshot([]byte(hiConfig))
	b := NewSnapshot([]byte(hiConfig))
	c := NewSnapshot([]byte(okConfig))
	if a.Hash != b.Hash {
		t.Error("identical documents should hash identically")
	}
	if a.Hash == c.Hash {
		t.Error("different documents should hash differently")
	}
	if len(a.Hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(a.Hash))
	}
}

func TestListenerSuppressesIdenticalConfig(t *testing.T) {
	h := startListener(t, hiConfig, nil)

	first := h.settle(t)
	if string(first.Data) != hiConfig {
		t.Fatalf("snapshot = %s", first.Data)
	}

	h.set(t, document.ConfigKey, hiConfig)
	expectNoSnapshot(t, h.snapshots)
	if h.listener.Changed.IsSet() {
		t.Error("unchanged config should not raise the change signal")
	}

	h.set(t, document.ConfigKey, okConfig)
	second := h.settle(t)
	if second.Hash == first.Hash {
		t.Error("changed config should carry a new hash")
	}
}

func TestListenerAwaitsConfig(t *testing.T) {
	h := startListener(t, "", nil)
	expectNoSnapshot(t, h.snapshots)

	h.set(t, document.ConfigKey, hiConfig)
	s := receiveSnapshot(t, h.snapshots)
	if string(s.Data) != hiConfig {
		t.Errorf("snapshot = %s", s.Data)
	}
}

func TestListenerKeepsConfigWhenKeyRemoved(t *testing.T) {
	h := startListener(t, hiConfig, nil)
	h.settle(t)

	if _, err := h.store.Del(context.Background(), document.ConfigKey); err != nil {
		t.Fatal(err)
	}
	expectNoSnapshot(t, h.snapshots)
	if h.listener.Changed.IsSet() {
		t.Error("removing the config should not raise the change signal")
	}
}

func TestListenerAlertRepushesCurrent(t *testing.T) {
	rec := &recorder{}
	h := startListener(t, hiConfig, rec.hook)
	first := h.settle(t)

	h.set(t, document.AlertKey("a1"), `{"timestamp":1,"message":"HELLO"}`)
	again := receiveSnapshot(t, h.snapshots)
	if again.Hash != first.Hash {
		t.Error("alert should re-push the current snapshot")
	}
	eventually(t, "change signal", h.listener.Changed.IsSet)
	if rec.count(EventAlert) != 1 {
		t.Errorf("alert events = %d, want 1", rec.count(EventAlert))
	}
	h.listener.Changed.Clear()

	if _, err := h.store.Del(context.Background(), document.AlertKey("a1")); err != nil {
		t.Fatal(err)
	}
	expectNoSnapshot(t, h.snapshots)
	if h.listener.Changed.IsSet() {
		t.Error("deleting an alert should not interrupt the display")
	}
}

func TestListenerControlWords(t *testing.T) {
	t.Run("alert", func(t *testing.T) {
		h := startListener(t, hiConfig, nil)
		h.settle(t)

		if err := h.store.Publish(context.Background(), document.ControlChannel, document.ControlAlert); err != nil {
			t.Fatal(err)
		}
		eventually(t, "change signal", h.listener.Changed.IsSet)
		if h.listener.Stop.IsSet() {
			t.Error("ALERT should not stop")
		}
		expectNoSnapshot(t, h.snapshots)
	})

	t.Run("unknown word", func(t *testing.T) {
		h := startListener(t, hiConfig, nil)
		h.settle(t)

		if err := h.store.Publish(context.Background(), "kurokku:channel:other", "PAUSE"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(200 * time.Millisecond)
		if h.listener.Changed.IsSet() || h.listener.Stop.IsSet() {
			t.Error("unknown control word should be ignored")
		}
	})

	t.Run("stop", func(t *testing.T) {
		h := startListener(t, hiConfig, nil)
		h.settle(t)

		if err := h.store.Publish(context.Background(), "kurokku:channel:any", document.ControlStop); err != nil {
			t.Fatal(err)
		}
		select {
		case err := <-h.done:
			if err != nil {
				t.Errorf("Run = %v, want nil", err)
			}
			h.done <- nil
		case <-time.After(3 * time.Second):
			t.Fatal("listener did not return after STOP")
		}
		if !h.listener.Stop.IsSet() || !h.listener.Changed.IsSet() {
			t.Error("STOP should raise both signals")
		}
	})
}

func TestListenerCancelSetsStop(t *testing.T) {
	h := startListener(t, "", nil)
	h.cancel()
	select {
	case err := <-h.done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
		h.done <- nil
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not return after cancel")
	}
	if !h.listener.Stop.IsSet() {
		t.Error("cancel should raise the stop signal")
	}
}

type rendererHarness struct {
	renderer  *Renderer
	driver    *display.Broadcast
	snapshots chan Snapshot
	events    *recorder
	done      chan error
}

func startRenderer(t *testing.T, now func() time.Time) *rendererHarness {
	t.Helper()
	h := newRendererHarness(now)
	h.start(t)
	return h
}

func newRendererHarness(now func() time.Time) *rendererHarness {
	h := &rendererHarness{
		driver:    display.NewBroadcast(discard()),
		snapshots: make(chan Snapshot, SnapshotBuffer),
		events:    &recorder{},
		done:      make(chan error, 1),
	}
	h.renderer = &Renderer{
		Driver:    h.driver,
		Store:     store.NewMemory(0),
		Log:       discard(),
		Snapshots: h.snapshots,
		Changed:   signal.New(),
		Stop:      signal.New(),
		Now:       now,
		emitter:   emitter{hook: h.events.hook},
	}
	return h
}

func (h *rendererHarness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.done <- h.renderer.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
}

func (h *rendererHarness) send(doc string) {
	h.snapshots <- NewSnapshot([]byte(doc))
	h.renderer.Changed.Set()
}

func (h *rendererHarness) showing(want [4]int) func() bool {
	return func() bool { return h.driver.Current().Digits == want }
}

func (h *rendererHarness) stop(t *testing.T) {
	t.Helper()
	h.renderer.Stop.Set()
	select {
	case err := <-h.done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
		h.done <- nil
	case <-time.After(3 * time.Second):
		t.Fatal("renderer did not stop")
	}
}

func TestRendererAwaitsValidConfig(t *testing.T) {
	h := startRenderer(t, nil)

	time.Sleep(100 * time.Millisecond)
	if h.driver.Current().Digits != ([4]int{}) {
		t.Fatal("nothing should render before a config arrives")
	}

	h.send(`{"widgets":[{"widget_type":"bogus"}]}`)
	time.Sleep(100 * time.Millisecond)
	if h.driver.Current().Digits != ([4]int{}) {
		t.Fatal("an invalid config should not start rendering")
	}
	if h.events.count(EventError) != 1 {
		t.Errorf("error events = %d, want 1", h.events.count(EventError))
	}

	h.send(hiConfig)
	eventually(t, "HI on display", h.showing(hiDigits))
	if h.events.count(EventConfig) != 1 {
		t.Errorf("config events = %d, want 1", h.events.count(EventConfig))
	}

	h.stop(t)
	if h.driver.Current().Digits != ([4]int{}) {
		t.Error("stopping should clear the display")
	}
	if h.events.count(EventStopped) != 1 {
		t.Errorf("stopped events = %d, want 1", h.events.count(EventStopped))
	}
	if h.renderer.State() != StateStopped {
		t.Errorf("state = %v, want stopped", h.renderer.State())
	}
}

func TestRendererReloadsOnChange(t *testing.T) {
	h := startRenderer(t, nil)
	h.send(hiConfig)
	eventually(t, "HI on display", h.showing(hiDigits))

	start := time.Now()
	h.send(okConfig)
	eventually(t, "OK on display", h.showing(okDigits))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("reload took %v; the running widget should yield immediately", elapsed)
	}
	h.stop(t)
}

func TestRendererKeepsConfigOnInvalidReload(t *testing.T) {
	h := startRenderer(t, nil)
	h.send(hiConfig)
	eventually(t, "HI on display", h.showing(hiDigits))

	h.send(`{"widgets":[{"widget_type":"message","scroll_speed":-1}]}`)
	eventually(t, "error event", func() bool { return h.events.count(EventError) == 1 })
	time.Sleep(100 * time.Millisecond)
	if !h.showing(hiDigits)() {
		t.Errorf("display = %v, want previous config kept", h.driver.Current().Digits)
	}
	h.stop(t)
}

func TestRendererKeepsLatestQueuedSnapshot(t *testing.T) {
	h := startRenderer(t, nil)
	h.send(hiConfig)
	eventually(t, "HI on display", h.showing(hiDigits))

	h.snapshots <- NewSnapshot([]byte(`{"widgets":[{"widget_type":"message","message":"AAAA","duration":5}]}`))
	h.snapshots <- NewSnapshot([]byte(okConfig))
	h.renderer.Changed.Set()
	eventually(t, "OK on display", h.showing(okDigits))
	h.stop(t)
}

func TestRendererAppliesSnapshotsQueuedBeforeStart(t *testing.T) {
	h := newRendererHarness(nil)
	h.send(hiConfig)
	h.send(okConfig)
	h.start(t)

	eventually(t, "OK on display", h.showing(okDigits))
	if n := len(h.snapshots); n != 0 {
		t.Errorf("queued snapshots = %d, want 0", n)
	}
	if h.events.count(EventConfig) != 2 {
		t.Errorf("config events = %d, want 2", h.events.count(EventConfig))
	}
	h.stop(t)
}

func TestRendererBrightnessSchedule(t *testing.T) {
	noon := time.Date(2026, 10, 19, 12, 0, 0, 0, time.Local)
	began := time.Now()
	now := func() time.Time { return noon.Add(time.Since(began)) }

	tests := []struct {
		name     string
		schedule string
		want     int
	}{
		{"inside window", `{"begin":"06:00","end":"22:00","high":5,"low":1}`, 5},
		{"outside window", `{"begin":"13:00","end":"22:00","high":5,"low":1}`, 1},
		{"default schedule", `null`, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := startRenderer(t, now)
			h.send(`{"widgets":[{"widget_type":"message","message":"HI","duration":5}],"brightness":` + tt.schedule + `}`)
			eventually(t, "HI on display", h.showing(hiDigits))
			if got := h.driver.Current().Brightness; got != tt.want {
				t.Errorf("brightness = %d, want %d", got, tt.want)
			}
			h.stop(t)
		})
	}
}

func TestRendererSkipsDisabledWidgets(t *testing.T) {
	h := startRenderer(t, nil)
	h.send(`{"widgets":[
		{"widget_type":"message","message":"HI","enabled":false},
		{"widget_type":"message","message":"OK","duration":5}
	]}`)
	eventually(t, "OK on display", h.showing(okDigits))
	h.stop(t)
}

func TestRendererIdlesWhenNothingRenders(t *testing.T) {
	h := startRenderer(t, nil)
	h.send(`{"widgets":[{"widget_type":"alert"}]}`)
	eventually(t, "config applied", func() bool { return h.events.count(EventConfig) == 1 })

	time.Sleep(600 * time.Millisecond)
	// One pass per MinPass at most.
	if n := h.events.count(EventWidget); n > 4 {
		t.Errorf("widget starts = %d in 600ms; the loop should not spin", n)
	}
	h.stop(t)
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateAwaitingConfig, "awaiting-config"},
		{StateRendering, "rendering"},
		{StateReloading, "reloading"},
		{StateStopped, "stopped"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestEventKindString(t *testing.T) {
	tests := []struct {
		k    EventKind
		want string
	}{
		{EventInfo, "info"},
		{EventConfig, "config"},
		{EventWidget, "widget"},
		{EventBrightness, "brightness"},
		{EventAlert, "alert"},
		{EventWidgetError, "widget_error"},
		{EventError, "error"},
		{EventStopped, "stopped"},
		{EventSupervisor, "supervisor"},
		{EventKind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("EventKind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}

func TestEmitterDropsWhenFull(t *testing.T) {
	ch := make(chan Event, 1)
	var hooked int
	e := emitter{events: ch, hook: func(Event) { hooked++ }}
	e.emit(Event{Kind: EventInfo})
	e.emit(Event{Kind: EventInfo})
	if len(ch) != 1 {
		t.Errorf("channel holds %d events, want 1", len(ch))
	}
	if hooked != 2 {
		t.Errorf("hook called %d times, want 2", hooked)
	}
	if ev := <-ch; ev.Timestamp.IsZero() {
		t.Error("emit should stamp events")
	}
}

func TestEngineEndToEnd(t *testing.T) {
	mem := store.NewMemory(0)
	driver := display.NewBroadcast(discard())
	rec := &recorder{}
	var beats int
	var beatMu sync.Mutex

	eng, err := New(Options{
		Store:  mem,
		Driver: driver,
		Log:    discard(),
		Hook:   rec.hook,
		Heartbeat: func() {
			beatMu.Lock()
			beats++
			beatMu.Unlock()
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- eng.Run(context.Background()) }()

	if err := mem.Set(context.Background(), document.ConfigKey, []byte(hiConfig), 0); err != nil {
		t.Fatal(err)
	}
	eventually(t, "HI on display", func() bool { return driver.Current().Digits == hiDigits })

	if err := mem.Set(context.Background(), document.ConfigKey, []byte(okConfig), 0); err != nil {
		t.Fatal(err)
	}
	eventually(t, "OK on display", func() bool { return driver.Current().Digits == okDigits })

	if err := mem.Publish(context.Background(), document.ControlChannel, document.ControlStop); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop")
	}

	if rec.count(EventStopped) != 1 {
		t.Errorf("stopped events = %d, want 1", rec.count(EventStopped))
	}
	beatMu.Lock()
	defer beatMu.Unlock()
	if beats == 0 {
		t.Error("heartbeat never fired")
	}
}

func TestEngineCancel(t *testing.T) {
	eng, err := New(Options{Store: store.NewMemory(0), Driver: display.NewBroadcast(discard())})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop on cancel")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{Driver: display.NewConsole(discard())}); err == nil {
		t.Error("New without a store should fail")
	}
	if _, err := New(Options{Store: store.NewMemory(0)}); err == nil {
		t.Error("New without a driver should fail")
	}
}
