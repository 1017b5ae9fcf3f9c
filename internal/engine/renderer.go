package engine

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/display"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/document"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/signal"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/widget"
)

// State is the render loop's lifecycle stage.
type State int

const (
	StateAwaitingConfig State = iota
	StateRendering
	StateReloading
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateAwaitingConfig:
		return "awaiting-config"
	case StateRendering:
		return "rendering"
	case StateReloading:
		return "reloading"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MinPass is the shortest time one pass over the widget list may take. A
// pass in which every widget returns at once (all disabled, no alerts,
// outside cron minutes) waits out the remainder instead of spinning.
const MinPass = 250 * time.Millisecond

// heartbeatInterval paces liveness reports while awaiting a configuration.
const heartbeatInterval = time.Second

// Renderer runs the widget list of the current snapshot on a driver.
type Renderer struct {
	Driver    display.Driver
	Store     widget.Store
	Log       *log.Logger
	Snapshots <-chan Snapshot
	Changed   *signal.Signal
	Stop      *signal.Signal
	Now       func() time.Time
	// Heartbeat, when set, is called on every frame and periodically while
	// idle.
	Heartbeat func()

	emitter
	state   State
	hash    string
	display *display.Display
}

type heartbeatDriver struct {
	display.Driver
	beat func()
}

func (d heartbeatDriver) Render(segments []byte, colon bool) error {
	d.beat()
	return d.Driver.Render(segments, colon)
}

// Run blocks until a valid snapshot arrives, then renders passes until the
// stop signal is raised or ctx is cancelled.
func (r *Renderer) Run(ctx context.Context) error {
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.Heartbeat == nil {
		r.Heartbeat = func() {}
	}
	r.display = display.NewDisplay(heartbeatDriver{Driver: r.Driver, beat: r.Heartbeat})

	r.setState(StateAwaitingConfig)
	cfg := r.await(ctx)
	if cfg == nil {
		r.finish()
		return nil
	}
	// Snapshots queued while awaiting supersede the first one.
	r.Changed.Clear()
	cfg = r.reload(cfg)

	for {
		if r.Stop.IsSet() || ctx.Err() != nil {
			r.finish()
			return nil
		}
		r.setState(StateRendering)
		r.applyBrightness(cfg)

		started := r.Now()
		r.pass(ctx, cfg)

		if r.Stop.IsSet() || ctx.Err() != nil {
			r.finish()
			return nil
		}
		if r.Changed.IsSet() {
			r.setState(StateReloading)
			r.Changed.Clear()
			cfg = r.reload(cfg)
			continue
		}
		if rest := MinPass - r.Now().Sub(started); rest > 0 {
			r.idle(ctx, rest)
		}
	}
}

// State returns the current lifecycle stage. Only safe to call from the
// goroutine running Run or after Run returns.
func (r *Renderer) State() State { return r.state }

func (r *Renderer) setState(s State) {
	if r.state == s && s != StateAwaitingConfig {
		return
	}
	r.state = s
	r.Log.Debug("state", "state", s)
}

func (r *Renderer) finish() {
	r.setState(StateStopped)
	if err := r.Driver.Clear(); err != nil {
		r.Log.Warn("clear display", "err", err)
	}
	r.emit(Event{Kind: EventStopped, Message: "render loop stopped"})
}

// await blocks for the first snapshot that decodes and validates.
func (r *Renderer) await(ctx context.Context) *document.Config {
	tick := time.NewTicker(heartbeatInterval)
	defer tick.Stop()
	for {
		select {
		case snap := <-r.Snapshots:
			if cfg := r.apply(snap); cfg != nil {
				return cfg
			}
		case <-tick.C:
			r.Heartbeat()
		case <-r.Stop.Wait():
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// reload drains every queued snapshot in order and returns the last valid
// one, or current when none is valid or none is queued.
func (r *Renderer) reload(current *document.Config) *document.Config {
	cfg := current
	for {
		select {
		case snap := <-r.Snapshots:
			if snap.Hash == r.hash {
				continue
			}
			if next := r.apply(snap); next != nil {
				cfg = next
			}
		default:
			return cfg
		}
	}
}

// apply decodes snap, returning nil when it is invalid.
func (r *Renderer) apply(snap Snapshot) *document.Config {
	cfg, err := document.ParseConfig(snap.Data)
	if err != nil {
		r.Log.Error("invalid config", "hash", short(snap.Hash), "err", err)
		r.emit(Event{Kind: EventError, Message: err.Error(), Hash: snap.Hash})
		return nil
	}
	r.hash = snap.Hash
	r.Log.Info("config applied", "hash", short(snap.Hash), "widgets", len(cfg.Widgets))
	r.emit(Event{Kind: EventConfig, Message: "config applied", Hash: snap.Hash})
	return cfg
}

func (r *Renderer) applyBrightness(cfg *document.Config) {
	level := cfg.Brightness.Level(r.Now())
	if level == r.Driver.Brightness() {
		return
	}
	if err := r.Driver.SetBrightness(level); err != nil {
		r.Log.Warn("set brightness", "level", level, "err", err)
		return
	}
	r.emit(Event{Kind: EventBrightness, Brightness: level})
}

// pass runs each enabled widget in order until the list ends or a change or
// stop is signalled.
func (r *Renderer) pass(ctx context.Context, cfg *document.Config) {
	deps := widget.Deps{
		Display:   r.display,
		Store:     r.Store,
		Log:       r.Log,
		Changed:   r.Changed,
		Now:       r.Now,
		Heartbeat: r.Heartbeat,
	}
	for i, wc := range cfg.Widgets {
		if r.Changed.IsSet() || r.Stop.IsSet() || ctx.Err() != nil {
			return
		}
		base := wc.Common()
		if !base.Enabled {
			continue
		}
		w, err := widget.New(wc, deps)
		if err != nil {
			r.Log.Error("build widget", "index", i, "widget", base.Type, "err", err)
			continue
		}
		r.emit(Event{Kind: EventWidget, Widget: string(base.Type), Index: i})
		if err := w.Run(ctx); err != nil {
			r.Log.Error("widget failed", "index", i, "widget", base.Type, "err", err)
			r.emit(Event{Kind: EventWidgetError, Widget: string(base.Type), Index: i, Message: err.Error()})
		}
	}
}

func (r *Renderer) idle(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.Changed.Wait():
	case <-r.Stop.Wait():
	case <-ctx.Done():
	}
	r.Heartbeat()
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
