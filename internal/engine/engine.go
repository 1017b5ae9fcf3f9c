// Package engine ties the store listener to the render loop.
//
// The Listener watches the configuration key, alert keys and control
// channels and hands configuration snapshots to the Renderer over a channel,
// raising a change signal so running widgets yield. The Renderer walks the
// widget list of the newest valid snapshot until it is told to stop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/display"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/signal"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/store"
)

// SnapshotBuffer is the capacity of the listener to renderer queue.
const SnapshotBuffer = 16

// Options configure an Engine.
type Options struct {
	Store  store.Store
	DB     int // logical database, used in keyspace channel names
	Driver display.Driver
	Log    *log.Logger
	// Events receives engine events best-effort. Optional.
	Events chan<- Event
	// Hook is called synchronously for every event. Optional.
	Hook func(Event)
	// Now defaults to time.Now.
	Now func() time.Time
	// Heartbeat is called on every rendered frame and about once a second
	// while idle. Optional.
	Heartbeat func()
}

// Engine runs one listener and one render loop.
type Engine struct {
	opts Options
}

// New validates opts.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if opts.Driver == nil {
		return nil, fmt.Errorf("engine: display driver is required")
	}
	if opts.Log == nil {
		opts.Log = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{opts: opts}, nil
}

// Run blocks until a STOP control word arrives, the listener fails or ctx is
// cancelled. A clean stop returns nil.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshots := make(chan Snapshot, SnapshotBuffer)
	changed := signal.New()
	stop := signal.New()
	em := emitter{events: e.opts.Events, hook: e.opts.Hook}

	l := &Listener{
		Store:     e.opts.Store,
		DB:        e.opts.DB,
		Log:       e.opts.Log.WithPrefix("listener"),
		Snapshots: snapshots,
		Changed:   changed,
		Stop:      stop,
		emitter:   em,
	}
	r := &Renderer{
		Driver:    e.opts.Driver,
		Store:     e.opts.Store,
		Log:       e.opts.Log.WithPrefix("render"),
		Snapshots: snapshots,
		Changed:   changed,
		Stop:      stop,
		Now:       e.opts.Now,
		Heartbeat: e.opts.Heartbeat,
		emitter:   em,
	}

	em.emit(Event{Kind: EventInfo, Message: fmt.Sprintf("engine starting on %s display", e.opts.Driver.Name())})

	var (
		wg        sync.WaitGroup
		listenErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := l.Run(ctx); err != nil {
			listenErr = fmt.Errorf("engine: listener: %w", err)
			em.emit(Event{Kind: EventError, Message: listenErr.Error()})
		}
	}()

	renderErr := r.Run(ctx)
	cancel()
	wg.Wait()

	if renderErr != nil {
		renderErr = fmt.Errorf("engine: render: %w", renderErr)
	}
	return errors.Join(listenErr, renderErr)
}
