// Package widget implements the four display widgets and the cooperative
// timing they share: a run-time cap, interruptible sleeps and scrolling text.
package widget

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/document"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/segment"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/signal"
)

// Display is the output surface widgets draw on. *display.Display satisfies it.
type Display interface {
	ShowText(s string) error
	ShowTime(hour, minute int, colon bool) error
	ShowSegments(segments []int, colon bool) error
}

// Store is the read path for alerts and dynamic sources.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Scan(ctx context.Context, match string) ([]string, error)
	Del(ctx context.Context, keys ...string) (int, error)
}

// Deps are the collaborators injected into every widget.
type Deps struct {
	Display Display
	Store   Store // optional; without it alerts and dynamic sources are empty
	Log     *log.Logger
	// Changed is raised when the configuration changes; widgets yield as soon
	// as they observe it.
	Changed *signal.Signal
	// Now defaults to time.Now.
	Now func() time.Time
	// Heartbeat, when set, is called at the start of every sleep and every
	// HeartbeatInterval while it lasts.
	Heartbeat func()
}

// HeartbeatInterval paces Heartbeat calls during long sleeps.
const HeartbeatInterval = time.Second

// Widget renders one configured entry until its time is up or it is
// interrupted.
type Widget interface {
	Run(ctx context.Context) error
}

// New builds the widget for cfg.
func New(cfg document.Widget, deps Deps) (Widget, error) {
	if deps.Display == nil {
		return nil, fmt.Errorf("widget: display is required")
	}
	if deps.Changed == nil {
		return nil, fmt.Errorf("widget: change signal is required")
	}
	deps = deps.withDefaults()

	switch c := cfg.(type) {
	case *document.ClockConfig:
		return &Clock{runner: newRunner(c.Base, deps, "clock"), cfg: c}, nil
	case *document.MessageConfig:
		return &Message{runner: newRunner(c.Base, deps, "message"), cfg: c}, nil
	case *document.AlertConfig:
		return &Alert{runner: newRunner(c.Base, deps, "alert"), cfg: c}, nil
	case *document.AnimationConfig:
		return &Animation{runner: newRunner(c.Base, deps, "animation"), cfg: c}, nil
	default:
		return nil, fmt.Errorf("widget: unsupported config %T", cfg)
	}
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = log.New(io.Discard)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Heartbeat == nil {
		d.Heartbeat = func() {}
	}
	return d
}

// runner carries the state every widget shares.
type runner struct {
	Deps
	duration time.Duration

	started bool
	start   time.Time
}

func newRunner(base document.Base, deps Deps, name string) runner {
	deps.Log = deps.Log.WithPrefix(name)
	return runner{
		Deps:     deps,
		duration: seconds(base.Duration),
	}
}

// OkayToRun reports whether the widget may keep going: the change signal is
// not raised and, when a duration is set, less than that much time has passed
// since the first call.
func (r *runner) OkayToRun() bool {
	now := r.Now()
	if !r.started {
		r.started = true
		r.start = now
	}
	if r.Changed.IsSet() {
		return false
	}
	return r.duration <= 0 || now.Sub(r.start) < r.duration
}

// SleepOrInterrupt waits for d and reports whether it was cut short by the
// change signal or by ctx.
func (r *runner) SleepOrInterrupt(ctx context.Context, d time.Duration) bool {
	if r.Changed.IsSet() || ctx.Err() != nil {
		return true
	}
	if d <= 0 {
		return false
	}
	r.Heartbeat()
	timer := time.NewTimer(d)
	defer timer.Stop()
	beat := time.NewTicker(HeartbeatInterval)
	defer beat.Stop()
	for {
		select {
		case <-timer.C:
			return r.Changed.IsSet()
		case <-beat.C:
			r.Heartbeat()
		case <-r.Changed.Wait():
			return true
		case <-ctx.Done():
			return true
		}
	}
}

// scroll moves text through the display window one position per
// ScrollSpeed. It stops when bound elapses (bound <= 0 means no bound), when
// OkayToRun fails or when a sleep is interrupted. Sleeps are clipped to the
// bound so the scroll lasts bound regardless of repeat.
func (r *runner) scroll(ctx context.Context, text string, p document.Scroll, bound time.Duration) error {
	w := NewWindow(text)
	start := r.Now()
	pause := func(d time.Duration) bool {
		if bound > 0 {
			if left := bound - r.Now().Sub(start); left < d {
				d = left
			}
		}
		return r.SleepOrInterrupt(ctx, d)
	}
	for r.OkayToRun() && (bound <= 0 || r.Now().Sub(start) < bound) {
		if err := r.Display.ShowText(w.Text()); err != nil {
			return fmt.Errorf("widget: scroll: %w", err)
		}
		if pause(seconds(p.ScrollSpeed)) {
			return nil
		}
		if w.Advance(p.Repeat) && pause(seconds(p.SleepBeforeRepeat)) {
			return nil
		}
	}
	return nil
}

// Window is the scrolling cursor over blank-padded text.
type Window struct {
	padded []rune
	cursor int
}

// NewWindow pads text with a display's worth of blanks on each side.
func NewWindow(text string) *Window {
	pad := make([]rune, segment.Digits)
	for i := range pad {
		pad[i] = ' '
	}
	padded := append(append(append([]rune{}, pad...), []rune(text)...), pad...)
	return &Window{padded: padded}
}

// Text is the currently visible slice.
func (w *Window) Text() string {
	return string(w.padded[w.cursor : w.cursor+segment.Digits])
}

// Period is the number of distinct positions a repeating scroll cycles
// through.
func (w *Window) Period() int {
	return len(w.padded) - segment.Digits + 1
}

// Advance moves the cursor one position. Past the last position it wraps to
// the start when repeat is set, reporting true, or stays on the last position.
func (w *Window) Advance(repeat bool) (wrapped bool) {
	w.cursor++
	last := len(w.padded) - segment.Digits
	if w.cursor > last {
		if repeat {
			w.cursor = 0
			return true
		}
		w.cursor = last
	}
	return false
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
