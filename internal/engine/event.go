package engine

import "time"

// EventKind identifies the type of an engine event.
type EventKind int

const (
	EventInfo        EventKind = iota // General informational message
	EventConfig                       // A configuration snapshot was applied
	EventWidget                       // A widget started
	EventBrightness                   // Brightness level changed
	EventAlert                        // Alert notification received
	EventWidgetError                  // A widget failed; the pass continues
	EventError                        // Engine-level failure
	EventStopped                      // Render loop stopped
	EventSupervisor                   // Supervisor message
)

func (k EventKind) String() string {
	switch k {
	case EventInfo:
		return "info"
	case EventConfig:
		return "config"
	case EventWidget:
		return "widget"
	case EventBrightness:
		return "brightness"
	case EventAlert:
		return "alert"
	case EventWidgetError:
		return "widget_error"
	case EventError:
		return "error"
	case EventStopped:
		return "stopped"
	case EventSupervisor:
		return "supervisor"
	default:
		return "unknown"
	}
}

// Event is a structured record of something the engine did. Events are
// delivered best-effort: a full channel drops them.
type Event struct {
	Kind      EventKind
	Timestamp time.Time
	Message   string

	Widget     string // widget_type for EventWidget and EventWidgetError
	Index      int    // position in the widgets list
	Brightness int    // level for EventBrightness
	Hash       string // snapshot hash for EventConfig
}

// emitter fans events out to an optional channel and an optional hook.
type emitter struct {
	events chan<- Event
	hook   func(Event)
}

func (e emitter) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if e.hook != nil {
		e.hook(ev)
	}
	if e.events == nil {
		return
	}
	select {
	case e.events <- ev:
	default:
	}
}
