// Package notify sends fire-and-forget HTTP notifications for engine events.
// The primary use case is ntfy.sh, but any HTTP webhook works.
package notify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/engine"
)

// DefaultTitle is the X-Title header when none is given.
const DefaultTitle = "Kurokku"

// Error notifications are throttled: a widget failing on every pass would
// otherwise post several times a second.
const (
	errorInterval = 30 * time.Second
	errorBurst    = 3
)

// Notifier posts plain-text HTTP notifications for selected engine events.
type Notifier struct {
	url     string
	title   string
	onError bool
	onStop  bool
	client  *http.Client
	errors  *rate.Limiter
}

// New creates a Notifier. title is used as the X-Title header; if empty,
// DefaultTitle is used instead.
func New(notifURL, title string, onError, onStop bool) *Notifier {
	if title == "" {
		title = DefaultTitle
	}
	return &Notifier{
		url:     notifURL,
		title:   title,
		onError: onError,
		onStop:  onStop,
		client:  &http.Client{Timeout: 10 * time.Second},
		errors:  rate.NewLimiter(rate.Every(errorInterval), errorBurst),
	}
}

// Hook is an engine.Options.Hook-compatible function. It fires asynchronous
// POSTs for events that match the configured notification flags.
func (n *Notifier) Hook(ev engine.Event) {
	switch ev.Kind {
	case engine.EventError:
		if n.onError && n.errors.Allow() {
			go n.post("Error: " + ev.Message)
		}
	case engine.EventWidgetError:
		if n.onError && n.errors.Allow() {
			go n.post(fmt.Sprintf("Widget %s #%d failed: %s", ev.Widget, ev.Index, ev.Message))
		}
	case engine.EventStopped:
		if n.onStop {
			go n.post("Display stopped")
		}
	}
}

// post sends a plain-text POST to the configured URL. Errors are silently
// discarded so notification failures never interrupt rendering.
func (n *Notifier) post(message string) {
	req, err := http.NewRequest(http.MethodPost, n.url, strings.NewReader(message))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Title", n.title)
	resp, err := n.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
