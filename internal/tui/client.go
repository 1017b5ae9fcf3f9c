package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/display"
)

// DefaultRetry is the pause between reconnect attempts.
const DefaultRetry = 2 * time.Second

// Update is one observation from the display websocket: a new state, or a
// change in connection status.
type Update struct {
	At        time.Time
	Connected bool
	State     *display.State
	Err       error
}

// Watch connects to a display websocket and reports every state message on
// the returned channel, reconnecting after retry whenever the connection is
// lost. The channel is closed once ctx is done.
func Watch(ctx context.Context, url string, retry time.Duration) <-chan Update {
	if retry <= 0 {
		retry = DefaultRetry
	}
	out := make(chan Update, 16)
	go func() {
		defer close(out)
		for {
			err := watchOnce(ctx, url, out)
			if ctx.Err() != nil {
				return
			}
			if !send(ctx, out, Update{At: time.Now(), Err: err}) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(retry):
			}
		}
	}()
	return out
}

func watchOnce(ctx context.Context, url string, out chan<- Update) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("monitor: dial %s: %w", url, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if !send(ctx, out, Update{At: time.Now(), Connected: true}) {
		return ctx.Err()
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("monitor: read: %w", err)
		}
		var st display.State
		if err := json.Unmarshal(data, &st); err != nil {
			continue
		}
		if !send(ctx, out, Update{At: time.Now(), Connected: true, State: &st}) {
			return ctx.Err()
		}
	}
}

func send(ctx context.Context, out chan<- Update, u Update) bool {
	select {
	case out <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
