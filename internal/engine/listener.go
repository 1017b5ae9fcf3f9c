package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/document"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/signal"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/store"
)

// ReceiveTimeout bounds each wait for a notification so cancellation is
// observed at least this often.
const ReceiveTimeout = time.Second

// Snapshot is one configuration document as read from the store.
type Snapshot struct {
	Data []byte
	Hash string
}

// NewSnapshot hashes data.
func NewSnapshot(data []byte) Snapshot {
	sum := sha256.Sum256(data)
	return Snapshot{Data: data, Hash: hex.EncodeToString(sum[:])}
}

// alertEventsIgnored are keyspace events on alert keys that do not announce
// a new alert.
var alertEventsIgnored = map[string]bool{
	"del":     true,
	"expired": true,
	"evicted": true,
	"expire":  true,
}

// Listener turns store notifications into configuration snapshots and
// signals for the render loop.
type Listener struct {
	Store     store.Store
	DB        int
	Log       *log.Logger
	Snapshots chan<- Snapshot
	Changed   *signal.Signal
	Stop      *signal.Signal

	emitter
	current *Snapshot
}

// Run subscribes to configuration, alert and control notifications and
// reacts to them until a STOP word arrives or ctx is cancelled. Both set the
// stop signal before returning.
func (l *Listener) Run(ctx context.Context) error {
	defer l.Stop.Set()

	if err := l.Store.EnableKeyspaceEvents(ctx); err != nil {
		l.Log.Warn("keyspace notifications not enabled", "err", err)
	}

	configPattern := document.KeyspaceConfigPattern(l.DB)
	alertPattern := document.KeyspaceAlertPattern(l.DB)
	sub, err := l.Store.PSubscribe(ctx, configPattern, alertPattern, document.ChannelPattern)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()
	l.Log.Info("listening", "patterns", []string{configPattern, alertPattern, document.ChannelPattern})

	l.refresh(ctx)
	if l.current == nil {
		l.Log.Info("awaiting config", "key", document.ConfigKey)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := sub.Receive(ctx, ReceiveTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.Log.Warn("receive", "err", err)
			if !sleepCtx(ctx, ReceiveTimeout) {
				return nil
			}
			continue
		}
		if msg == nil {
			continue
		}

		switch msg.Pattern {
		case configPattern:
			l.Log.Debug("config event", "event", msg.Payload)
			l.refresh(ctx)
		case alertPattern:
			if alertEventsIgnored[msg.Payload] {
				l.Log.Debug("alert removed", "channel", msg.Channel, "event", msg.Payload)
				continue
			}
			l.Log.Info("alert event", "channel", msg.Channel, "event", msg.Payload)
			l.emit(Event{Kind: EventAlert, Message: msg.Channel})
			if l.current != nil {
				if !l.push(ctx, *l.current) {
					return nil
				}
			}
			l.Changed.Set()
		case document.ChannelPattern:
			switch msg.Payload {
			case document.ControlStop:
				l.Log.Info("stop requested", "channel", msg.Channel)
				l.Stop.Set()
				l.Changed.Set()
				return nil
			case document.ControlAlert:
				l.Log.Info("alert requested", "channel", msg.Channel)
				l.emit(Event{Kind: EventAlert, Message: msg.Channel})
				l.Changed.Set()
			default:
				l.Log.Warn("unknown control word", "channel", msg.Channel, "payload", msg.Payload)
			}
		default:
			l.Log.Warn("unexpected message", "pattern", msg.Pattern, "channel", msg.Channel)
		}
	}
}

// refresh re-reads the configuration and propagates it when its hash differs
// from the last one sent.
func (l *Listener) refresh(ctx context.Context) {
	data, err := l.Store.Get(ctx, document.ConfigKey)
	if errors.Is(err, store.ErrNotFound) {
		if l.current != nil {
			l.Log.Warn("config key removed, keeping current config")
		}
		return
	}
	if err != nil {
		l.Log.Warn("read config", "err", err)
		return
	}

	snap := NewSnapshot(data)
	if l.current != nil && l.current.Hash == snap.Hash {
		l.Log.Debug("config unchanged", "hash", snap.Hash[:12])
		return
	}
	l.current = &snap
	l.Log.Info("config changed", "hash", snap.Hash[:12])
	if l.push(ctx, snap) {
		l.Changed.Set()
	}
}

func (l *Listener) push(ctx context.Context, snap Snapshot) bool {
	select {
	case l.Snapshots <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
