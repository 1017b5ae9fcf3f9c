package widget

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/document"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/segment"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/store"
)

// Alert shows every pending alert record once, lowest priority value first.
type Alert struct {
	runner
	cfg *document.AlertConfig
}

func (a *Alert) Run(ctx context.Context) error {
	alerts := a.Pending(ctx)
	if len(alerts) == 0 {
		a.Log.Debug("no alerts")
		return nil
	}

	for _, alert := range alerts {
		if !a.OkayToRun() {
			return nil
		}
		shown, err := a.show(ctx, alert)
		if err != nil {
			return err
		}
		if !shown {
			return nil
		}
		if alert.DeleteAfterDisplay {
			if _, err := a.Store.Del(ctx, alert.Key()); err != nil {
				a.Log.Warn("delete alert", "id", alert.ID, "err", err)
			}
		}
	}
	return nil
}

// show reports whether the alert ran its full display duration.
func (a *Alert) show(ctx context.Context, alert document.Alert) (bool, error) {
	d := seconds(alert.DisplayDuration)
	if utf8.RuneCountInString(alert.Message) <= segment.Digits {
		if err := a.Display.ShowText(alert.Message); err != nil {
			return false, fmt.Errorf("widget: alert: %w", err)
		}
		return !a.SleepOrInterrupt(ctx, d), nil
	}
	if d <= 0 {
		// zero would scroll forever
		d = seconds(document.DefaultDuration)
	}
	if err := a.scroll(ctx, alert.Message, a.cfg.Scroll, d); err != nil {
		return false, err
	}
	return !a.Changed.IsSet() && ctx.Err() == nil, nil
}

// Pending scans the store for alert records and returns them sorted by
// priority then timestamp. Records that fail to read or parse are logged and
// skipped.
func (a *Alert) Pending(ctx context.Context) []document.Alert {
	if a.Store == nil {
		return nil
	}
	keys, err := a.Store.Scan(ctx, document.AlertPattern)
	if err != nil {
		a.Log.Warn("scan alerts", "err", err)
		return nil
	}
	alerts := make([]document.Alert, 0, len(keys))
	for _, key := range keys {
		data, err := a.Store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue // expired between scan and read
		}
		if err != nil {
			a.Log.Warn("read alert", "key", key, "err", err)
			continue
		}
		alert, err := document.ParseAlert(key, data)
		if err != nil {
			a.Log.Error("parse alert", "key", key, "err", err)
			continue
		}
		alerts = append(alerts, alert)
	}
	document.SortAlerts(alerts)
	return alerts
}
