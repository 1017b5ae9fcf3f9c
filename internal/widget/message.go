package widget

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/document"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/segment"
)

// Message shows static text, or text read from a store key, scrolling it
// when it does not fit.
type Message struct {
	runner
	cfg *document.MessageConfig
}

func (m *Message) Run(ctx context.Context) error {
	for m.OkayToRun() {
		text := m.content(ctx)
		if utf8.RuneCountInString(text) > segment.Digits {
			if err := m.scroll(ctx, text, m.cfg.Scroll, m.duration); err != nil {
				return err
			}
		} else if err := m.Display.ShowText(text); err != nil {
			return fmt.Errorf("widget: message: %w", err)
		}
		if m.SleepOrInterrupt(ctx, seconds(m.cfg.SleepBeforeRepeat)) {
			return nil
		}
	}
	return nil
}

// content resolves the text for one cycle, falling back to the static
// message when the dynamic source is unavailable.
func (m *Message) content(ctx context.Context) string {
	if m.cfg.DynamicSource == "" {
		return m.cfg.Message
	}
	if m.Store == nil {
		m.Log.Warn("no store for dynamic source", "key", m.cfg.DynamicSource)
		return m.cfg.Message
	}
	b, err := m.Store.Get(ctx, m.cfg.DynamicSource)
	if err != nil || len(b) == 0 {
		m.Log.Warn("dynamic source unavailable", "key", m.cfg.DynamicSource, "err", err)
		return m.cfg.Message
	}
	m.Log.Debug("dynamic message", "key", m.cfg.DynamicSource, "text", string(b))
	return string(b)
}
