package widget

import (
	"context"
	"fmt"
	"time"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/document"
)

// DefaultBlink24h is the colon cadence for 24-hour mode and 12-hour mornings.
var DefaultBlink24h = []document.BlinkPhase{
	{Colon: true, Seconds: 0.5},
	{Colon: false, Seconds: 0.5},
}

// DefaultBlink12hPM is the double blink that marks afternoon in 12-hour mode.
var DefaultBlink12hPM = []document.BlinkPhase{
	{Colon: true, Seconds: 0.15},
	{Colon: false, Seconds: 0.2},
	{Colon: true, Seconds: 0.15},
	{Colon: false, Seconds: 0.5},
}

// Clock shows the current time with a blinking colon.
type Clock struct {
	runner
	cfg *document.ClockConfig
}

func (c *Clock) Run(ctx context.Context) error {
	for c.OkayToRun() {
		for _, phase := range c.Phases(c.Now()) {
			hour, minute := c.Format(c.Now())
			if err := c.Display.ShowTime(hour, minute, phase.Colon); err != nil {
				return fmt.Errorf("widget: clock: %w", err)
			}
			if c.SleepOrInterrupt(ctx, seconds(phase.Seconds)) {
				return nil
			}
		}
	}
	return nil
}

// Phases returns the blink cadence that applies at now.
func (c *Clock) Phases(now time.Time) []document.BlinkPhase {
	if !c.cfg.Use24Hour && now.Hour() >= 12 {
		if len(c.cfg.Blink12hPM) > 0 {
			return c.cfg.Blink12hPM
		}
		return DefaultBlink12hPM
	}
	if len(c.cfg.Blink24h) > 0 {
		return c.cfg.Blink24h
	}
	return DefaultBlink24h
}

// Format returns the hour and minute to display at now.
func (c *Clock) Format(now time.Time) (hour, minute int) {
	hour = now.Hour()
	if !c.cfg.Use24Hour {
		hour = Hour12(hour)
	}
	return hour, now.Minute()
}

// Hour12 converts a 0-23 hour to the 12-hour dial: 0 becomes 12 and
// afternoon hours drop by 12.
func Hour12(hour int) int {
	switch {
	case hour == 0:
		return 12
	case hour > 12:
		return hour - 12
	default:
		return hour
	}
}
