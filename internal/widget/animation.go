package widget

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/document"
)

// Animation plays a list of raw segment frames, optionally only in minutes
// matching a cron-style expression.
type Animation struct {
	runner
	cfg *document.AnimationConfig
}

func (a *Animation) Run(ctx context.Context) error {
	ok, err := CronMatch(a.cfg.CronMinute, a.Now().Minute())
	if err != nil {
		a.Log.Warn("cron_minute", "err", err)
		return nil
	}
	if !ok {
		a.Log.Debug("outside cron minute", "cron_minute", a.cfg.CronMinute)
		return nil
	}

	for a.OkayToRun() {
		frames := a.frames(ctx)
		if len(frames) == 0 {
			return nil
		}
		for _, f := range frames {
			if err := a.Display.ShowSegments(f.Segments, false); err != nil {
				return fmt.Errorf("widget: animation: %w", err)
			}
			d := a.cfg.ScrollSpeed
			if f.Duration != nil && *f.Duration > 0 {
				d = *f.Duration
			}
			if a.SleepOrInterrupt(ctx, seconds(d)) {
				return nil
			}
		}
		if !a.cfg.Repeat {
			return nil
		}
		if a.SleepOrInterrupt(ctx, seconds(a.cfg.SleepBeforeRepeat)) {
			return nil
		}
	}
	return nil
}

// frames resolves the frame list for one cycle. A dynamic source replaces
// the static frames when it can be read; individual bad frames are dropped.
func (a *Animation) frames(ctx context.Context) []document.Frame {
	if a.cfg.DynamicSource == "" || a.Store == nil {
		return a.cfg.Frames
	}
	data, err := a.Store.Get(ctx, a.cfg.DynamicSource)
	if err != nil {
		a.Log.Warn("dynamic source unavailable", "key", a.cfg.DynamicSource, "err", err)
		return a.cfg.Frames
	}
	frames, errs := document.ParseFrames(data)
	for _, err := range errs {
		a.Log.Error("dynamic frame", "key", a.cfg.DynamicSource, "err", err)
	}
	if frames == nil {
		return a.cfg.Frames
	}
	return frames
}

// CronMatch evaluates a minute field against minute. An empty expression or
// "*" always matches, "N" matches minute N and "N/step" or "*/step" matches
// minutes divisible by step.
func CronMatch(expr string, minute int) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "*" {
		return true, nil
	}
	if base, stepStr, found := strings.Cut(expr, "/"); found {
		if base != "*" {
			if _, err := parseMinute(base); err != nil {
				return false, fmt.Errorf("cron %q: %w", expr, err)
			}
		}
		step, err := strconv.Atoi(stepStr)
		if err != nil || step <= 0 {
			return false, fmt.Errorf("cron %q: step must be a positive integer", expr)
		}
		return minute%step == 0, nil
	}
	n, err := parseMinute(expr)
	if err != nil {
		return false, fmt.Errorf("cron %q: %w", expr, err)
	}
	return n == minute, nil
}

func parseMinute(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 59 {
		return 0, fmt.Errorf("minute must be 0-59")
	}
	return n, nil
}
