package display

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Kind names a driver backend.
type Kind string

const (
	KindAuto      Kind = "auto"
	KindLED       Kind = "led"
	KindConsole   Kind = "console"
	KindTerminal  Kind = "terminal"
	KindBroadcast Kind = "broadcast"
)

// Options configures Open.
type Options struct {
	Logger   *log.Logger
	Out      io.Writer // terminal output; defaults to os.Stdout
	ClkPin   string
	DioPin   string
	BitDelay time.Duration
}

// Open builds the driver for kind. KindAuto uses the LED bus when GPIO is
// available and falls back to the terminal driver otherwise.
func Open(kind Kind, opts Options) (Driver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	clk, dio := opts.ClkPin, opts.DioPin
	if clk == "" {
		clk = DefaultClkPin
	}
	if dio == "" {
		dio = DefaultDioPin
	}
	var busOpts []BusOption
	if opts.BitDelay > 0 {
		busOpts = append(busOpts, WithBitDelay(opts.BitDelay))
	}

	switch kind {
	case KindLED:
		return OpenGPIO(clk, dio, logger, busOpts...)
	case KindConsole:
		return NewConsole(logger), nil
	case KindTerminal:
		return NewTerminal(out), nil
	case KindBroadcast:
		return NewBroadcast(logger), nil
	case KindAuto, "":
		bus, err := OpenGPIO(clk, dio, logger, busOpts...)
		if err == nil {
			return bus, nil
		}
		logger.Info("gpio unavailable, using terminal display", "err", err)
		return NewTerminal(out), nil
	default:
		return nil, fmt.Errorf("display: unknown driver %q", kind)
	}
}
