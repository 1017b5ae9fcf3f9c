package display

import (
	"fmt"

	"github.com/charmbracelet/log"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Default BCM pin names for the clock and data lines.
const (
	DefaultClkPin = "GPIO23"
	DefaultDioPin = "GPIO24"
)

// OpenGPIO initialises the host drivers and returns a Bus on the named pins.
func OpenGPIO(clkName, dioName string, logger *log.Logger, opts ...BusOption) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio: host init: %w", err)
	}
	clk := gpioreg.ByName(clkName)
	if clk == nil {
		return nil, fmt.Errorf("gpio: no pin named %q", clkName)
	}
	dio := gpioreg.ByName(dioName)
	if dio == nil {
		return nil, fmt.Errorf("gpio: no pin named %q", dioName)
	}
	logger.Debug("gpio pins", "clk", clk.Name(), "dio", dio.Name())
	return NewBus(clk, dio, logger, opts...)
}
