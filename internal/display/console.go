package display

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/segment"
)

// Console logs each frame as text at debug level.
type Console struct {
	log *log.Logger

	mu         sync.Mutex
	brightness int
}

// NewConsole returns a Console writing to logger.
func NewConsole(logger *log.Logger) *Console {
	return &Console{log: logger, brightness: DefaultBrightness}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Brightness() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.brightness
}

func (c *Console) SetBrightness(level int) error {
	if err := checkBrightness(level); err != nil {
		return err
	}
	c.mu.Lock()
	c.brightness = level
	c.mu.Unlock()
	c.log.Debug("brightness", "level", level)
	return nil
}

func (c *Console) Render(segments []byte, colon bool) error {
	if err := checkFrame(segments); err != nil {
		return err
	}
	c.log.Debug("display", "text", segment.ReverseString(segments), "colon", colon, "raw", segments)
	return nil
}

func (c *Console) Clear() error {
	c.log.Debug("clear")
	return nil
}
