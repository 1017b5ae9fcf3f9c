package display

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"periph.io/x/conn/v3/gpio"
)

// TM1637 commands.
const (
	cmdAutoIncrement = 0x40
	cmdStartAddress  = 0xC0
	cmdDisplayOn     = 0x88
)

// Bus timing defaults.
const (
	DefaultBitDelay   = 10 * time.Microsecond
	DefaultAckRetries = 100
)

// Line is the subset of a GPIO pin the bus protocol needs.
// periph's gpio.PinIO satisfies it.
type Line interface {
	Out(l gpio.Level) error
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

// Bus bit-bangs the TM1637 two-wire protocol over a clock and a data line.
type Bus struct {
	clk, dio   Line
	bitDelay   time.Duration
	ackRetries int
	log        *log.Logger

	mu         sync.Mutex
	brightness int
}

// BusOption customises a Bus.
type BusOption func(*Bus)

// WithBitDelay sets the busy-wait between clock transitions.
func WithBitDelay(d time.Duration) BusOption {
	return func(b *Bus) { b.bitDelay = d }
}

// WithAckRetries sets how many times the ACK bit is polled per byte.
func WithAckRetries(n int) BusOption {
	return func(b *Bus) { b.ackRetries = n }
}

// NewBus drives both lines high (bus idle) and returns the driver.
func NewBus(clk, dio Line, logger *log.Logger, opts ...BusOption) (*Bus, error) {
	b := &Bus{
		clk:        clk,
		dio:        dio,
		bitDelay:   DefaultBitDelay,
		ackRetries: DefaultAckRetries,
		log:        logger,
		brightness: DefaultBrightness,
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := clk.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("bus: init clk: %w", err)
	}
	if err := dio.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("bus: init dio: %w", err)
	}
	return b, nil
}

func (b *Bus) Name() string { return "led" }

func (b *Bus) Brightness() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.brightness
}

// SetBrightness stores level and sends the display-control command.
func (b *Bus) SetBrightness(level int) error {
	if err := checkBrightness(level); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.brightness = level
	tx := b.begin()
	tx.start()
	tx.writeByte(cmdDisplayOn | byte(level))
	tx.stop()
	return tx.err
}

// Render sends the auto-increment command, the four data bytes starting at
// address 0 and the brightness command. The colon is bit 7 of digit 1.
func (b *Bus) Render(segments []byte, colon bool) error {
	if err := checkFrame(segments); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	tx := b.begin()
	tx.start()
	tx.writeByte(cmdAutoIncrement)
	tx.stop()

	tx.start()
	tx.writeByte(cmdStartAddress)
	for i, seg := range segments {
		if colon && i == 1 {
			seg |= 0x80
		}
		tx.writeByte(seg)
	}
	tx.stop()

	tx.start()
	tx.writeByte(cmdDisplayOn | byte(b.brightness))
	tx.stop()

	if tx.missedAcks > 0 {
		b.log.Debug("ack timeout", "bytes", tx.missedAcks)
	}
	return tx.err
}

func (b *Bus) Clear() error {
	return b.Render([]byte{0, 0, 0, 0}, false)
}

func (b *Bus) begin() *busTx {
	return &busTx{bus: b}
}

// busTx sequences line transitions for one transfer and keeps the first
// error so callers check once at the end.
type busTx struct {
	bus        *Bus
	err        error
	missedAcks int
}

func (t *busTx) set(l Line, level gpio.Level) {
	if t.err != nil {
		return
	}
	if err := l.Out(level); err != nil {
		t.err = fmt.Errorf("bus: write line: %w", err)
		return
	}
	spin(t.bus.bitDelay)
}

func (t *busTx) start() {
	t.set(t.bus.dio, gpio.Low)
	t.set(t.bus.clk, gpio.Low)
}

func (t *busTx) stop() {
	t.set(t.bus.clk, gpio.Low)
	t.set(t.bus.dio, gpio.Low)
	t.set(t.bus.clk, gpio.High)
	t.set(t.bus.dio, gpio.High)
}

// writeByte clocks data out LSB first, then gives the chip a ninth clock to
// pull DIO low as acknowledgement.
func (t *busTx) writeByte(data byte) {
	for i := 0; i < 8; i++ {
		t.set(t.bus.clk, gpio.Low)
		t.set(t.bus.dio, gpio.Level(data&0x01 == 1))
		data >>= 1
		t.set(t.bus.clk, gpio.High)
	}

	t.set(t.bus.clk, gpio.Low)
	t.set(t.bus.dio, gpio.High)
	t.set(t.bus.clk, gpio.High)
	if t.err != nil {
		return
	}

	if err := t.bus.dio.In(gpio.PullUp, gpio.NoEdge); err != nil {
		t.err = fmt.Errorf("bus: release dio: %w", err)
		return
	}
	acked := false
	for i := 0; i < t.bus.ackRetries; i++ {
		if t.bus.dio.Read() == gpio.Low {
			acked = true
			break
		}
		spin(t.bus.bitDelay)
	}
	if !acked {
		t.missedAcks++
	}

	t.set(t.bus.clk, gpio.Low)
	t.set(t.bus.dio, gpio.Low)
}

// spin busy-waits for d. Sleep granularity on the target boards is far
// coarser than the bus timing.
func spin(d time.Duration) {
	if d <= 0 {
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}
