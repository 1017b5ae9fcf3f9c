package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// frameHeight is the number of lines Terminal prints per frame: a blank
// line, five digit rows and a trailing blank line.
const frameHeight = DigitRows + 2

// DigitRows is the height of one rendered digit.
const DigitRows = 5

const (
	glyphHorizontal = "━━"
	glyphVertical   = "┃"
	glyphColon      = "∶"
)

// ledColors maps brightness levels to the foreground of lit segments.
var ledColors = [MaxBrightness + 1]lipgloss.Color{
	"#4A0E0E", "#5E1212", "#7A1717", "#991C1C",
	"#B82222", "#D42828", "#EE2E2E", "#FF3B3B",
}

// RenderDigit draws one pattern as five rows of box-drawing glyphs, four
// columns wide.
func RenderDigit(pattern byte) [DigitRows]string {
	on := func(bit uint) bool { return pattern&(1<<bit) != 0 }
	pick := func(bit uint, lit, unlit string) string {
		if on(bit) {
			return lit
		}
		return unlit
	}
	horizontal := " " + glyphHorizontal + " "
	return [DigitRows]string{
		pick(0, horizontal, "    "),
		pick(5, glyphVertical, " ") + "  " + pick(1, glyphVertical, " "),
		pick(6, horizontal, "    "),
		pick(4, glyphVertical, " ") + "  " + pick(2, glyphVertical, " "),
		pick(3, horizontal, "    "),
	}
}

// RenderFrame composites four digits side by side with the colon column
// after digit 1.
func RenderFrame(segments [4]byte, colon bool) [DigitRows]string {
	var digits [4][DigitRows]string
	for i, p := range segments {
		digits[i] = RenderDigit(p)
	}
	colonGlyph := " "
	if colon {
		colonGlyph = glyphColon
	}
	digits[1][1] += " "
	digits[1][2] += colonGlyph
	digits[1][3] += " "

	var rows [DigitRows]string
	for row := 0; row < DigitRows; row++ {
		var b strings.Builder
		for i := 0; i < 4; i++ {
			b.WriteString(digits[i][row])
			if i < 3 && !(i == 1 && row >= 1 && row <= 3) {
				b.WriteByte(' ')
			}
		}
		rows[row] = b.String()
	}
	return rows
}

// Terminal draws the display with Unicode glyphs and repaints it in place.
type Terminal struct {
	out      *termenv.Output
	renderer *lipgloss.Renderer

	mu         sync.Mutex
	brightness int
	painted    bool
}

// NewTerminal returns a Terminal writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{
		out:        termenv.NewOutput(w),
		renderer:   lipgloss.NewRenderer(w),
		brightness: DefaultBrightness,
	}
}

func (t *Terminal) Name() string { return "terminal" }

func (t *Terminal) Brightness() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.brightness
}

func (t *Terminal) SetBrightness(level int) error {
	if err := checkBrightness(level); err != nil {
		return err
	}
	t.mu.Lock()
	t.brightness = level
	t.mu.Unlock()
	return nil
}

func (t *Terminal) Render(segments []byte, colon bool) error {
	if err := checkFrame(segments); err != nil {
		return err
	}
	var frame [4]byte
	copy(frame[:], segments)
	return t.paint(frame, colon)
}

func (t *Terminal) Clear() error {
	return t.paint([4]byte{}, false)
}

func (t *Terminal) paint(frame [4]byte, colon bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	style := t.renderer.NewStyle().Foreground(ledColors[t.brightness])
	rows := RenderFrame(frame, colon)

	if t.painted {
		t.out.CursorUp(frameHeight)
	}
	var b strings.Builder
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(style.Render(row))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if _, err := fmt.Fprint(t.out, b.String()); err != nil {
		return fmt.Errorf("terminal: write: %w", err)
	}
	t.painted = true
	return nil
}
