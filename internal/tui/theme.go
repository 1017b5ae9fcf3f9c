// Package tui is the bubbletea monitor for a display served over websocket.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/display"
)

// defaultAccentColor is the lit segment color (LED red).
const defaultAccentColor = "#FF3B30"

var (
	colorWhite = lipgloss.Color("#FAFAFA")
	colorGray  = lipgloss.Color("#888888")
	colorGreen = lipgloss.Color("#6BCB77")
	colorRed   = lipgloss.Color("#FF6B6B")
)

// Theme holds the accent-derived styles for the monitor.
type Theme struct {
	header    lipgloss.Style
	lit       lipgloss.Style
	panel     lipgloss.Style
	status    lipgloss.Style
	timestamp lipgloss.Style
	ok        lipgloss.Style
	bad       lipgloss.Style
}

// NewTheme builds a Theme from a hex accent color; empty means the default.
func NewTheme(accentColor string) Theme {
	color := defaultAccentColor
	if accentColor != "" {
		color = accentColor
	}
	c := lipgloss.Color(color)
	return Theme{
		header: lipgloss.NewStyle().
			Background(c).
			Foreground(colorWhite).
			Bold(true),
		lit: lipgloss.NewStyle().
			Foreground(c),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 2),
		status:    lipgloss.NewStyle().Foreground(colorWhite),
		timestamp: lipgloss.NewStyle().Foreground(colorGray),
		ok:        lipgloss.NewStyle().Foreground(colorGreen),
		bad:       lipgloss.NewStyle().Foreground(colorRed).Bold(true),
	}
}

// Segments returns the style for lit segments at a brightness level. The
// lower half of the range renders faint.
func (t Theme) Segments(brightness int) lipgloss.Style {
	if brightness < (display.MaxBrightness+1)/2 {
		return t.lit.Faint(true)
	}
	return t.lit
}
