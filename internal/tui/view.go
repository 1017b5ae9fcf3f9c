package tui

import (
	"fmt"
	"strings"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/display"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/segment"
)

// View renders the monitor: header, display panel, status line, frame
// history and help footer.
func (m Model) View() string {
	return strings.Join([]string{
		m.renderHeader(),
		m.renderDisplay(),
		m.renderStatus(),
		m.history.View(),
		m.help.View(m.keys),
	}, "\n")
}

func (m Model) renderHeader() string {
	conn := "○ disconnected"
	if m.connected {
		conn = "● connected"
	}
	parts := []string{"⏲ Kurokku", m.url, conn}
	if m.paused {
		parts = append(parts, "paused")
	}
	return m.theme.header.Width(m.width).Render(strings.Join(parts, "  │  "))
}

func (m Model) renderDisplay() string {
	rows := display.RenderFrame(frameBytes(m.state), m.state.Colon)
	style := m.theme.Segments(m.state.Brightness)
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = style.Render(row)
	}
	return m.theme.panel.Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatus() string {
	last := "—"
	if !m.lastAt.IsZero() {
		last = m.lastAt.Format("15:04:05")
	}
	return m.theme.status.Render(fmt.Sprintf("brightness %d/%d  colon %s  frames %d  last %s",
		m.state.Brightness, display.MaxBrightness, onOff(m.state.Colon), m.frames, last))
}

// describe labels a state for the history panel.
func describe(st display.State) string {
	f := frameBytes(st)
	return fmt.Sprintf("%q  colon %s  b%d", segment.ReverseString(f[:]), onOff(st.Colon), st.Brightness)
}

func frameBytes(st display.State) [4]byte {
	var f [4]byte
	for i, d := range st.Digits {
		f[i] = byte(d)
	}
	return f
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
