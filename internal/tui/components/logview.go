// Package components holds reusable widgets for the monitor.
package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// DefaultLimit is the number of lines a LogView keeps when no limit is given.
const DefaultLimit = 500

// LogView is a scrollable, bounded history panel wrapping bubbles/viewport.
// In follow mode (default) new lines scroll the view to the bottom. Once the
// limit is reached the oldest lines are discarded.
type LogView struct {
	vp     viewport.Model
	lines  []string
	limit  int
	follow bool
	width  int
	height int
}

// NewLogView creates a LogView of the given size keeping at most limit lines.
func NewLogView(w, h, limit int) LogView {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return LogView{
		vp:     viewport.New(w, h),
		limit:  limit,
		follow: true,
		width:  w,
		height: h,
	}
}

// AppendLine appends a pre-rendered line.
func (v LogView) AppendLine(rendered string) LogView {
	v.lines = append(v.lines, rendered)
	if over := len(v.lines) - v.limit; over > 0 {
		v.lines = append([]string(nil), v.lines[over:]...)
	}
	return v.refresh()
}

// Clear drops every line.
func (v LogView) Clear() LogView {
	v.lines = nil
	return v.refresh()
}

// Len returns the number of lines held.
func (v LogView) Len() int { return len(v.lines) }

// ToggleFollow switches follow mode; turning it on jumps to the bottom.
func (v LogView) ToggleFollow() LogView {
	v.follow = !v.follow
	if v.follow {
		v.vp.GotoBottom()
	}
	return v
}

// Following reports whether follow mode is on.
func (v LogView) Following() bool { return v.follow }

// SetSize resizes the view.
func (v LogView) SetSize(w, h int) LogView {
	if h < 1 {
		h = 1
	}
	v.width, v.height = w, h
	v.vp.Width, v.vp.Height = w, h
	if v.follow {
		v.vp.GotoBottom()
	}
	return v
}

// Update handles scroll keys and mouse events. Scrolling away from the bottom
// leaves follow mode.
func (v LogView) Update(msg tea.Msg) (LogView, tea.Cmd) {
	var cmd tea.Cmd
	v.vp, cmd = v.vp.Update(msg)
	if v.follow && !v.vp.AtBottom() {
		switch msg.(type) {
		case tea.KeyMsg, tea.MouseMsg:
			v.follow = false
		}
	}
	return v, cmd
}

func (v LogView) View() string { return v.vp.View() }

func (v LogView) refresh() LogView {
	v.vp.SetContent(strings.Join(v.lines, "\n"))
	if v.follow {
		v.vp.GotoBottom()
	}
	return v
}
