package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles incoming messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.history = m.history.SetSize(msg.Width, m.historyHeight())
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd

	case updateMsg:
		return m.handleUpdate(Update(msg))

	case watchDoneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.done = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
	case key.Matches(msg, m.keys.Clear):
		m.history = m.history.Clear()
	case key.Matches(msg, m.keys.Follow):
		m.history = m.history.ToggleFollow()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	default:
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleUpdate(u Update) (tea.Model, tea.Cmd) {
	ts := m.theme.timestamp.Render(fmt.Sprintf("[%s]", u.At.Format("15:04:05")))

	switch {
	case u.Err != nil:
		m.connected = false
		m.lastErr = u.Err
		m.history = m.history.AppendLine(ts + "  " + m.theme.bad.Render("✗ "+u.Err.Error()))
	case u.State != nil:
		m.connected = true
		m.frames++
		m.lastAt = u.At
		if !m.paused {
			m.state = *u.State
			m.history = m.history.AppendLine(ts + "  " + describe(*u.State))
		}
	case u.Connected && !m.connected:
		m.connected = true
		m.lastErr = nil
		m.history = m.history.AppendLine(ts + "  " + m.theme.ok.Render("✓ connected to "+m.url))
	}
	return m, waitForUpdate(m.updates)
}
