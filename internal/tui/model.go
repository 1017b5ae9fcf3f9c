package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/LISSConsulting/LISSTech.Kurokku/internal/display"
	"github.com/LISSConsulting/LISSTech.Kurokku/internal/tui/components"
)

// historyLimit bounds the frame history panel.
const historyLimit = 1000

// chromeRows is everything above and below the history panel: header, the
// bordered display, status line and help footer.
const chromeRows = 1 + display.DigitRows + 2 + 1 + 1

// updateMsg wraps an Update as a bubbletea message.
type updateMsg Update

// watchDoneMsg signals the update channel closed.
type watchDoneMsg struct{}

// Model is the bubbletea model for the display monitor.
type Model struct {
	updates <-chan Update
	url     string

	theme   Theme
	keys    keyMap
	help    help.Model
	history components.LogView

	state     display.State
	connected bool
	lastErr   error
	frames    int
	lastAt    time.Time
	paused    bool

	width  int
	height int
	done   bool
}

// New creates a monitor Model fed by updates. url is shown in the header.
func New(updates <-chan Update, url, accentColor string) Model {
	m := Model{
		updates: updates,
		url:     url,
		theme:   NewTheme(accentColor),
		keys:    defaultKeyMap(),
		help:    help.New(),
		state:   display.State{Brightness: display.DefaultBrightness},
		width:   80,
		height:  24,
	}
	m.history = components.NewLogView(m.width, m.historyHeight(), historyLimit)
	return m
}

// Init starts listening for updates.
func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

// State returns the last displayed state.
func (m Model) State() display.State { return m.state }

// Err returns the most recent connection error.
func (m Model) Err() error { return m.lastErr }

func (m Model) historyHeight() int {
	h := m.height - chromeRows
	if h < 1 {
		h = 1
	}
	return h
}

func waitForUpdate(ch <-chan Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return watchDoneMsg{}
		}
		return updateMsg(u)
	}
}
