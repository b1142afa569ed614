package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stockticker/internal/dashboard"
	"stockticker/internal/live"
)

const (
	frameInterval = 200 * time.Millisecond
	loginTimeout  = 15 * time.Second
)

// Messages.
type tickMsg time.Time
type loginDoneMsg struct{ err error }
type refreshDoneMsg struct{ err error }

func tickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type mode int

const (
	modeLogin mode = iota
	modeDashboard
)

// controller is the subset of live.Controller the UI drives.
type controller interface {
	Login(ctx context.Context, username, password string) error
	Logout()
	Close()
	Refresh(ctx context.Context) error
	SortBy(field dashboard.SortField)
	CycleSort() dashboard.SortField
	ToggleLayout() live.Layout
	State() live.State
}

var _ controller = (*live.Controller)(nil)

// Model.
type model struct {
	ctrl   controller
	screen *screen
	logger *slog.Logger

	mode          mode
	username      textinput.Model
	password      textinput.Model
	focus         int
	busy          bool
	width, height int
	now           time.Time
}

func newModel(ctrl controller, scr *screen, resumed bool, logger *slog.Logger) model {
	user := textinput.New()
	user.Placeholder = "username"
	user.Prompt = "Username: "
	user.CharLimit = 64
	user.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.Prompt = "Password: "
	pass.CharLimit = 128
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	m := model{
		ctrl:     ctrl,
		screen:   scr,
		logger:   logger,
		username: user,
		password: pass,
		now:      time.Now(),
	}
	if resumed {
		m.mode = modeDashboard
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), textinput.Blink)
}

func (m model) loginCmd() tea.Cmd {
	ctrl := m.ctrl
	user := strings.TrimSpace(m.username.Value())
	pass := m.password.Value()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()
		return loginDoneMsg{err: ctrl.Login(ctx, user, pass)}
	}
}

func (m model) refreshCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()
		return refreshDoneMsg{err: ctrl.Refresh(ctx)}
	}
}

func (m *model) setFocus(i int) tea.Cmd {
	m.focus = i
	if i == 0 {
		m.password.Blur()
		return m.username.Focus()
	}
	m.username.Blur()
	return m.password.Focus()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.now = time.Time(msg)
		// The controller logs out on its own when the session expires.
		if m.mode == modeDashboard && !m.ctrl.State().LoggedIn {
			m.toLogin()
		}
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loginDoneMsg:
		m.busy = false
		if msg.err == nil {
			m.mode = modeDashboard
			m.password.Reset()
		}
		return m, nil

	case refreshDoneMsg:
		if msg.err != nil {
			m.logger.Debug("manual refresh failed", "error", msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.ctrl.Close()
			return m, tea.Quit
		}
		if m.screen.hasError() {
			switch msg.String() {
			case "enter", "esc", " ":
				m.screen.dismissError()
			}
			return m, nil
		}
		if m.mode == modeLogin {
			return m.updateLogin(msg)
		}
		return m.updateDashboard(msg)
	}
	return m, nil
}

func (m model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ctrl.Close()
		return m, tea.Quit
	case "tab", "shift+tab", "up", "down":
		return m, m.setFocus(1 - m.focus)
	case "enter":
		if m.busy {
			return m, nil
		}
		if m.focus == 0 && m.password.Value() == "" {
			return m, m.setFocus(1)
		}
		m.busy = true
		return m, m.loginCmd()
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q":
		m.ctrl.Close()
		return m, tea.Quit
	case "r":
		return m, m.refreshCmd()
	case "s":
		f := m.ctrl.CycleSort()
		m.logger.Debug("sort cycled", "field", f)
	case "1", "2", "3", "4", "5", "6":
		m.ctrl.SortBy(dashboard.SortFields[key[0]-'1'])
	case "v":
		m.ctrl.ToggleLayout()
	case "l":
		m.ctrl.Logout()
		m.toLogin()
		return m, m.setFocus(0)
	}
	return m, nil
}

func (m *model) toLogin() {
	m.mode = modeLogin
	m.busy = false
	m.password.Reset()
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	f := m.screen.frame()
	if f.errMsg != "" {
		return renderModal(f.errMsg, m.width, m.height)
	}
	if m.mode == modeLogin {
		return m.loginView()
	}
	return m.dashboardView(f)
}

func (m model) loginView() string {
	status := dimStyle.Render("enter to submit, tab to switch field, esc to quit")
	if m.busy {
		status = dimStyle.Render("signing in...")
	}
	box := loginBoxStyle.Render(strings.Join([]string{
		titleStyle.Render("Stock Ticker Login"),
		"",
		m.username.View(),
		m.password.View(),
		"",
		status,
	}, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m model) dashboardView(f frame) string {
	st := m.ctrl.State()

	var content string
	switch {
	case len(f.rows) == 0:
		content = dimStyle.Render("  Waiting for market data...")
	case st.Layout == live.LayoutCards:
		content = renderCards(f, m.width)
	default:
		content = renderTable(f, st.SortField)
	}

	parts := []string{renderHeader(st, m.width)}
	// The card view has no scrolling strip.
	if st.Layout != live.LayoutCards {
		parts = append(parts, renderTickerStrip(f, m.now, m.width))
	}
	parts = append(parts, renderStats(st, f), "", content)
	top := strings.Join(parts, "\n")
	used := lipgloss.Height(top)
	if gap := m.height - used - 1; gap > 0 {
		top += strings.Repeat("\n", gap)
	}
	return top + "\n" + renderFooter(m.width)
}
