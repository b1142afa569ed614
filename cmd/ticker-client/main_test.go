package main

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockticker/internal/dashboard"
	"stockticker/internal/domain"
	"stockticker/internal/live"
	"stockticker/internal/render"
)

func TestSparkline(t *testing.T) {
	if got := sparkline(nil); got != "" {
		t.Errorf("sparkline(nil) = %q", got)
	}
	if got := sparkline([]float64{1, 2, 3}); got != "▁▅█" {
		t.Errorf("sparkline(1,2,3) = %q, want ▁▅█", got)
	}
	if got := sparkline([]float64{5, 5}); got != "▄▄" {
		t.Errorf("flat sparkline = %q, want ▄▄", got)
	}
	inf := math.Inf(1)
	if got := sparkline([]float64{1, inf, 3, math.NaN()}); got != "▁▄█▄" {
		t.Errorf("sparkline with non-finite points = %q, want ▁▄█▄", got)
	}
	if got := sparkline([]float64{-math.MaxFloat64, math.MaxFloat64}); got != "▁█" {
		t.Errorf("float64-wide sparkline = %q, want ▁█", got)
	}
	if got := sparkline([]float64{inf, -inf}); got != "▄▄" {
		t.Errorf("all infinite sparkline = %q, want ▄▄", got)
	}
}

func TestScreenCharts(t *testing.T) {
	s := newScreen()
	key := render.ChartKey{Symbol: "AAPL", View: render.ViewTable}

	old, _ := s.NewChart(key, []float64{1, 2}, domain.TrendUp)
	newer, _ := s.NewChart(key, []float64{2, 1}, domain.TrendDown)
	old.Destroy() // must not remove the newer chart
	if f := s.frame(); f.charts[key].line != "█▁" || f.charts[key].trend != domain.TrendDown {
		t.Errorf("chart after stale destroy = %+v", f.charts[key])
	}
	newer.Destroy()
	if len(s.frame().charts) != 0 {
		t.Error("chart still present after Destroy")
	}

	s.NewChart(key, []float64{1}, domain.TrendUp)
	s.ReplaceRows([]domain.StockRecord{{Symbol: "AAPL"}})
	s.Clear()
	if f := s.frame(); len(f.rows) != 0 || len(f.charts) != 0 {
		t.Errorf("Clear left rows=%d charts=%d", len(f.rows), len(f.charts))
	}

	s.ShowError("boom")
	if !s.hasError() || s.frame().errMsg != "boom" {
		t.Error("ShowError not recorded")
	}
	if !s.dismissError() || s.hasError() {
		t.Error("dismissError did not close the modal")
	}
	if s.dismissError() {
		t.Error("dismissError reported an open modal twice")
	}
}

func TestScreenWithCoordinator(t *testing.T) {
	s := newScreen()
	var pending []func()
	c := render.NewCoordinator(s, s, render.Options{
		After: func(_ time.Duration, f func()) func() {
			pending = append(pending, f)
			return func() {}
		},
	}, slog.Default())

	records := []domain.StockRecord{
		{Symbol: "MSFT", CurrentPrice: 400, Change: -1, Trend: domain.TrendDown, Timestamp: time.Now()},
		{Symbol: "AAPL", CurrentPrice: 180, Change: 2, Trend: domain.TrendUp, Timestamp: time.Now()},
	}
	c.Render(records)
	for _, f := range pending {
		f()
	}

	f := s.frame()
	if len(f.rows) != 2 || len(f.ticker) != 2 {
		t.Fatalf("rows=%d ticker=%d, want 2 and 2", len(f.rows), len(f.ticker))
	}
	if len(f.charts) != 4 {
		t.Errorf("charts = %d, want 4", len(f.charts))
	}
	if f.stats.Placeholder || f.stats.Symbols != 2 {
		t.Errorf("stats = %+v", f.stats)
	}

	table := renderTable(f, dashboard.SortSymbol)
	if !strings.Contains(table, "MSFT") || !strings.Contains(table, "$400.00") {
		t.Errorf("table missing row content:\n%s", table)
	}
	strip := renderTickerStrip(f, f.tickerStart, 40)
	if !strings.Contains(strip, "MSFT") {
		t.Errorf("ticker strip = %q", strip)
	}

	c.Reset()
	f = s.frame()
	if len(f.rows) != 0 || !f.stats.Placeholder || f.stats.SymbolsText() != "--" {
		t.Errorf("after Reset rows=%d stats=%+v", len(f.rows), f.stats)
	}
}

func TestPadOrTrunc(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"abc", 5, "abc  "},
		{"abcdef", 3, "abc"},
		{"▲▼", 1, "▲"},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		if got := padOrTrunc(tt.in, tt.width); got != tt.want {
			t.Errorf("padOrTrunc(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

type fakeController struct {
	state     live.State
	sorted    []dashboard.SortField
	loggedIn  []string
	loggedOut int
	closed    bool
}

func (f *fakeController) Login(_ context.Context, u, p string) error {
	f.loggedIn = append(f.loggedIn, u+":"+p)
	f.state.LoggedIn = true
	f.state.Username = u
	return nil
}
func (f *fakeController) Logout() {
	f.loggedOut++
	f.state = live.State{}
}
func (f *fakeController) Close()                           { f.closed = true }
func (f *fakeController) Refresh(context.Context) error     { return nil }
func (f *fakeController) SortBy(field dashboard.SortField) { f.sorted = append(f.sorted, field) }
func (f *fakeController) CycleSort() dashboard.SortField {
	f.state.SortField = f.state.SortField.Next()
	f.sorted = append(f.sorted, f.state.SortField)
	return f.state.SortField
}
func (f *fakeController) ToggleLayout() live.Layout {
	f.state.Layout = 1 - f.state.Layout
	return f.state.Layout
}
func (f *fakeController) State() live.State { return f.state }

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m tea.Model, msg tea.Msg) (model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func TestModelLoginFlow(t *testing.T) {
	fc := &fakeController{}
	m := newModel(fc, newScreen(), false, slog.Default())
	m, _ = send(m, tea.WindowSizeMsg{Width: 100, Height: 30})

	for _, r := range "admin" {
		m, _ = send(m, key(string(r)))
	}
	m, _ = send(m, key("enter")) // moves to password
	if m.focus != 1 {
		t.Fatalf("focus = %d, want 1", m.focus)
	}
	for _, r := range "admin123" {
		m, _ = send(m, key(string(r)))
	}
	m, cmd := send(m, key("enter"))
	if !m.busy || cmd == nil {
		t.Fatal("submit did not start a login")
	}
	msg := cmd()
	if len(fc.loggedIn) != 1 || fc.loggedIn[0] != "admin:admin123" {
		t.Errorf("Login calls = %v", fc.loggedIn)
	}
	m, _ = send(m, msg)
	if m.mode != modeDashboard || m.busy {
		t.Errorf("after login mode=%v busy=%v", m.mode, m.busy)
	}
	if !strings.Contains(m.View(), "user: admin") {
		t.Error("dashboard header missing username")
	}
}

func TestModelDashboardKeys(t *testing.T) {
	fc := &fakeController{state: live.State{LoggedIn: true, Username: "admin"}}
	m := newModel(fc, newScreen(), true, slog.Default())
	m, _ = send(m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m, _ = send(m, key("s"))
	m, _ = send(m, key("3"))
	if len(fc.sorted) != 2 || fc.sorted[0] != dashboard.SortSymbol || fc.sorted[1] != dashboard.SortChange {
		t.Errorf("sorts = %v, want [symbol change]", fc.sorted)
	}

	m, _ = send(m, key("v"))
	if fc.state.Layout != live.LayoutCards {
		t.Errorf("layout = %v, want cards", fc.state.Layout)
	}

	m, _ = send(m, key("l"))
	if fc.loggedOut != 1 || m.mode != modeLogin {
		t.Errorf("logout: calls=%d mode=%v", fc.loggedOut, m.mode)
	}

	_, cmd := send(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !fc.closed || cmd == nil {
		t.Error("ctrl+c did not close and quit")
	}
}

func TestDashboardViewTickerStripFollowsLayout(t *testing.T) {
	fc := &fakeController{state: live.State{LoggedIn: true, Username: "admin"}}
	scr := newScreen()
	m := newModel(fc, scr, true, slog.Default())
	m, _ = send(m, tea.WindowSizeMsg{Width: 100, Height: 40})

	scr.ReplaceRows([]domain.StockRecord{{Symbol: "AAPL", CurrentPrice: 180, Trend: domain.TrendUp}})
	scr.ReplaceTicker([]domain.StockRecord{{Symbol: "TSLA", CurrentPrice: 250, Trend: domain.TrendUp}})

	if !strings.Contains(m.View(), "TSLA") {
		t.Error("table layout is missing the ticker strip")
	}
	fc.state.Layout = live.LayoutCards
	view := m.View()
	if strings.Contains(view, "TSLA") {
		t.Error("card layout still renders the ticker strip")
	}
	if !strings.Contains(view, "AAPL") {
		t.Error("card layout is missing the AAPL card")
	}
}

func TestModelErrorModal(t *testing.T) {
	fc := &fakeController{state: live.State{LoggedIn: true}}
	scr := newScreen()
	m := newModel(fc, scr, true, slog.Default())
	m, _ = send(m, tea.WindowSizeMsg{Width: 80, Height: 24})

	scr.ShowError(live.MsgRefreshFailed)
	if !strings.Contains(m.View(), live.MsgRefreshFailed) {
		t.Error("modal not shown")
	}
	// Keys other than dismiss are swallowed while the modal is open.
	m, _ = send(m, key("s"))
	if len(fc.sorted) != 0 {
		t.Error("key reached dashboard while modal open")
	}
	m, _ = send(m, key("enter"))
	if scr.hasError() {
		t.Error("enter did not dismiss modal")
	}
}

func TestModelReturnsToLoginWhenSessionEnds(t *testing.T) {
	fc := &fakeController{state: live.State{LoggedIn: true}}
	m := newModel(fc, newScreen(), true, slog.Default())
	fc.state.LoggedIn = false
	m, cmd := send(m, tickMsg(time.Now()))
	if m.mode != modeLogin {
		t.Errorf("mode = %v, want login", m.mode)
	}
	if cmd == nil {
		t.Error("tick did not reschedule")
	}
}
