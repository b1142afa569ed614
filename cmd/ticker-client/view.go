package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"stockticker/internal/dashboard"
	"stockticker/internal/domain"
	"stockticker/internal/live"
	"stockticker/internal/render"
)

// Styles.
var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	tickerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	symbolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	priceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sortedColStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statValueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	cardStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	modalStyle     = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("9")).Padding(1, 3)
	loginBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")).Padding(1, 3)
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
)

// tickerScrollStep is how long the strip takes to advance one cell.
const tickerScrollStep = 150 * time.Millisecond

const cardWidth = 26

func trendStyle(t domain.Trend) lipgloss.Style {
	if t == domain.TrendDown {
		return lossStyle
	}
	return gainStyle
}

func trendArrow(t domain.Trend) string {
	if t == domain.TrendDown {
		return "▼"
	}
	return "▲"
}

// ---------------------------------------------------------------------------
// Dashboard
// ---------------------------------------------------------------------------

func renderHeader(st live.State, width int) string {
	sortLabel := "-"
	if st.SortField != "" {
		sortLabel = dashboard.SortFieldLabel(st.SortField)
	}
	text := fmt.Sprintf(" Stock Ticker    user: %s    sort: %s    layout: %s ",
		st.Username, sortLabel, st.Layout)
	return headerStyle.Render(padOrTrunc(text, width))
}

func renderStats(st live.State, f frame) string {
	refresh := "--"
	if st.Running {
		refresh = fmt.Sprintf("%ds", st.Countdown)
	}
	updated := "--:--:--"
	if !st.LastUpdate.IsZero() {
		updated = st.LastUpdate.Format("15:04:05")
	}
	parts := []string{
		statLabelStyle.Render("Symbols ") + statValueStyle.Render(f.stats.SymbolsText()),
		statLabelStyle.Render("Last quote ") + statValueStyle.Render(f.stats.LastQuoteText()),
		statLabelStyle.Render("Updated ") + statValueStyle.Render(updated),
		statLabelStyle.Render("Next refresh ") + statValueStyle.Render(refresh),
	}
	return " " + strings.Join(parts, "    ")
}

// renderTickerStrip scrolls the ticker records right to left.
func renderTickerStrip(f frame, now time.Time, width int) string {
	if len(f.ticker) == 0 || width <= 0 {
		return tickerStyle.Render(strings.Repeat(" ", max(width, 0)))
	}

	var b strings.Builder
	for _, r := range f.ticker {
		chart := f.charts[render.ChartKey{Symbol: r.Symbol, View: render.ViewTicker}].line
		fmt.Fprintf(&b, "  %s %s %s%s %s  │",
			r.Symbol,
			dashboard.FormatPrice(r.CurrentPrice),
			trendArrow(r.Trend),
			dashboard.FormatChange(r.Change),
			chart,
		)
	}
	loop := []rune(b.String())
	offset := 0
	if elapsed := now.Sub(f.tickerStart); !f.tickerStart.IsZero() && elapsed > 0 {
		offset = int(elapsed/tickerScrollStep) % len(loop)
	}

	out := make([]rune, width)
	for i := range out {
		out[i] = loop[(offset+i)%len(loop)]
	}
	return tickerStyle.Render(string(out))
}

var tableColumns = []struct {
	title string
	width int
	field dashboard.SortField
}{
	{"Symbol", 8, dashboard.SortSymbol},
	{"Last Price", 13, dashboard.SortCurrentPrice},
	{"Change", 10, dashboard.SortChange},
	{"Change %", 10, dashboard.SortChangePercent},
	{"Day High", 13, dashboard.SortDayHigh},
	{"Day Low", 13, dashboard.SortDayLow},
}

func renderTable(f frame, sortField dashboard.SortField) string {
	var b strings.Builder

	b.WriteString("  ")
	for i, c := range tableColumns {
		title := fmt.Sprintf("%d %s", i+1, c.title)
		style := colHeaderStyle
		if c.field == sortField {
			title += " ▼"
			if c.field == dashboard.SortSymbol {
				title = fmt.Sprintf("%d %s ▲", i+1, c.title)
			}
			style = sortedColStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("%-*s", c.width+2, title)))
	}
	b.WriteString(colHeaderStyle.Render("Trend"))
	b.WriteString("\n")

	for _, r := range f.rows {
		ts := trendStyle(r.Trend)
		chart := f.charts[render.ChartKey{Symbol: r.Symbol, View: render.ViewTable}]
		b.WriteString("  ")
		b.WriteString(symbolStyle.Render(fmt.Sprintf("%-10s", r.Symbol)))
		b.WriteString(priceStyle.Render(fmt.Sprintf("%-15s", dashboard.FormatPrice(r.CurrentPrice))))
		b.WriteString(ts.Render(fmt.Sprintf("%-12s", dashboard.FormatChange(r.Change))))
		b.WriteString(ts.Render(fmt.Sprintf("%-12s", dashboard.FormatPercent(r.ChangePercent))))
		b.WriteString(dimStyle.Render(fmt.Sprintf("%-15s", dashboard.FormatPrice(r.DayHigh))))
		b.WriteString(dimStyle.Render(fmt.Sprintf("%-15s", dashboard.FormatPrice(r.DayLow))))
		b.WriteString(trendStyle(chart.trend).Render(chart.line))
		b.WriteString("\n")
	}
	return b.String()
}

func renderCards(f frame, width int) string {
	perRow := max(1, width/(cardWidth+2))
	var rows []string
	var row []string
	for _, r := range f.rows {
		ts := trendStyle(r.Trend)
		chart := f.charts[render.ChartKey{Symbol: r.Symbol, View: render.ViewTable}]
		body := strings.Join([]string{
			symbolStyle.Render(r.Symbol) + " " + ts.Render(trendArrow(r.Trend)),
			priceStyle.Render(dashboard.FormatPrice(r.CurrentPrice)),
			ts.Render(dashboard.FormatChange(r.Change) + " (" + dashboard.FormatPercent(r.ChangePercent) + ")"),
			dimStyle.Render("H " + dashboard.FormatPrice(r.DayHigh) + "  L " + dashboard.FormatPrice(r.DayLow)),
			trendStyle(chart.trend).Render(chart.line),
		}, "\n")
		row = append(row, cardStyle.Width(cardWidth).Render(body))
		if len(row) == perRow {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return strings.Join(rows, "\n")
}

func renderFooter(width int) string {
	text := " q quit  r refresh  s sort  1-6 sort column  v layout  l logout"
	return footerStyle.Render(padOrTrunc(text, width))
}

func renderModal(msg string, width, height int) string {
	box := modalStyle.Render(lossStyle.Bold(true).Render("Error") + "\n\n" + msg + "\n\n" + dimStyle.Render("press enter to dismiss"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	r := []rune(s)
	n := len(r)
	if width <= 0 {
		return ""
	}
	if n >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-n)
}
