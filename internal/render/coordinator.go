// Package render owns the displayed record set and keeps the rendering
// target and its sparkline charts consistent with it.
package render

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stockticker/internal/dashboard"
	"stockticker/internal/domain"
)

// DefaultChartDelay is the pause between replacing rows and drawing their
// charts, letting the target lay out the new elements first.
const DefaultChartDelay = 100 * time.Millisecond

// View identifies which element group a chart is bound to.
type View string

const (
	ViewTable  View = "table"
	ViewTicker View = "ticker"
)

// ChartKey identifies one chart slot. At most one live chart exists per key.
type ChartKey struct {
	Symbol string
	View   View
}

func (k ChartKey) String() string { return fmt.Sprintf("%s/%s", k.View, k.Symbol) }

// Chart is a drawn sparkline that must be released before its element is
// replaced.
type Chart interface {
	Destroy()
}

// ChartFactory draws sparklines on the rendering target.
type ChartFactory interface {
	NewChart(key ChartKey, path []float64, trend domain.Trend) (Chart, error)
}

// Surface is the rendering target.
type Surface interface {
	// ReplaceRows rebuilds the table and card body.
	ReplaceRows(records []domain.StockRecord)
	// ReplaceTicker rebuilds the ticker strip and restarts its scroll.
	ReplaceTicker(records []domain.StockRecord)
	UpdateStats(Stats)
	Clear()
}

// Stats is the summary panel content.
type Stats struct {
	Symbols     int
	LastQuote   time.Time
	Placeholder bool
}

// SymbolsText renders the symbol count, or "--" when there is no data.
func (s Stats) SymbolsText() string {
	if s.Placeholder {
		return "--"
	}
	return dashboard.FormatInt(s.Symbols)
}

// LastQuoteText renders HH:MM of the first displayed record, or "--:--".
func (s Stats) LastQuoteText() string {
	if s.Placeholder || s.LastQuote.IsZero() {
		return "--:--"
	}
	return dashboard.FormatClock(s.LastQuote)
}

// Options tunes a Coordinator. Zero values use the defaults.
type Options struct {
	ChartDelay time.Duration
	// After schedules f after d and returns a cancel func. Defaults to
	// time.AfterFunc.
	After func(d time.Duration, f func()) (cancel func())
	Synth *dashboard.Synthesizer
}

// Coordinator rebuilds the target from each new record set. It is safe for
// concurrent use.
type Coordinator struct {
	surface Surface
	charts  ChartFactory
	synth   *dashboard.Synthesizer
	delay   time.Duration
	after   func(time.Duration, func()) func()
	logger  *slog.Logger

	mu         sync.Mutex
	records    []domain.StockRecord
	prices     map[string]float64
	sortField  dashboard.SortField
	active     map[ChartKey]Chart
	generation uint64
	cancelDraw func()
}

// NewCoordinator creates a Coordinator drawing on surface.
func NewCoordinator(surface Surface, charts ChartFactory, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ChartDelay <= 0 {
		opts.ChartDelay = DefaultChartDelay
	}
	if opts.After == nil {
		opts.After = func(d time.Duration, f func()) func() {
			t := time.AfterFunc(d, f)
			return func() { t.Stop() }
		}
	}
	if opts.Synth == nil {
		opts.Synth = dashboard.NewSynthesizer(nil)
	}
	return &Coordinator{
		surface: surface,
		charts:  charts,
		synth:   opts.Synth,
		delay:   opts.ChartDelay,
		after:   opts.After,
		logger:  logger,
		active:  make(map[ChartKey]Chart),
	}
}

// Render replaces everything on the target with records. The last field
// passed to SortBy is applied first. Charts are drawn after the chart delay
// unless a later Render, SortBy or Reset supersedes this one.
func (c *Coordinator) Render(records []domain.StockRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sortField != "" {
		records = dashboard.Sort(records, c.sortField)
	} else {
		records = append([]domain.StockRecord(nil), records...)
	}
	c.records = records
	c.prices = make(map[string]float64, len(records))
	for _, r := range records {
		c.prices[r.Symbol] = r.CurrentPrice
	}

	gen := c.beginLocked()
	c.destroyLocked(nil)

	c.surface.ReplaceRows(records)
	c.surface.ReplaceTicker(records)
	c.surface.UpdateStats(statsFor(records))

	c.scheduleLocked(gen, ViewTable, ViewTicker)
}

// SortBy re-sorts the displayed records and rebuilds the table view. The
// ticker strip is left alone. Unknown fields are ignored.
func (c *Coordinator) SortBy(field dashboard.SortField) {
	if !field.Valid() {
		c.logger.Debug("ignoring unknown sort field", "field", field)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sortField = field
	c.records = dashboard.Sort(c.records, field)
	if len(c.records) == 0 {
		return
	}

	gen := c.beginLocked()
	c.destroyLocked(func(k ChartKey) bool { return k.View == ViewTable })
	c.surface.ReplaceRows(c.records)

	// A ticker draw still pending from the last Render was cancelled above;
	// schedule it again so the strip is not left without charts.
	views := []View{ViewTable}
	if !c.hasViewLocked(ViewTicker) {
		views = append(views, ViewTicker)
	}
	c.scheduleLocked(gen, views...)
}

// Reset cancels any pending draw, destroys every chart, clears the target
// and shows placeholder stats. It returns after all of that is done.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.beginLocked()
	c.destroyLocked(nil)
	c.records = nil
	c.prices = nil
	c.sortField = ""

	c.surface.Clear()
	c.surface.UpdateStats(Stats{Placeholder: true})
}

// Records returns a copy of the displayed records in display order.
func (c *Coordinator) Records() []domain.StockRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.StockRecord(nil), c.records...)
}

// SortField returns the field last passed to SortBy, or "".
func (c *Coordinator) SortField() dashboard.SortField {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortField
}

// ActiveCharts returns how many charts are currently live.
func (c *Coordinator) ActiveCharts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

func statsFor(records []domain.StockRecord) Stats {
	s := Stats{Symbols: len(records)}
	if len(records) > 0 {
		s.LastQuote = records[0].Timestamp
	}
	return s
}

// beginLocked starts a new render generation and cancels the pending draw.
func (c *Coordinator) beginLocked() uint64 {
	c.generation++
	if c.cancelDraw != nil {
		c.cancelDraw()
		c.cancelDraw = nil
	}
	return c.generation
}

// destroyLocked destroys every chart for which match returns true, or all of
// them when match is nil.
func (c *Coordinator) destroyLocked(match func(ChartKey) bool) {
	for k, ch := range c.active {
		if match != nil && !match(k) {
			continue
		}
		ch.Destroy()
		delete(c.active, k)
	}
}

func (c *Coordinator) hasViewLocked(v View) bool {
	for k := range c.active {
		if k.View == v {
			return true
		}
	}
	return false
}

func (c *Coordinator) scheduleLocked(gen uint64, views ...View) {
	c.cancelDraw = c.after(c.delay, func() { c.draw(gen, views) })
}

// draw creates the charts for views, unless gen has been superseded.
func (c *Coordinator) draw(gen uint64, views []View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Debug("dropping stale chart draw", "generation", gen, "current", c.generation)
		return
	}
	c.cancelDraw = nil

	for _, v := range views {
		for _, r := range c.records {
			var path []float64
			if v == ViewTicker {
				path = c.synth.Ticker(r.CurrentPrice)
			} else {
				path = c.synth.StaticFor(r.Symbol, c.prices)
			}
			c.createLocked(ChartKey{Symbol: r.Symbol, View: v}, path, r.Trend)
		}
	}
}

func (c *Coordinator) createLocked(key ChartKey, path []float64, trend domain.Trend) {
	if old, ok := c.active[key]; ok {
		old.Destroy()
		delete(c.active, key)
	}
	ch, err := c.charts.NewChart(key, path, trend)
	if err != nil {
		c.logger.Warn("chart creation failed", "chart", key.String(), "error", err)
		return
	}
	c.active[key] = ch
}
