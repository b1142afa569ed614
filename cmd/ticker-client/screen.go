package main

import (
	"math"
	"sync"
	"time"

	"stockticker/internal/domain"
	"stockticker/internal/live"
	"stockticker/internal/render"
)

var (
	_ render.Surface      = (*screen)(nil)
	_ render.ChartFactory = (*screen)(nil)
	_ live.Notifier       = (*screen)(nil)
)

// screen is the terminal's rendering target. The coordinator writes to it
// from its own goroutines; the bubbletea View reads a frame copy under the
// same lock.
type screen struct {
	mu          sync.Mutex
	rows        []domain.StockRecord
	ticker      []domain.StockRecord
	tickerStart time.Time
	stats       render.Stats
	charts      map[render.ChartKey]*sparkChart
	errMsg      string
	now         func() time.Time
}

func newScreen() *screen {
	return &screen{
		stats:  render.Stats{Placeholder: true},
		charts: make(map[render.ChartKey]*sparkChart),
		now:    time.Now,
	}
}

// frame is an immutable copy of the screen used for one View call.
type frame struct {
	rows        []domain.StockRecord
	ticker      []domain.StockRecord
	tickerStart time.Time
	stats       render.Stats
	charts      map[render.ChartKey]drawnChart
	errMsg      string
}

type drawnChart struct {
	line  string
	trend domain.Trend
}

func (s *screen) frame() frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := frame{
		rows:        s.rows,
		ticker:      s.ticker,
		tickerStart: s.tickerStart,
		stats:       s.stats,
		charts:      make(map[render.ChartKey]drawnChart, len(s.charts)),
		errMsg:      s.errMsg,
	}
	for k, c := range s.charts {
		f.charts[k] = drawnChart{line: c.line, trend: c.trend}
	}
	return f
}

func (s *screen) ReplaceRows(records []domain.StockRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = records
}

func (s *screen) ReplaceTicker(records []domain.StockRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticker = records
	s.tickerStart = s.now()
}

func (s *screen) UpdateStats(st render.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = st
}

func (s *screen) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	s.ticker = nil
	clear(s.charts)
}

// ShowError raises the error modal. A newer message replaces an older one.
func (s *screen) ShowError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
}

// dismissError closes the modal and reports whether one was open.
func (s *screen) dismissError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	open := s.errMsg != ""
	s.errMsg = ""
	return open
}

func (s *screen) hasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg != ""
}

// NewChart draws path as a block sparkline bound to key.
func (s *screen) NewChart(key render.ChartKey, path []float64, trend domain.Trend) (render.Chart, error) {
	c := &sparkChart{screen: s, key: key, line: sparkline(path), trend: trend}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charts[key] = c
	return c, nil
}

// sparkChart is one drawn sparkline.
type sparkChart struct {
	screen *screen
	key    render.ChartKey
	line   string
	trend  domain.Trend
}

// Destroy removes the chart unless its slot already holds a newer one.
func (c *sparkChart) Destroy() {
	s := c.screen
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.charts[c.key] == c {
		delete(s.charts, c.key)
	}
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline maps each value onto eight block heights between the path's
// minimum and maximum.
func sparkline(path []float64) string {
	if len(path) == 0 {
		return ""
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range path {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	out := make([]rune, len(path))
	top := len(sparkRunes) - 1
	for i, v := range path {
		idx := top / 2
		// Halving keeps the span finite; non-finite points stay mid-height.
		if frac := (v/2 - lo/2) / (hi/2 - lo/2); hi > lo && frac >= 0 && frac <= 1 {
			idx = int(frac*float64(top) + 0.5)
		}
		out[i] = sparkRunes[idx]
	}
	return string(out)
}
