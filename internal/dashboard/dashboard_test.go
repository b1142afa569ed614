package dashboard

import (
	"math"
	"testing"
	"time"

	"stockticker/internal/domain"
)

// seq returns a uniform source that replays vals in order, then repeats the
// last one.
func seq(vals ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := vals[i]
		if i < len(vals)-1 {
			i++
		}
		return v
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// ---------------------------------------------------------------------------
// Processor
// ---------------------------------------------------------------------------

func TestProcessFirstCycle(t *testing.T) {
	ts := time.Date(2024, 3, 1, 14, 5, 0, 0, time.UTC)
	snap := domain.NewSnapshot(ts, []string{"AAPL", "MSFT"}, map[string]float64{"AAPL": 100, "MSFT": 200})

	p := NewProcessor(seq(0.5, 0.2))
	records, next := p.Process(snap, domain.PriceTable{})

	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	r := records[0]
	if r.Symbol != "AAPL" || r.Change != 0 || r.ChangePercent != 0 || r.Trend != domain.TrendUp {
		t.Errorf("records[0] = %+v, want unchanged AAPL trending up", r)
	}
	if !approx(r.DayHigh, 102.5) {
		t.Errorf("DayHigh = %v, want 102.5", r.DayHigh)
	}
	if !approx(r.DayLow, 99) {
		t.Errorf("DayLow = %v, want 99", r.DayLow)
	}
	if !r.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", r.Timestamp, ts)
	}
	if next["AAPL"] != 100 || next["MSFT"] != 200 || len(next) != 2 {
		t.Errorf("next = %v, want snapshot prices", next)
	}
}

func TestProcessChange(t *testing.T) {
	snap := domain.NewSnapshot(time.Now(), []string{"AAPL", "MSFT", "TSLA"},
		map[string]float64{"AAPL": 102, "MSFT": 190, "TSLA": 50})
	prev := domain.PriceTable{"AAPL": 100, "MSFT": 200, "GONE": 10}

	records, next := NewProcessor(nil).Process(snap, prev)

	tests := []struct {
		sym    string
		change float64
		pct    float64
		trend  domain.Trend
	}{
		{"AAPL", 2, 2, domain.TrendUp},
		{"MSFT", -10, -5, domain.TrendDown},
		{"TSLA", 0, 0, domain.TrendUp}, // new symbol: no previous price
	}
	for i, tt := range tests {
		r := records[i]
		if r.Symbol != tt.sym {
			t.Fatalf("records[%d].Symbol = %q, want %q", i, r.Symbol, tt.sym)
		}
		if !approx(r.Change, tt.change) || !approx(r.ChangePercent, tt.pct) || r.Trend != tt.trend {
			t.Errorf("%s: change=%v pct=%v trend=%v, want %v %v %v",
				tt.sym, r.Change, r.ChangePercent, r.Trend, tt.change, tt.pct, tt.trend)
		}
	}

	if _, ok := next["GONE"]; ok {
		t.Error("next should be replaced wholesale, not merged with prev")
	}
	if prev["AAPL"] != 100 {
		t.Error("prev was modified")
	}
}

func TestProcessZeroPrevious(t *testing.T) {
	snap := domain.NewSnapshot(time.Now(), []string{"X"}, map[string]float64{"X": 5})
	records, _ := NewProcessor(nil).Process(snap, domain.PriceTable{"X": 0})
	if records[0].Change != 5 || records[0].ChangePercent != 0 {
		t.Errorf("change=%v pct=%v, want 5 and 0", records[0].Change, records[0].ChangePercent)
	}
}

func TestProcessHighLowBounds(t *testing.T) {
	snap := domain.NewSnapshot(time.Now(), []string{"A"}, map[string]float64{"A": 250})
	p := NewProcessor(nil)
	for i := 0; i < 200; i++ {
		records, _ := p.Process(snap, nil)
		r := records[0]
		if r.DayHigh < r.CurrentPrice || r.DayHigh >= r.CurrentPrice*1.05 {
			t.Fatalf("DayHigh %v out of [%v, %v)", r.DayHigh, r.CurrentPrice, r.CurrentPrice*1.05)
		}
		if r.DayLow > r.CurrentPrice || r.DayLow <= r.CurrentPrice*0.95 {
			t.Fatalf("DayLow %v out of (%v, %v]", r.DayLow, r.CurrentPrice*0.95, r.CurrentPrice)
		}
	}
}

func TestProcessEmptySnapshot(t *testing.T) {
	records, next := NewProcessor(nil).Process(domain.Snapshot{}, domain.PriceTable{"A": 1})
	if len(records) != 0 || len(next) != 0 {
		t.Errorf("got %d records and %d prices, want none", len(records), len(next))
	}
}

// ---------------------------------------------------------------------------
// Sort
// ---------------------------------------------------------------------------

func sampleRecords() []domain.StockRecord {
	return []domain.StockRecord{
		{Symbol: "MSFT", CurrentPrice: 410, Change: 1, ChangePercent: 0.2, DayHigh: 420, DayLow: 400},
		{Symbol: "AAPL", CurrentPrice: 180, Change: 1, ChangePercent: 0.5, DayHigh: 185, DayLow: 175},
		{Symbol: "TSLA", CurrentPrice: 200, Change: -3, ChangePercent: -1.5, DayHigh: 210, DayLow: 190},
	}
}

func symbols(rs []domain.StockRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Symbol
	}
	return out
}

func TestSort(t *testing.T) {
	tests := []struct {
		field SortField
		want  []string
	}{
		{SortSymbol, []string{"AAPL", "MSFT", "TSLA"}},
		{SortCurrentPrice, []string{"MSFT", "TSLA", "AAPL"}},
		{SortChange, []string{"MSFT", "AAPL", "TSLA"}}, // tie keeps input order
		{SortChangePercent, []string{"AAPL", "MSFT", "TSLA"}},
		{SortDayHigh, []string{"MSFT", "TSLA", "AAPL"}},
		{SortDayLow, []string{"MSFT", "TSLA", "AAPL"}},
		{SortField("volume"), []string{"MSFT", "AAPL", "TSLA"}},
	}
	for _, tt := range tests {
		in := sampleRecords()
		got := symbols(Sort(in, tt.field))
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("Sort(%s) = %v, want %v", tt.field, got, tt.want)
				break
			}
		}
		if in[0].Symbol != "MSFT" {
			t.Errorf("Sort(%s) modified its input", tt.field)
		}
	}
}

func TestSortIdempotent(t *testing.T) {
	once := Sort(sampleRecords(), SortChange)
	twice := Sort(once, SortChange)
	a, b := symbols(once), symbols(twice)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Sort not idempotent: %v then %v", a, b)
		}
	}
}

func TestParseSortColumn(t *testing.T) {
	tests := []struct {
		in   string
		want SortField
		ok   bool
	}{
		{"Symbol", SortSymbol, true},
		{"Last Price", SortCurrentPrice, true},
		{"Change", SortChange, true},
		{"Change %", SortChangePercent, true},
		{" Day High ", SortDayHigh, true},
		{"Day Low", SortDayLow, true},
		{"dayLow", SortDayLow, true},
		{"Volume", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSortColumn(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSortColumn(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSortFieldNext(t *testing.T) {
	f := SortSymbol
	for range SortFields {
		f = f.Next()
	}
	if f != SortSymbol {
		t.Errorf("cycling through all fields ended at %q, want %q", f, SortSymbol)
	}
	if SortField("bogus").Next() != SortSymbol {
		t.Error("Next() of unknown field should restart the cycle")
	}
	if SortField("bogus").Valid() {
		t.Error("unknown field reported valid")
	}
	if SortFieldLabel(SortChangePercent) != "CHG%" {
		t.Errorf("SortFieldLabel(changePercent) = %q", SortFieldLabel(SortChangePercent))
	}
}

// ---------------------------------------------------------------------------
// Sparklines
// ---------------------------------------------------------------------------

func TestStaticPath(t *testing.T) {
	s := NewSynthesizer(nil)
	path := s.Static(100)
	if len(path) != StaticPoints {
		t.Fatalf("len = %d, want %d", len(path), StaticPoints)
	}
	for i, v := range path {
		if v < 95 || v >= 105 {
			t.Errorf("path[%d] = %v, want within [95, 105)", i, v)
		}
	}
}

func TestStaticForFallback(t *testing.T) {
	s := NewSynthesizer(seq(0.5))
	path := s.StaticFor("GONE", map[string]float64{"AAPL": 180})
	if path[0] != DefaultBasePrice {
		t.Errorf("path[0] = %v, want %v", path[0], DefaultBasePrice)
	}
}

func TestTickerPath(t *testing.T) {
	s := NewSynthesizer(seq(0.0, 1.0))
	path := s.Ticker(200)
	if len(path) != TickerPoints {
		t.Fatalf("len = %d, want %d", len(path), TickerPoints)
	}
	if path[TickerPoints-1] != 200 {
		t.Errorf("last point = %v, want exactly 200", path[TickerPoints-1])
	}
	// U=0 gives V=-0.025 at i=0.
	if !approx(path[0], 195) {
		t.Errorf("path[0] = %v, want 195", path[0])
	}
	// U=1 gives V=0.025 damped by 0.9 at i=1.
	if !approx(path[1], 200*(1+0.025*0.9)) {
		t.Errorf("path[1] = %v, want %v", path[1], 200*(1+0.025*0.9))
	}
	for i, v := range path {
		if v < 195 || v > 205 {
			t.Errorf("path[%d] = %v out of ±2.5%%", i, v)
		}
	}
}

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

func TestFormatInt(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -4200: "-4,200"}
	for in, want := range tests {
		if got := FormatInt(in); got != want {
			t.Errorf("FormatInt(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{180.5, "$180.50"},
		{1234.567, "$1,234.57"},
		{0.07, "$0.07"},
		{0, "$0.00"},
		{1e19, "$10,000,000,000,000,000,000.00"},
		{2.5e20, "$250,000,000,000,000,000,000.00"},
		{-1234.5, "-$1,234.50"},
		{math.Inf(1), "--"},
		{math.NaN(), "--"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.in); got != tt.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatChange(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.254, "+1.25"},
		{-0.4, "-0.40"},
		{0, "+0.00"},
		{-0.001, "-0.00"},
		{0.004, "+0.00"},
		{math.Inf(-1), "--"},
		{math.NaN(), "--"},
	}
	for _, tt := range tests {
		if got := FormatChange(tt.in); got != tt.want {
			t.Errorf("FormatChange(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := FormatPercent(-1.5); got != "-1.50%" {
		t.Errorf("FormatPercent(-1.5) = %q, want %q", got, "-1.50%")
	}
	if got := FormatPercent(math.Inf(1)); got != "--" {
		t.Errorf("FormatPercent(+Inf) = %q, want --", got)
	}
}

func TestFormatOverflowedRecord(t *testing.T) {
	snap := domain.NewSnapshot(time.Now(), []string{"BIG"}, map[string]float64{"BIG": math.MaxFloat64})
	records, _ := NewProcessor(seq(1)).Process(snap, domain.PriceTable{"BIG": 5e-324})
	r := records[0]
	if !math.IsInf(r.DayHigh, 1) || !math.IsInf(r.ChangePercent, 1) {
		t.Fatalf("record = %+v, want infinite DayHigh and ChangePercent", r)
	}
	if got := FormatPrice(r.DayHigh); got != "--" {
		t.Errorf("FormatPrice(DayHigh) = %q, want --", got)
	}
	if got := FormatPercent(r.ChangePercent); got != "--" {
		t.Errorf("FormatPercent(ChangePercent) = %q, want --", got)
	}
	if got := FormatPrice(r.CurrentPrice); got == "--" || got[0] != '$' {
		t.Errorf("FormatPrice(MaxFloat64) = %q, want a dollar amount", got)
	}
	if got := FormatChange(r.Change); got == "--" || got[0] != '+' {
		t.Errorf("FormatChange(%v) = %q, want a positive amount", r.Change, got)
	}
}
