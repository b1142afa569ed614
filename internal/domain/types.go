// Package domain defines the quote and display types shared by the ticker
// client and server.
package domain

import (
	"sort"
	"time"
)

// Snapshot is one server-side quote reading: a price per symbol plus the
// time it was taken. Symbols holds the payload order of the price map and is
// the iteration order used everywhere a snapshot is walked.
type Snapshot struct {
	ID        int64
	Symbols   []string
	Prices    map[string]float64
	Timestamp time.Time
}

// NewSnapshot builds a Snapshot from an ordered symbol list and a price map.
// Symbols without a price are dropped and duplicates keep their first
// position.
func NewSnapshot(ts time.Time, symbols []string, prices map[string]float64) Snapshot {
	seen := make(map[string]bool, len(symbols))
	ordered := make([]string, 0, len(symbols))
	copied := make(map[string]float64, len(prices))
	for _, sym := range symbols {
		p, ok := prices[sym]
		if !ok || seen[sym] {
			continue
		}
		seen[sym] = true
		ordered = append(ordered, sym)
		copied[sym] = p
	}
	return Snapshot{Symbols: ordered, Prices: copied, Timestamp: ts}
}

// SnapshotFromMap builds a Snapshot whose symbol order is alphabetical. Used
// for sources that return unordered maps.
func SnapshotFromMap(ts time.Time, prices map[string]float64) Snapshot {
	symbols := make([]string, 0, len(prices))
	for sym := range prices {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return NewSnapshot(ts, symbols, prices)
}

// Len returns the number of symbols in the snapshot.
func (s Snapshot) Len() int { return len(s.Symbols) }

// PriceTable maps symbol to the price accepted on the previous cycle.
type PriceTable map[string]float64

// Trend is the direction of the latest price change.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// TrendOf returns up for a non-negative change.
func TrendOf(change float64) Trend {
	if change >= 0 {
		return TrendUp
	}
	return TrendDown
}

// StockRecord is one displayable row derived from a snapshot.
type StockRecord struct {
	Symbol        string
	CurrentPrice  float64
	Change        float64
	ChangePercent float64
	DayHigh       float64
	DayLow        float64
	Timestamp     time.Time
	Trend         Trend
}
