// Package dashboard turns quote snapshots into displayable rows: price deltas,
// sort orders, sparkline paths and the value formatting shared by the
// terminal client and the CLI.
package dashboard

import (
	"math/rand/v2"

	"stockticker/internal/domain"
)

// dayRangeSpread bounds the synthesized intraday high/low around the current
// price (±5%).
const dayRangeSpread = 0.05

// Processor computes StockRecords from a snapshot and the previous cycle's
// prices. The uniform source is injectable so tests can pin the synthesized
// high/low values.
type Processor struct {
	rnd func() float64
}

// NewProcessor returns a Processor drawing from math/rand/v2. A nil rnd uses
// rand.Float64.
func NewProcessor(rnd func() float64) *Processor {
	if rnd == nil {
		rnd = rand.Float64
	}
	return &Processor{rnd: rnd}
}

// Process derives one record per snapshot symbol, in snapshot order, and
// returns the price table to use as prev on the next cycle. A symbol missing
// from prev is treated as unchanged. prev is never modified.
func (p *Processor) Process(snap domain.Snapshot, prev domain.PriceTable) ([]domain.StockRecord, domain.PriceTable) {
	records := make([]domain.StockRecord, 0, len(snap.Symbols))
	next := make(domain.PriceTable, len(snap.Prices))

	for _, sym := range snap.Symbols {
		current, ok := snap.Prices[sym]
		if !ok {
			continue
		}
		next[sym] = current

		previous, ok := prev[sym]
		if !ok {
			previous = current
		}

		change := current - previous
		changePct := 0.0
		if previous != 0 {
			changePct = change / previous * 100
		}

		records = append(records, domain.StockRecord{
			Symbol:        sym,
			CurrentPrice:  current,
			Change:        change,
			ChangePercent: changePct,
			DayHigh:       current * (1 + p.rnd()*dayRangeSpread),
			DayLow:        current * (1 - p.rnd()*dayRangeSpread),
			Timestamp:     snap.Timestamp,
			Trend:         domain.TrendOf(change),
		})
	}
	return records, next
}
