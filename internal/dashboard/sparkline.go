package dashboard

import "math/rand/v2"

const (
	// StaticPoints is the length of a table/card sparkline.
	StaticPoints = 20
	// TickerPoints is the length of a ticker-strip sparkline.
	TickerPoints = 10
	// DefaultBasePrice anchors a static path for a symbol with no price.
	DefaultBasePrice = 100.0

	staticVariation = 0.1
	tickerVariation = 0.05
)

// Synthesizer produces decorative sparkline paths around a price. The paths
// carry no historical meaning.
type Synthesizer struct {
	rnd func() float64
}

// NewSynthesizer returns a Synthesizer drawing from math/rand/v2. A nil rnd
// uses rand.Float64.
func NewSynthesizer(rnd func() float64) *Synthesizer {
	if rnd == nil {
		rnd = rand.Float64
	}
	return &Synthesizer{rnd: rnd}
}

// Static returns StaticPoints values, each within ±5% of base.
func (s *Synthesizer) Static(base float64) []float64 {
	path := make([]float64, StaticPoints)
	for i := range path {
		v := (s.rnd() - 0.5) * staticVariation
		path[i] = base * (1 + v)
	}
	return path
}

// Ticker returns TickerPoints values whose variation narrows toward the end;
// the final point is exactly current.
func (s *Synthesizer) Ticker(current float64) []float64 {
	path := make([]float64, TickerPoints)
	for i := range path {
		v := (s.rnd() - 0.5) * tickerVariation
		path[i] = current * (1 + v*(1-float64(i)/TickerPoints))
	}
	path[TickerPoints-1] = current
	return path
}

// StaticFor looks sym up in prices and falls back to DefaultBasePrice.
func (s *Synthesizer) StaticFor(sym string, prices map[string]float64) []float64 {
	base, ok := prices[sym]
	if !ok {
		base = DefaultBasePrice
	}
	return s.Static(base)
}
