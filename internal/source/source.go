// Package source produces fresh quote snapshots for the server to store and
// broadcast.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stockticker/internal/config"
	"stockticker/internal/domain"
	"stockticker/internal/util"
)

// ErrNoQuotes is returned when a source has nothing to offer.
var ErrNoQuotes = errors.New("no quotes available")

// Source yields the next snapshot of current prices.
type Source interface {
	Next(ctx context.Context) (domain.Snapshot, error)
}

// ---------------------------------------------------------------------------
// Replay
// ---------------------------------------------------------------------------

var _ Source = (*ReplaySource)(nil)

// ReplaySource cycles through a fixed list of snapshots, stamping each with
// the current time.
type ReplaySource struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
	pos   int
	now   func() time.Time
}

// NewReplaySource creates a replay over snaps, which must not be empty.
func NewReplaySource(snaps []domain.Snapshot) (*ReplaySource, error) {
	if len(snaps) == 0 {
		return nil, fmt.Errorf("replay source: %w", ErrNoQuotes)
	}
	return &ReplaySource{snaps: snaps, now: time.Now}, nil
}

// Next returns the next snapshot in the cycle.
func (r *ReplaySource) Next(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.snaps[r.pos]
	r.pos = (r.pos + 1) % len(r.snaps)
	return domain.NewSnapshot(r.now().Truncate(time.Second), src.Symbols, src.Prices), nil
}

// ---------------------------------------------------------------------------
// Alpaca
// ---------------------------------------------------------------------------

// alpacaRequestsPerMinute keeps well below the free data plan quota.
const alpacaRequestsPerMinute = 150

// latestTrader is the part of the Alpaca market-data client AlpacaSource
// uses.
type latestTrader interface {
	GetLatestTrades(symbols []string, req marketdata.GetLatestTradeRequest) (map[string]marketdata.Trade, error)
}

var _ Source = (*AlpacaSource)(nil)

// AlpacaSource reads the latest trade price of each configured symbol from
// the Alpaca market-data API.
type AlpacaSource struct {
	client  latestTrader
	symbols []string
	limiter *util.RateLimiter
	now     func() time.Time
}

// NewAlpacaSource creates a source for the given symbols using the
// configured credentials.
func NewAlpacaSource(cfg config.Alpaca, symbols []string) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return newAlpacaSource(marketdata.NewClient(opts), symbols)
}

func newAlpacaSource(client latestTrader, symbols []string) *AlpacaSource {
	clean := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			clean = append(clean, s)
		}
	}
	return &AlpacaSource{
		client:  client,
		symbols: clean,
		limiter: util.NewRateLimiter(alpacaRequestsPerMinute),
		now:     time.Now,
	}
}

// Symbols returns the symbols the source asks for, in snapshot order.
func (a *AlpacaSource) Symbols() []string { return a.symbols }

// Next fetches the latest trades. Symbols without a trade are left out of
// the snapshot.
func (a *AlpacaSource) Next(ctx context.Context) (domain.Snapshot, error) {
	if len(a.symbols) == 0 {
		return domain.Snapshot{}, util.Permanent(fmt.Errorf("alpaca: no symbols configured: %w", ErrNoQuotes))
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.Snapshot{}, err
	}

	trades, err := a.client.GetLatestTrades(a.symbols, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("alpaca latest trades: %w", err)
	}

	prices := make(map[string]float64, len(trades))
	for sym, t := range trades {
		if t.Price > 0 {
			prices[sym] = t.Price
		}
	}
	snap := domain.NewSnapshot(a.now().Truncate(time.Second), a.symbols, prices)
	if snap.Len() == 0 {
		return domain.Snapshot{}, fmt.Errorf("alpaca: %w", ErrNoQuotes)
	}
	return snap, nil
}
