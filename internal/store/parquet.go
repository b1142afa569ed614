package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"stockticker/internal/domain"
)

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// PriceRecord is the long-format Parquet schema: one row per symbol per
// snapshot. Rows of one snapshot share a timestamp and appear in symbol
// order.
type PriceRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Symbol    string  `parquet:"symbol"`
	Price     float64 `parquet:"price"`
}

// LoadParquetFile reads snapshots from a long-format Parquet file. Rows are
// grouped by timestamp; within a snapshot symbols keep their row order.
func LoadParquetFile(path string) ([]domain.Snapshot, error) {
	rows, err := readParquetFile[PriceRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return recordsToSnapshots(rows), nil
}

// ExportParquet writes every stored snapshot to path in long format and
// returns the number of snapshots written.
func ExportParquet(ctx context.Context, s SnapshotStore, path string) (int, error) {
	snaps, err := s.All(ctx)
	if err != nil {
		return 0, err
	}
	if err := writeParquetFile(path, snapshotsToRecords(snaps)); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return len(snaps), nil
}

func snapshotsToRecords(snaps []domain.Snapshot) []PriceRecord {
	var out []PriceRecord
	for _, s := range snaps {
		ts := s.Timestamp.UnixMilli()
		for _, sym := range s.Symbols {
			out = append(out, PriceRecord{Timestamp: ts, Symbol: sym, Price: s.Prices[sym]})
		}
	}
	return out
}

func recordsToSnapshots(rows []PriceRecord) []domain.Snapshot {
	type group struct {
		symbols []string
		prices  map[string]float64
	}
	groups := make(map[int64]*group)
	var order []int64
	for _, r := range rows {
		g, ok := groups[r.Timestamp]
		if !ok {
			g = &group{prices: make(map[string]float64)}
			groups[r.Timestamp] = g
			order = append(order, r.Timestamp)
		}
		if _, dup := g.prices[r.Symbol]; !dup {
			g.symbols = append(g.symbols, r.Symbol)
		}
		g.prices[r.Symbol] = r.Price
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	snaps := make([]domain.Snapshot, 0, len(order))
	for _, ts := range order {
		g := groups[ts]
		snaps = append(snaps, domain.NewSnapshot(time.UnixMilli(ts), g.symbols, g.prices))
	}
	return snaps
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
