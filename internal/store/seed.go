package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"stockticker/internal/domain"
)

// LoadSeedFile reads snapshots from a .csv or .parquet seed file.
func LoadSeedFile(path string, logger *slog.Logger) ([]domain.Snapshot, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSVFile(path, logger)
	case ".parquet":
		return LoadParquetFile(path)
	default:
		return nil, fmt.Errorf("unsupported seed file type %q", filepath.Ext(path))
	}
}

// SeedIfEmpty loads path into s when s holds no snapshots. It returns the
// number of snapshots inserted.
func SeedIfEmpty(ctx context.Context, s SnapshotStore, path string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Info("store already seeded", "snapshots", n)
		return 0, nil
	}
	if path == "" {
		return 0, nil
	}

	snaps, err := LoadSeedFile(path, logger)
	if err != nil {
		return 0, fmt.Errorf("loading seed: %w", err)
	}
	if err := s.SaveSnapshots(ctx, snaps); err != nil {
		return 0, fmt.Errorf("saving seed: %w", err)
	}
	logger.Info("seeded store", "path", path, "snapshots", len(snaps))
	return len(snaps), nil
}
