package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"stockticker/internal/domain"
)

// CSVTimestampLayout is the timestamp column format of seed CSV files.
const CSVTimestampLayout = "2006-01-02 15:04:05"

// LoadCSVFile reads a wide seed CSV from path. See ParseCSV.
func LoadCSVFile(path string, logger *slog.Logger) ([]domain.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCSV(f, logger)
}

// ParseCSV reads snapshots from a CSV whose header is
// "timestamp,SYM1,SYM2,..." and whose rows hold one price per symbol. Rows
// with a bad timestamp are skipped, as are cells that are empty or not a
// number. Symbol order follows the header.
func ParseCSV(r io.Reader, logger *slog.Logger) ([]domain.Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("csv: reading header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff")), "timestamp") {
		return nil, fmt.Errorf("csv: header must start with timestamp, got %q", header)
	}
	symbols := make([]string, len(header)-1)
	for i, h := range header[1:] {
		symbols[i] = strings.TrimSpace(h)
	}

	var snaps []domain.Snapshot
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}

		ts, err := time.ParseInLocation(CSVTimestampLayout, strings.TrimSpace(rec[0]), time.Local)
		if err != nil {
			logger.Warn("skipping csv row with bad timestamp", "line", line, "value", rec[0])
			continue
		}

		prices := make(map[string]float64, len(symbols))
		for i, sym := range symbols {
			if i+1 >= len(rec) {
				break
			}
			cell := strings.TrimSpace(rec[i+1])
			if cell == "" {
				continue
			}
			p, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				logger.Debug("skipping invalid price", "line", line, "symbol", sym, "value", cell)
				continue
			}
			prices[sym] = p
		}
		snaps = append(snaps, domain.NewSnapshot(ts, symbols, prices))
	}
	return snaps, nil
}
