package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stockticker/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ SnapshotStore = (*SQLiteStore)(nil)
var _ UserStore = (*SQLiteStore)(nil)

// SQLiteStore implements SnapshotStore and UserStore backed by a SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stock_data (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_data_timestamp ON stock_data(timestamp)`,
	`CREATE TABLE IF NOT EXISTS stock_prices (
		stock_data_id INTEGER NOT NULL REFERENCES stock_data(id) ON DELETE CASCADE,
		position      INTEGER NOT NULL,
		symbol        TEXT    NOT NULL,
		price         REAL    NOT NULL,
		PRIMARY KEY (stock_data_id, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT    NOT NULL UNIQUE,
		password_hash TEXT    NOT NULL,
		created_at    INTEGER NOT NULL
	)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// tables if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// SnapshotStore implementation
// ---------------------------------------------------------------------------

// SaveSnapshot inserts snap and its prices.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap domain.Snapshot) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	id, err := insertSnapshot(ctx, tx, snap)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing snapshot: %w", err)
	}
	return id, nil
}

// SaveSnapshots inserts a batch of snapshots in one transaction.
func (s *SQLiteStore) SaveSnapshots(ctx context.Context, snaps []domain.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range snaps {
		if _, err := insertSnapshot(ctx, tx, snaps[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshots: %w", err)
	}
	return nil
}

func insertSnapshot(ctx context.Context, tx *sql.Tx, snap domain.Snapshot) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO stock_data (timestamp) VALUES (?)`, snap.Timestamp.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("inserting stock_data: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO stock_prices (stock_data_id, position, symbol, price) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for pos, sym := range snap.Symbols {
		price, ok := snap.Prices[sym]
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, pos, sym, price); err != nil {
			return 0, fmt.Errorf("inserting price %s: %w", sym, err)
		}
	}
	return id, nil
}

// Latest returns the most recent snapshot, or ErrNotFound when empty.
func (s *SQLiteStore) Latest(ctx context.Context) (domain.Snapshot, error) {
	snaps, err := s.query(ctx, `SELECT id, timestamp FROM stock_data ORDER BY timestamp DESC, id DESC LIMIT 1`)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if len(snaps) == 0 {
		return domain.Snapshot{}, ErrNotFound
	}
	return snaps[0], nil
}

// Get returns the snapshot with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (domain.Snapshot, error) {
	snaps, err := s.query(ctx, `SELECT id, timestamp FROM stock_data WHERE id = ?`, id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if len(snaps) == 0 {
		return domain.Snapshot{}, ErrNotFound
	}
	return snaps[0], nil
}

// List returns one zero-based page, newest first.
func (s *SQLiteStore) List(ctx context.Context, page, size int) (Page, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 10
	}
	total, err := s.Count(ctx)
	if err != nil {
		return Page{}, err
	}
	items, err := s.query(ctx,
		`SELECT id, timestamp FROM stock_data ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`,
		size, page*size)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Items:      items,
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}

// Range returns snapshots with start <= timestamp <= end, oldest first.
func (s *SQLiteStore) Range(ctx context.Context, start, end time.Time) ([]domain.Snapshot, error) {
	return s.query(ctx,
		`SELECT id, timestamp FROM stock_data WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp, id`,
		start.UnixMilli(), end.UnixMilli())
}

// All returns every snapshot, oldest first.
func (s *SQLiteStore) All(ctx context.Context) ([]domain.Snapshot, error) {
	return s.query(ctx, `SELECT id, timestamp FROM stock_data ORDER BY timestamp, id`)
}

// Count returns the number of stored snapshots.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_data`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting stock_data: %w", err)
	}
	return n, nil
}

// query runs a stock_data header query and attaches each row's prices.
func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying stock_data: %w", err)
	}

	var snaps []domain.Snapshot
	index := make(map[int64]int)
	for rows.Next() {
		var id, ts int64
		if err := rows.Scan(&id, &ts); err != nil {
			rows.Close()
			return nil, err
		}
		index[id] = len(snaps)
		snaps = append(snaps, domain.Snapshot{
			ID:        id,
			Timestamp: time.UnixMilli(ts),
			Prices:    make(map[string]float64),
		})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(snaps) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(snaps)), ",")
	ids := make([]any, len(snaps))
	for i := range snaps {
		ids[i] = snaps[i].ID
	}
	prows, err := s.db.QueryContext(ctx,
		`SELECT stock_data_id, symbol, price FROM stock_prices WHERE stock_data_id IN (`+placeholders+`) ORDER BY stock_data_id, position`,
		ids...)
	if err != nil {
		return nil, fmt.Errorf("querying stock_prices: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var (
			id    int64
			sym   string
			price float64
		)
		if err := prows.Scan(&id, &sym, &price); err != nil {
			return nil, err
		}
		snap := &snaps[index[id]]
		snap.Symbols = append(snap.Symbols, sym)
		snap.Prices[sym] = price
	}
	return snaps, prows.Err()
}

// ---------------------------------------------------------------------------
// UserStore implementation
// ---------------------------------------------------------------------------

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	if _, err := s.GetUser(ctx, username); err == nil {
		return User{}, fmt.Errorf("user %q: %w", username, ErrExists)
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, now.UnixMilli())
	if err != nil {
		return User{}, fmt.Errorf("inserting user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: time.UnixMilli(now.UnixMilli())}, nil
}

// GetUser retrieves a user by name.
func (s *SQLiteStore) GetUser(ctx context.Context, username string) (User, error) {
	var (
		u       User
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("querying user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(created)
	return u, nil
}
