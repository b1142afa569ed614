// Package store persists quote snapshots and user accounts for the ticker
// server, and loads seed data from CSV and Parquet files.
package store

import (
	"context"
	"errors"
	"time"

	"stockticker/internal/domain"
)

// ErrNotFound is returned when a requested snapshot or user does not exist.
var ErrNotFound = errors.New("not found")

// ErrExists is returned when creating a user whose name is taken.
var ErrExists = errors.New("already exists")

// SnapshotStore persists and retrieves quote snapshots. Symbol order within
// a snapshot is preserved.
type SnapshotStore interface {
	// SaveSnapshot inserts snap and returns its assigned ID.
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) (int64, error)

	// SaveSnapshots inserts a batch in one transaction.
	SaveSnapshots(ctx context.Context, snaps []domain.Snapshot) error

	// Latest returns the snapshot with the greatest timestamp.
	Latest(ctx context.Context) (domain.Snapshot, error)

	// Get returns the snapshot with the given ID.
	Get(ctx context.Context, id int64) (domain.Snapshot, error)

	// List returns one page of snapshots, newest first. page is zero-based.
	List(ctx context.Context, page, size int) (Page, error)

	// Range returns snapshots with timestamps in [start, end], oldest first.
	Range(ctx context.Context, start, end time.Time) ([]domain.Snapshot, error)

	// All returns every snapshot, oldest first.
	All(ctx context.Context) ([]domain.Snapshot, error)

	// Count returns the number of stored snapshots.
	Count(ctx context.Context) (int64, error)
}

// Page is one slice of a paginated listing.
type Page struct {
	Items      []domain.Snapshot
	Page       int
	Size       int
	Total      int64
	TotalPages int
}

// User is a stored account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser inserts a user; ErrExists if the name is taken.
	CreateUser(ctx context.Context, username, passwordHash string) (User, error)

	// GetUser returns the named user or ErrNotFound.
	GetUser(ctx context.Context, username string) (User, error)
}
