package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stockticker/internal/domain"
	"stockticker/internal/store"
	"stockticker/internal/util"
)

// Sink receives every stored snapshot. The websocket hub and the gRPC feed
// broker both implement it.
type Sink interface {
	Publish(snap domain.Snapshot)
}

// Publisher periodically pulls a snapshot from a Source, stores it and
// hands it to every sink.
type Publisher struct {
	src      Source
	store    store.SnapshotStore
	sinks    []Sink
	interval time.Duration
	log      *slog.Logger

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewPublisher creates a publisher. An interval of zero or less disables
// Run.
func NewPublisher(src Source, st store.SnapshotStore, interval time.Duration, log *slog.Logger, sinks ...Sink) *Publisher {
	return &Publisher{
		src:       src,
		store:     st,
		sinks:     sinks,
		interval:  interval,
		log:       log,
		attempts:  3,
		baseDelay: time.Second,
		maxDelay:  10 * time.Second,
	}
}

// Run publishes once per interval until ctx is cancelled. Failed cycles are
// logged and skipped.
func (p *Publisher) Run(ctx context.Context) error {
	if p.interval <= 0 {
		p.log.Info("publisher disabled")
		return nil
	}
	p.log.Info("publisher started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap, err := p.PublishOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.log.Warn("publish cycle failed", "error", err)
				continue
			}
			p.log.Debug("snapshot published", "id", snap.ID, "symbols", snap.Len())
		}
	}
}

// PublishOnce fetches, stores and broadcasts one snapshot. The fetch is
// retried with backoff.
func (p *Publisher) PublishOnce(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := util.Retry(ctx, p.attempts, p.baseDelay, p.maxDelay, func(ctx context.Context) error {
		var err error
		snap, err = p.src.Next(ctx)
		return err
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("fetching snapshot: %w", err)
	}

	id, err := p.store.SaveSnapshot(ctx, snap)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("saving snapshot: %w", err)
	}
	snap.ID = id

	for _, s := range p.sinks {
		s.Publish(snap)
	}
	return snap, nil
}
