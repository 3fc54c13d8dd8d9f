// Package ledger records and reconciles play events.
package ledger

import (
	"context"
	"errors"
	"time"

	"recordshelf/internal/db"
)

// MaxPlayCount caps reconciled counts; larger requests are clamped, not
// rejected.
const MaxPlayCount = 9999

// Common errors.
var (
	// ErrMissingExternalID is returned when an operation names no item.
	ErrMissingExternalID = errors.New("missing external_id")
)

// Store is the ledger's persistence surface.
type Store interface {
	Insert(ctx context.Context, owner, externalID string, playedAt time.Time) error
	Aggregates(ctx context.Context, owner string) ([]db.PlayAggregate, error)
	AggregateFor(ctx context.Context, owner, externalID string) (db.PlayAggregate, error)
	ReplaceCount(ctx context.Context, owner, externalID string, n int, stamp time.Time) error
}

// Service is the play ledger, scoped per call to one owner key.
type Service struct {
	store Store
}

// New creates a ledger service.
func New(store Store) *Service {
	return &Service{store: store}
}

// ListAggregates returns the owner's per-item play summaries.
func (s *Service) ListAggregates(ctx context.Context, owner string) ([]db.PlayAggregate, error) {
	return s.store.Aggregates(ctx, owner)
}

// RecordPlay appends one play event for the item and returns its fresh
// aggregate.
func (s *Service) RecordPlay(ctx context.Context, owner, externalID string) (db.PlayAggregate, error) {
	if externalID == "" {
		return db.PlayAggregate{}, ErrMissingExternalID
	}
	if err := s.store.Insert(ctx, owner, externalID, time.Now()); err != nil {
		return db.PlayAggregate{}, err
	}
	return s.store.AggregateFor(ctx, owner, externalID)
}

// SetPlayCount replaces the item's entire play history with exactly n events,
// all stamped now. History is intentionally not reconstructed; only the count
// is authoritative after this call. n is clamped to [0, MaxPlayCount].
func (s *Service) SetPlayCount(ctx context.Context, owner, externalID string, n int) (db.PlayAggregate, error) {
	if externalID == "" {
		return db.PlayAggregate{}, ErrMissingExternalID
	}

	if n < 0 {
		n = 0
	}
	if n > MaxPlayCount {
		n = MaxPlayCount
	}

	now := time.Now()
	if err := s.store.ReplaceCount(ctx, owner, externalID, n, now); err != nil {
		return db.PlayAggregate{}, err
	}

	agg := db.PlayAggregate{ExternalID: externalID, PlayCount: n}
	if n > 0 {
		agg.LastPlayed = &now
	}
	return agg, nil
}
