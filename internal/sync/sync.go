// Package sync merges the provider's catalog into the store.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"recordshelf/internal/db"
	"recordshelf/internal/discogs"
	"recordshelf/internal/session"
)

// Common errors.
var (
	// ErrNoOwner is returned when neither an authenticated username nor a
	// configured fallback owner is available.
	ErrNoOwner = errors.New("no resolvable owner")
)

// Store is the persistence surface the engine writes to and reads back from.
type Store interface {
	UpsertBatch(ctx context.Context, owner string, records []db.Record) error
	ListByOwner(ctx context.Context, owner string) ([]db.Record, error)
}

// ClientSource builds a provider catalog client for a set of delegated
// credentials (either may be empty).
type ClientSource interface {
	ClientFor(ctx context.Context, accessToken, accessSecret string) *discogs.Client
}

// Service is the catalog sync engine.
type Service struct {
	store         Store
	clients       ClientSource
	fallbackOwner string
	log           *slog.Logger
}

// New creates a sync service.
func New(store Store, clients ClientSource, fallbackOwner string, log *slog.Logger) *Service {
	return &Service{
		store:         store,
		clients:       clients,
		fallbackOwner: fallbackOwner,
		log:           log,
	}
}

// Sync pulls the owner's entire collection from the provider, merges it into
// the store, and returns the post-merge catalog.
//
// The fetch is all-or-nothing: a failure on any page discards everything
// retrieved in this attempt, and nothing is written until every page is in.
// The merge is a single batched upsert that never touches added_at.
func (s *Service) Sync(ctx context.Context, id *session.Identity) ([]db.Record, error) {
	owner, ok := session.OwnerKey(id, s.fallbackOwner)
	if !ok {
		return nil, ErrNoOwner
	}

	token, secret := credentials(id)
	client := s.clients.ClientFor(ctx, token, secret)
	releases, err := client.Releases(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog for %q: %w", owner, err)
	}

	records := make([]db.Record, len(releases))
	for i, rel := range releases {
		records[i] = db.Record{
			OwnerUsername: owner,
			ExternalID:    rel.ExternalID,
			Title:         rel.Title,
			Artist:        rel.Artist,
			CoverURL:      rel.CoverURL,
			AddedAt:       rel.DateAdded,
			Genres:        rel.Genres,
			Styles:        rel.Styles,
			Year:          rel.Year,
			Label:         rel.Label,
			Format:        rel.Format,
		}
	}

	if err := s.store.UpsertBatch(ctx, owner, records); err != nil {
		return nil, fmt.Errorf("merging catalog for %q: %w", owner, err)
	}

	s.log.Info("catalog synced", "owner", owner, "items", len(records))

	return s.store.ListByOwner(ctx, owner)
}

// Catalog returns the owner's catalog from the store only, no provider round
// trip.
func (s *Service) Catalog(ctx context.Context, id *session.Identity) ([]db.Record, error) {
	owner, ok := session.OwnerKey(id, s.fallbackOwner)
	if !ok {
		return nil, ErrNoOwner
	}
	return s.store.ListByOwner(ctx, owner)
}

func credentials(id *session.Identity) (token, secret string) {
	if id == nil {
		return "", ""
	}
	return id.AccessToken, id.AccessTokenSecret
}
