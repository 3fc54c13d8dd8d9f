package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayRepository handles the append-only play ledger.
type PlayRepository struct {
	pool *pgxpool.Pool
}

// Insert appends one play event.
func (r *PlayRepository) Insert(ctx context.Context, owner, externalID string, playedAt time.Time) error {
	query := `
		INSERT INTO plays (owner_username, item_external_id, played_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.pool.Exec(ctx, query, owner, externalID, playedAt)
	if err != nil {
		return fmt.Errorf("inserting play: %w", err)
	}
	return nil
}

// Aggregates returns the per-item play summary for one owner, most recently
// played first.
func (r *PlayRepository) Aggregates(ctx context.Context, owner string) ([]PlayAggregate, error) {
	query := `
		SELECT item_external_id, COUNT(*)::int, MAX(played_at)
		FROM plays
		WHERE owner_username = $1
		GROUP BY item_external_id
		ORDER BY MAX(played_at) DESC
	`
	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("querying play aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []PlayAggregate
	for rows.Next() {
		var agg PlayAggregate
		var last time.Time
		if err := rows.Scan(&agg.ExternalID, &agg.PlayCount, &last); err != nil {
			return nil, fmt.Errorf("scanning play aggregate: %w", err)
		}
		agg.LastPlayed = &last
		aggs = append(aggs, agg)
	}
	return aggs, rows.Err()
}

// AggregateFor returns the play summary for one item. An item with no plays
// yields a zero count and a nil last-played time, not an error.
func (r *PlayRepository) AggregateFor(ctx context.Context, owner, externalID string) (PlayAggregate, error) {
	query := `
		SELECT COUNT(*)::int, MAX(played_at)
		FROM plays
		WHERE owner_username = $1 AND item_external_id = $2
	`
	agg := PlayAggregate{ExternalID: externalID}
	var last *time.Time
	err := r.pool.QueryRow(ctx, query, owner, externalID).Scan(&agg.PlayCount, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return agg, nil
	}
	if err != nil {
		return PlayAggregate{}, fmt.Errorf("querying play aggregate: %w", err)
	}
	agg.LastPlayed = last
	return agg, nil
}

// ReplaceCount reconciles an item's history to exactly n events, all stamped
// with the given time. Delete and re-insert run in one transaction so two
// concurrent reconciliations cannot interleave.
func (r *PlayRepository) ReplaceCount(ctx context.Context, owner, externalID string, n int, stamp time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM plays
		WHERE owner_username = $1 AND item_external_id = $2
	`, owner, externalID)
	if err != nil {
		return fmt.Errorf("clearing plays: %w", err)
	}

	if n > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO plays (owner_username, item_external_id, played_at)
			SELECT $1, $2, $3 FROM generate_series(1, $4)
		`, owner, externalID, stamp, n)
		if err != nil {
			return fmt.Errorf("inserting plays: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing reconciliation: %w", err)
	}
	return nil
}
