package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordRepository handles catalog record database operations.
type RecordRepository struct {
	pool *pgxpool.Pool
}

// UpsertBatch inserts or updates the owner's records in a single round trip.
// On conflict every field is taken from the incoming row except added_at,
// which keeps its first-seen value.
func (r *RecordRepository) UpsertBatch(ctx context.Context, owner string, records []Record) error {
	// The provider's listing carries one row per owned copy, so a batch can
	// hold the same external_id twice; a single INSERT ... ON CONFLICT DO
	// UPDATE cannot touch the same conflict key twice. Last occurrence wins.
	records = dedupeByExternalID(records)
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO records (owner_username, external_id, title, artist, cover_url, added_at, genres, styles, year, label, format)
		SELECT $1, * FROM unnest($2::text[], $3::text[], $4::text[], $5::text[], $6::timestamptz[], $7::text[], $8::text[], $9::int[], $10::text[], $11::text[])
		ON CONFLICT (owner_username, external_id) DO UPDATE SET
			title = EXCLUDED.title,
			artist = EXCLUDED.artist,
			cover_url = EXCLUDED.cover_url,
			genres = EXCLUDED.genres,
			styles = EXCLUDED.styles,
			year = EXCLUDED.year,
			label = EXCLUDED.label,
			format = EXCLUDED.format
	`

	ids := make([]string, len(records))
	titles := make([]string, len(records))
	artists := make([]string, len(records))
	coverURLs := make([]string, len(records))
	addedAts := make([]time.Time, len(records))
	genres := make([]string, len(records))
	styles := make([]string, len(records))
	years := make([]*int, len(records))
	labels := make([]*string, len(records))
	formats := make([]*string, len(records))

	now := time.Now()
	for i, rec := range records {
		ids[i] = rec.ExternalID
		titles[i] = rec.Title
		artists[i] = rec.Artist
		coverURLs[i] = rec.CoverURL
		if rec.AddedAt.IsZero() {
			addedAts[i] = now
		} else {
			addedAts[i] = rec.AddedAt
		}
		genres[i] = joinList(rec.Genres)
		styles[i] = joinList(rec.Styles)
		years[i] = rec.Year
		labels[i] = rec.Label
		formats[i] = rec.Format
	}

	_, err := r.pool.Exec(ctx, query,
		owner, ids, titles, artists, coverURLs, addedAts, genres, styles, years, labels, formats,
	)
	if err != nil {
		return fmt.Errorf("batch upserting records: %w", err)
	}
	return nil
}

// ListByOwner retrieves the owner's full catalog, newest first.
func (r *RecordRepository) ListByOwner(ctx context.Context, owner string) ([]Record, error) {
	query := `
		SELECT owner_username, external_id, title, artist, cover_url, added_at, genres, styles, year, label, format
		FROM records
		WHERE owner_username = $1
		ORDER BY added_at DESC, external_id
	`
	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// scanRecord maps one row into a Record, failing closed on type mismatches.
func scanRecord(rows pgx.Rows) (Record, error) {
	var rec Record
	var genres, styles string
	err := rows.Scan(
		&rec.OwnerUsername,
		&rec.ExternalID,
		&rec.Title,
		&rec.Artist,
		&rec.CoverURL,
		&rec.AddedAt,
		&genres,
		&styles,
		&rec.Year,
		&rec.Label,
		&rec.Format,
	)
	if err != nil {
		return Record{}, fmt.Errorf("scanning record: %w", err)
	}
	rec.Genres = splitList(genres)
	rec.Styles = splitList(styles)
	return rec, nil
}

// dedupeByExternalID collapses duplicate external ids, keeping the position
// of the first occurrence and the fields of the last.
func dedupeByExternalID(records []Record) []Record {
	seen := make(map[string]int, len(records))
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if i, ok := seen[rec.ExternalID]; ok {
			out[i] = rec
			continue
		}
		seen[rec.ExternalID] = len(out)
		out = append(out, rec)
	}
	return out
}

// joinList flattens a value list for storage. Values come from the provider's
// genre/style vocabularies, which do not contain the separator.
func joinList(values []string) string {
	return strings.Join(values, ",")
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
