package db

import (
	"context"
	"fmt"
	"log/slog"
)

// createRecords is the current multi-tenant shape of the catalog table.
// Genres and styles are stored comma-joined; the repository splits them.
const createRecords = `
	CREATE TABLE IF NOT EXISTS records (
		owner_username TEXT NOT NULL DEFAULT '',
		external_id    TEXT NOT NULL,
		title          TEXT NOT NULL DEFAULT '',
		artist         TEXT NOT NULL DEFAULT '',
		cover_url      TEXT NOT NULL DEFAULT '',
		added_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		genres         TEXT NOT NULL DEFAULT '',
		styles         TEXT NOT NULL DEFAULT '',
		year           INT,
		label          TEXT,
		format         TEXT,
		UNIQUE (owner_username, external_id)
	)
`

const createPlays = `
	CREATE TABLE IF NOT EXISTS plays (
		owner_username   TEXT NOT NULL DEFAULT '',
		item_external_id TEXT NOT NULL,
		played_at        TIMESTAMPTZ NOT NULL
	)
`

// EnsureSchema creates or upgrades the records and plays tables. It is
// idempotent and safe to call on every startup.
//
// Additive column changes are attempted blindly and their failures swallowed
// as "already applied". The one destructive change — migrating a legacy
// single-tenant records table to the composite (owner_username, external_id)
// key — runs in a transaction and propagates any failure, since a partial
// rebuild would leave the store inconsistent.
func (db *DB) EnsureSchema(ctx context.Context, log *slog.Logger) error {
	recordsExists, err := db.tableExists(ctx, "records")
	if err != nil {
		return fmt.Errorf("checking records table: %w", err)
	}

	if !recordsExists {
		if _, err := db.pool.Exec(ctx, createRecords); err != nil {
			return fmt.Errorf("creating records table: %w", err)
		}
	} else {
		hasOwner, err := db.columnExists(ctx, "records", "owner_username")
		if err != nil {
			return fmt.Errorf("checking records.owner_username: %w", err)
		}
		if !hasOwner {
			// Legacy single-tenant table: uniqueness lives on external_id
			// alone, and the constraint itself has to change, so the table
			// cannot be altered in place.
			if err := db.rebuildRecords(ctx); err != nil {
				return fmt.Errorf("rebuilding legacy records table: %w", err)
			}
			log.Info("migrated legacy records table to multi-tenant shape")
		}
	}

	// Later column additions, attempted unconditionally.
	db.addColumn(ctx, log, "records", "genres TEXT NOT NULL DEFAULT ''")
	db.addColumn(ctx, log, "records", "styles TEXT NOT NULL DEFAULT ''")
	db.addColumn(ctx, log, "records", "year INT")
	db.addColumn(ctx, log, "records", "label TEXT")
	db.addColumn(ctx, log, "records", "format TEXT")

	if _, err := db.pool.Exec(ctx, createPlays); err != nil {
		return fmt.Errorf("creating plays table: %w", err)
	}
	db.addColumn(ctx, log, "plays", "owner_username TEXT NOT NULL DEFAULT ''")

	_, err = db.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS plays_owner_item_idx
		ON plays (owner_username, item_external_id)
	`)
	if err != nil {
		return fmt.Errorf("creating plays index: %w", err)
	}

	return nil
}

// rebuildRecords migrates a legacy single-tenant records table: create a
// shadow table in the new shape, copy every row with an empty owner sentinel,
// drop the old table, rename the shadow into place. All inside one
// transaction so a failure leaves the legacy table untouched.
func (db *DB) rebuildRecords(ctx context.Context) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	shadow := `
		CREATE TABLE records_next (
			owner_username TEXT NOT NULL DEFAULT '',
			external_id    TEXT NOT NULL,
			title          TEXT NOT NULL DEFAULT '',
			artist         TEXT NOT NULL DEFAULT '',
			cover_url      TEXT NOT NULL DEFAULT '',
			added_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			genres         TEXT NOT NULL DEFAULT '',
			styles         TEXT NOT NULL DEFAULT '',
			year           INT,
			label          TEXT,
			format         TEXT,
			UNIQUE (owner_username, external_id)
		)
	`
	if _, err := tx.Exec(ctx, shadow); err != nil {
		return fmt.Errorf("creating shadow table: %w", err)
	}

	// '' marks unclaimed legacy rows.
	_, err = tx.Exec(ctx, `
		INSERT INTO records_next (owner_username, external_id, title, artist, cover_url, added_at)
		SELECT '', external_id, title, artist, cover_url, added_at FROM records
	`)
	if err != nil {
		return fmt.Errorf("copying legacy rows: %w", err)
	}

	if _, err := tx.Exec(ctx, `DROP TABLE records`); err != nil {
		return fmt.Errorf("dropping legacy table: %w", err)
	}
	if _, err := tx.Exec(ctx, `ALTER TABLE records_next RENAME TO records`); err != nil {
		return fmt.Errorf("renaming shadow table: %w", err)
	}

	return tx.Commit(ctx)
}

// addColumn attempts an additive ADD COLUMN and treats failure as
// "column already exists".
func (db *DB) addColumn(ctx context.Context, log *slog.Logger, table, columnDef string) {
	query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, columnDef)
	if _, err := db.pool.Exec(ctx, query); err != nil {
		log.Debug("additive column change skipped", "table", table, "column", columnDef)
	}
}

func (db *DB) tableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)
	`, table).Scan(&exists)
	return exists, err
}

func (db *DB) columnExists(ctx context.Context, table, column string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
		)
	`, table, column).Scan(&exists)
	return exists, err
}
