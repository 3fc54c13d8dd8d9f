package db

import "time"

// Record is one item in an owner's catalog. Rows are unique per
// (owner_username, external_id); the provider is authoritative for every
// field except AddedAt, which keeps its first-seen value across re-syncs.
type Record struct {
	OwnerUsername string
	ExternalID    string
	Title         string
	Artist        string
	CoverURL      string
	AddedAt       time.Time
	Genres        []string
	Styles        []string
	Year          *int    // nullable
	Label         *string // nullable
	Format        *string // nullable
}

// Play is one append-only play occurrence. No foreign key to records: a play
// may outlive the item it references.
type Play struct {
	OwnerUsername  string
	ItemExternalID string
	PlayedAt       time.Time
}

// PlayAggregate is the derived per-item play summary for one owner.
type PlayAggregate struct {
	ExternalID string
	PlayCount  int
	LastPlayed *time.Time // nil when the item has no plays
}
