package db

import (
	"context"
	"testing"
	"time"
)

func sampleRecord(externalID, title string) Record {
	year := 1977
	label := "SST"
	format := "Vinyl"
	return Record{
		ExternalID: externalID,
		Title:      title,
		Artist:     "The Band",
		CoverURL:   "https://img.example/c.jpg",
		AddedAt:    time.Date(2022, 3, 1, 10, 0, 0, 0, time.UTC),
		Genres:     []string{"Rock", "Punk"},
		Styles:     []string{"Garage"},
		Year:       &year,
		Label:      &label,
		Format:     &format,
	}
}

// findRecord fetches one of the owner's records through the list surface.
func findRecord(t *testing.T, ctx context.Context, owner, externalID string) Record {
	t.Helper()
	records, err := testDB.Records().ListByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	for _, rec := range records {
		if rec.ExternalID == externalID {
			return rec
		}
	}
	t.Fatalf("no record %q for owner %q", externalID, owner)
	return Record{}
}

func TestUpsertBatchIdempotent(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetSchema(t, ctx)
	repo := testDB.Records()

	recs := []Record{sampleRecord("100", "A"), sampleRecord("101", "B")}
	if err := repo.UpsertBatch(ctx, "alice", recs); err != nil {
		t.Fatalf("first UpsertBatch: %v", err)
	}

	first, err := repo.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("got %d records, want 2", len(first))
	}

	// Re-sync the identical snapshot: same row count, same added_at.
	if err := repo.UpsertBatch(ctx, "alice", recs); err != nil {
		t.Fatalf("second UpsertBatch: %v", err)
	}
	second, err := repo.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("got %d records after re-sync, want 2", len(second))
	}
	for i := range first {
		if !second[i].AddedAt.Equal(first[i].AddedAt) {
			t.Errorf("added_at changed on re-sync: %v != %v", second[i].AddedAt, first[i].AddedAt)
		}
	}
}

func TestUpsertBatchUpdatesFieldsButNotAddedAt(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetSchema(t, ctx)
	repo := testDB.Records()

	rec := sampleRecord("100", "Old Title")
	if err := repo.UpsertBatch(ctx, "alice", []Record{rec}); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	changed := rec
	changed.Title = "New Title"
	changed.AddedAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.UpsertBatch(ctx, "alice", []Record{changed}); err != nil {
		t.Fatalf("UpsertBatch update: %v", err)
	}

	got := findRecord(t, ctx, "alice", "100")
	if got.Title != "New Title" {
		t.Errorf("Title = %q, want updated title", got.Title)
	}
	if !got.AddedAt.Equal(rec.AddedAt) {
		t.Errorf("AddedAt = %v, want first-seen %v", got.AddedAt, rec.AddedAt)
	}
}

func TestRecordsScopedPerOwner(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetSchema(t, ctx)
	repo := testDB.Records()

	if err := repo.UpsertBatch(ctx, "alice", []Record{sampleRecord("100", "Alice's copy")}); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertBatch(ctx, "bob", []Record{sampleRecord("100", "Bob's copy")}); err != nil {
		t.Fatal(err)
	}

	aliceRecs, err := repo.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	bobRecs, err := repo.ListByOwner(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}

	if len(aliceRecs) != 1 || len(bobRecs) != 1 {
		t.Fatalf("alice=%d bob=%d, want 1 each", len(aliceRecs), len(bobRecs))
	}
	if aliceRecs[0].Title != "Alice's copy" || bobRecs[0].Title != "Bob's copy" {
		t.Error("owners see each other's rows")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetSchema(t, ctx)
	repo := testDB.Records()

	rec := sampleRecord("100", "A")
	if err := repo.UpsertBatch(ctx, "alice", []Record{rec}); err != nil {
		t.Fatal(err)
	}

	got := findRecord(t, ctx, "alice", "100")
	if len(got.Genres) != 2 || got.Genres[0] != "Rock" || got.Genres[1] != "Punk" {
		t.Errorf("Genres = %#v", got.Genres)
	}
	if len(got.Styles) != 1 || got.Styles[0] != "Garage" {
		t.Errorf("Styles = %#v", got.Styles)
	}
	if got.Year == nil || *got.Year != 1977 {
		t.Errorf("Year = %v", got.Year)
	}

	// Empty lists come back as empty slices, not nil.
	bare := Record{ExternalID: "200", Genres: []string{}, Styles: []string{}}
	if err := repo.UpsertBatch(ctx, "alice", []Record{bare}); err != nil {
		t.Fatal(err)
	}
	gotBare := findRecord(t, ctx, "alice", "200")
	if gotBare.Genres == nil || len(gotBare.Genres) != 0 {
		t.Errorf("Genres = %#v, want empty slice", gotBare.Genres)
	}
	if gotBare.Year != nil || gotBare.Label != nil || gotBare.Format != nil {
		t.Error("nullable fields should round-trip as nil")
	}
}

func TestUpsertBatchDuplicateExternalID(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	resetSchema(t, ctx)
	repo := testDB.Records()

	// Two owned copies of the same release arrive as two entries with the
	// same id; the batch must still go through as one statement.
	batch := []Record{
		sampleRecord("100", "First copy"),
		sampleRecord("200", "Other"),
		sampleRecord("100", "Second copy"),
	}
	if err := repo.UpsertBatch(ctx, "alice", batch); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	records, err := repo.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if got := findRecord(t, ctx, "alice", "100"); got.Title != "Second copy" {
		t.Errorf("Title = %q, want the last duplicate's fields", got.Title)
	}
}

func TestDedupeByExternalID(t *testing.T) {
	in := []Record{
		{ExternalID: "100", Title: "first"},
		{ExternalID: "200", Title: "other"},
		{ExternalID: "100", Title: "last"},
	}
	out := dedupeByExternalID(in)
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[0].ExternalID != "100" || out[0].Title != "last" {
		t.Errorf("out[0] = %+v, want id 100 with the last occurrence's fields", out[0])
	}
	if out[1].ExternalID != "200" {
		t.Errorf("out[1] = %+v, want id 200", out[1])
	}
}
