package db

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
)

// testDB is shared by the package's integration tests. It stays nil, and the
// tests skip, unless TEST_DATABASE_URL points at a disposable database.
var testDB *DB

func TestMain(m *testing.M) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	database, err := New(ctx, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to test database: %v\n", err)
		os.Exit(1)
	}
	testDB = database

	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

// resetSchema drops both tables and recreates them in the current shape.
func resetSchema(t *testing.T, ctx context.Context) {
	t.Helper()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS records",
		"DROP TABLE IF EXISTS plays",
	} {
		if _, err := testDB.pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("resetting schema: %v", err)
		}
	}
	if err := testDB.EnsureSchema(ctx, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("TEST_DATABASE_URL not set")
	}
}
