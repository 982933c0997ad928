package repo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/tinoosan/modsync/internal/data"
)

// Runs only when MODSYNC_TEST_DATABASE_URL points at a scratch database.
func TestPostgresRepo(t *testing.T) {
	dsn := os.Getenv("MODSYNC_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MODSYNC_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	repo, err := NewPostgresRepo(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	if _, err := repo.db.ExecContext(ctx, `TRUNCATE mod_outcomes`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	failed := NewRecord("a", outcome(9, 1, errors.New("boom")))
	if _, err := repo.Latest(ctx, failed.Fingerprint); !errors.Is(err, data.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Add(ctx, failed); err != nil {
		t.Fatalf("Add: %v", err)
	}
	okRec := NewRecord("b", outcome(9, 1, nil))
	okRec.At = failed.At.Add(time.Second)
	if _, err := repo.Add(ctx, okRec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := repo.Add(ctx, NewRecord("b", outcome(8, 2, nil))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	latest, err := repo.Latest(ctx, failed.Fingerprint)
	if err != nil || latest.RunID != "b" {
		t.Fatalf("Latest = %+v, %v", latest, err)
	}
	list, err := repo.List(ctx, 9, 0)
	if err != nil || len(list) != 2 || list[0].RunID != "a" {
		t.Fatalf("List = %+v, %v", list, err)
	}
	all, err := repo.List(ctx, 0, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("List all = %d, %v", len(all), err)
	}
}
