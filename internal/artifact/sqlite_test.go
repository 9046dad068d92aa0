package artifact

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestCache(t *testing.T) *SQLite {
	t.Helper()
	c, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSQLitePut(t *testing.T) {
	t.Run("stores files under a fingerprint", func(t *testing.T) {
		t.Parallel()
		c := openTestCache(t)
		ctx := context.Background()

		if err := c.Put(ctx, "fp-1", []string{"gen/a.go", "gen/b.go"}); err != nil {
			t.Fatalf("put: %v", err)
		}
		st, err := c.Stats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if st.Fingerprints != 1 || st.Files != 2 {
			t.Fatalf("stats = %+v, want 1 fingerprint / 2 files", st)
		}
	})

	t.Run("resubmitting is idempotent", func(t *testing.T) {
		t.Parallel()
		c := openTestCache(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			if err := c.Put(ctx, "fp-1", []string{"gen/a.go"}); err != nil {
				t.Fatalf("put %d: %v", i, err)
			}
		}
		st, err := c.Stats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if st.Fingerprints != 1 || st.Files != 1 {
			t.Fatalf("stats = %+v, want 1 fingerprint / 1 file", st)
		}
	})

	t.Run("rejects empty fingerprint", func(t *testing.T) {
		t.Parallel()
		c := openTestCache(t)
		if err := c.Put(context.Background(), "", []string{"gen/a.go"}); err == nil {
			t.Fatal("expected error for empty fingerprint")
		}
	})

	t.Run("distinct fingerprints accumulate", func(t *testing.T) {
		t.Parallel()
		c := openTestCache(t)
		ctx := context.Background()

		if err := c.Put(ctx, "fp-1", []string{"gen/a.go"}); err != nil {
			t.Fatalf("put fp-1: %v", err)
		}
		if err := c.Put(ctx, "fp-2", []string{"gen/a.go", "gen/c.go"}); err != nil {
			t.Fatalf("put fp-2: %v", err)
		}
		st, err := c.Stats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if st.Fingerprints != 2 || st.Files != 3 {
			t.Fatalf("stats = %+v, want 2 fingerprints / 3 files", st)
		}
	})
}

func TestNop(t *testing.T) {
	t.Parallel()
	if err := (Nop{}).Put(context.Background(), "fp", []string{"x"}); err != nil {
		t.Fatalf("nop put: %v", err)
	}
}
