package artifact

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	fingerprint TEXT NOT NULL,
	path        TEXT NOT NULL,
	stored_at   TEXT NOT NULL,
	PRIMARY KEY (fingerprint, path)
);
CREATE INDEX IF NOT EXISTS idx_artifacts_fingerprint ON artifacts(fingerprint);
`

// SQLite is a Cache backed by a local SQLite database. Entries are keyed by
// (fingerprint, path) so resubmitting the same artifact set is idempotent.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the cache database at path and
// applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply cache schema: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Put records the generated files for a fingerprint. Existing rows for the
// same (fingerprint, path) pair are refreshed in place.
func (s *SQLite) Put(ctx context.Context, fingerprint string, files []string) error {
	if fingerprint == "" {
		return fmt.Errorf("put artifact: empty fingerprint")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache tx: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, f := range files {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO artifacts (fingerprint, path, stored_at) VALUES (?, ?, ?)
			 ON CONFLICT(fingerprint, path) DO UPDATE SET stored_at = excluded.stored_at`,
			fingerprint, f, now,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert artifact %s: %w", f, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache tx: %w", err)
	}
	return nil
}

// Stats summarizes the cache contents for reporting.
type Stats struct {
	Fingerprints int
	Files        int
}

// Stats returns counts of distinct fingerprints and stored file rows.
func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT fingerprint), COUNT(*) FROM artifacts`)
	if err := row.Scan(&st.Fingerprints, &st.Files); err != nil {
		return Stats{}, fmt.Errorf("query cache stats: %w", err)
	}
	return st, nil
}
