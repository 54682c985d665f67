package artifact

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one journaled fetch: where the artifact came from, which local
// file it landed in, and the validity window the store declared for it.
type Entry struct {
	RemotePath string
	Timestamp  int64
	ValidFrom  int64
	ValidUntil int64
	LocalFile  string
	FetchedAt  time.Time
}

// Journal records successful fetches in a local sqlite database. It is an
// optimization and a provenance log, never a gate: callers treat journal
// failures as non-fatal.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (and if needed creates) the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)
	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	_, err := j.db.Exec(`
CREATE TABLE IF NOT EXISTS fetches (
  remote_path TEXT NOT NULL,
  timestamp INTEGER NOT NULL,
  valid_from INTEGER NOT NULL DEFAULT -1,
  valid_until INTEGER NOT NULL DEFAULT -1,
  local_file TEXT NOT NULL,
  fetched_at DATETIME NOT NULL,
  PRIMARY KEY (remote_path, timestamp)
);
`)
	return err
}

// Record upserts the journal entry for a successful fetch.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
INSERT INTO fetches (remote_path, timestamp, valid_from, valid_until, local_file, fetched_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (remote_path, timestamp) DO UPDATE SET
  valid_from=excluded.valid_from,
  valid_until=excluded.valid_until,
  local_file=excluded.local_file,
  fetched_at=excluded.fetched_at;`,
		e.RemotePath, e.Timestamp, e.ValidFrom, e.ValidUntil, e.LocalFile, e.FetchedAt.UTC())
	return err
}

// Lookup returns the journaled entry whose validity window covers timestamp
// for remotePath, if one exists. A window bound of -1 never matches: an
// artifact the store declared no validity for cannot be reused.
func (j *Journal) Lookup(ctx context.Context, remotePath string, timestamp int64) (Entry, bool, error) {
	row := j.db.QueryRowContext(ctx, `
SELECT remote_path, timestamp, valid_from, valid_until, local_file, fetched_at
FROM fetches
WHERE remote_path = ? AND valid_from >= 0 AND valid_until >= 0
  AND valid_from <= ? AND ? <= valid_until
ORDER BY fetched_at DESC
LIMIT 1;`, remotePath, timestamp, timestamp)
	var e Entry
	if err := row.Scan(&e.RemotePath, &e.Timestamp, &e.ValidFrom, &e.ValidUntil, &e.LocalFile, &e.FetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

// List returns all journal entries, most recent first.
func (j *Journal) List(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT remote_path, timestamp, valid_from, valid_until, local_file, fetched_at
FROM fetches ORDER BY fetched_at DESC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RemotePath, &e.Timestamp, &e.ValidFrom, &e.ValidUntil, &e.LocalFile, &e.FetchedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}
