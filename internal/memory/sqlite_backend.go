package memory

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores one workspace document per row in a SQLite database.
// A single-statement upsert replaces the document, so saves are atomic
// without an explicit transaction.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens the database at path (or ":memory:"), verifies
// connectivity, and ensures the schema exists.
func NewSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	// WAL mode keeps readers unblocked while a writer commits.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrStorageIO, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %v", ErrStorageIO, err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS workspaces (
			workspace  TEXT PRIMARY KEY,
			version    INTEGER NOT NULL,
			document   TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`
	if _, err := b.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: initialize schema: %v", ErrStorageIO, err)
	}
	return nil
}

// Load reads the workspace document. A missing row is an empty store.
func (b *SQLiteBackend) Load(ctx context.Context, workspace string) ([]Entry, error) {
	var doc []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT document FROM workspaces WHERE workspace = ?`, workspace,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query workspace document: %v", ErrStorageIO, err)
	}
	return decodeSnapshot(doc)
}

// Save upserts the full document for the workspace.
func (b *SQLiteBackend) Save(ctx context.Context, workspace string, entries []Entry) error {
	data, err := encodeSnapshot(entries)
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx, `
		INSERT INTO workspaces (workspace, version, document, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(workspace) DO UPDATE SET
			version    = excluded.version,
			document   = excluded.document,
			updated_at = excluded.updated_at
	`, workspace, SnapshotVersion, string(data))
	if err != nil {
		return fmt.Errorf("%w: save workspace document: %v", ErrStorageIO, err)
	}
	return nil
}

// Close releases the database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

var _ Backend = (*SQLiteBackend)(nil)
