// Package sqlite implements the document backend on a local SQLite file
// using the modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"

	"github.com/vitalhub/vitalsync/internal/model"
	"github.com/vitalhub/vitalsync/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_documents (
    source      TEXT PRIMARY KEY,
    doc         BLOB NOT NULL,
    update_time TEXT NOT NULL
)`

// Open opens (or creates) the SQLite database file and ensures the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps SQLITE_BUSY out of the pool.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New constructs a backend from an open connection.
func New(db *sql.DB) store.Backend { return &sqliteBackend{db: db} }

type sqliteBackend struct{ db *sql.DB }

func (b *sqliteBackend) Get(ctx context.Context, source string) ([]byte, error) {
	var doc []byte
	row := b.db.QueryRowContext(ctx, `SELECT doc FROM sync_documents WHERE source=?`, source)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, store.Classify("get", source, err)
	}
	return doc, nil
}

func (b *sqliteBackend) Put(ctx context.Context, source string, data []byte) error {
	_, err := b.db.ExecContext(ctx, `
        INSERT INTO sync_documents (source, doc, update_time)
        VALUES (?, ?, datetime('now'))
        ON CONFLICT(source) DO UPDATE SET doc = excluded.doc, update_time = excluded.update_time
    `, source, data)
	return store.Classify("put", source, err)
}

func (b *sqliteBackend) Exists(ctx context.Context, source string) (bool, error) {
	var one int
	row := b.db.QueryRowContext(ctx, `SELECT 1 FROM sync_documents WHERE source=?`, source)
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, store.Classify("exists", source, err)
	}
	return true, nil
}

func (b *sqliteBackend) HealthPing(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *sqliteBackend) Close() error { return b.db.Close() }
