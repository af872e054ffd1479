// Package postgres implements the document backend on PostgreSQL via the
// pgx stdlib driver. One row per source in sync_documents, document stored
// as jsonb, saves are upserts.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vitalhub/vitalsync/internal/model"
	"github.com/vitalhub/vitalsync/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_documents (
    source      TEXT PRIMARY KEY,
    doc         JSONB NOT NULL,
    update_time TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Open opens a PostgreSQL connection, verifies connectivity and ensures the
// document table exists.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New constructs a backend from an open connection.
func New(db *sql.DB) store.Backend { return &pgBackend{db: db} }

type pgBackend struct{ db *sql.DB }

func (b *pgBackend) Get(ctx context.Context, source string) ([]byte, error) {
	var doc []byte
	row := b.db.QueryRowContext(ctx, `SELECT doc FROM sync_documents WHERE source=$1`, source)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, store.Classify("get", source, err)
	}
	return doc, nil
}

func (b *pgBackend) Put(ctx context.Context, source string, data []byte) error {
	_, err := b.db.ExecContext(ctx, `
        INSERT INTO sync_documents (source, doc, update_time)
        VALUES ($1, $2, now())
        ON CONFLICT (source) DO UPDATE SET doc = EXCLUDED.doc, update_time = now()
    `, source, data)
	return store.Classify("put", source, err)
}

func (b *pgBackend) Exists(ctx context.Context, source string) (bool, error) {
	var one int
	row := b.db.QueryRowContext(ctx, `SELECT 1 FROM sync_documents WHERE source=$1`, source)
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, store.Classify("exists", source, err)
	}
	return true, nil
}

func (b *pgBackend) HealthPing(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *pgBackend) Close() error { return b.db.Close() }
