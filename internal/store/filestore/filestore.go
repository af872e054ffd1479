// Package filestore implements the document backend on plain files: one
// JSON file per source under a data directory. Writes go through a temp
// file plus rename so readers never observe a torn document.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vitalhub/vitalsync/internal/model"
	"github.com/vitalhub/vitalsync/internal/store"
)

// New creates the data directory if needed and returns a file backend.
func New(dir string) (store.Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileBackend{dir: dir}, nil
}

type fileBackend struct{ dir string }

func (b *fileBackend) path(source string) (string, error) {
	// Source names come from configuration, but keep them out of path
	// traversal territory anyway.
	if source == "" || strings.ContainsAny(source, `/\`) {
		return "", fmt.Errorf("invalid source name: %q", source)
	}
	return filepath.Join(b.dir, source+".json"), nil
}

func (b *fileBackend) Get(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Classify("get", source, err)
	}
	p, err := b.path(source)
	if err != nil {
		return nil, store.Classify("get", source, err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.ErrNotFound
		}
		return nil, store.Classify("get", source, err)
	}
	return data, nil
}

func (b *fileBackend) Put(ctx context.Context, source string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return store.Classify("put", source, err)
	}
	p, err := b.path(source)
	if err != nil {
		return store.Classify("put", source, err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return store.Classify("put", source, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return store.Classify("put", source, err)
	}
	return nil
}

func (b *fileBackend) Exists(ctx context.Context, source string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, store.Classify("exists", source, err)
	}
	p, err := b.path(source)
	if err != nil {
		return false, store.Classify("exists", source, err)
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, store.Classify("exists", source, err)
	}
	return true, nil
}

func (b *fileBackend) HealthPing(ctx context.Context) error {
	_, err := os.Stat(b.dir)
	return err
}

func (b *fileBackend) Close() error { return nil }
