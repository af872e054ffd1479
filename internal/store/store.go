// Package store defines the pluggable document backend contract.
// Implementations live under internal/store/<driver>/ (postgres, sqlite,
// filestore). The unit of storage is one whole document per source; the
// repository layer owns (de)serialization and caching on top.
package store

import (
	"context"
	"errors"
	"net"

	"github.com/vitalhub/vitalsync/internal/model"
)

// Backend is a whole-document get/put keyed by source name.
type Backend interface {
	// Get returns the raw stored document, or model.ErrNotFound when no
	// document exists for the source.
	Get(ctx context.Context, source string) ([]byte, error)
	// Put fully overwrites the document for the source.
	Put(ctx context.Context, source string, data []byte) error
	Exists(ctx context.Context, source string) (bool, error)
	HealthPing(ctx context.Context) error
	Close() error
}

// Classify wraps a backend error as a typed *model.StorageError, tagging
// timeouts and network faults as transient. Not-found passes through
// untouched so callers can keep using errors.Is.
func Classify(op, source string, err error) error {
	if err == nil || errors.Is(err, model.ErrNotFound) {
		return err
	}
	var se *model.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &model.StorageError{Op: op, Source: source, Transient: isTransient(err), Err: err}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return false
}
