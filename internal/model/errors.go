package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrSyncInProgress  = errors.New("sync already in progress")
	ErrCorruptDocument = errors.New("corrupt document")
	ErrSourceDisabled  = errors.New("source disabled")
)

// StorageError wraps a backend failure, distinguishing transient faults the
// caller may retry from fatal ones that must abort the cycle.
type StorageError struct {
	Op        string // "get", "put", "exists"
	Source    string
	Transient bool
	Err       error
}

func (e *StorageError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("storage %s %s (%s): %v", e.Op, e.Source, kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// FetchError wraps a provider failure. Partial marks that records fetched
// before the failure were still returned and are usable.
type FetchError struct {
	Source    string
	Transient bool
	Partial   bool
	Err       error
}

func (e *FetchError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	if e.Partial {
		return fmt.Sprintf("fetch %s (%s, partial): %v", e.Source, kind, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a transient storage or fetch
// classification anywhere in its chain.
func IsTransient(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Transient
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient
	}
	return false
}

// IsPartialFetch reports whether err is a fetch error whose partial results
// were returned alongside it.
func IsPartialFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Partial
}
