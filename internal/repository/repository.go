// Package repository owns the authoritative aggregate document per source:
// cache-aside reads over a pluggable backend, full-overwrite saves with
// bounded retry on transient faults, and explicit corrupt-document
// recovery.
//
// The design assumes exactly one process owns writes for a given source.
// The cache is populated lazily and never invalidated by anyone else; run
// a second writer against the same backend and you get stale reads. Scaling
// out requires an external lock, which is deliberately out of scope.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/vitalhub/vitalsync/internal/model"
	"github.com/vitalhub/vitalsync/internal/store"
)

type cacheEntry struct {
	doc    *model.Document
	loaded bool
}

// Repository is the persistence layer for aggregate documents.
type Repository struct {
	backend store.Backend
	log     zerolog.Logger

	mu    sync.Mutex
	cache map[string]*cacheEntry

	maxRetryElapsed time.Duration
}

// Option tweaks repository construction.
type Option func(*Repository)

// WithRetryBudget bounds the total time spent retrying transient backend
// faults on save.
func WithRetryBudget(d time.Duration) Option {
	return func(r *Repository) { r.maxRetryElapsed = d }
}

// New constructs a Repository over a backend.
func New(backend store.Backend, log zerolog.Logger, opts ...Option) *Repository {
	r := &Repository{
		backend:         backend,
		log:             log.With().Str("component", "repository").Logger(),
		cache:           make(map[string]*cacheEntry),
		maxRetryElapsed: 15 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Get returns the aggregate document for a source. A missing document is
// not an error: first-sync-ever returns an empty document. A corrupt stored
// document is logged, discarded and likewise returned empty; the provider
// is the authoritative copy and the next fetch window rebuilds it.
//
// Reads are cache-aside: the cached copy wins once loaded. Intra-source
// access is serialized by the orchestrator's single-flight lock, so the
// mutex here only guards the map itself.
func (r *Repository) Get(ctx context.Context, source string) (*model.Document, error) {
	r.mu.Lock()
	entry, ok := r.cache[source]
	if ok && entry.loaded {
		doc := entry.doc
		r.mu.Unlock()
		return doc, nil
	}
	r.mu.Unlock()

	data, err := r.backend.Get(ctx, source)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			doc := model.NewDocument(source)
			r.putCache(source, doc)
			return doc, nil
		}
		return nil, store.Classify("get", source, err)
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		// Data-loss-tolerant by policy: the remote provider can always be
		// re-fetched, a wedged document cannot.
		r.log.Warn().
			Str("source", source).
			Int("bytes", len(data)).
			Err(err).
			Msg("discarding corrupt stored document, starting empty")
		empty := model.NewDocument(source)
		r.putCache(source, empty)
		return empty, nil
	}
	if doc.Records == nil {
		doc.Records = make(map[model.RecordKind][]model.Record)
	}
	doc.Source = source
	r.putCache(source, &doc)
	return &doc, nil
}

// Save marshals and fully overwrites the stored document, retrying
// transient backend faults with exponential backoff. The cache is updated
// only after the backend write succeeds, never before.
func (r *Repository) Save(ctx context.Context, source string, doc *model.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return &model.StorageError{Op: "put", Source: source, Err: err}
	}

	op := func() error {
		err := r.backend.Put(ctx, source, data)
		if err == nil {
			return nil
		}
		if model.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.maxRetryElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return store.Classify("put", source, err)
	}

	r.putCache(source, doc)
	return nil
}

// Exists reports whether a document is stored for the source. A loaded
// cache entry answers without a backend round-trip.
func (r *Repository) Exists(ctx context.Context, source string) (bool, error) {
	r.mu.Lock()
	entry, ok := r.cache[source]
	if ok && entry.loaded {
		n := entry.doc.Count()
		r.mu.Unlock()
		if n > 0 {
			return true, nil
		}
		// Empty cached doc may mean nothing was ever saved; ask the backend.
	} else {
		r.mu.Unlock()
	}
	return r.backend.Exists(ctx, source)
}

// HasRecord reports whether the stored document already contains a record
// with the given kind and key. Used as the idempotency guard's
// authoritative fallback.
func (r *Repository) HasRecord(ctx context.Context, source string, kind model.RecordKind, key string) (bool, error) {
	doc, err := r.Get(ctx, source)
	if err != nil {
		return false, err
	}
	for _, rec := range doc.Records[kind] {
		if rec.Key == key {
			return true, nil
		}
	}
	return false, nil
}

// HealthPing reports backend reachability.
func (r *Repository) HealthPing(ctx context.Context) error {
	return r.backend.HealthPing(ctx)
}

func (r *Repository) putCache(source string, doc *model.Document) {
	r.mu.Lock()
	r.cache[source] = &cacheEntry{doc: doc, loaded: true}
	r.mu.Unlock()
}
