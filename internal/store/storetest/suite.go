// Package storetest holds a compliance suite run against every document
// backend implementation.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/vitalhub/vitalsync/internal/model"
	"github.com/vitalhub/vitalsync/internal/store"
)

// Run exercises the backend contract. makeBackend should return a clean,
// isolated backend.
func Run(t *testing.T, makeBackend func(t *testing.T) store.Backend) {
	t.Helper()

	b := makeBackend(t)
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()

	source := "src-" + uuid.New().String()

	// Missing document: ErrNotFound, Exists false.
	if _, err := b.Get(ctx, source); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get missing: want ErrNotFound, got %v", err)
	}
	if ok, err := b.Exists(ctx, source); err != nil || ok {
		t.Fatalf("Exists missing: ok=%v err=%v", ok, err)
	}

	// Put then Get round-trips bytes exactly.
	doc := []byte(`{"source":"` + source + `","records":{}}`)
	if err := b.Put(ctx, source, doc); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := b.Get(ctx, source)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(doc) {
		t.Fatalf("Get round-trip: got %s want %s", got, doc)
	}
	if ok, err := b.Exists(ctx, source); err != nil || !ok {
		t.Fatalf("Exists after Put: ok=%v err=%v", ok, err)
	}

	// Put is a full overwrite, not a merge.
	doc2 := []byte(`{"source":"` + source + `","records":{"weight":[]}}`)
	if err := b.Put(ctx, source, doc2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err = b.Get(ctx, source)
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got) != string(doc2) {
		t.Fatalf("overwrite: got %s want %s", got, doc2)
	}

	// Sources are independent.
	other := "src-" + uuid.New().String()
	if _, err := b.Get(ctx, other); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Get other source: want ErrNotFound, got %v", err)
	}

	if err := b.HealthPing(ctx); err != nil {
		t.Fatalf("HealthPing: %v", err)
	}
}
