package filestore

import (
	"context"
	"testing"

	"github.com/vitalhub/vitalsync/internal/store"
	"github.com/vitalhub/vitalsync/internal/store/storetest"
)

func makeBackend(t *testing.T) store.Backend {
	t.Helper()
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore new: %v", err)
	}
	return b
}

func TestFileBackend_Compliance(t *testing.T) {
	storetest.Run(t, makeBackend)
}

func TestFileBackendRejectsPathTraversal(t *testing.T) {
	b := makeBackend(t)
	ctx := context.Background()

	if err := b.Put(ctx, "../evil", []byte("{}")); err == nil {
		t.Fatal("expected error for traversal source name")
	}
	if err := b.Put(ctx, "", []byte("{}")); err == nil {
		t.Fatal("expected error for empty source name")
	}
}
