package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/vitalhub/vitalsync/internal/store"
	"github.com/vitalhub/vitalsync/internal/store/storetest"
)

func makeBackend(t *testing.T) store.Backend {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	return New(db)
}

func TestSQLiteBackend_Compliance(t *testing.T) {
	storetest.Run(t, makeBackend)
}
