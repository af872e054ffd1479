// Package idempotency provides a short-lived existence cache that skips
// redundant work for recently confirmed records. It is a fast-path
// optimization: the merge engine's key reconciliation is what actually
// guarantees no duplicates land in storage, so the guard always fails
// open: a cache miss means "not seen, defer to the repository".
package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/vitalhub/vitalsync/internal/model"
)

// ExistenceChecker is the authoritative fallback, normally the repository.
type ExistenceChecker interface {
	HasRecord(ctx context.Context, source string, kind model.RecordKind, key string) (bool, error)
}

// Guard holds in-memory marks for (kind, source, key) tuples within a
// sliding TTL window. A mark asserts only that the record was confirmed
// present in storage; callers set it after a successful persist or when
// the authoritative check answered yes. That keeps a failed persist from
// ever shadowing a record.
type Guard struct {
	mu    sync.Mutex
	ttl   time.Duration
	marks map[string]time.Time
	now   func() time.Time
}

const defaultTTL = 5 * time.Minute

// New returns a Guard with the given mark window. ttl <= 0 falls back to a
// conservative default.
func New(ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Guard{ttl: ttl, marks: make(map[string]time.Time), now: time.Now}
}

func markKey(kind model.RecordKind, source, key string) string {
	return string(kind) + "\x00" + source + "\x00" + key
}

// Seen reports whether the tuple carries a live mark. Expired marks read
// as unseen.
func (g *Guard) Seen(kind model.RecordKind, source, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.sweepLocked(now)

	at, ok := g.marks[markKey(kind, source, key)]
	return ok && now.Sub(at) < g.ttl
}

// Mark records the tuple as confirmed-persisted for the mark window.
func (g *Guard) Mark(kind model.RecordKind, source, key string) {
	g.mu.Lock()
	g.marks[markKey(kind, source, key)] = g.now()
	g.mu.Unlock()
}

// SeenInStore answers from the in-memory marks when possible and falls
// back to the authoritative checker, caching a positive answer. Checker
// errors are swallowed and reported as unseen: a wrong "seen" could drop
// data, a wrong "unseen" only costs a redundant merge.
func (g *Guard) SeenInStore(ctx context.Context, checker ExistenceChecker, source string, kind model.RecordKind, key string) bool {
	if g.Seen(kind, source, key) {
		return true
	}
	if checker == nil {
		return false
	}
	ok, err := checker.HasRecord(ctx, source, kind, key)
	if err != nil {
		return false
	}
	if ok {
		g.Mark(kind, source, key)
	}
	return ok
}

// Len reports the number of live marks, for tests and diagnostics.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked(g.now())
	return len(g.marks)
}

// sweepLocked drops expired marks. Called with g.mu held; the map stays
// small (one entry per record key per window) so a full scan is fine.
func (g *Guard) sweepLocked(now time.Time) {
	for k, at := range g.marks {
		if now.Sub(at) >= g.ttl {
			delete(g.marks, k)
		}
	}
}
