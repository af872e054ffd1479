package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vitalhub/vitalsync/internal/model"
)

func TestSeenAndMark(t *testing.T) {
	g := New(time.Minute)

	assert.False(t, g.Seen(model.KindWeight, "picooc", "2024-01-01T08:00:00Z"))
	g.Mark(model.KindWeight, "picooc", "2024-01-01T08:00:00Z")
	assert.True(t, g.Seen(model.KindWeight, "picooc", "2024-01-01T08:00:00Z"))

	// Different tuple components are independent.
	assert.False(t, g.Seen(model.KindSleep, "picooc", "2024-01-01T08:00:00Z"))
	assert.False(t, g.Seen(model.KindWeight, "oura", "2024-01-01T08:00:00Z"))
}

func TestMarksExpireAfterTTL(t *testing.T) {
	g := New(time.Minute)
	now := time.Unix(1700000000, 0)
	g.now = func() time.Time { return now }

	g.Mark(model.KindWeight, "picooc", "k")
	now = now.Add(30 * time.Second)
	assert.True(t, g.Seen(model.KindWeight, "picooc", "k"))

	now = now.Add(2 * time.Minute)
	assert.False(t, g.Seen(model.KindWeight, "picooc", "k"), "expired mark reads as unseen")
	assert.Equal(t, 0, g.Len(), "expired marks are swept")
}

type staticChecker struct {
	has   bool
	err   error
	calls int
}

func (c *staticChecker) HasRecord(context.Context, string, model.RecordKind, string) (bool, error) {
	c.calls++
	return c.has, c.err
}

func TestSeenInStoreFallsBackToChecker(t *testing.T) {
	g := New(time.Minute)
	ctx := context.Background()

	positive := &staticChecker{has: true}
	assert.True(t, g.SeenInStore(ctx, positive, "oura", model.KindSleep, "2024-02-10"))
	assert.Equal(t, 1, positive.calls)

	// Positive answers are cached; no second round-trip within the window.
	assert.True(t, g.SeenInStore(ctx, positive, "oura", model.KindSleep, "2024-02-10"))
	assert.Equal(t, 1, positive.calls)

	negative := &staticChecker{has: false}
	assert.False(t, g.SeenInStore(ctx, negative, "oura", model.KindSleep, "2024-02-11"))

	// Negative answers are not cached: the record may appear at any time.
	assert.False(t, g.SeenInStore(ctx, negative, "oura", model.KindSleep, "2024-02-11"))
	assert.Equal(t, 2, negative.calls)
}

func TestSeenInStoreFailsOpen(t *testing.T) {
	g := New(time.Minute)
	ctx := context.Background()

	broken := &staticChecker{has: true, err: errors.New("backend down")}
	assert.False(t, g.SeenInStore(ctx, broken, "oura", model.KindSleep, "2024-02-12"),
		"checker errors must be treated as not-seen")

	assert.False(t, g.SeenInStore(ctx, nil, "oura", model.KindSleep, "2024-02-13"))
}
