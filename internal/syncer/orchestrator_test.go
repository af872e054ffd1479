package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalhub/vitalsync/internal/idempotency"
	"github.com/vitalhub/vitalsync/internal/model"
	"github.com/vitalhub/vitalsync/internal/provider"
	"github.com/vitalhub/vitalsync/internal/repository"
	"github.com/vitalhub/vitalsync/internal/store"
)

// memBackend is an in-memory store.Backend for orchestrator tests.
type memBackend struct {
	mu       sync.Mutex
	docs     map[string][]byte
	putCalls int
}

func newMemBackend() *memBackend { return &memBackend{docs: make(map[string][]byte)} }

func (m *memBackend) Get(ctx context.Context, source string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[source]
	if !ok {
		return nil, model.ErrNotFound
	}
	return data, nil
}

func (m *memBackend) Put(ctx context.Context, source string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	m.docs[source] = data
	return nil
}

func (m *memBackend) Exists(ctx context.Context, source string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[source]
	return ok, nil
}

func (m *memBackend) HealthPing(ctx context.Context) error { return nil }
func (m *memBackend) Close() error                         { return nil }

func (m *memBackend) puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putCalls
}

// fakeAdapter serves canned records, optionally blocking or failing.
type fakeAdapter struct {
	name    string
	records []model.Record
	err     error

	mu      sync.Mutex
	fetches int
	windows []model.TimeRange

	block   chan struct{} // when set, Fetch waits for it (or ctx)
	started chan struct{} // closed once a Fetch has begun
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context, window model.TimeRange) ([]model.Record, error) {
	f.mu.Lock()
	f.fetches++
	f.windows = append(f.windows, window)
	started := f.started
	f.started = nil
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, &model.FetchError{Source: f.name, Transient: true, Err: ctx.Err()}
		}
	}
	return f.records, f.err
}

func (f *fakeAdapter) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeAdapter) lastWindow() model.TimeRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows[len(f.windows)-1]
}

func testOrchestrator(t *testing.T, backend store.Backend, adapters ...*fakeAdapter) *Orchestrator {
	t.Helper()
	repo := repository.New(backend, zerolog.Nop())
	guard := idempotency.New(time.Minute)
	sources := make([]provider.Source, 0, len(adapters))
	for _, a := range adapters {
		sources = append(sources, provider.Source{Name: a.name, Enabled: true, Adapter: a})
	}
	return New(repo, guard, sources, Config{
		BackfillWindow: 30 * 24 * time.Hour,
		CycleTimeout:   5 * time.Second,
		FetchTimeout:   2 * time.Second,
		StorageTimeout: 2 * time.Second,
		Workers:        2,
	}, zerolog.Nop())
}

func sleepRec(day string, score float64) model.Record {
	ts, _ := time.Parse("2006-01-02", day)
	return model.Record{Key: day, Kind: model.KindSleep, Time: ts, Metrics: map[string]float64{"score": score}}
}

func TestSyncOneHappyPath(t *testing.T) {
	backend := newMemBackend()
	adapter := &fakeAdapter{name: "oura", records: []model.Record{
		sleepRec("2024-02-10", 75),
		sleepRec("2024-02-11", 80),
	}}
	o := testOrchestrator(t, backend, adapter)

	res, err := o.SyncOne(context.Background(), "oura")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, model.StateIdle, res.State)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 2, res.Stats.Inserted)
	assert.NotEmpty(t, res.RunID)

	doc, err := repository.New(backend, zerolog.Nop()).Get(context.Background(), "oura")
	require.NoError(t, err)
	assert.Len(t, doc.Records[model.KindSleep], 2)
	assert.False(t, doc.LastSync.IsZero(), "checkpoint advances on full success")
}

func TestSyncOneUnknownSource(t *testing.T) {
	o := testOrchestrator(t, newMemBackend())
	_, err := o.SyncOne(context.Background(), "fitbit")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestSyncOneDisabledSource(t *testing.T) {
	backend := newMemBackend()
	adapter := &fakeAdapter{name: "oura"}
	repo := repository.New(backend, zerolog.Nop())
	o := New(repo, nil, []provider.Source{{Name: "oura", Enabled: false, Adapter: adapter}}, Config{}, zerolog.Nop())

	_, err := o.SyncOne(context.Background(), "oura")
	require.ErrorIs(t, err, model.ErrSourceDisabled)
	assert.Equal(t, 0, adapter.fetchCount())
}

func TestSyncOneSingleFlight(t *testing.T) {
	backend := newMemBackend()
	adapter := &fakeAdapter{
		name:    "oura",
		records: []model.Record{sleepRec("2024-02-10", 75)},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	started := adapter.started
	o := testOrchestrator(t, backend, adapter)

	firstDone := make(chan model.SyncResult, 1)
	go func() {
		res, _ := o.SyncOne(context.Background(), "oura")
		firstDone <- res
	}()

	<-started // first cycle is now inside Fetch

	second, err := o.SyncOne(context.Background(), "oura")
	require.NoError(t, err, "concurrency rejection is not an error")
	assert.True(t, second.Skipped)
	assert.Equal(t, model.ErrSyncInProgress.Error(), second.Err)

	close(adapter.block)
	first := <-firstDone
	assert.Equal(t, model.StateIdle, first.State)

	assert.Equal(t, 1, adapter.fetchCount(), "exactly one fetch")
	assert.Equal(t, 1, backend.puts(), "exactly one persisting transition")
}

func TestPartialFetchPersistsButKeepsCheckpoint(t *testing.T) {
	backend := newMemBackend()
	partialErr := &model.FetchError{Source: "oura", Transient: true, Partial: true, Err: errors.New("page 3 failed")}
	adapter := &fakeAdapter{name: "oura", records: []model.Record{sleepRec("2024-02-10", 75)}, err: partialErr}
	o := testOrchestrator(t, backend, adapter)

	res, err := o.SyncOne(context.Background(), "oura")
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, res.State)
	assert.Equal(t, 1, res.Stats.Inserted, "partial data is still merged and persisted")

	repo := repository.New(backend, zerolog.Nop())
	doc, err := repo.Get(context.Background(), "oura")
	require.NoError(t, err)
	assert.Len(t, doc.Records[model.KindSleep], 1)
	assert.True(t, doc.LastSync.IsZero(), "checkpoint must not advance on partial fetch")

	// Next cycle re-fetches the same window start.
	adapter.err = nil
	res, err = o.SyncOne(context.Background(), "oura")
	require.NoError(t, err)
	assert.Equal(t, model.StateIdle, res.State)
	doc, _ = repo.Get(context.Background(), "oura")
	assert.False(t, doc.LastSync.IsZero())
	assert.Len(t, doc.Records[model.KindSleep], 1, "overlap re-fetch does not duplicate")
}

func TestFatalFetchAbortsWithoutPersist(t *testing.T) {
	backend := newMemBackend()
	adapter := &fakeAdapter{name: "oura", err: &model.FetchError{Source: "oura", Err: errors.New("401 unauthorized")}}
	o := testOrchestrator(t, backend, adapter)

	res, err := o.SyncOne(context.Background(), "oura")
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, res.State)
	assert.Equal(t, 0, backend.puts(), "nothing persisted on fatal fetch")
}

func TestCancellationDiscardsPartialData(t *testing.T) {
	backend := newMemBackend()
	adapter := &fakeAdapter{
		name:    "oura",
		records: []model.Record{sleepRec("2024-02-10", 75)},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	started := adapter.started
	o := testOrchestrator(t, backend, adapter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan model.SyncResult, 1)
	go func() {
		res, _ := o.SyncOne(ctx, "oura")
		done <- res
	}()

	<-started
	cancel()

	res := <-done
	assert.Equal(t, model.StateFailed, res.State)
	assert.Equal(t, 0, backend.puts(), "cancelled cycle is indistinguishable from a failed one in storage")
}

func TestWindowUsesBackfillThenCheckpoint(t *testing.T) {
	backend := newMemBackend()
	adapter := &fakeAdapter{name: "oura", records: []model.Record{sleepRec("2024-02-10", 75)}}
	o := testOrchestrator(t, backend, adapter)

	_, err := o.SyncOne(context.Background(), "oura")
	require.NoError(t, err)
	first := adapter.lastWindow()
	assert.InDelta(t, 30*24*time.Hour, first.To.Sub(first.From), float64(time.Minute),
		"first-ever sync uses the default backfill window")

	_, err = o.SyncOne(context.Background(), "oura")
	require.NoError(t, err)
	second := adapter.lastWindow()
	assert.True(t, second.From.Equal(first.To), "subsequent window starts at the checkpoint")
}

func TestSyncAllAggregatesSummary(t *testing.T) {
	backend := newMemBackend()
	good := &fakeAdapter{name: "oura", records: []model.Record{sleepRec("2024-02-10", 75)}}
	bad := &fakeAdapter{name: "picooc", err: &model.FetchError{Source: "picooc", Err: errors.New("login error")}}
	o := testOrchestrator(t, backend, good, bad)

	summary := o.SyncAll(context.Background())
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 1, summary.TotalMerged)
	assert.Len(t, summary.Results, 2)
}

func TestSyncAllSkipsDisabledSources(t *testing.T) {
	backend := newMemBackend()
	adapter := &fakeAdapter{name: "oura"}
	repo := repository.New(backend, zerolog.Nop())
	o := New(repo, nil, []provider.Source{{Name: "oura", Enabled: false, Adapter: adapter}}, Config{}, zerolog.Nop())

	summary := o.SyncAll(context.Background())
	assert.Empty(t, summary.Results)
	assert.Equal(t, 0, adapter.fetchCount())
}

func TestStatusReportsStates(t *testing.T) {
	o := testOrchestrator(t, newMemBackend(), &fakeAdapter{name: "oura"})
	status := o.Status()
	assert.Equal(t, model.StateIdle, status["oura"])
}
