// Package syncer coordinates sync cycles: load the stored aggregate, fetch
// a window from the provider, merge by natural key, persist. One cycle per
// source at a time, sources independent of each other.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalhub/vitalsync/internal/idempotency"
	"github.com/vitalhub/vitalsync/internal/merge"
	"github.com/vitalhub/vitalsync/internal/model"
	"github.com/vitalhub/vitalsync/internal/provider"
	"github.com/vitalhub/vitalsync/internal/repository"
)

// Config bounds a sync cycle's time budget and concurrency.
type Config struct {
	BackfillWindow time.Duration // window start when a source has never synced
	CycleTimeout   time.Duration // overall budget for one source's cycle
	FetchTimeout   time.Duration // per adapter fetch
	StorageTimeout time.Duration // per repository call
	Workers        int           // concurrent sources in SyncAll
}

func (c *Config) withDefaults() {
	if c.BackfillWindow <= 0 {
		c.BackfillWindow = 30 * 24 * time.Hour
	}
	if c.CycleTimeout <= 0 {
		c.CycleTimeout = 5 * time.Minute
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 2 * time.Minute
	}
	if c.StorageTimeout <= 0 {
		c.StorageTimeout = 30 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

type sourceState struct {
	src      provider.Source
	inFlight atomic.Bool

	mu    sync.Mutex
	state model.SyncState
}

func (s *sourceState) set(st model.SyncState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *sourceState) get() model.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Orchestrator runs sync cycles across configured sources. Cycles for
// different sources run concurrently under a bounded worker pool; within
// one source cycles are strictly sequential, enforced by a per-source
// in-flight flag checked atomically at cycle start.
//
// Exactly one orchestrator process may own writes for a given source. The
// repository cache relies on it; horizontal scale-out needs an external
// distributed lock and is out of scope.
type Orchestrator struct {
	repo  *repository.Repository
	guard *idempotency.Guard
	log   zerolog.Logger
	cfg   Config

	order   []string
	sources map[string]*sourceState

	now func() time.Time
}

// New constructs an Orchestrator over the configured sources.
func New(repo *repository.Repository, guard *idempotency.Guard, sources []provider.Source, cfg Config, log zerolog.Logger) *Orchestrator {
	cfg.withDefaults()
	o := &Orchestrator{
		repo:    repo,
		guard:   guard,
		log:     log.With().Str("component", "syncer").Logger(),
		cfg:     cfg,
		sources: make(map[string]*sourceState, len(sources)),
		now:     time.Now,
	}
	for _, src := range sources {
		o.order = append(o.order, src.Name)
		o.sources[src.Name] = &sourceState{src: src, state: model.StateIdle}
	}
	return o
}

// Status reports the current state machine position per source.
func (o *Orchestrator) Status() map[string]model.SyncState {
	out := make(map[string]model.SyncState, len(o.sources))
	for name, st := range o.sources {
		out[name] = st.get()
	}
	return out
}

// Sources lists configured source names in registration order.
func (o *Orchestrator) Sources() []provider.Source {
	out := make([]provider.Source, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, o.sources[name].src)
	}
	return out
}

// SyncOne runs one cycle for the named source. A concurrent trigger while
// a cycle is in flight returns a skipped result, not an error: the timer
// and a manual trigger racing is an expected, benign outcome.
func (o *Orchestrator) SyncOne(ctx context.Context, name string) (model.SyncResult, error) {
	st, ok := o.sources[name]
	if !ok {
		return model.SyncResult{}, fmt.Errorf("unknown source %q: %w", name, model.ErrNotFound)
	}
	if !st.src.Enabled {
		return model.SyncResult{}, fmt.Errorf("source %q: %w", name, model.ErrSourceDisabled)
	}

	if !st.inFlight.CompareAndSwap(false, true) {
		o.log.Debug().Str("source", name).Msg("sync already running, skipping trigger")
		return model.SyncResult{
			Source:  name,
			State:   st.get(),
			Skipped: true,
			Err:     model.ErrSyncInProgress.Error(),
		}, nil
	}
	defer st.inFlight.Store(false)

	return o.runCycle(ctx, st), nil
}

// SyncAll runs cycles for every enabled source through the worker pool and
// aggregates a summary. Skipped (already running) sources count separately
// from failures.
func (o *Orchestrator) SyncAll(ctx context.Context) model.SyncSummary {
	sem := make(chan struct{}, o.cfg.Workers)
	results := make([]model.SyncResult, 0, len(o.order))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, name := range o.order {
		st := o.sources[name]
		if !st.src.Enabled {
			continue
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := o.SyncOne(ctx, name)
			if err != nil {
				res = model.SyncResult{Source: name, State: model.StateFailed, Err: err.Error()}
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	var summary model.SyncSummary
	summary.Results = results
	for _, r := range results {
		switch {
		case r.Skipped:
			summary.Skipped++
		case r.Err != "":
			summary.Failed++
		default:
			summary.Succeeded++
		}
		summary.TotalMerged += r.Stats.Inserted + r.Stats.Updated
	}
	o.log.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("merged", summary.TotalMerged).
		Msg("sync pass complete")
	return summary
}

// runCycle drives the per-source state machine:
// Idle -> Loading -> Fetching -> Merging -> Persisting -> Idle, with Failed
// reachable from any stage. The checkpoint only advances after a fully
// successful persist of a complete fetch, so a failed or partial cycle is
// retried next time with an overlapping window; the merge engine's key
// dedup makes that overlap safe.
func (o *Orchestrator) runCycle(parent context.Context, st *sourceState) model.SyncResult {
	name := st.src.Name
	started := o.now()
	res := model.SyncResult{RunID: uuid.New().String(), Source: name}
	log := o.log.With().Str("source", name).Str("run", res.RunID).Logger()

	ctx, cancel := context.WithTimeout(parent, o.cfg.CycleTimeout)
	defer cancel()

	fail := func(stage string, err error) model.SyncResult {
		st.set(model.StateFailed)
		res.State = model.StateFailed
		res.Err = err.Error()
		res.Duration = o.now().Sub(started)
		log.Error().Str("stage", stage).Err(err).Msg("sync cycle failed")
		return res
	}

	// Loading
	st.set(model.StateLoading)
	lctx, lcancel := context.WithTimeout(ctx, o.cfg.StorageTimeout)
	doc, err := o.repo.Get(lctx, name)
	lcancel()
	if err != nil {
		return fail("load", err)
	}

	now := o.now().UTC()
	window := model.TimeRange{From: doc.LastSync, To: now}
	if window.From.IsZero() {
		window.From = now.Add(-o.cfg.BackfillWindow)
	}

	// Fetching
	st.set(model.StateFetching)
	fctx, fcancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	fetched, ferr := st.src.Adapter.Fetch(fctx, window)
	fcancel()
	res.Fetched = len(fetched)

	if err := ctx.Err(); err != nil {
		// Cancelled or cycle budget exhausted: partially fetched data is
		// discarded so a cancelled cycle is indistinguishable from a failed
		// one in storage.
		return fail("fetch", err)
	}
	partial := ferr != nil && model.IsPartialFetch(ferr)
	if ferr != nil && !partial {
		return fail("fetch", ferr)
	}

	// Merging
	st.set(model.StateMerging)
	filtered := o.filterSeen(ctx, name, fetched)
	merged, stats := merge.MergeDocument(doc, filtered)
	res.Stats = stats
	if stats.Duplicates > 0 {
		log.Debug().Int("duplicates", stats.Duplicates).Msg("same-key records skipped by policy")
	}
	if !partial {
		merged.LastSync = window.To
	}

	// Persisting
	st.set(model.StatePersisting)
	sctx, scancel := context.WithTimeout(ctx, o.cfg.StorageTimeout)
	err = o.repo.Save(sctx, name, merged)
	scancel()
	if err != nil {
		return fail("persist", err)
	}
	o.markPersisted(name, filtered)

	st.set(model.StateIdle)
	res.Duration = o.now().Sub(started)
	if partial {
		// Fetched remainder is retried next cycle; checkpoint stayed put.
		res.State = model.StateFailed
		res.Err = ferr.Error()
		log.Warn().Err(ferr).Int("fetched", res.Fetched).Msg("partial fetch persisted, checkpoint not advanced")
		return res
	}

	res.State = model.StateIdle
	log.Info().
		Int("fetched", res.Fetched).
		Int("inserted", stats.Inserted).
		Int("updated", stats.Updated).
		Int("duplicates", stats.Duplicates).
		Time("window_from", window.From).
		Time("window_to", window.To).
		Msg("sync cycle complete")
	return res
}

// filterSeen drops insert-only records the idempotency guard has already
// observed recently, saving redundant merge work within a burst of
// triggers. Revisable kinds always pass through: an update must never be
// skipped on a stale mark. The guard fails open, and the merge engine's
// keying is what actually keeps duplicates out of storage.
func (o *Orchestrator) filterSeen(ctx context.Context, source string, recs []model.Record) []model.Record {
	if o.guard == nil {
		return recs
	}
	out := recs[:0:0]
	for _, r := range recs {
		if merge.PolicyFor(r.Kind) == merge.InsertOnly &&
			o.guard.SeenInStore(ctx, o.repo, source, r.Kind, r.Key) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// markPersisted records insert-only keys as confirmed-persisted so a burst
// of triggers inside the mark window skips the repository round-trip.
// Marks are only ever set after the backend write succeeded.
func (o *Orchestrator) markPersisted(source string, recs []model.Record) {
	if o.guard == nil {
		return
	}
	for _, r := range recs {
		if merge.PolicyFor(r.Kind) == merge.InsertOnly {
			o.guard.Mark(r.Kind, source, r.Key)
		}
	}
}

// ErrAlreadyRunning reports whether err is the single-flight rejection.
func ErrAlreadyRunning(err error) bool {
	return errors.Is(err, model.ErrSyncInProgress)
}
