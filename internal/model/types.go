package model

import "time"

// RecordKind identifies the metric family a record belongs to.
type RecordKind string

const (
	KindSleep     RecordKind = "sleep"
	KindReadiness RecordKind = "readiness"
	KindActivity  RecordKind = "activity"
	KindWeight    RecordKind = "weight"
	KindNutrition RecordKind = "nutrition"
)

// Kinds lists every known record kind in a stable order.
func Kinds() []RecordKind {
	return []RecordKind{KindSleep, KindReadiness, KindActivity, KindWeight, KindNutrition}
}

// Record is one normalized metric entity pulled from a provider.
// Key is the natural key within its kind: the calendar day ("2024-02-10")
// for provider-revisable daily aggregates, an RFC3339 timestamp for point
// measurements such as weight readings.
type Record struct {
	Key     string             `json:"key"`
	Kind    RecordKind         `json:"kind"`
	Time    time.Time          `json:"time"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	Attrs   map[string]string  `json:"attrs,omitempty"`
}

// Document is the aggregate document for one source: every record ever
// merged for that source, grouped by kind, plus the sync checkpoint.
// Within each kind collection record keys are unique.
type Document struct {
	Source   string                  `json:"source"`
	Records  map[RecordKind][]Record `json:"records,omitempty"`
	LastSync time.Time               `json:"lastSync,omitempty"`
}

// NewDocument returns an empty document for a source. A missing stored
// document deserializes to exactly this shape; first-sync-ever is not an
// error condition anywhere in the system.
func NewDocument(source string) *Document {
	return &Document{Source: source, Records: make(map[RecordKind][]Record)}
}

// Count returns the total number of records across all kinds.
func (d *Document) Count() int {
	n := 0
	for _, recs := range d.Records {
		n += len(recs)
	}
	return n
}

// TimeRange is a half-open fetch window [From, To] supplied by the caller;
// adapters never decide how far back to fetch.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// MergeStats reports what a merge did, for observability.
type MergeStats struct {
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	Duplicates int `json:"duplicates"`
}

// Add accumulates another stats value into s.
func (s *MergeStats) Add(o MergeStats) {
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.Duplicates += o.Duplicates
}

// SyncState is the orchestrator's per-source state machine position.
type SyncState string

const (
	StateIdle       SyncState = "idle"
	StateLoading    SyncState = "loading"
	StateFetching   SyncState = "fetching"
	StateMerging    SyncState = "merging"
	StatePersisting SyncState = "persisting"
	StateFailed     SyncState = "failed"
)

// SyncResult is the outcome of one sync cycle for one source.
type SyncResult struct {
	RunID    string        `json:"runId"`
	Source   string        `json:"source"`
	State    SyncState     `json:"state"`
	Fetched  int           `json:"fetched"`
	Stats    MergeStats    `json:"stats"`
	Skipped  bool          `json:"skipped,omitempty"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// SyncSummary aggregates results across all sources in one trigger.
type SyncSummary struct {
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Skipped     int          `json:"skipped"`
	TotalMerged int          `json:"totalMerged"`
	Results     []SyncResult `json:"results"`
}
