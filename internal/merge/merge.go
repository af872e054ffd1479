// Package merge reconciles freshly fetched records against previously
// stored ones using a per-kind natural key. It is the single place merge
// policy lives; callers pick a policy per record kind instead of encoding
// reconciliation inline.
package merge

import (
	"github.com/vitalhub/vitalsync/internal/model"
)

// Policy decides what happens when an incoming record's key already exists.
type Policy int

const (
	// InsertOnly keeps the existing record and counts the incoming one as a
	// duplicate. Used for naturally immutable facts such as weight readings
	// keyed by exact timestamp.
	InsertOnly Policy = iota
	// UpdateExisting replaces the existing record's payload in place. Used
	// for provider-revisable daily aggregates keyed by calendar day.
	UpdateExisting
)

// KeyFunc extracts the natural key of a record.
type KeyFunc func(model.Record) string

// ByKey is the default KeyFunc: the record's own Key field.
func ByKey(r model.Record) string { return r.Key }

// PolicyFor returns the merge policy for a record kind. Daily aggregates
// are revisable by the provider; point measurements are immutable.
func PolicyFor(kind model.RecordKind) Policy {
	switch kind {
	case model.KindWeight:
		return InsertOnly
	default:
		return UpdateExisting
	}
}

// Merge reconciles incoming records against existing ones. New keys are
// appended preserving existing order; colliding keys follow policy. When
// the incoming batch itself contains duplicate keys the last one wins,
// consistent with policy semantics. Neither input slice is mutated.
//
// Output ordering is existing order plus appends; sorting for display is a
// read-side concern, not this engine's.
func Merge(existing, incoming []model.Record, keyFn KeyFunc, policy Policy) ([]model.Record, model.MergeStats) {
	if keyFn == nil {
		keyFn = ByKey
	}

	merged := make([]model.Record, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, r := range merged {
		index[keyFn(r)] = i
	}

	// Tracks keys first seen in this incoming batch, so intra-batch
	// collisions resolve last-wins without inflating insert counts.
	fresh := make(map[string]bool)

	var stats model.MergeStats
	for _, in := range incoming {
		key := keyFn(in)
		i, ok := index[key]
		if !ok {
			index[key] = len(merged)
			fresh[key] = true
			merged = append(merged, in)
			stats.Inserted++
			continue
		}

		if fresh[key] {
			// Same key twice within one fetch: last one wins regardless of
			// policy. Counted once as inserted above, collision is logged by
			// the caller via the duplicate counter.
			merged[i] = in
			stats.Duplicates++
			continue
		}

		switch policy {
		case UpdateExisting:
			merged[i] = in
			stats.Updated++
		default: // InsertOnly
			stats.Duplicates++
		}
	}

	return merged, stats
}

// MergeDocument merges incoming records, grouped by kind, into a copy of
// doc, applying the per-kind policy. The input document is not mutated.
func MergeDocument(doc *model.Document, incoming []model.Record) (*model.Document, model.MergeStats) {
	out := model.NewDocument(doc.Source)
	out.LastSync = doc.LastSync
	for kind, recs := range doc.Records {
		out.Records[kind] = recs
	}

	byKind := make(map[model.RecordKind][]model.Record)
	for _, r := range incoming {
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}

	var total model.MergeStats
	for kind, recs := range byKind {
		merged, stats := Merge(out.Records[kind], recs, ByKey, PolicyFor(kind))
		out.Records[kind] = merged
		total.Add(stats)
	}
	return out, total
}
