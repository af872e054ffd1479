package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/vitalhub/vitalsync/internal/api/respond"
	"github.com/vitalhub/vitalsync/internal/model"
)

// DocumentReader serves merged documents for read endpoints.
type DocumentReader interface {
	Get(ctx context.Context, source string) (*model.Document, error)
}

// RecordsHandler is a thin HTTP transport over the repository's read path.
type RecordsHandler struct {
	reader  DocumentReader
	sources map[string]bool
}

func NewRecordsHandler(reader DocumentReader, sources []string) *RecordsHandler {
	known := make(map[string]bool, len(sources))
	for _, s := range sources {
		known[s] = true
	}
	return &RecordsHandler{reader: reader, sources: known}
}

// parseTimeParam accepts RFC3339 or a bare calendar day.
func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

// ListRecords GET /api/sources/{source}/records?kind=&from=&to=
// Records are sorted by time on the way out; storage order is merge order.
func (h *RecordsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]
	if !h.sources[source] {
		respond.WriteNotFound(w, "unknown source: "+source)
		return
	}

	q := r.URL.Query()
	var kind model.RecordKind
	if v := q.Get("kind"); v != "" {
		kind = model.RecordKind(v)
		if !knownKind(kind) {
			respond.WriteBadRequest(w, "unknown kind: "+v)
			return
		}
	}
	var from, to time.Time
	if v := q.Get("from"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			respond.WriteBadRequest(w, "invalid from: "+v)
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			respond.WriteBadRequest(w, "invalid to: "+v)
			return
		}
		to = t
	}

	doc, err := h.reader.Get(r.Context(), source)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}

	out := make([]model.Record, 0, doc.Count())
	for k, recs := range doc.Records {
		if kind != "" && k != kind {
			continue
		}
		for _, rec := range recs {
			if !from.IsZero() && rec.Time.Before(from) {
				continue
			}
			if !to.IsZero() && rec.Time.After(to) {
				continue
			}
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].Key < out[j].Key
		}
		return out[i].Time.Before(out[j].Time)
	})

	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"source":  source,
		"count":   len(out),
		"records": out,
	})
}

// kindSummary is the per-kind slice of a source summary.
type kindSummary struct {
	Count    int       `json:"count"`
	Earliest time.Time `json:"earliest,omitempty"`
	Latest   time.Time `json:"latest,omitempty"`
}

// GetSummary GET /api/sources/{source}/summary
func (h *RecordsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]
	if !h.sources[source] {
		respond.WriteNotFound(w, "unknown source: "+source)
		return
	}

	doc, err := h.reader.Get(r.Context(), source)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}

	kinds := make(map[model.RecordKind]kindSummary, len(doc.Records))
	for k, recs := range doc.Records {
		if len(recs) == 0 {
			continue
		}
		s := kindSummary{Count: len(recs), Earliest: recs[0].Time, Latest: recs[0].Time}
		for _, rec := range recs[1:] {
			if rec.Time.Before(s.Earliest) {
				s.Earliest = rec.Time
			}
			if rec.Time.After(s.Latest) {
				s.Latest = rec.Time
			}
		}
		kinds[k] = s
	}

	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"source":   source,
		"total":    doc.Count(),
		"kinds":    kinds,
		"lastSync": doc.LastSync,
	})
}

func knownKind(k model.RecordKind) bool {
	for _, known := range model.Kinds() {
		if k == known {
			return true
		}
	}
	return false
}
