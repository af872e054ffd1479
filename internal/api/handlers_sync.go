package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vitalhub/vitalsync/internal/api/respond"
	"github.com/vitalhub/vitalsync/internal/model"
	"github.com/vitalhub/vitalsync/internal/provider"
)

// Syncer drives sync cycles; implemented by the orchestrator.
type Syncer interface {
	SyncAll(ctx context.Context) model.SyncSummary
	SyncOne(ctx context.Context, name string) (model.SyncResult, error)
	Sources() []provider.Source
	Status() map[string]model.SyncState
}

// SyncHandler exposes manual sync triggers.
type SyncHandler struct {
	syncer Syncer
}

func NewSyncHandler(s Syncer) *SyncHandler { return &SyncHandler{syncer: s} }

// TriggerAll POST /api/sync
// Runs a full pass synchronously and returns the summary.
func (h *SyncHandler) TriggerAll(w http.ResponseWriter, r *http.Request) {
	summary := h.syncer.SyncAll(r.Context())
	respond.WriteJSON(w, http.StatusOK, summary)
}

// TriggerOne POST /api/sync/{source}
// A trigger racing an in-flight cycle returns 409 with the current state.
func (h *SyncHandler) TriggerOne(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]
	res, err := h.syncer.SyncOne(r.Context(), source)
	switch {
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, err.Error())
		return
	case errors.Is(err, model.ErrSourceDisabled):
		respond.WriteConflict(w, err.Error())
		return
	case err != nil:
		respond.WriteInternalError(w, err.Error())
		return
	}
	if res.Skipped {
		respond.WriteJSON(w, http.StatusConflict, res)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// sourceView is the list shape for GET /api/sources.
type sourceView struct {
	Name     string          `json:"name"`
	Enabled  bool            `json:"enabled"`
	State    model.SyncState `json:"state"`
	LastSync time.Time       `json:"lastSync,omitempty"`
}

// SourcesHandler lists configured sources with their sync state and
// checkpoint.
type SourcesHandler struct {
	syncer Syncer
	reader DocumentReader
}

func NewSourcesHandler(s Syncer, reader DocumentReader) *SourcesHandler {
	return &SourcesHandler{syncer: s, reader: reader}
}

// ListSources GET /api/sources
func (h *SourcesHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	status := h.syncer.Status()
	srcs := h.syncer.Sources()
	out := make([]sourceView, 0, len(srcs))
	for _, s := range srcs {
		v := sourceView{Name: s.Name, Enabled: s.Enabled, State: status[s.Name]}
		if doc, err := h.reader.Get(r.Context(), s.Name); err == nil {
			v.LastSync = doc.LastSync
		}
		out = append(out, v)
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sources": out,
		"count":   len(out),
	})
}
