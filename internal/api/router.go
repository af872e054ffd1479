package api

import (
	"github.com/gorilla/mux"

	"github.com/vitalhub/vitalsync/internal/api/recovery"
)

// NewRouter wires all API routes over the given collaborators.
func NewRouter(syncer Syncer, reader DocumentReader, health HealthReporter) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	names := make([]string, 0)
	for _, s := range syncer.Sources() {
		names = append(names, s.Name)
	}

	healthHandler := NewHealthHandler(health)
	sourcesHandler := NewSourcesHandler(syncer, reader)
	recordsHandler := NewRecordsHandler(reader, names)
	syncHandler := NewSyncHandler(syncer)

	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	router.HandleFunc("/api/sources", sourcesHandler.ListSources).Methods("GET")
	router.HandleFunc("/api/sources/{source}/records", recordsHandler.ListRecords).Methods("GET")
	router.HandleFunc("/api/sources/{source}/summary", recordsHandler.GetSummary).Methods("GET")

	router.HandleFunc("/api/sync", syncHandler.TriggerAll).Methods("POST")
	router.HandleFunc("/api/sync/{source}", syncHandler.TriggerOne).Methods("POST")

	return router
}
