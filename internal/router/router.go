package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"materiel-inventory-api/internal/config"
	"materiel-inventory-api/internal/handler"
	"materiel-inventory-api/internal/middleware"
)

// NewRouter creates a new router and sets up the routes with security middleware.
func NewRouter(h handler.MaterielHandlerInterface, cfg *config.Config, logger zerolog.Logger) *mux.Router {
	r := mux.NewRouter()

	securityMW := middleware.NewSecurityMiddleware(&cfg.Security)
	loggingMW := middleware.NewLoggingMiddleware(logger)

	// Apply global middleware in order
	r.Use(securityMW.SecurityHeaders)
	r.Use(securityMW.CORS)
	r.Use(securityMW.TrustedProxy)
	r.Use(loggingMW.LogRequests)
	r.Use(securityMW.RateLimit)
	r.Use(securityMW.RequestTimeout)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Record operations; next-id is registered before {id} so it is not taken for one
	api.HandleFunc("/materiels", h.CreateMaterielHandler).Methods("POST")
	api.HandleFunc("/materiels", h.ListMaterielsHandler).Methods("GET")
	api.HandleFunc("/materiels/next-id", h.NextIDHandler).Methods("GET")
	api.HandleFunc("/materiels/{id}", h.GetMaterielHandler).Methods("GET")
	api.HandleFunc("/materiels/{id}", h.UpdateMaterielHandler).Methods("PUT")
	api.HandleFunc("/materiels/{id}", h.DeleteMaterielHandler).Methods("DELETE")
	api.HandleFunc("/stats", h.StatsHandler).Methods("GET")

	// History
	api.HandleFunc("/historique", h.HistoryHandler).Methods("GET")
	api.HandleFunc("/historique/{entryId}", h.HistoryEntryHandler).Methods("GET")

	// Exports
	api.HandleFunc("/export/materiels.csv", h.ExportMaterielsCSVHandler).Methods("GET")
	api.HandleFunc("/export/materiels.xlsx", h.ExportMaterielsXLSXHandler).Methods("GET")
	api.HandleFunc("/export/historique.csv", h.ExportHistoryCSVHandler).Methods("GET")

	// Persistence
	api.HandleFunc("/sync/status", h.SyncStatusHandler).Methods("GET")
	api.HandleFunc("/sync", h.SyncHandler).Methods("POST")

	// Health check
	api.HandleFunc("/health", h.HealthHandler).Methods("GET")

	// Preflight requests only need the CORS middleware
	api.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}
