package handler

import (
	"net/http"

	"materiel-inventory-api/internal/service"
)

// MaterielHandlerInterface defines the contract for the inventory HTTP handlers.
type MaterielHandlerInterface interface {
	// Record operations
	CreateMaterielHandler(w http.ResponseWriter, r *http.Request)
	ListMaterielsHandler(w http.ResponseWriter, r *http.Request)
	NextIDHandler(w http.ResponseWriter, r *http.Request)
	GetMaterielHandler(w http.ResponseWriter, r *http.Request)
	UpdateMaterielHandler(w http.ResponseWriter, r *http.Request)
	DeleteMaterielHandler(w http.ResponseWriter, r *http.Request)
	StatsHandler(w http.ResponseWriter, r *http.Request)

	// History
	HistoryHandler(w http.ResponseWriter, r *http.Request)
	HistoryEntryHandler(w http.ResponseWriter, r *http.Request)

	// Exports
	ExportMaterielsCSVHandler(w http.ResponseWriter, r *http.Request)
	ExportMaterielsXLSXHandler(w http.ResponseWriter, r *http.Request)
	ExportHistoryCSVHandler(w http.ResponseWriter, r *http.Request)

	// Persistence
	SyncStatusHandler(w http.ResponseWriter, r *http.Request)
	SyncHandler(w http.ResponseWriter, r *http.Request)

	// Health and monitoring
	HealthHandler(w http.ResponseWriter, r *http.Request)
}

// Ensure MaterielHandler implements MaterielHandlerInterface at compile time
var _ MaterielHandlerInterface = (*MaterielHandler)(nil)

// Ensure the service satisfies the handler's dependency at compile time
var _ InventoryService = (*service.InventoryService)(nil)
