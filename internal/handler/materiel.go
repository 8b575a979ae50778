package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"materiel-inventory-api/internal/export"
	"materiel-inventory-api/internal/history"
	"materiel-inventory-api/internal/model"
	"materiel-inventory-api/internal/notification"
	"materiel-inventory-api/internal/query"
	"materiel-inventory-api/internal/service"
	apperrors "materiel-inventory-api/pkg/errors"
)

// Constants for timeouts and request limits
const (
	DefaultTimeout      = 10 * time.Second
	LongRunningTimeout  = 30 * time.Second
	NotificationTimeout = 5 * time.Second
	MaxBodyBytes        = 1 << 20
)

// Error response structure for consistent JSON error responses
type ErrorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// Success response structure for consistent JSON success responses
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// InventoryService is the part of the service layer used by the handlers.
type InventoryService interface {
	Create(ctx context.Context, input model.RecordInput) (*service.MutationResult, error)
	Update(ctx context.Context, id string, input model.RecordInput) (*service.MutationResult, error)
	Delete(ctx context.Context, id string) (*service.MutationResult, error)
	Get(ctx context.Context, id string) (*model.Record, error)
	List(ctx context.Context, params service.ListParams) *service.ListResult
	Stats(ctx context.Context, filter string) model.Stats
	NextID(ctx context.Context) string
	History(ctx context.Context, order history.Order) []model.HistoryEntry
	HistoryEntry(ctx context.Context, id string) (*service.EntryDetail, error)
	Sync(ctx context.Context) (service.SyncStatus, error)
	SyncStatus(ctx context.Context) service.SyncStatus
}

// MaterielHandler handles the HTTP requests for equipment records.
type MaterielHandler struct {
	Service  InventoryService
	Notifier notification.Notifier
	Logger   zerolog.Logger
	Clock    func() time.Time

	// Helper components for cleaner code organization
	ErrorHandler   *ErrorHandler
	ResponseHelper *ResponseHelper
}

// NewMaterielHandler creates a new MaterielHandler. notifier may be nil.
func NewMaterielHandler(svc InventoryService, notifier notification.Notifier, logger zerolog.Logger) *MaterielHandler {
	logger = logger.With().Str("component", "handler").Logger()
	return &MaterielHandler{
		Service:        svc,
		Notifier:       notifier,
		Logger:         logger,
		Clock:          time.Now,
		ErrorHandler:   NewErrorHandler(logger),
		ResponseHelper: NewResponseHelper(),
	}
}

// CreateMaterielHandler handles the creation of a new record.
func (h *MaterielHandler) CreateMaterielHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	var input model.RecordInput
	if !h.decode(w, r, &input) {
		return
	}

	result, err := h.Service.Create(ctx, input)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, r, err, "create record")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusCreated, "Record created successfully", result)
}

// ListMaterielsHandler returns the filtered, sorted and paginated view with
// the stats of the whole view.
func (h *MaterielHandler) ListMaterielsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	params, ok := h.parseListParams(w, r)
	if !ok {
		return
	}

	result := h.Service.List(ctx, params)
	pagination := h.ResponseHelper.ParsePaginationParams(r)
	meta := h.ResponseHelper.CalculatePaginationMeta(pagination, len(result.Items))

	data := h.ResponseHelper.CreatePaginatedListResponseData(Paginate(result.Items, pagination), meta, map[string]interface{}{
		"stats":  result.Stats,
		"filter": params.Filter,
		"sort":   map[string]string{"key": params.Sort.Key, "order": string(params.Sort.Direction)},
	})
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, data)
}

// NextIDHandler suggests the next generated record identifier.
func (h *MaterielHandler) NextIDHandler(w http.ResponseWriter, r *http.Request) {
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, map[string]string{"id": h.Service.NextID(r.Context())})
}

// GetMaterielHandler handles the retrieval of a single record by id.
func (h *MaterielHandler) GetMaterielHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	record, err := h.Service.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, r, err, "retrieve record")
		return
	}

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, record)
}

// UpdateMaterielHandler handles the update of a record. A body without an id
// keeps the id from the path; a different id renames the record.
func (h *MaterielHandler) UpdateMaterielHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id := mux.Vars(r)["id"]

	var input model.RecordInput
	if !h.decode(w, r, &input) {
		return
	}
	if strings.TrimSpace(input.ID) == "" {
		input.ID = id
	}

	result, err := h.Service.Update(ctx, id, input)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, r, err, "update record")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Record updated successfully", result)
}

// DeleteMaterielHandler deletes a record. The request must carry
// confirm=true; unknown ids are reported before the confirmation check.
func (h *MaterielHandler) DeleteMaterielHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id := mux.Vars(r)["id"]

	if _, err := h.Service.Get(ctx, id); err != nil {
		h.ErrorHandler.HandleServiceError(w, r, err, "delete record")
		return
	}

	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if !confirmed {
		h.ErrorHandler.HandleServiceError(w, r, apperrors.ConfirmationRequiredError(id), "delete record")
		return
	}

	result, err := h.Service.Delete(ctx, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, r, err, "delete record")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Record deleted successfully", result)
}

// StatsHandler returns the stats of the view selected by filter.
func (h *MaterielHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := h.Service.Stats(r.Context(), r.URL.Query().Get("filter"))
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, stats)
}

// HistoryHandler returns the paginated history, newest first unless
// order=asc.
func (h *MaterielHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	order, err := history.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		h.ErrorHandler.HandleParameterError(w, r, "order", err)
		return
	}

	entries := h.Service.History(r.Context(), order)
	pagination := h.ResponseHelper.ParsePaginationParams(r)
	meta := h.ResponseHelper.CalculatePaginationMeta(pagination, len(entries))

	data := h.ResponseHelper.CreatePaginatedListResponseData(Paginate(entries, pagination), meta, map[string]interface{}{
		"order": order,
	})
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, data)
}

// HistoryEntryHandler returns one history entry with its diff.
func (h *MaterielHandler) HistoryEntryHandler(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Service.HistoryEntry(r.Context(), mux.Vars(r)["entryId"])
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, r, err, "retrieve history entry")
		return
	}

	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, detail)
}

// ExportMaterielsCSVHandler downloads the current view as CSV.
func (h *MaterielHandler) ExportMaterielsCSVHandler(w http.ResponseWriter, r *http.Request) {
	params, ok := h.parseListParams(w, r)
	if !ok {
		return
	}
	result := h.Service.List(r.Context(), params)

	h.ResponseHelper.SetDownloadHeaders(w, export.ContentTypeCSV, export.FileName("materiel", "csv", h.Clock()))
	if err := export.WriteRecordsCSV(w, result.Items); err != nil {
		h.Logger.Error().Err(err).Msg("failed to write records CSV")
	}
}

// ExportMaterielsXLSXHandler downloads the current view as a workbook.
func (h *MaterielHandler) ExportMaterielsXLSXHandler(w http.ResponseWriter, r *http.Request) {
	params, ok := h.parseListParams(w, r)
	if !ok {
		return
	}
	result := h.Service.List(r.Context(), params)

	h.ResponseHelper.SetDownloadHeaders(w, export.ContentTypeXLSX, export.FileName("materiel", "xlsx", h.Clock()))
	if err := export.WriteRecordsXLSX(w, result.Items); err != nil {
		h.Logger.Error().Err(err).Msg("failed to write records workbook")
	}
}

// ExportHistoryCSVHandler downloads the history, newest first.
func (h *MaterielHandler) ExportHistoryCSVHandler(w http.ResponseWriter, r *http.Request) {
	entries := h.Service.History(r.Context(), history.NewestFirst)
	if len(entries) == 0 {
		h.ErrorHandler.HandleServiceError(w, r, apperrors.NewAppError(apperrors.ErrorCodeNotFound,
			"no history to export"), "export history")
		return
	}

	h.ResponseHelper.SetDownloadHeaders(w, export.ContentTypeCSV, export.FileName("historique", "csv", h.Clock()))
	if err := export.WriteHistoryCSV(w, entries); err != nil {
		h.Logger.Error().Err(err).Msg("failed to write history CSV")
	}
}

// SyncStatusHandler returns the outcome of the last load or save.
func (h *MaterielHandler) SyncStatusHandler(w http.ResponseWriter, r *http.Request) {
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, h.Service.SyncStatus(r.Context()))
}

// SyncHandler saves both documents now.
func (h *MaterielHandler) SyncHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, LongRunningTimeout)
	defer cancel()

	status, err := h.Service.Sync(ctx)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, r, err, "sync")
		return
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Inventory saved", status)
}

// HealthHandler provides a health check endpoint
func (h *MaterielHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	healthData := h.ResponseHelper.CreateHealthCheckData()
	healthData["sync"] = h.Service.SyncStatus(r.Context())

	if h.Notifier != nil {
		ctx, cancel := context.WithTimeout(r.Context(), NotificationTimeout)
		defer cancel()
		healthData["notifier_healthy"] = h.Notifier.IsHealthy(ctx)
	}

	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Service is healthy", healthData)
}

func (h *MaterielHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, r, err)
		return false
	}
	return true
}

func (h *MaterielHandler) parseListParams(w http.ResponseWriter, r *http.Request) (service.ListParams, bool) {
	q := r.URL.Query()

	sort, err := query.ParseSort(q.Get("sort"), q.Get("order"))
	if err != nil {
		h.ErrorHandler.HandleParameterError(w, r, "sort", err)
		return service.ListParams{}, false
	}

	return service.ListParams{Filter: q.Get("filter"), Sort: sort}, true
}
