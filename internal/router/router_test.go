package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"materiel-inventory-api/internal/config"
)

// recordingHandler answers every route with the name of the method called.
type recordingHandler struct{}

func (recordingHandler) write(w http.ResponseWriter, name string, r *http.Request) {
	w.Header().Set("X-Handler", name)
	if id, ok := mux.Vars(r)["id"]; ok {
		w.Header().Set("X-Id", id)
	}
	w.WriteHeader(http.StatusOK)
}

func (h recordingHandler) CreateMaterielHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "create", r)
}
func (h recordingHandler) ListMaterielsHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "list", r)
}
func (h recordingHandler) NextIDHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "next-id", r)
}
func (h recordingHandler) GetMaterielHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "get", r)
}
func (h recordingHandler) UpdateMaterielHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "update", r)
}
func (h recordingHandler) DeleteMaterielHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "delete", r)
}
func (h recordingHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "stats", r)
}
func (h recordingHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "history", r)
}
func (h recordingHandler) HistoryEntryHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "history-entry", r)
}
func (h recordingHandler) ExportMaterielsCSVHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "export-csv", r)
}
func (h recordingHandler) ExportMaterielsXLSXHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "export-xlsx", r)
}
func (h recordingHandler) ExportHistoryCSVHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "export-history", r)
}
func (h recordingHandler) SyncStatusHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "sync-status", r)
}
func (h recordingHandler) SyncHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "sync", r)
}
func (h recordingHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.write(w, "health", r)
}

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			RateLimitRPS:   1000,
			RateLimitBurst: 1000,
			RequestTimeout: time.Second,
			EnableCORS:     true,
			AllowedOrigins: []string{"*"},
		},
	}
}

func TestNewRouter_Routes(t *testing.T) {
	r := NewRouter(recordingHandler{}, testConfig(), zerolog.Nop())

	tests := []struct {
		method  string
		path    string
		handler string
		id      string
	}{
		{"POST", "/api/v1/materiels", "create", ""},
		{"GET", "/api/v1/materiels", "list", ""},
		{"GET", "/api/v1/materiels/next-id", "next-id", ""},
		{"GET", "/api/v1/materiels/ID-RT-1", "get", "ID-RT-1"},
		{"PUT", "/api/v1/materiels/ID-RT-1", "update", "ID-RT-1"},
		{"DELETE", "/api/v1/materiels/ID-RT-1", "delete", "ID-RT-1"},
		{"GET", "/api/v1/stats", "stats", ""},
		{"GET", "/api/v1/historique", "history", ""},
		{"GET", "/api/v1/historique/0190f1c2", "history-entry", ""},
		{"GET", "/api/v1/export/materiels.csv", "export-csv", ""},
		{"GET", "/api/v1/export/materiels.xlsx", "export-xlsx", ""},
		{"GET", "/api/v1/export/historique.csv", "export-history", ""},
		{"GET", "/api/v1/sync/status", "sync-status", ""},
		{"POST", "/api/v1/sync", "sync", ""},
		{"GET", "/api/v1/health", "health", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.handler, rr.Header().Get("X-Handler"))
			assert.Equal(t, tt.id, rr.Header().Get("X-Id"))
			assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		})
	}
}

func TestNewRouter_Preflight(t *testing.T) {
	r := NewRouter(recordingHandler{}, testConfig(), zerolog.Nop())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/materiels/ID-RT-1", nil)
	req.Header.Set("Origin", "http://inventaire.local")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://inventaire.local", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rr.Header().Get("X-Handler"))
}

func TestNewRouter_MethodNotAllowed(t *testing.T) {
	r := NewRouter(recordingHandler{}, testConfig(), zerolog.Nop())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("PATCH", "/api/v1/materiels/ID-RT-1", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
