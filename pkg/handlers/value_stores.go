package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
	"github.com/crosswalk-data/crosswalk-engine/pkg/services"
)

// ValueStoreHandler exposes the admin surface for managing value stores.
type ValueStoreHandler struct {
	stores  services.ValueStoreService
	refresh services.RefreshService
	logger  *zap.Logger
}

// NewValueStoreHandler creates a new ValueStoreHandler.
func NewValueStoreHandler(stores services.ValueStoreService, refresh services.RefreshService, logger *zap.Logger) *ValueStoreHandler {
	return &ValueStoreHandler{stores: stores, refresh: refresh, logger: logger.Named("value-store-handler")}
}

// RegisterRoutes registers the admin routes on the given mux.
func (h *ValueStoreHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PUT /admin/value-stores", h.Upsert)
	mux.HandleFunc("GET /admin/value-stores", h.List)
	mux.HandleFunc("GET /admin/value-stores/{name}", h.Get)
	mux.HandleFunc("POST /admin/value-stores/{name}/refresh", h.Refresh)
	mux.HandleFunc("DELETE /admin/value-stores/{name}", h.Delete)
}

// Upsert handles PUT /admin/value-stores.
func (h *ValueStoreHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var config models.ValueStoreConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}

	if err := h.stores.Upsert(r.Context(), &config); err != nil {
		h.writeError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, &config); err != nil {
		h.logger.Error("Failed to encode config response", zap.Error(err))
	}
}

// List handles GET /admin/value-stores.
func (h *ValueStoreHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.stores.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if configs == nil {
		configs = []*models.ValueStoreConfig{}
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"value_stores": configs}); err != nil {
		h.logger.Error("Failed to encode list response", zap.Error(err))
	}
}

// storeDetail is the GET {name} response: the config plus live data status.
type storeDetail struct {
	Config *models.ValueStoreConfig `json:"config"`
	Status *models.StoreStatus      `json:"status,omitempty"`
}

// Get handles GET /admin/value-stores/{name}.
func (h *ValueStoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	config, status, err := h.stores.Get(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, storeDetail{Config: config, Status: status}); err != nil {
		h.logger.Error("Failed to encode store response", zap.Error(err))
	}
}

// Refresh handles POST /admin/value-stores/{name}/refresh.
func (h *ValueStoreHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	report, err := h.refresh.Refresh(r.Context(), name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to encode refresh report", zap.Error(err))
	}
}

// Delete handles DELETE /admin/value-stores/{name}.
func (h *ValueStoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := h.stores.Delete(r.Context(), name); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ValueStoreHandler) writeError(w http.ResponseWriter, err error) {
	var srcErr *services.SourceQueryError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrRefreshInProgress):
		_ = ErrorResponse(w, http.StatusConflict, "refresh_in_progress", err.Error())
	case errors.As(err, &srcErr):
		// Upstream fault, not ours.
		_ = ErrorResponse(w, http.StatusBadGateway, "source_error", err.Error())
	default:
		h.logger.Error("Admin request failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
	}
}
