package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
	"github.com/crosswalk-data/crosswalk-engine/pkg/middleware"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
	"github.com/crosswalk-data/crosswalk-engine/pkg/services"
)

// ResolveHandler exposes the resolution and confirmation endpoints.
type ResolveHandler struct {
	resolution services.ResolutionService
	learning   services.LearningService
	logger     *zap.Logger
}

// NewResolveHandler creates a new ResolveHandler.
func NewResolveHandler(resolution services.ResolutionService, learning services.LearningService, logger *zap.Logger) *ResolveHandler {
	return &ResolveHandler{resolution: resolution, learning: learning, logger: logger.Named("resolve-handler")}
}

// RegisterRoutes registers the resolution routes on the given mux.
func (h *ResolveHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/resolve-values", h.Resolve)
	mux.HandleFunc("POST /v1/confirm-match", h.Confirm)
}

// Resolve handles POST /v1/resolve-values.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req models.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}

	identity := middleware.IdentityFromContext(r.Context())

	resp, err := h.resolution.Resolve(r.Context(), identity, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode resolve response", zap.Error(err))
	}
}

// Confirm handles POST /v1/confirm-match.
func (h *ResolveHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req models.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}

	identity := middleware.IdentityFromContext(r.Context())

	if err := h.learning.Confirm(r.Context(), identity, &req); err != nil {
		h.writeError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, models.ConfirmResponse{Status: "confirmed"}); err != nil {
		h.logger.Error("Failed to encode confirm response", zap.Error(err))
	}
}

func (h *ResolveHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		_ = ErrorResponse(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrTooManyQueries):
		_ = ErrorResponse(w, http.StatusRequestEntityTooLarge, "too_many_queries", err.Error())
	case errors.Is(err, apperrors.ErrInvalidScope):
		_ = ErrorResponse(w, http.StatusForbidden, "invalid_scope", err.Error())
	default:
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
	}
}
