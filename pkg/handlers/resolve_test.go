package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
	"github.com/crosswalk-data/crosswalk-engine/pkg/middleware"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
)

type mockResolutionService struct {
	resolveFn func(ctx context.Context, identity models.Identity, req *models.ResolveRequest) (*models.ResolveResponse, error)
}

func (m *mockResolutionService) Resolve(ctx context.Context, identity models.Identity, req *models.ResolveRequest) (*models.ResolveResponse, error) {
	return m.resolveFn(ctx, identity, req)
}

type mockLearningService struct {
	confirmFn func(ctx context.Context, identity models.Identity, req *models.ConfirmRequest) error
}

func (m *mockLearningService) Confirm(ctx context.Context, identity models.Identity, req *models.ConfirmRequest) error {
	return m.confirmFn(ctx, identity, req)
}

func newResolveHandler(resolution *mockResolutionService, learning *mockLearningService) http.Handler {
	mux := http.NewServeMux()
	NewResolveHandler(resolution, learning, zap.NewNop()).RegisterRoutes(mux)
	return middleware.CallerIdentity()(mux)
}

func TestResolveEndpoint_PassesIdentityFromHeader(t *testing.T) {
	var gotIdentity models.Identity
	resolution := &mockResolutionService{
		resolveFn: func(_ context.Context, identity models.Identity, req *models.ResolveRequest) (*models.ResolveResponse, error) {
			gotIdentity = identity
			return &models.ResolveResponse{Results: []models.ResolveResult{{Term: req.Queries[0].Term}}}, nil
		},
	}
	handler := newResolveHandler(resolution, &mockLearningService{})

	body := `{"queries":[{"term":"Nike","entity_types":["Vendor"]}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/resolve-values", strings.NewReader(body))
	req.Header.Set(middleware.IdentityHeader, "user:bob,team:finance")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", gotIdentity.User)
	assert.Equal(t, []string{"finance"}, gotIdentity.Teams)

	var resp models.ResolveResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Nike", resp.Results[0].Term)
}

func TestResolveEndpoint_AnonymousWithoutHeader(t *testing.T) {
	var gotIdentity models.Identity
	resolution := &mockResolutionService{
		resolveFn: func(_ context.Context, identity models.Identity, _ *models.ResolveRequest) (*models.ResolveResponse, error) {
			gotIdentity = identity
			return &models.ResolveResponse{}, nil
		},
	}
	handler := newResolveHandler(resolution, &mockLearningService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/resolve-values", strings.NewReader(`{"queries":[{"term":"x"}]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gotIdentity.IsAnonymous())
}

func TestResolveEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			"too many queries",
			fmt.Errorf("%w: 2000 queries exceeds limit of 1000", apperrors.ErrTooManyQueries),
			http.StatusRequestEntityTooLarge, "too_many_queries",
		},
		{
			"bad request",
			fmt.Errorf("at least one query is required"),
			http.StatusBadRequest, "invalid_request",
		},
		{
			"deadline exceeded",
			fmt.Errorf("resolve against store %q in scoring phase: %w", "vendors", context.DeadlineExceeded),
			http.StatusGatewayTimeout, "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolution := &mockResolutionService{
				resolveFn: func(_ context.Context, _ models.Identity, _ *models.ResolveRequest) (*models.ResolveResponse, error) {
					return nil, tt.err
				},
			}
			handler := newResolveHandler(resolution, &mockLearningService{})

			req := httptest.NewRequest(http.MethodPost, "/v1/resolve-values", strings.NewReader(`{"queries":[{"term":"x"}]}`))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, decodeError(t, rec)["error"])
		})
	}
}

func TestResolveEndpoint_BadJSON(t *testing.T) {
	handler := newResolveHandler(&mockResolutionService{}, &mockLearningService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/resolve-values", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmEndpoint(t *testing.T) {
	var gotReq *models.ConfirmRequest
	var gotIdentity models.Identity
	learning := &mockLearningService{
		confirmFn: func(_ context.Context, identity models.Identity, req *models.ConfirmRequest) error {
			gotIdentity = identity
			gotReq = req
			return nil
		},
	}
	handler := newResolveHandler(&mockResolutionService{}, learning)

	body := `{"term":"Swoosh","value_row_id":7,"store_name":"companies","scope":"team:finance"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/confirm-match", strings.NewReader(body))
	req.Header.Set(middleware.IdentityHeader, "user:bob,team:finance")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", gotIdentity.User)
	require.NotNil(t, gotReq)
	assert.Equal(t, "Swoosh", gotReq.Term)
	assert.Equal(t, int64(7), gotReq.ValueRowID)
	assert.Equal(t, "team:finance", gotReq.Scope)
	assert.JSONEq(t, `{"status":"confirmed"}`, rec.Body.String())
}

func TestConfirmEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			"invalid scope",
			fmt.Errorf("%w: cannot confirm for another user", apperrors.ErrInvalidScope),
			http.StatusForbidden, "invalid_scope",
		},
		{
			"unknown row",
			fmt.Errorf("row 99 in store %q: %w", "companies", apperrors.ErrNotFound),
			http.StatusNotFound, "not_found",
		},
		{
			"validation",
			fmt.Errorf("term is required"),
			http.StatusBadRequest, "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			learning := &mockLearningService{
				confirmFn: func(_ context.Context, _ models.Identity, _ *models.ConfirmRequest) error {
					return tt.err
				},
			}
			handler := newResolveHandler(&mockResolutionService{}, learning)

			req := httptest.NewRequest(http.MethodPost, "/v1/confirm-match", strings.NewReader(`{"term":"x"}`))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, decodeError(t, rec)["error"])
		})
	}
}
