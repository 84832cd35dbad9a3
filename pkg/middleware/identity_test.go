package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
)

func TestCallerIdentity(t *testing.T) {
	var got models.Identity
	handler := CallerIdentity()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(IdentityHeader, "user:bob,team:finance,team:sales")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "bob", got.User)
	assert.Equal(t, []string{"finance", "sales"}, got.Teams)
}

func TestCallerIdentity_NoHeader(t *testing.T) {
	var got models.Identity
	handler := CallerIdentity()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, got.IsAnonymous())
}

func TestIdentityFromContext_Missing(t *testing.T) {
	assert.True(t, IdentityFromContext(context.Background()).IsAnonymous())
}
