package middleware

import (
	"context"
	"net/http"

	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
)

// IdentityHeader carries the caller's user and team scopes.
// Format: "user:bob,team:finance,team:sales"
const IdentityHeader = "X-Caller-Identity"

type identityContextKey struct{}

// CallerIdentity returns middleware that parses the identity header and
// stores the result in the request context. Requests without the header get
// an anonymous identity; resolution still sees primary and system terms.
func CallerIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := models.ParseIdentityHeader(r.Header.Get(IdentityHeader))
			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity returns a context carrying the given identity. CallerIdentity
// does this for HTTP requests; direct callers of the services use this.
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the caller identity stored by CallerIdentity.
// Returns an anonymous identity when none is present.
func IdentityFromContext(ctx context.Context) models.Identity {
	if identity, ok := ctx.Value(identityContextKey{}).(models.Identity); ok {
		return identity
	}
	return models.Identity{}
}
