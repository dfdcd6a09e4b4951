package middleware

import (
	"context"
	"net/http"

	"noticeboard/internal/common"
	"noticeboard/internal/common/security"
	"noticeboard/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const IdentityCtxKey contextKey = "identity"

// Identify turns the token found by jwtauth.Verifier into an Identity on the
// request context. No token means an anonymous caller; a token that fails
// verification is rejected outright on every route.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			if security.IsNoToken(err) {
				next.ServeHTTP(w, r)
				return
			}
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if token == nil {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := security.IdentityFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireIdentity rejects anonymous callers. Role checks stay in the policy.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()) == nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, IdentityCtxKey, identity)
}

// IdentityFromContext returns nil for anonymous callers.
func IdentityFromContext(ctx context.Context) model.Identity {
	identity, _ := ctx.Value(IdentityCtxKey).(model.Identity)
	return identity
}
