package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/mesafood/comanda/internal/domain/auth"
)

// claimsKey is the context key for verified request claims.
type claimsKey struct{}

// ClaimsFromContext extracts the verified claims set by Authenticate.
func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return c, ok
}

// Authenticate verifies the bearer token and stores the claims in the
// request context. Requests without a valid token are rejected with 401.
func Authenticate(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || token == r.Header.Get("Authorization") {
				writeError(w, http.StatusUnauthorized, kindAuth, "missing_token", "access token required")
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, kindAuth, "invalid_token", "invalid access token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, *claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff rejects requests whose claims do not carry order-management
// capability.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, kindAuth, "missing_token", "access token required")
			return
		}
		if !claims.Role.CanManageOrders() {
			writeError(w, http.StatusForbidden, kindAuth, "forbidden", "staff access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
