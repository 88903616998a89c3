package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/hollis/taskpilot/internal/authz"
)

const PrincipalKey contextKey = "principal"

// Principal runs after Auth and re-resolves the token's user id against live
// state on every request. A valid token over a deleted user yields 401; a
// valid token into a suspended tenant yields 403. The resolved principal,
// not the raw claims, is what handlers pass into the services.
func Principal(authzService *authz.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())

			p, err := authzService.ResolvePrincipal(r.Context(), userID)
			if err != nil {
				switch {
				case errors.Is(err, authz.ErrPrincipalNotFound):
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
				case errors.Is(err, authz.ErrTenantInactive):
					http.Error(w, "Forbidden", http.StatusForbidden)
				default:
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetPrincipal(ctx context.Context) *authz.Principal {
	if p, ok := ctx.Value(PrincipalKey).(*authz.Principal); ok {
		return p
	}
	return nil
}
