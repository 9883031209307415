package middleware

import (
	"net/http"
	"roombook/pkg/identity"
	"roombook/pkg/logger"
)

// Identity stores the gateway-supplied user on the request context.
// Requests without identity pass through; handlers that mutate state
// reject them via RequireUser on the service path.
func Identity(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user, ok := identity.FromRequest(r); ok {
				r = r.WithContext(identity.WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}
