package middleware

import (
	"net/http"
	"strings"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/performance"
)

// Auth resolves a bearer token into an actor. Requests without a valid token pass through
// anonymously; RequirePermission rejects them where a route needs a user.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithUser(r.Context(), performance.ActorContext{
				UserID:     claims.UserID,
				Role:       claims.RoleName,
				Department: claims.Department,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
