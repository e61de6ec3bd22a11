package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/athebyme/market-repricer/pkg/interfaces"
)

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFromContext возвращает claims, положенные в контекст AuthMiddleware
func ClaimsFromContext(ctx context.Context) (*interfaces.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*interfaces.Claims)
	return claims, ok
}

// AuthMiddleware промежуточное ПО для проверки JWT токенов
func AuthMiddleware(auth interfaces.AuthPort, logger interfaces.LoggerPort) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ValidateToken(r.Context(), parts[1])
			if err != nil {
				logger.WarnWithContext(r.Context(), "Невалидный JWT токен",
					interfaces.LogField{Key: "error", Value: err.Error()})
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAnyRole проверяет наличие хотя бы одной роли из списка
func RequireAnyRole(auth interfaces.AuthPort, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !auth.HasAnyRole(claims, roles...) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
