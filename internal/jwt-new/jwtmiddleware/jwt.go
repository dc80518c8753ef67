package jwtmiddleware

import (
	"context"
	"net/http"
	"strings"

	security "github.com/linemk/kronor-shop/internal/jwt-new"
)

type contextKey string

const ClaimsKey contextKey = "claims"

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*security.Claims, error)
}

// NewJWTMiddleware создаёт middleware для проверки Bearer-токена через verifier.
func NewJWTMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization (формат: "Bearer <token>")
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid token format", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(r.Context(), parts[1])
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext извлекает claims из контекста.
func FromContext(ctx context.Context) (*security.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*security.Claims)
	return claims, ok
}
