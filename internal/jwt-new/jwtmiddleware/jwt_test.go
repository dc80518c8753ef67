package jwtmiddleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	security "github.com/linemk/kronor-shop/internal/jwt-new"
	"github.com/linemk/kronor-shop/internal/jwt-new/jwtmiddleware"
	"github.com/stretchr/testify/assert"
)

// fakeVerifier принимает только токен "good".
type fakeVerifier struct{}

func (fakeVerifier) Verify(ctx context.Context, token string) (*security.Claims, error) {
	if token != "good" {
		return nil, errors.New("bad signature")
	}
	return &security.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-sub-1"},
		Email:            "jane@example.com",
	}, nil
}

func serve(header string) *httptest.ResponseRecorder {
	middleware := jwtmiddleware.NewJWTMiddleware(fakeVerifier{})
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			http.Error(w, "claims not found", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(claims.Subject))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestJWTMiddleware_MissingAuthorization(t *testing.T) {
	rr := serve("")
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected unauthorized status when no token provided")
	assert.True(t, strings.Contains(rr.Body.String(), "missing token"))
}

func TestJWTMiddleware_InvalidAuthorizationFormat(t *testing.T) {
	rr := serve("InvalidFormat")
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected unauthorized status for invalid token format")
	assert.True(t, strings.Contains(rr.Body.String(), "invalid token format"))
}

func TestJWTMiddleware_InvalidToken(t *testing.T) {
	rr := serve("Bearer invalid.token.value")
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "Expected unauthorized status for invalid token")
	assert.True(t, strings.Contains(rr.Body.String(), "invalid token"))
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	rr := serve("Bearer good")
	assert.Equal(t, http.StatusOK, rr.Code, "Expected OK status for valid token")
	assert.Equal(t, "user-sub-1", rr.Body.String())
}

func TestFromContext(t *testing.T) {
	claims := &security.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "abc"}}
	ctx := context.WithValue(context.Background(), jwtmiddleware.ClaimsKey, claims)
	got, ok := jwtmiddleware.FromContext(ctx)
	assert.True(t, ok, "Expected to retrieve claims from context")
	assert.Equal(t, "abc", got.Subject, "Expected subject to match")

	_, ok = jwtmiddleware.FromContext(context.Background())
	assert.False(t, ok)
}
