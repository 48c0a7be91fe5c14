// Package middleware contains cross-cutting HTTP middleware.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/picstream/picstream/internal/entities"
)

type ctxKeyUser struct{}

// WithUser puts the authenticated caller into the context.
func WithUser(ctx context.Context, u *entities.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser{}, u)
}

// UserFrom returns the authenticated caller put into the context by Auth.
func UserFrom(ctx context.Context) (*entities.User, bool) {
	u, ok := ctx.Value(ctxKeyUser{}).(*entities.User)
	return u, ok
}

// TokenResolver resolves a bearer token to a user.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*entities.User, error)
}

// Auth requires a valid bearer token and injects the resolved user into the
// request context.
func Auth(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "

			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, prefix) {
				writeUnauthorized(w, "bearer token required")
				return
			}

			u, err := resolver.ResolveToken(r.Context(), strings.TrimPrefix(h, prefix))
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: message})
}
