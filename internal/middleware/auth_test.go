package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picstream/picstream/internal/entities"
)

type resolverFunc func(ctx context.Context, token string) (*entities.User, error)

func (f resolverFunc) ResolveToken(ctx context.Context, token string) (*entities.User, error) {
	return f(ctx, token)
}

func TestAuth(t *testing.T) {
	user := &entities.User{ID: "id", Username: "alice"}

	resolver := resolverFunc(func(_ context.Context, token string) (*entities.User, error) {
		if token == "valid" {
			return user, nil
		}
		return nil, errors.New("bad token")
	})

	var got *entities.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		require.True(t, ok)
		got = u
	})

	tt := []struct {
		name    string
		header  string
		code    int
		message string
	}{
		{
			name:   "success",
			header: "Bearer valid",
			code:   http.StatusOK,
		},
		{
			name:    "invalid token",
			header:  "Bearer garbage",
			code:    http.StatusUnauthorized,
			message: "invalid token",
		},
		{
			name:    "not bearer",
			header:  "Basic dXNlcjpwYXNz",
			code:    http.StatusUnauthorized,
			message: "bearer token required",
		},
		{
			name:    "no header",
			code:    http.StatusUnauthorized,
			message: "bearer token required",
		},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			got = nil

			r, err := http.NewRequest(http.MethodGet, "/", nil)
			require.NoError(t, err)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}

			w := httptest.NewRecorder()
			Auth(resolver)(next).ServeHTTP(w, r)

			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, user, got)
			} else {
				assert.Nil(t, got)
				assert.JSONEq(t, `{"error":"`+tc.message+`"}`, w.Body.String())
			}
		})
	}
}

func TestUserFrom_absent(t *testing.T) {
	u, ok := UserFrom(context.Background())
	assert.False(t, ok)
	assert.Nil(t, u)
}
