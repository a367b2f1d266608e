package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type testResolver struct {
	tokenToClient map[string]string
	err           error
}

func (r *testResolver) ResolveClient(_ context.Context, token string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	client, ok := r.tokenToClient[token]
	if !ok {
		return "", ErrUnauthorized
	}
	return client, nil
}

func TestAuthMiddleware(t *testing.T) {
	resolver := &testResolver{tokenToClient: map[string]string{"token": "ci"}}

	handler := AuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID, ok := ClientFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "ci", clientID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_Invalid(t *testing.T) {
	resolver := &testResolver{err: errors.New("invalid")}

	handler := AuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	handler := AuthMiddleware(StaticTokens{"secret"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaticTokens(t *testing.T) {
	tokens := StaticTokens{"alpha", "beta"}

	client, err := tokens.ResolveClient(context.Background(), "beta")
	require.NoError(t, err)
	require.Equal(t, "client-2", client)

	_, err = tokens.ResolveClient(context.Background(), "gamma")
	require.ErrorIs(t, err, ErrUnauthorized)
}
