package transport

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type clientKey struct{}

// ClientResolver resolves a client name from a bearer token.
type ClientResolver interface {
	ResolveClient(ctx context.Context, token string) (string, error)
}

// ClientFromContext returns the authenticated client name, if present.
func ClientFromContext(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(clientKey{}).(string)
	return clientID, ok
}

// StaticTokens accepts a fixed list of tokens. The client behind the n-th
// token is named "client-n".
type StaticTokens []string

func (s StaticTokens) ResolveClient(_ context.Context, token string) (string, error) {
	for i, known := range s {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return fmt.Sprintf("client-%d", i+1), nil
		}
	}
	return "", ErrUnauthorized
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver ClientResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			clientID, err := resolver.ResolveClient(r.Context(), token)
			if err != nil || clientID == "" {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), clientKey{}, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
