// Package testserver runs the complete HTTP surface against an in-memory
// database for end-to-end tests.
package testserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/flowscribe/internal/app"
	"github.com/rpggio/flowscribe/internal/config"
	"github.com/rpggio/flowscribe/internal/mcp"
	"github.com/rpggio/flowscribe/internal/transport"
)

type TestServer struct {
	Server *httptest.Server
	App    *app.App
	Token  string
}

// New serves the MCP endpoint, script library and event stream behind a
// single bearer token.
func New(t *testing.T, token string) *TestServer {
	t.Helper()

	cfg := config.Default()
	cfg.DB.Path = ":memory:"
	cfg.Auth = config.AuthConfig{Enabled: true, Tokens: []string{token}}

	a, err := app.Open(context.Background(), cfg, nil)
	require.NoError(t, err)

	tokens := transport.StaticTokens(cfg.Auth.Tokens)
	mcpServer := mcp.NewServer(mcp.Config{
		Studio:        a.Studio,
		Activity:      a.Activity,
		Resolver:      tokens,
		AuthEnabled:   true,
		TransportMode: "http",
		RecentActions: cfg.Recording.RecentActions,
	})
	router := transport.NewServer(transport.Config{
		MCP: sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return mcpServer },
			&sdkmcp.StreamableHTTPOptions{SessionTimeout: time.Minute},
		),
		Library: a.Studio.Scripts().Library(),
		Events:  a.Bus,
		Auth:    transport.AuthMiddleware(tokens),
	})
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		_ = a.Close()
	})

	return &TestServer{Server: server, App: a, Token: token}
}

// Client returns an HTTP client that presents token on every request.
func (ts *TestServer) Client(token string) *http.Client {
	return &http.Client{Transport: bearer{token: token, next: http.DefaultTransport}}
}

// Connect opens an MCP client session over the streamable HTTP endpoint.
func (ts *TestServer) Connect(ctx context.Context, token string) (*sdkmcp.ClientSession, error) {
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	return client.Connect(ctx, &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: ts.Client(token),
	}, nil)
}

type bearer struct {
	token string
	next  http.RoundTripper
}

func (b bearer) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	return b.next.RoundTrip(req)
}
