package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestTrafficLogging_ToolCallCarriesRecordingIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := trafficLoggingMiddleware(logger, "inbound")(func(context.Context, string, sdkmcp.Request) (sdkmcp.Result, error) {
		return &sdkmcp.CallToolResult{IsError: true}, nil
	})
	req := &sdkmcp.ServerRequest[*sdkmcp.CallToolParamsRaw]{
		Params: &sdkmcp.CallToolParamsRaw{
			Name:      "record_action",
			Arguments: json.RawMessage(`{"session_id":"s-1","flow_id":"login","kind":"tap"}`),
		},
	}
	ctx := context.WithValue(context.Background(), clientIDKey, "studio")
	_, err := handler(ctx, "tools/call", req)
	require.NoError(t, err)

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 2)
	require.Equal(t, "mcp request", recs[0]["msg"])
	require.Equal(t, "mcp response", recs[1]["msg"])
	for _, rec := range recs {
		require.Equal(t, "inbound", rec["direction"])
		require.Equal(t, "tools/call", rec["method"])
		require.Equal(t, "record_action", rec["tool"])
		require.Equal(t, "s-1", rec["session_id"])
		require.Equal(t, "login", rec["flow_id"])
		require.Equal(t, "studio", rec["client_id"])
		require.NotContains(t, rec, "script_id")
	}
	require.Equal(t, true, recs[1]["tool_error"])
}

func TestTrafficLogging_OtherMethods(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	boom := errors.New("boom")

	handler := trafficLoggingMiddleware(logger, "inbound")(func(context.Context, string, sdkmcp.Request) (sdkmcp.Result, error) {
		return nil, boom
	})
	_, err := handler(context.Background(), "tools/list", &sdkmcp.ServerRequest[*sdkmcp.ListToolsParams]{Params: &sdkmcp.ListToolsParams{}})
	require.ErrorIs(t, err, boom)

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 2)
	require.NotContains(t, recs[0], "tool")
	require.Equal(t, "boom", recs[1]["error"])

	buf.Reset()
	_, _ = handler(context.Background(), "notifications/initialized", nil)
	require.Len(t, decodeLines(t, &buf), 1)
}

func TestTrafficLogging_SilentAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	called := false
	handler := trafficLoggingMiddleware(logger, "outbound")(func(context.Context, string, sdkmcp.Request) (sdkmcp.Result, error) {
		called = true
		return nil, nil
	})
	_, err := handler(context.Background(), "tools/call", nil)
	require.NoError(t, err)
	require.True(t, called)
	require.Zero(t, buf.Len())
}
