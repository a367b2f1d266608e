package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// recordingRefs are the argument keys that tie a tool call to a capture.
type recordingRefs struct {
	SessionID string `json:"session_id"`
	FlowID    string `json:"flow_id"`
	ScriptID  string `json:"script_id"`
}

// trafficLoggingMiddleware logs each message at debug level. Tool calls carry
// the tool name and any session, flow or script id found in their arguments.
func trafficLoggingMiddleware(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			attrs := []slog.Attr{
				slog.String("direction", direction),
				slog.String("method", method),
				slog.String("mcp_session", safeSessionID(req)),
				slog.String("client_id", getClientID(ctx)),
			}
			attrs = append(attrs, toolAttrs(safeParams(req))...)
			logger.LogAttrs(ctx, slog.LevelDebug, "mcp request", attrs...)

			start := time.Now()
			result, err := next(ctx, method, req)
			if strings.HasPrefix(method, "notifications/") {
				return result, err
			}

			attrs = append(attrs, slog.Duration("elapsed", time.Since(start)))
			switch {
			case err != nil:
				attrs = append(attrs, slog.Any("error", err))
			case isToolError(result):
				attrs = append(attrs, slog.Bool("tool_error", true))
			}
			logger.LogAttrs(ctx, slog.LevelDebug, "mcp response", attrs...)
			return result, err
		}
	}
}

// toolAttrs describes a tools/call request; other params yield nothing.
func toolAttrs(params any) []slog.Attr {
	var (
		name string
		raw  json.RawMessage
	)
	switch p := params.(type) {
	case *sdkmcp.CallToolParamsRaw:
		if p == nil {
			return nil
		}
		name, raw = p.Name, p.Arguments
	case *sdkmcp.CallToolParams:
		if p == nil {
			return nil
		}
		name = p.Name
		raw, _ = json.Marshal(p.Arguments)
	default:
		return nil
	}

	attrs := []slog.Attr{slog.String("tool", name)}
	var refs recordingRefs
	if len(raw) == 0 || json.Unmarshal(raw, &refs) != nil {
		return attrs
	}
	for _, ref := range []struct{ key, value string }{
		{"session_id", refs.SessionID},
		{"flow_id", refs.FlowID},
		{"script_id", refs.ScriptID},
	} {
		if ref.value != "" {
			attrs = append(attrs, slog.String(ref.key, ref.value))
		}
	}
	return attrs
}

func isToolError(result sdkmcp.Result) bool {
	r, ok := result.(*sdkmcp.CallToolResult)
	return ok && r != nil && r.IsError
}

func safeSessionID(req sdkmcp.Request) string {
	if req == nil {
		return ""
	}
	defer func() { recover() }()
	session := req.GetSession()
	if session == nil {
		return ""
	}
	return session.ID()
}

func safeParams(req sdkmcp.Request) any {
	if req == nil {
		return nil
	}
	defer func() { recover() }()
	return req.GetParams()
}
