package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerTools adds every flowscribe tool to the server.
func registerTools(server *sdkmcp.Server, h *Handler) {
	// Flows
	addTool(server, h.logger, "list_flows",
		"List the flows in the catalog with status, confidence and action count", h.ListFlows)
	addTool(server, h.logger, "create_flow",
		"Create a pending flow to record later", h.CreateFlow)

	// Recording
	addTool(server, h.logger, "start_recording",
		"Open the single recording session for a flow; fails with CONFLICT while another is active", h.StartRecording)
	addTool(server, h.logger, "record_action",
		"Append one interaction (tap, enterText, swipe, wait, assert) to a recording session", h.RecordAction)
	addTool(server, h.logger, "stop_recording",
		"Stop a recording session and classify its flow; returns the confidence assessment", h.StopRecording)
	addTool(server, h.logger, "get_session",
		"Get a recording session with its captured actions", h.GetSession)

	// Scripts
	addTool(server, h.logger, "synthesize_scripts",
		"Compile a completed flow into test scripts for the requested languages", h.SynthesizeScripts)
	addTool(server, h.logger, "revise_script",
		"Store edited source as a new unvalidated revision of a script", h.ReviseScript)
	addTool(server, h.logger, "list_scripts",
		"List synthesized scripts filtered by flow, language, validation state or text", h.ListScripts)
	addTool(server, h.logger, "get_script",
		"Get a script with its source code and validation outcome", h.GetScript)
	addTool(server, h.logger, "validate_script",
		"Validate a script: syntax, locator resolution and identifier collisions", h.ValidateScript)
	addTool(server, h.logger, "cancel_validation",
		"Abandon a validation in flight and return the script to unvalidated", h.CancelValidation)

	// Activity
	addTool(server, h.logger, "recent_activity",
		"List recent pipeline events, newest first", h.RecentActivity)
}

func addTool[In, Out any](server *sdkmcp.Server, logger *slog.Logger, name, description string, fn func(context.Context, In) (Out, error)) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, any, error) {
			out, err := fn(ctx, in)
			if err != nil {
				apiErr := MapError(err)
				logger.Debug("tool failed", "tool", name, "code", apiErr.Code, "error", err)
				return errorResult(apiErr), nil, nil
			}
			return jsonResult(out)
		})
}

func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func errorResult(apiErr *APIError) *sdkmcp.CallToolResult {
	data, err := json.Marshal(apiErr)
	if err != nil {
		data = []byte(apiErr.Error())
	}
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}
