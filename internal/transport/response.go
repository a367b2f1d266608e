package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rpggio/flowscribe/internal/mcp"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error *mcp.APIError `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("writing response failed", "error", err)
	}
}

// writeError reports err with the same codes the MCP tools use.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	apiErr := mcp.MapError(err)
	status := statusFor(apiErr.Code)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, logger, status, ErrorResponse{Error: apiErr})
}

func statusFor(code string) int {
	switch code {
	case "FLOW_NOT_FOUND", "SESSION_NOT_FOUND", "SCRIPT_NOT_FOUND":
		return http.StatusNotFound
	case "CONFLICT", "FLOW_EXISTS", "INVALID_STATE", "NOT_READY":
		return http.StatusConflict
	case "INVALID_INPUT", "UNSUPPORTED_LANGUAGE":
		return http.StatusBadRequest
	case "TIMEOUT":
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
