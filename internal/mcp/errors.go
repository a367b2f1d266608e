package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/flowscribe/internal/domain"
	"github.com/rpggio/flowscribe/internal/domain/action"
	"github.com/rpggio/flowscribe/internal/domain/flow"
	"github.com/rpggio/flowscribe/internal/domain/locator"
	"github.com/rpggio/flowscribe/internal/domain/script"
	"github.com/rpggio/flowscribe/internal/domain/session"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Unknown errors become INTERNAL.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	mapped := &APIError{Message: err.Error()}
	switch {
	case errors.Is(err, flow.ErrFlowNotFound):
		mapped.Code, mapped.RecoveryHint = "FLOW_NOT_FOUND", "Call list_flows for known flow IDs"
	case errors.Is(err, flow.ErrFlowExists):
		mapped.Code, mapped.RecoveryHint = "FLOW_EXISTS", "Pick another ID or record the existing flow"
	case errors.Is(err, session.ErrSessionNotFound):
		mapped.Code, mapped.RecoveryHint = "SESSION_NOT_FOUND", "Start a new recording"
	case errors.Is(err, script.ErrScriptNotFound):
		mapped.Code, mapped.RecoveryHint = "SCRIPT_NOT_FOUND", "Call list_scripts for known script IDs"
	case errors.Is(err, domain.ErrConflict):
		mapped.Code, mapped.RecoveryHint = "CONFLICT", "Stop the active recording first"
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, action.ErrLogFrozen):
		mapped.Code, mapped.RecoveryHint = "INVALID_STATE", "Check the session or script state before retrying"
	case errors.Is(err, domain.ErrUnsupportedLanguage):
		mapped.Code, mapped.RecoveryHint = "UNSUPPORTED_LANGUAGE", "Use java, python or javascript"
	case errors.Is(err, domain.ErrNotReady):
		mapped.Code, mapped.RecoveryHint = "NOT_READY", "Stop the recording so the flow is classified"
	case errors.Is(err, domain.ErrTimeout):
		mapped.Code, mapped.RecoveryHint = "TIMEOUT", "The work continues in the background; check recent_activity"
	case errors.Is(err, flow.ErrInvalidInput),
		errors.Is(err, session.ErrInvalidInput),
		errors.Is(err, script.ErrInvalidInput),
		errors.Is(err, action.ErrUnknownKind),
		errors.Is(err, action.ErrMissingPayload),
		errors.Is(err, action.ErrInvalidPayload),
		errors.Is(err, locator.ErrUnidentifiable),
		errors.Is(err, locator.ErrInvalidShorthand):
		mapped.Code, mapped.RecoveryHint = "INVALID_INPUT", "Fix the arguments and retry"
	default:
		mapped.Code = "INTERNAL"
	}
	return mapped
}
