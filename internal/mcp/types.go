package mcp

import (
	"github.com/rpggio/flowscribe/internal/domain/action"
	"github.com/rpggio/flowscribe/internal/domain/activity"
	"github.com/rpggio/flowscribe/internal/domain/flow"
	"github.com/rpggio/flowscribe/internal/domain/script"
	"github.com/rpggio/flowscribe/internal/domain/session"
)

type ListFlowsParams struct{}

type CreateFlowParams struct {
	ID          string `json:"id,omitempty" jsonschema:"flow identifier, derived from the name when omitted"`
	Name        string `json:"name" jsonschema:"display name of the flow"`
	Description string `json:"description,omitempty" jsonschema:"what the flow covers"`
}

type StartRecordingParams struct {
	FlowID string `json:"flow_id" jsonschema:"flow to record, created when unknown"`
}

type RecordActionParams struct {
	SessionID   string `json:"session_id" jsonschema:"recording session returned by start_recording"`
	Locator     string `json:"locator" jsonschema:"element shorthand such as key:signup_btn or semanticsLabel:Email or text:Sign up"`
	Kind        string `json:"kind" jsonschema:"tap, enterText, swipe, wait or assert"`
	Text        string `json:"text,omitempty" jsonschema:"text typed by an enterText action"`
	Direction   string `json:"direction,omitempty" jsonschema:"swipe direction: up, down, left or right"`
	TimeoutMs   int64  `json:"timeout_ms,omitempty" jsonschema:"wait budget in milliseconds"`
	Condition   string `json:"condition,omitempty" jsonschema:"assert condition: visible, absent or textEquals"`
	Expected    string `json:"expected,omitempty" jsonschema:"expected text for textEquals"`
	Description string `json:"description,omitempty" jsonschema:"free text note kept with the action"`
}

type SessionParams struct {
	SessionID string `json:"session_id" jsonschema:"recording session identifier"`
}

type SynthesizeScriptsParams struct {
	FlowID    string   `json:"flow_id" jsonschema:"completed flow to compile"`
	Languages []string `json:"languages,omitempty" jsonschema:"target languages; the enabled set when omitted"`
}

type ReviseScriptParams struct {
	ScriptID   string `json:"script_id" jsonschema:"artifact to revise"`
	SourceCode string `json:"source_code" jsonschema:"edited source; becomes a new unvalidated artifact"`
}

type ListScriptsParams struct {
	FlowID     string `json:"flow_id,omitempty" jsonschema:"only artifacts of this flow"`
	Language   string `json:"language,omitempty" jsonschema:"only artifacts in this language"`
	Validation string `json:"validation,omitempty" jsonschema:"unvalidated, validating, validated or failed"`
	Query      string `json:"query,omitempty" jsonschema:"case-insensitive match on flow name or source"`
}

type ScriptParams struct {
	ScriptID string `json:"script_id" jsonschema:"artifact identifier"`
}

type RecentActivityParams struct {
	FlowID    string `json:"flow_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	ScriptID  string `json:"script_id,omitempty"`
	Type      string `json:"type,omitempty" jsonschema:"event type such as flow.classified"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

type ListFlowsResponse struct {
	Flows []flow.Summary `json:"flows"`
}

type FlowResponse struct {
	Flow       flow.Summary     `json:"flow"`
	Assessment *flow.Assessment `json:"assessment,omitempty"`
}

type RecordActionResponse struct {
	Action        action.RecordedAction   `json:"action"`
	Session       session.Info            `json:"session"`
	RecentActions []action.RecordedAction `json:"recent_actions"`
}

type SessionResponse struct {
	Session session.Info            `json:"session"`
	Actions []action.RecordedAction `json:"actions"`
}

type SynthesizeScriptsResponse struct {
	Scripts  []script.Summary  `json:"scripts"`
	Failures map[string]string `json:"failures,omitempty"`
}

type ListScriptsResponse struct {
	Scripts []script.Summary `json:"scripts"`
}

type RecentActivityResponse struct {
	Activity []activity.ActivityEntry `json:"activity"`
}
