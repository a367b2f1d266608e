package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `flowscribe turns recorded mobile UI interactions into executable test scripts.

Core concepts:
- Flow: a named user scenario (registration, messaging, ...). Pending until recorded, completed once classified.
- Session: the one active recording. Actions are appended in order; stopping freezes the log.
- Action: tap, enterText, swipe, wait or assert on an element locator (key, semanticsLabel or text).
- Confidence: 0-100 score of a classified flow. Below 50 the flow is marked not usable.
- Script: a synthesized artifact in java, python or javascript with a validation state.

Default workflow:
1) list_flows to pick a flow, or create_flow for a new one.
2) start_recording(flow_id), then record_action for each interaction. End with an assert.
3) stop_recording(session_id) to classify the flow.
4) synthesize_scripts(flow_id) for the enabled languages.
5) validate_script(script_id) for each artifact; revise_script to fix and validate again.

Errors come back as {code, message, recovery_hint}. TIMEOUT means the work continues in the
background; check recent_activity before retrying.

Docs:
- flowscribe://docs/index
- flowscribe://docs/concepts
- flowscribe://docs/workflows/recording
- flowscribe://docs/locators
- flowscribe://docs/validation
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "flowscribe://docs/index",
		Name:        "docs_index",
		Title:       "flowscribe docs index",
		Description: "Entry point: what each doc covers and when to read it.",
		Content: `# flowscribe: Agent Docs Index

## Quick start

1. list_flows
2. start_recording, record_action (repeat), stop_recording
3. synthesize_scripts, validate_script

## Read when needed

- flowscribe://docs/concepts: lifecycle of sessions, flows and scripts.
- flowscribe://docs/workflows/recording: recording a flow end to end, with timeouts.
- flowscribe://docs/locators: locator shorthand and how confidence is scored.
- flowscribe://docs/validation: validation states and failure reasons.

## Limitations

- One recording at a time across all clients.
- Scripts live in memory; flows and the activity log are persisted.
- Validation is static. It never runs a device.
`,
	},
	{
		URI:         "flowscribe://docs/concepts",
		Name:        "docs_concepts",
		Title:       "Concepts and invariants",
		Description: "Sessions, flows, action logs and scripts.",
		Content: `# Concepts

## Session
- States: recording, stopped. Only one session records at a time; start_recording fails with CONFLICT otherwise.
- A session stops on stop_recording or when the maximum recording duration elapses (stop_reason timeout).
- Once stopped its action log is frozen; record_action fails with INVALID_STATE.

## Flow
- Status: pending, recording, completed.
- Stopping a session classifies the flow: its actions are replaced by the new log and the confidence recomputed.
- Re-recording a completed flow replaces its actions; it never merges them.

## Script
- Synthesized from a completed flow; NOT_READY otherwise.
- Each artifact is immutable once validated or failed. revise_script creates a new artifact.
- device_ready becomes true when the artifact is validated.
`,
	},
	{
		URI:         "flowscribe://docs/workflows/recording",
		Name:        "docs_workflow_recording",
		Title:       "Workflow: recording a flow",
		Description: "Start, record, stop and synthesize, including timeouts.",
		Content: `# Workflow: recording a flow

1. start_recording {"flow_id": "registration"} returns session_id.
2. record_action per interaction:
   - {"session_id": "...", "locator": "key:email_field", "kind": "tap"}
   - {"session_id": "...", "locator": "semanticsLabel:Email", "kind": "enterText", "text": "a@b.c"}
   - {"session_id": "...", "locator": "text:Welcome", "kind": "assert", "condition": "visible"}
3. stop_recording {"session_id": "..."} returns the flow summary and assessment.
4. synthesize_scripts {"flow_id": "registration", "languages": ["java", "python"]}.

## Timeouts

stop_recording, synthesize_scripts and validate_script each have a budget. When it runs out the
tool returns TIMEOUT but the work is not abandoned: the flow is still classified and the script
still resolved. Use recent_activity {"flow_id": "..."} to see the outcome.
`,
	},
	{
		URI:         "flowscribe://docs/locators",
		Name:        "docs_locators",
		Title:       "Locators and confidence",
		Description: "Locator shorthand, strategy ranking and the confidence formula.",
		Content: `# Locators

Shorthand is strategy:value.

| strategy | example | stability |
|---|---|---|
| key | key:signup_btn | high |
| semanticsLabel | semanticsLabel:Email | high |
| text | text:Sign up | low |

Generated code uses the most specific strategy present.

## Confidence

- More actions and more high-stability locators raise the score.
- A terminal assert adds a large bonus. Flows without an assert rarely reach 50.
- A log of one action or none scores below 50.
`,
	},
	{
		URI:         "flowscribe://docs/validation",
		Name:        "docs_validation",
		Title:       "Script validation",
		Description: "Validation states, failure reasons and cancellation.",
		Content: `# Validation

States: unvalidated, validating, validated, failed.

- validate_script moves unvalidated to validating and resolves to validated or failed.
- cancel_validation returns a validating script to unvalidated.
- validated and failed are terminal for that artifact.

Failure reasons:
- syntax: unbalanced brackets, an unterminated string or comment, or inconsistent Python indentation.
- unresolved-locator: a locator in the source matches no recorded element.
- identifier-collision: a declared identifier is a reserved word of the target language.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
