package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/rpggio/flowscribe/internal/domain/action"
	"github.com/rpggio/flowscribe/internal/domain/activity"
	"github.com/rpggio/flowscribe/internal/domain/flow"
	"github.com/rpggio/flowscribe/internal/domain/locator"
	"github.com/rpggio/flowscribe/internal/domain/script"
	"github.com/rpggio/flowscribe/internal/domain/session"
	"github.com/rpggio/flowscribe/internal/events"
	"github.com/rpggio/flowscribe/internal/pipeline"
)

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

const defaultActivityLimit = 50

// Handler implements the MCP tools on top of the pipeline.
type Handler struct {
	studio        *pipeline.Studio
	activity      ActivityService
	recentActions int
	logger        *slog.Logger
}

// NewHandler creates a new MCP handler. recentActions bounds the recent
// actions echoed back by record_action.
func NewHandler(studio *pipeline.Studio, activitySvc ActivityService, recentActions int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		studio:        studio,
		activity:      activitySvc,
		recentActions: recentActions,
		logger:        logger,
	}
}

func (h *Handler) ListFlows(ctx context.Context, _ ListFlowsParams) (ListFlowsResponse, error) {
	flows, err := h.studio.Flows().List(ctx)
	if err != nil {
		return ListFlowsResponse{}, err
	}
	return ListFlowsResponse{Flows: flows}, nil
}

func (h *Handler) CreateFlow(ctx context.Context, req CreateFlowParams) (FlowResponse, error) {
	f, err := h.studio.Flows().Create(ctx, flow.CreateRequest{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return FlowResponse{}, err
	}
	return FlowResponse{Flow: f.Summarize()}, nil
}

func (h *Handler) StartRecording(ctx context.Context, req StartRecordingParams) (session.Info, error) {
	if strings.TrimSpace(req.FlowID) == "" {
		return session.Info{}, fmt.Errorf("%w: flow_id is required", flow.ErrInvalidInput)
	}
	return h.studio.StartRecording(ctx, req.FlowID)
}

func (h *Handler) RecordAction(ctx context.Context, req RecordActionParams) (RecordActionResponse, error) {
	in, err := req.input()
	if err != nil {
		return RecordActionResponse{}, err
	}
	rec, err := h.studio.Record(ctx, req.SessionID, in)
	if err != nil {
		return RecordActionResponse{}, err
	}
	info, err := h.studio.Sessions().Get(req.SessionID)
	if err != nil {
		return RecordActionResponse{}, err
	}
	return RecordActionResponse{
		Action:        rec,
		Session:       info,
		RecentActions: h.studio.Sessions().Recent(h.recentActions),
	}, nil
}

func (req RecordActionParams) input() (action.Input, error) {
	loc, err := locator.Parse(req.Locator)
	if err != nil {
		return action.Input{}, err
	}
	payload, err := action.NewPayload(
		action.Kind(req.Kind),
		req.Text,
		action.Direction(req.Direction),
		req.TimeoutMs,
		action.Condition(req.Condition),
		req.Expected,
	)
	if err != nil {
		return action.Input{}, err
	}
	return action.Input{Locator: loc, Payload: payload, Description: req.Description}, nil
}

func (h *Handler) StopRecording(ctx context.Context, req SessionParams) (FlowResponse, error) {
	f, err := h.studio.StopRecording(ctx, req.SessionID)
	if err != nil {
		return FlowResponse{}, err
	}
	return FlowResponse{Flow: f.Summarize(), Assessment: f.Assessment}, nil
}

func (h *Handler) GetSession(_ context.Context, req SessionParams) (SessionResponse, error) {
	info, err := h.studio.Sessions().Get(req.SessionID)
	if err != nil {
		return SessionResponse{}, err
	}
	if info.Archived {
		return SessionResponse{Session: info, Actions: []action.RecordedAction{}}, nil
	}
	log, err := h.studio.Sessions().Log(req.SessionID)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{Session: info, Actions: log.Actions()}, nil
}

func (h *Handler) SynthesizeScripts(ctx context.Context, req SynthesizeScriptsParams) (SynthesizeScriptsResponse, error) {
	langs := make([]script.Language, 0, len(req.Languages))
	for _, name := range req.Languages {
		lang, err := script.ParseLanguage(name)
		if err != nil {
			return SynthesizeScriptsResponse{}, err
		}
		langs = append(langs, lang)
	}

	out, err := h.studio.Synthesize(ctx, req.FlowID, langs)
	if err != nil {
		return SynthesizeScriptsResponse{}, err
	}
	resp := SynthesizeScriptsResponse{Scripts: summarize(out.Artifacts)}
	if len(out.Failures) > 0 {
		resp.Failures = make(map[string]string, len(out.Failures))
		for _, lang := range slices.Sorted(maps.Keys(out.Failures)) {
			resp.Failures[string(lang)] = out.Failures[lang].Error()
		}
	}
	return resp, nil
}

func (h *Handler) ReviseScript(ctx context.Context, req ReviseScriptParams) (script.Artifact, error) {
	return h.studio.Scripts().Revise(ctx, req.ScriptID, req.SourceCode)
}

func (h *Handler) ListScripts(_ context.Context, req ListScriptsParams) (ListScriptsResponse, error) {
	filter := script.Filter{
		FlowID:     req.FlowID,
		Validation: script.ValidationState(req.Validation),
		Query:      req.Query,
	}
	if req.Language != "" {
		lang, err := script.ParseLanguage(req.Language)
		if err != nil {
			return ListScriptsResponse{}, err
		}
		filter.Language = lang
	}
	return ListScriptsResponse{Scripts: summarize(h.studio.Scripts().Library().List(filter))}, nil
}

func (h *Handler) GetScript(_ context.Context, req ScriptParams) (script.Artifact, error) {
	return h.studio.Scripts().Library().Get(req.ScriptID)
}

func (h *Handler) ValidateScript(ctx context.Context, req ScriptParams) (script.Artifact, error) {
	return h.studio.Validate(ctx, req.ScriptID)
}

func (h *Handler) CancelValidation(ctx context.Context, req ScriptParams) (script.Artifact, error) {
	return h.studio.CancelValidation(ctx, req.ScriptID)
}

func (h *Handler) RecentActivity(ctx context.Context, req RecentActivityParams) (RecentActivityResponse, error) {
	opts := activity.ListActivityOptions{
		FlowID:    optional(req.FlowID),
		SessionID: optional(req.SessionID),
		ScriptID:  optional(req.ScriptID),
		Limit:     req.Limit,
		Offset:    req.Offset,
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultActivityLimit
	}
	if req.Type != "" {
		t := events.Type(req.Type)
		opts.ActivityType = &t
	}
	entries, err := h.activity.GetRecentActivity(ctx, opts)
	if err != nil {
		return RecentActivityResponse{}, err
	}
	return RecentActivityResponse{Activity: entries}, nil
}

func summarize(artifacts []script.Artifact) []script.Summary {
	out := make([]script.Summary, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, a.Summarize())
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
