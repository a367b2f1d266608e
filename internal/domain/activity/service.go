package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rpggio/flowscribe/internal/events"
)

// Service handles audit trail operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new activity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, logger: logger}
}

// LogActivity logs an activity entry with the current timestamp if missing.
func (s *Service) LogActivity(ctx context.Context, entry *ActivityEntry) error {
	if entry == nil || entry.ActivityType == "" {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// GetRecentActivity lists activity entries with filtering.
func (s *Service) GetRecentActivity(ctx context.Context, opts ListActivityOptions) ([]ActivityEntry, error) {
	return s.repo.List(ctx, opts)
}

// Record writes a pipeline event to the audit trail. It is registered as a bus handler.
func (s *Service) Record(ctx context.Context, evt events.Event) {
	entry := &ActivityEntry{
		Seq:          evt.Seq,
		ActivityType: evt.Type,
		SessionID:    optional(evt.SessionID),
		FlowID:       optional(evt.FlowID),
		ScriptID:     optional(evt.ScriptID),
		Summary:      Summarize(evt),
		CreatedAt:    evt.At,
	}
	if len(evt.Data) > 0 {
		data, err := json.Marshal(evt.Data)
		if err != nil {
			s.logger.Warn("activity details not encodable", "seq", evt.Seq, "error", err)
		} else {
			entry.Details = string(data)
		}
	}
	if err := s.LogActivity(ctx, entry); err != nil {
		s.logger.Error("failed to record activity", "seq", evt.Seq, "type", evt.Type, "error", err)
	}
}

// Summarize renders a one-line description of evt.
func Summarize(evt events.Event) string {
	switch evt.Type {
	case events.TypeSessionStarted:
		return fmt.Sprintf("recording started for flow %s", evt.FlowID)
	case events.TypeActionAppended:
		return fmt.Sprintf("recorded %v action %v", evt.Data["kind"], evt.Data["action_id"])
	case events.TypeSessionStopped:
		return fmt.Sprintf("recording stopped by %v with %v actions", evt.Data["reason"], evt.Data["actions"])
	case events.TypeFlowClassified:
		return fmt.Sprintf("flow %s classified at %v%% confidence", evt.FlowID, evt.Data["confidence"])
	case events.TypeScriptSynthesized:
		return fmt.Sprintf("synthesized %v script %s", evt.Data["language"], evt.ScriptID)
	case events.TypeValidationStarted:
		return fmt.Sprintf("validating script %s", evt.ScriptID)
	case events.TypeValidationCancelled:
		return fmt.Sprintf("validation of script %s cancelled", evt.ScriptID)
	case events.TypeValidationResolved:
		return fmt.Sprintf("script %s %v", evt.ScriptID, evt.Data["validation"])
	}
	return string(evt.Type)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
