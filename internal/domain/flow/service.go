package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/rpggio/flowscribe/internal/domain"
	"github.com/rpggio/flowscribe/internal/domain/action"
	"github.com/rpggio/flowscribe/internal/events"
	"github.com/rpggio/flowscribe/internal/repository"
)

// Service classifies recorded sessions into flows.
type Service struct {
	flows     Repository
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new flow service.
func NewService(flows Repository, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		flows:     flows,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateRequest defines flow creation inputs.
type CreateRequest struct {
	ID          string
	Name        string
	Description string
}

// Create creates a new pending flow.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Flow, error) {
	name := strings.TrimSpace(req.Name)
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = Slug(name)
	}
	if name == "" {
		name = id
	}
	if id == "" {
		return nil, ErrInvalidInput
	}

	now := s.now()
	f := &Flow{
		ID:          id,
		Name:        name,
		Description: req.Description,
		Actions:     []action.RecordedAction{},
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.flows.Create(ctx, f); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrFlowExists
		}
		return nil, fmt.Errorf("creating flow: %w", err)
	}
	return f, nil
}

// Ensure returns the flow, creating a pending flow named after the ID when missing.
func (s *Service) Ensure(ctx context.Context, id string) (*Flow, error) {
	f, err := s.Get(ctx, id)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, ErrFlowNotFound) {
		return nil, err
	}
	f, err = s.Create(ctx, CreateRequest{ID: id, Name: id})
	if errors.Is(err, ErrFlowExists) {
		return s.Get(ctx, id)
	}
	return f, err
}

// SeedCatalog creates any catalog flows that are missing.
func (s *Service) SeedCatalog(ctx context.Context) error {
	for _, req := range Catalog {
		if _, err := s.Create(ctx, req); err != nil && !errors.Is(err, ErrFlowExists) {
			return fmt.Errorf("seeding flow %s: %w", req.ID, err)
		}
	}
	return nil
}

// Get fetches a flow by ID.
func (s *Service) Get(ctx context.Context, id string) (*Flow, error) {
	f, err := s.flows.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFlowNotFound
		}
		return nil, fmt.Errorf("getting flow: %w", err)
	}
	return f, nil
}

// List lists all flows.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	return s.flows.List(ctx)
}

// BeginRecording marks a flow as recording for sessionID.
// A completed flow is reset to pending first, discarding its actions and confidence.
func (s *Service) BeginRecording(ctx context.Context, id, sessionID string) (*Flow, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status == StatusCompleted {
		reset(f)
	}
	f.Status = StatusRecording
	f.SessionID = sessionID
	f.UpdatedAt = s.now()
	if err := s.update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Reset returns a flow to pending and discards its recording.
func (s *Service) Reset(ctx context.Context, id string) (*Flow, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	reset(f)
	f.UpdatedAt = s.now()
	if err := s.update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Classify scores a stopped session's log and completes the flow. The flow
// must still be recording sessionID; a log from a superseded session is
// rejected with domain.ErrInvalidState.
func (s *Service) Classify(ctx context.Context, id, sessionID string, log action.Log) (*Flow, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status != StatusPending && f.Status != StatusRecording {
		return nil, fmt.Errorf("%w: flow %s is %s", domain.ErrInvalidState, id, f.Status)
	}
	if f.SessionID != sessionID {
		return nil, fmt.Errorf("%w: flow %s belongs to session %q, not %q", domain.ErrInvalidState, id, f.SessionID, sessionID)
	}

	actions := log.Actions()
	assessment := Score(actions)
	now := s.now()

	f.Actions = actions
	f.Status = StatusCompleted
	f.Confidence = assessment.Confidence
	f.Assessment = &assessment
	f.ClassifiedAt = &now
	f.UpdatedAt = now
	if err := s.update(ctx, f); err != nil {
		return nil, err
	}

	s.logger.Info("flow classified", "flow_id", f.ID, "confidence", f.Confidence, "actions", len(actions))
	events.Notify(ctx, s.publisher, s.logger, events.Event{
		Type:      events.TypeFlowClassified,
		FlowID:    f.ID,
		SessionID: f.SessionID,
		Data: map[string]any{
			"confidence": f.Confidence,
			"actions":    len(actions),
			"usable":     assessment.Usable(),
		},
	})
	return f, nil
}

func (s *Service) update(ctx context.Context, f *Flow) error {
	if err := s.flows.Update(ctx, f); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFlowNotFound
		}
		return fmt.Errorf("updating flow: %w", err)
	}
	return nil
}

func reset(f *Flow) {
	f.Actions = []action.RecordedAction{}
	f.Status = StatusPending
	f.Confidence = 0
	f.Assessment = nil
	f.ClassifiedAt = nil
	f.SessionID = ""
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a flow ID from a display name.
func Slug(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
