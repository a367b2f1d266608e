package validation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/flowscribe/internal/domain"
	"github.com/rpggio/flowscribe/internal/domain/script"
	"github.com/rpggio/flowscribe/internal/events"
)

// run tracks a check in flight for one artifact.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Service gates artifacts into the device-ready state.
//
// Every transition goes through mu so a check that finishes after its run
// was cancelled or superseded cannot resolve a newer run.
type Service struct {
	mu      sync.Mutex
	runs    map[string]*run
	library *script.Library
	check   Checker

	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new validation service. A nil checker uses StaticChecker.
func NewService(library *script.Library, check Checker, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if check == nil {
		check = StaticChecker
	}
	return &Service{
		runs:      make(map[string]*run),
		library:   library,
		check:     check,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Begin moves an unvalidated artifact to validating.
func (s *Service) Begin(ctx context.Context, scriptID string) (script.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begin(ctx, scriptID)
}

func (s *Service) begin(ctx context.Context, scriptID string) (script.Artifact, error) {
	a, err := s.library.Update(scriptID, func(a *script.Artifact) error {
		if err := ValidateTransition(a.Validation, script.StateValidating); err != nil {
			return err
		}
		a.Validation = script.StateValidating
		return nil
	})
	if err != nil {
		return a, err
	}
	events.Notify(ctx, s.publisher, s.logger, events.Event{
		Type:     events.TypeValidationStarted,
		FlowID:   a.FlowID,
		ScriptID: a.ID,
	})
	return a, nil
}

// Resolve commits the outcome of a validating artifact. A failed outcome is
// recorded on the artifact and is not returned as an error.
func (s *Service) Resolve(ctx context.Context, scriptID string, outcome Outcome) (script.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[scriptID]; ok {
		r.cancel()
		delete(s.runs, scriptID)
	}
	return s.resolve(ctx, scriptID, outcome)
}

func (s *Service) resolve(ctx context.Context, scriptID string, outcome Outcome) (script.Artifact, error) {
	target := script.StateValidated
	if !outcome.Passed() {
		target = script.StateFailed
	}
	now := s.now()
	a, err := s.library.Update(scriptID, func(a *script.Artifact) error {
		if a.Validation != script.StateValidating {
			return fmt.Errorf("%w: script %s is %s", domain.ErrInvalidState, scriptID, a.Validation)
		}
		if err := ValidateTransition(a.Validation, target); err != nil {
			return err
		}
		a.Validation = target
		a.DeviceReady = target == script.StateValidated
		a.Failure = outcome.Failure
		a.ResolvedAt = &now
		return nil
	})
	if err != nil {
		return a, err
	}

	data := map[string]any{
		"validation":   string(a.Validation),
		"device_ready": a.DeviceReady,
	}
	if a.Failure != nil {
		data["reason"] = string(a.Failure.Reason)
		data["detail"] = a.Failure.Detail
	}
	s.logger.Info("validation resolved", "script_id", a.ID, "validation", a.Validation)
	events.Notify(ctx, s.publisher, s.logger, events.Event{
		Type:     events.TypeValidationResolved,
		FlowID:   a.FlowID,
		ScriptID: a.ID,
		Data:     data,
	})
	return a, nil
}

// Cancel returns a validating artifact to unvalidated and abandons its check.
// Cancelling an artifact that is not validating changes nothing.
func (s *Service) Cancel(ctx context.Context, scriptID string) (script.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.runs[scriptID]; ok {
		r.cancel()
		delete(s.runs, scriptID)
	}

	current, err := s.library.Get(scriptID)
	if err != nil {
		return script.Artifact{}, err
	}
	if current.Validation != script.StateValidating {
		return current, nil
	}

	a, err := s.library.Update(scriptID, func(a *script.Artifact) error {
		if err := ValidateTransition(a.Validation, script.StateUnvalidated); err != nil {
			return err
		}
		a.Validation = script.StateUnvalidated
		return nil
	})
	if err != nil {
		return a, err
	}
	s.logger.Info("validation cancelled", "script_id", a.ID)
	events.Notify(ctx, s.publisher, s.logger, events.Event{
		Type:     events.TypeValidationCancelled,
		FlowID:   a.FlowID,
		ScriptID: a.ID,
	})
	return a, nil
}

// Run begins validation, checks the artifact and resolves it. When ctx ends
// first Run returns domain.ErrTimeout and the check keeps going; its result is
// committed unless the validation is cancelled meanwhile.
func (s *Service) Run(ctx context.Context, scriptID string) (script.Artifact, error) {
	s.mu.Lock()
	a, err := s.begin(ctx, scriptID)
	if err != nil {
		s.mu.Unlock()
		return a, err
	}
	checkCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{cancel: cancel, done: make(chan struct{})}
	s.runs[scriptID] = r
	s.mu.Unlock()

	var (
		result    script.Artifact
		resultErr error
	)
	go func() {
		defer close(r.done)
		defer cancel()
		outcome := s.check(checkCtx, a)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.runs[scriptID] != r {
			s.logger.Debug("discarding superseded validation", "script_id", scriptID)
			resultErr = fmt.Errorf("%w: validation of %s was cancelled", domain.ErrInvalidState, scriptID)
			return
		}
		delete(s.runs, scriptID)
		result, resultErr = s.resolve(checkCtx, scriptID, outcome)
	}()

	select {
	case <-r.done:
		return result, resultErr
	case <-ctx.Done():
		s.logger.Warn("validation exceeded caller budget", "script_id", scriptID)
		return a, fmt.Errorf("%w: validating %s: %v", domain.ErrTimeout, scriptID, ctx.Err())
	}
}

// Wait blocks until any check in flight for scriptID has finished or ctx ends.
func (s *Service) Wait(ctx context.Context, scriptID string) error {
	s.mu.Lock()
	r, ok := s.runs[scriptID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return errors.Join(domain.ErrTimeout, ctx.Err())
	}
}
