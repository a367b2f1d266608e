// Package pipeline drives a recording from capture to a validated script.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/rpggio/flowscribe/internal/domain"
	"github.com/rpggio/flowscribe/internal/domain/action"
	"github.com/rpggio/flowscribe/internal/domain/flow"
	"github.com/rpggio/flowscribe/internal/domain/script"
	"github.com/rpggio/flowscribe/internal/domain/session"
	"github.com/rpggio/flowscribe/internal/domain/validation"
)

// Studio sequences the recording, classification, synthesis and validation
// services. Each step that may outlast its caller is bounded by Timeouts.
type Studio struct {
	sessions  *session.Service
	flows     *flow.Service
	scripts   *script.Service
	validator *validation.Service
	timeouts  Timeouts
	logger    *slog.Logger
}

// Synthesis is the outcome of synthesizing one flow into several languages.
type Synthesis struct {
	Artifacts []script.Artifact
	Failures  map[script.Language]error
}

// New creates a Studio and registers it to classify sessions stopped by timeout.
func New(sessions *session.Service, flows *flow.Service, scripts *script.Service, validator *validation.Service, timeouts Timeouts, logger *slog.Logger) *Studio {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Studio{
		sessions:  sessions,
		flows:     flows,
		scripts:   scripts,
		validator: validator,
		timeouts:  timeouts,
		logger:    logger,
	}
	sessions.SetTimeoutHandler(s.onTimeout)
	return s
}

func (s *Studio) Sessions() *session.Service     { return s.sessions }
func (s *Studio) Flows() *flow.Service           { return s.flows }
func (s *Studio) Scripts() *script.Service       { return s.scripts }
func (s *Studio) Validator() *validation.Service { return s.validator }

// StartRecording opens a session for flowID, creating the flow if it is new.
func (s *Studio) StartRecording(ctx context.Context, flowID string) (session.Info, error) {
	f, err := s.flows.Ensure(ctx, flowID)
	if err != nil {
		return session.Info{}, err
	}
	info, err := s.sessions.Start(ctx, f.ID)
	if err != nil {
		return session.Info{}, err
	}
	if _, err := s.flows.BeginRecording(ctx, f.ID, info.ID); err != nil {
		if _, stopErr := s.sessions.Stop(ctx, info.ID); stopErr == nil {
			_ = s.sessions.Archive(info.ID)
		}
		return session.Info{}, fmt.Errorf("marking flow %s as recording: %w", f.ID, err)
	}
	return info, nil
}

// Record appends one interaction to a recording session.
func (s *Studio) Record(ctx context.Context, sessionID string, in action.Input) (action.RecordedAction, error) {
	return s.sessions.Append(ctx, sessionID, in)
}

// StopRecording stops a session and classifies its flow. The stop and the
// classification each get their own budget; when one runs out the remaining
// steps still complete in the background.
func (s *Studio) StopRecording(ctx context.Context, sessionID string) (*flow.Flow, error) {
	info, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	stopped := make(chan result[struct{}], 1)
	classified := make(chan result[*flow.Flow], 1)
	work := context.WithoutCancel(ctx)
	go func() {
		log, err := s.sessions.Stop(work, sessionID)
		stopped <- result[struct{}]{err: err}
		if err != nil {
			return
		}
		f, err := s.finish(work, info.FlowID, sessionID, log)
		classified <- result[*flow.Flow]{f, err}
	}()

	if _, err := wait(ctx, s.timeouts.Stop, "stop", stopped); err != nil {
		return nil, err
	}
	return wait(ctx, s.timeouts.Classify, "classify", classified)
}

// Classify classifies the flow of a stopped session that has not been
// classified yet, for instance after an earlier attempt failed.
func (s *Studio) Classify(ctx context.Context, sessionID string) (*flow.Flow, error) {
	info, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if info.State != session.StateStopped {
		return nil, fmt.Errorf("%w: session %s is %s", domain.ErrInvalidState, sessionID, info.State)
	}
	log, err := s.sessions.Log(sessionID)
	if err != nil {
		return nil, err
	}
	return await(ctx, s.timeouts.Classify, "classify", func(ctx context.Context) (*flow.Flow, error) {
		return s.finish(ctx, info.FlowID, sessionID, log)
	})
}

func (s *Studio) onTimeout(ctx context.Context, info session.Info, log action.Log) {
	f, err := await(ctx, s.timeouts.Classify, "classify", func(ctx context.Context) (*flow.Flow, error) {
		return s.finish(ctx, info.FlowID, info.ID, log)
	})
	if err != nil {
		s.logger.Error("classifying timed out session failed", "session_id", info.ID, "flow_id", info.FlowID, "error", err)
		return
	}
	s.logger.Info("timed out session classified", "session_id", info.ID, "flow_id", f.ID, "confidence", f.Confidence)
}

// finish classifies the flow and releases the session.
func (s *Studio) finish(ctx context.Context, flowID, sessionID string, log action.Log) (*flow.Flow, error) {
	f, err := s.flows.Classify(ctx, flowID, sessionID, log)
	if err != nil {
		return nil, fmt.Errorf("classifying flow %s: %w", flowID, err)
	}
	if err := s.sessions.Archive(sessionID); err != nil {
		s.logger.Warn("archiving session failed", "session_id", sessionID, "error", err)
	}
	return f, nil
}

// Synthesize compiles a completed flow into every requested language. An empty
// list uses the enabled languages. Languages that fail are reported in
// Failures without discarding the others; an error is returned only when no
// artifact was produced.
func (s *Studio) Synthesize(ctx context.Context, flowID string, langs []script.Language) (Synthesis, error) {
	f, err := s.flows.Get(ctx, flowID)
	if err != nil {
		return Synthesis{}, err
	}
	if f.Status != flow.StatusCompleted {
		return Synthesis{}, fmt.Errorf("%w: flow %s is %s", domain.ErrNotReady, f.ID, f.Status)
	}

	out, err := await(ctx, s.timeouts.Synthesize, "synthesize", func(ctx context.Context) (Synthesis, error) {
		artifacts, failures := s.scripts.SynthesizeAll(ctx, *f, langs)
		return Synthesis{Artifacts: artifacts, Failures: failures}, nil
	})
	if err != nil {
		return Synthesis{}, err
	}
	if len(out.Artifacts) == 0 && len(out.Failures) > 0 {
		errs := make([]error, 0, len(out.Failures))
		for _, lang := range slices.Sorted(maps.Keys(out.Failures)) {
			errs = append(errs, fmt.Errorf("%s: %w", lang, out.Failures[lang]))
		}
		return out, errors.Join(errs...)
	}
	return out, nil
}

// Validate runs the validator on an artifact within the validate budget.
func (s *Studio) Validate(ctx context.Context, scriptID string) (script.Artifact, error) {
	if s.timeouts.Validate > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Validate)
		defer cancel()
	}
	return s.validator.Run(ctx, scriptID)
}

// CancelValidation abandons an artifact's validation in flight.
func (s *Studio) CancelValidation(ctx context.Context, scriptID string) (script.Artifact, error) {
	return s.validator.Cancel(ctx, scriptID)
}

// Capture records inputs as one session for flowID and classifies the result.
func (s *Studio) Capture(ctx context.Context, flowID string, inputs []action.Input) (*flow.Flow, error) {
	info, err := s.StartRecording(ctx, flowID)
	if err != nil {
		return nil, err
	}
	for i, in := range inputs {
		if _, err := s.Record(ctx, info.ID, in); err != nil {
			if _, stopErr := s.StopRecording(ctx, info.ID); stopErr != nil {
				s.logger.Warn("stopping abandoned capture failed", "session_id", info.ID, "error", stopErr)
			}
			return nil, fmt.Errorf("recording action %d: %w", i+1, err)
		}
	}
	return s.StopRecording(ctx, info.ID)
}
