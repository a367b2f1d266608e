package script

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rpggio/flowscribe/internal/domain"
	"github.com/rpggio/flowscribe/internal/domain/flow"
	"github.com/rpggio/flowscribe/internal/events"
)

// Service synthesizes script artifacts from classified flows.
type Service struct {
	library   *Library
	renderers map[Language]Renderer
	languages []Language
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time

	idMu    sync.Mutex
	entropy io.Reader
}

// NewService creates a new script service producing the given languages.
// An empty list enables every supported language.
func NewService(library *Library, languages []Language, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if library == nil {
		library = NewLibrary()
	}

	all := make(map[Language]Renderer)
	for _, r := range DefaultRenderers() {
		all[r.Language()] = r
	}
	if len(languages) == 0 {
		languages = SupportedLanguages
	}
	enabled := make(map[Language]Renderer, len(languages))
	var ordered []Language
	for _, lang := range languages {
		if r, ok := all[lang]; ok {
			if _, dup := enabled[lang]; !dup {
				ordered = append(ordered, lang)
			}
			enabled[lang] = r
		}
	}

	return &Service{
		library:   library,
		renderers: enabled,
		languages: ordered,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// Library returns the artifact library the service writes to.
func (s *Service) Library() *Library {
	return s.library
}

// Languages returns the enabled target languages.
func (s *Service) Languages() []Language {
	return append([]Language(nil), s.languages...)
}

// Render produces source code for f without recording an artifact.
func (s *Service) Render(f flow.Flow, lang Language) (string, error) {
	r, ok := s.renderers[lang]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, lang)
	}
	if f.Status != flow.StatusCompleted {
		return "", fmt.Errorf("%w: flow %s is %s", domain.ErrNotReady, f.ID, f.Status)
	}
	return r.Render(displayName(f), f.Actions)
}

// Synthesize compiles a completed flow into a new unvalidated artifact.
func (s *Service) Synthesize(ctx context.Context, f flow.Flow, lang Language) (Artifact, error) {
	source, err := s.Render(f, lang)
	if err != nil {
		return Artifact{}, err
	}
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	a := Artifact{
		ID:         s.newID(),
		FlowID:     f.ID,
		FlowName:   displayName(f),
		Language:   lang,
		SourceCode: source,
		Confidence: f.Confidence,
		Validation: StateUnvalidated,
		Actions:    f.Actions,
		CreatedAt:  s.now(),
	}
	if err := s.library.Add(a); err != nil {
		return Artifact{}, fmt.Errorf("storing script: %w", err)
	}

	s.logger.Info("script synthesized", "script_id", a.ID, "flow_id", f.ID, "language", lang)
	s.notify(ctx, a)
	return a.clone(), nil
}

// SynthesizeAll synthesizes f for every language independently. Artifacts
// that succeed are kept even when other languages fail.
func (s *Service) SynthesizeAll(ctx context.Context, f flow.Flow, langs []Language) ([]Artifact, map[Language]error) {
	if len(langs) == 0 {
		langs = s.languages
	}
	artifacts := []Artifact{}
	var failures map[Language]error
	for _, lang := range langs {
		a, err := s.Synthesize(ctx, f, lang)
		if err != nil {
			if failures == nil {
				failures = make(map[Language]error)
			}
			failures[lang] = err
			s.logger.Warn("synthesis failed", "flow_id", f.ID, "language", lang, "error", err)
			continue
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, failures
}

// Revise stores edited source as a new unvalidated artifact that supersedes scriptID.
// The original artifact is left untouched.
func (s *Service) Revise(ctx context.Context, scriptID, source string) (Artifact, error) {
	if strings.TrimSpace(source) == "" {
		return Artifact{}, fmt.Errorf("%w: empty source", ErrInvalidInput)
	}
	prev, err := s.library.Get(scriptID)
	if err != nil {
		return Artifact{}, err
	}

	a := Artifact{
		ID:         s.newID(),
		FlowID:     prev.FlowID,
		FlowName:   prev.FlowName,
		Language:   prev.Language,
		SourceCode: source,
		Confidence: prev.Confidence,
		Validation: StateUnvalidated,
		Actions:    prev.Actions,
		RevisionOf: prev.ID,
		CreatedAt:  s.now(),
	}
	if err := s.library.Add(a); err != nil {
		return Artifact{}, fmt.Errorf("storing revision: %w", err)
	}

	s.logger.Info("script revised", "script_id", a.ID, "revision_of", prev.ID)
	s.notify(ctx, a)
	return a.clone(), nil
}

func (s *Service) notify(ctx context.Context, a Artifact) {
	data := map[string]any{
		"language":   string(a.Language),
		"confidence": a.Confidence,
		"file_name":  FileName(a),
	}
	if a.RevisionOf != "" {
		data["revision_of"] = a.RevisionOf
	}
	events.Notify(ctx, s.publisher, s.logger, events.Event{
		Type:     events.TypeScriptSynthesized,
		FlowID:   a.FlowID,
		ScriptID: a.ID,
		Data:     data,
	})
}

func (s *Service) newID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

func displayName(f flow.Flow) string {
	if strings.TrimSpace(f.Name) != "" {
		return f.Name
	}
	return f.ID
}
