package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/flowscribe/internal/domain/script"
	"github.com/rpggio/flowscribe/internal/events"
)

// Subscriber hands out ordered event streams.
type Subscriber interface {
	Subscribe(buffer int) (<-chan events.Event, func())
}

// Config lists what the HTTP server exposes.
type Config struct {
	// MCP serves the streamable MCP endpoint. Nil leaves /mcp unrouted.
	MCP     http.Handler
	Library *script.Library
	Events  Subscriber
	// Auth guards every route except /health when set.
	Auth   func(http.Handler) http.Handler
	Logger *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	library *script.Library
	events  Subscriber
	logger  *slog.Logger
}

const eventBuffer = 64

// NewServer creates an HTTP server router with middleware.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv := &Server{library: cfg.Library, events: cfg.Events, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		if cfg.MCP != nil {
			r.Handle("/mcp", cfg.MCP)
		}
		r.Route("/scripts", func(r chi.Router) {
			r.Get("/", srv.handleListScripts)
			r.Get("/{id}", srv.handleGetScript)
			r.Get("/{id}/download", srv.handleDownloadScript)
		})
		r.Get("/events", srv.handleEvents)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := script.Filter{
		FlowID:     q.Get("flow_id"),
		Validation: script.ValidationState(q.Get("validation")),
		Query:      q.Get("q"),
	}
	if name := q.Get("language"); name != "" {
		lang, err := script.ParseLanguage(name)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		filter.Language = lang
	}

	artifacts := s.library.List(filter)
	summaries := make([]script.Summary, 0, len(artifacts))
	for _, a := range artifacts {
		summaries = append(summaries, a.Summarize())
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{"scripts": summaries})
}

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	a, err := s.library.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, a)
}

func (s *Server) handleDownloadScript(w http.ResponseWriter, r *http.Request) {
	a, err := s.library.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", contentType(a.Language))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": script.FileName(a)}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, a.SourceCode)
}

func contentType(lang script.Language) string {
	switch lang {
	case script.Java:
		return "text/x-java-source; charset=utf-8"
	case script.Python:
		return "text/x-python; charset=utf-8"
	case script.JavaScript:
		return "text/javascript; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// handleEvents streams bus events as server-sent events. The optional
// flow_id query parameter restricts the stream to one flow.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	flowID := r.URL.Query().Get("flow_id")

	ch, cancel := s.events.Subscribe(eventBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if flowID != "" && evt.FlowID != flowID {
				continue
			}
			data, err := json.Marshal(evt)
			if err != nil {
				s.logger.Warn("event not encodable", "seq", evt.Seq, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Seq, evt.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
