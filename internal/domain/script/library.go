package script

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Filter narrows a library listing. Zero fields match everything.
type Filter struct {
	FlowID     string
	Language   Language
	Validation ValidationState
	// Query matches the flow name or source code, ignoring case.
	Query string
}

func (f Filter) matches(a *Artifact) bool {
	if f.FlowID != "" && a.FlowID != f.FlowID {
		return false
	}
	if f.Language != "" && a.Language != f.Language {
		return false
	}
	if f.Validation != "" && a.Validation != f.Validation {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return strings.Contains(strings.ToLower(a.FlowName), q) ||
			strings.Contains(strings.ToLower(a.SourceCode), q)
	}
	return true
}

// Library owns synthesized artifacts. Readers always receive copies.
type Library struct {
	mu    sync.RWMutex
	items map[string]*Artifact
	order []string
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{items: make(map[string]*Artifact)}
}

// Add stores a new artifact.
func (l *Library) Add(a Artifact) error {
	if a.ID == "" {
		return ErrInvalidInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.items[a.ID]; ok {
		return fmt.Errorf("%w: %s", ErrScriptExists, a.ID)
	}
	stored := a.clone()
	l.items[a.ID] = &stored
	l.order = append(l.order, a.ID)
	return nil
}

// Get returns a copy of an artifact.
func (l *Library) Get(id string) (Artifact, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.items[id]
	if !ok {
		return Artifact{}, ErrScriptNotFound
	}
	return a.clone(), nil
}

// List returns matching artifacts, newest first.
func (l *Library) List(f Filter) []Artifact {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []Artifact{}
	for _, id := range slices.Backward(l.order) {
		if a := l.items[id]; f.matches(a) {
			out = append(out, a.clone())
		}
	}
	return out
}

// Update applies fn to a copy of the artifact and commits the copy when fn succeeds.
// Updates to the same artifact are serialised.
func (l *Library) Update(id string, fn func(a *Artifact) error) (Artifact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.items[id]
	if !ok {
		return Artifact{}, ErrScriptNotFound
	}
	next := current.clone()
	if err := fn(&next); err != nil {
		return current.clone(), err
	}
	l.items[id] = &next
	return next.clone(), nil
}
