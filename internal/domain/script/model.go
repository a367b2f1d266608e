package script

import (
	"time"

	"github.com/rpggio/flowscribe/internal/domain/action"
)

// ValidationState is the position of an artifact in its validation lifecycle
type ValidationState string

const (
	StateUnvalidated ValidationState = "unvalidated"
	StateValidating  ValidationState = "validating"
	StateValidated   ValidationState = "validated"
	StateFailed      ValidationState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s ValidationState) Terminal() bool {
	return s == StateValidated || s == StateFailed
}

// FailureReason classifies a failed validation
type FailureReason string

const (
	ReasonSyntax              FailureReason = "syntax"
	ReasonUnresolvedLocator   FailureReason = "unresolved-locator"
	ReasonIdentifierCollision FailureReason = "identifier-collision"
)

// Failure is the terminal outcome recorded on a failed artifact
type Failure struct {
	Reason FailureReason `json:"reason"`
	Detail string        `json:"detail"`
}

// Artifact is a synthesized, language-specific test script
type Artifact struct {
	ID          string                  `json:"script_id"`
	FlowID      string                  `json:"flow_id"`
	FlowName    string                  `json:"flow_name"`
	Language    Language                `json:"language"`
	SourceCode  string                  `json:"source_code"`
	Confidence  int                     `json:"confidence"`
	Validation  ValidationState         `json:"validation"`
	DeviceReady bool                    `json:"device_ready"`
	Failure     *Failure                `json:"failure,omitempty"`
	Actions     []action.RecordedAction `json:"-"`
	RevisionOf  string                  `json:"revision_of,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	ResolvedAt  *time.Time              `json:"resolved_at,omitempty"`
}

// Summary is the listing form of an artifact
type Summary struct {
	ID          string          `json:"script_id"`
	FlowID      string          `json:"flow_id"`
	FlowName    string          `json:"flow_name"`
	Language    Language        `json:"language"`
	Confidence  int             `json:"confidence"`
	Validation  ValidationState `json:"validation"`
	DeviceReady bool            `json:"device_ready"`
	FileName    string          `json:"file_name"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Summarize returns the listing form of a.
func (a Artifact) Summarize() Summary {
	return Summary{
		ID:          a.ID,
		FlowID:      a.FlowID,
		FlowName:    a.FlowName,
		Language:    a.Language,
		Confidence:  a.Confidence,
		Validation:  a.Validation,
		DeviceReady: a.DeviceReady,
		FileName:    FileName(a),
		CreatedAt:   a.CreatedAt,
	}
}

func (a Artifact) clone() Artifact {
	out := a
	if a.Actions != nil {
		out.Actions = append([]action.RecordedAction(nil), a.Actions...)
	}
	if a.Failure != nil {
		f := *a.Failure
		out.Failure = &f
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}
