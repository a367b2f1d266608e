// Package validation moves synthesized scripts through their validation lifecycle.
package validation

import (
	"fmt"

	"github.com/rpggio/flowscribe/internal/domain"
	"github.com/rpggio/flowscribe/internal/domain/script"
)

// Outcome is the result of checking an artifact.
type Outcome struct {
	Failure *script.Failure
}

// Passed reports whether the artifact may become device-ready.
func (o Outcome) Passed() bool {
	return o.Failure == nil
}

// Pass is the outcome of an artifact that met every criterion.
func Pass() Outcome {
	return Outcome{}
}

// Fail is the outcome of an artifact rejected for reason.
func Fail(reason script.FailureReason, format string, args ...any) Outcome {
	return Outcome{Failure: &script.Failure{Reason: reason, Detail: fmt.Sprintf(format, args...)}}
}

// ValidateTransition reports whether an artifact may move from one state to another.
//
// Validating can fall back to unvalidated only through cancellation.
// Validated and failed are final.
func ValidateTransition(from, to script.ValidationState) error {
	switch from {
	case script.StateUnvalidated:
		if to == script.StateValidating {
			return nil
		}
	case script.StateValidating:
		switch to {
		case script.StateValidated, script.StateFailed, script.StateUnvalidated:
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move script from %s to %s", domain.ErrInvalidState, from, to)
}
