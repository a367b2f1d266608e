package action

import "errors"

var (
	// ErrUnknownKind indicates an action kind outside tap, enterText, swipe, wait and assert.
	ErrUnknownKind = errors.New("unknown action kind")
	// ErrMissingPayload indicates an input without a payload.
	ErrMissingPayload = errors.New("action payload required")
	// ErrInvalidPayload indicates a payload whose fields do not fit its kind.
	ErrInvalidPayload = errors.New("invalid action payload")
	// ErrLogFrozen indicates an append to a log whose session has stopped.
	ErrLogFrozen = errors.New("action log is frozen")
)
