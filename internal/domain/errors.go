// Package domain holds the error taxonomy shared by the capture-to-script pipeline.
package domain

import "errors"

var (
	// ErrConflict indicates a second recording was requested while one is active.
	ErrConflict = errors.New("recording already in progress")
	// ErrInvalidState indicates the operation is not valid for the current lifecycle state.
	ErrInvalidState = errors.New("invalid lifecycle state")
	// ErrUnsupportedLanguage indicates a synthesis target outside the supported set.
	ErrUnsupportedLanguage = errors.New("unsupported target language")
	// ErrNotReady indicates synthesis was requested before the flow was classified.
	ErrNotReady = errors.New("flow not classified")
	// ErrTimeout indicates the caller's budget elapsed before the operation finished.
	ErrTimeout = errors.New("operation timed out")
)
