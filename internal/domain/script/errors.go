package script

import "errors"

var (
	// ErrScriptNotFound indicates the artifact doesn't exist.
	ErrScriptNotFound = errors.New("script not found")
	// ErrScriptExists indicates an artifact with the same ID is already in the library.
	ErrScriptExists = errors.New("script already exists")
	// ErrInvalidInput indicates invalid script input.
	ErrInvalidInput = errors.New("invalid script input")
	// ErrInvalidLiteral indicates a string literal that cannot be decoded.
	ErrInvalidLiteral = errors.New("invalid string literal")
)
