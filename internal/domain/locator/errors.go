package locator

import "errors"

var (
	// ErrUnidentifiable indicates a locator without key, semantics label or display text.
	ErrUnidentifiable = errors.New("locator needs a key, semantics label or display text")
	// ErrInvalidShorthand indicates a malformed strategy:value locator string.
	ErrInvalidShorthand = errors.New("invalid locator shorthand")
)
