package flow

import "errors"

var (
	// ErrFlowNotFound indicates the flow doesn't exist.
	ErrFlowNotFound = errors.New("flow not found")
	// ErrFlowExists indicates a flow with the same ID already exists.
	ErrFlowExists = errors.New("flow already exists")
	// ErrInvalidInput indicates invalid flow input.
	ErrInvalidInput = errors.New("invalid flow input")
)
