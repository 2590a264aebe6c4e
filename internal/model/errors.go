package model

import "errors"

// Sentinel errors form the stable error taxonomy exposed to callers.
// Wrap with fmt.Errorf("%w: details", ...) and check with errors.Is().
var (
	// ErrValidation indicates bad or missing request fields.
	ErrValidation = errors.New("invalid request")

	// ErrConfiguration indicates a missing required setting. Fatal at
	// startup, never surfaced per-request.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrDeserialization indicates a corrupt or incompatible thread state
	// supplied by the caller. A client error, not a server fault.
	ErrDeserialization = errors.New("invalid thread state")

	// ErrUpstream indicates a model, embedding, or index call failed or
	// timed out. Retryable by the caller.
	ErrUpstream = errors.New("upstream service error")

	// ErrOrchestration wraps any unexpected internal failure for the
	// top-level caller.
	ErrOrchestration = errors.New("chat orchestration failed")
)
