package core

import "errors"

var (
	// ErrSessionNotFound is returned when resuming a session id with no
	// persisted record. Fatal to the resume call, not to the process.
	ErrSessionNotFound = errors.New("session not found")

	// ErrConversationNotFound is returned when a conversation is read before
	// it was created. Callers must create before reading.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrInvalidStateTransition is returned when a requested conversation
	// state change is not in the allowed transition set.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrNotReadyToFinalize is returned when Finalize is called while the
	// conversation is in a state that has no path to finalized.
	ErrNotReadyToFinalize = errors.New("conversation not ready to finalize")

	// ErrAgentUnavailable is returned when a switch targets an agent role
	// that is not configured (the tech lead may be absent in degraded setups).
	ErrAgentUnavailable = errors.New("agent unavailable")

	// ErrInvalidExtension is returned for malformed budget extension
	// requests. The rejected request leaves the budget unchanged.
	ErrInvalidExtension = errors.New("invalid budget extension")
)
