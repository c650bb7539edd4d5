package session

import "errors"

// Sentinel errors for session persistence. Callers branch on these with
// errors.Is to decide between recovery paths: ErrNotFound, ErrCorrupt and
// ErrValidation are recoverable (offer a fresh session), anything else is an
// I/O failure surfaced verbatim.
var (
	// ErrNotFound indicates no session file exists for the given id and type.
	ErrNotFound = errors.New("session not found")

	// ErrCorrupt indicates the session file is not parseable JSON. The corrupt
	// file is never auto-deleted.
	ErrCorrupt = errors.New("session file is corrupt")

	// ErrValidation indicates the session file parsed but is missing fields
	// required by the current schema.
	ErrValidation = errors.New("session record failed validation")

	// ErrInvalidSessionType indicates a caller bug: the session type is
	// neither audit nor improve.
	ErrInvalidSessionType = errors.New("invalid session type")

	// ErrMissingSessionID indicates a record was passed to Save without a
	// session id.
	ErrMissingSessionID = errors.New("session record has no session id")
)
