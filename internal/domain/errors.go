package domain

import "errors"

var (
	// ErrInvalidMethod is returned when a session is started with, or holds, an unknown method
	ErrInvalidMethod = errors.New("invalid reframing method")

	// ErrEmptyThought is returned when a session is started without a thought
	ErrEmptyThought = errors.New("selected thought is required")

	// ErrSessionClosed is returned for any mutation of a completed session
	ErrSessionClosed = errors.New("reframing session is closed")

	// ErrSessionNotFound is returned when a session does not exist or belongs to another user
	ErrSessionNotFound = errors.New("reframing session not found")

	ErrNotAwaitingPacing   = errors.New("session is not waiting for a pacing choice")
	ErrInvalidPacingOption = errors.New("pacing option was not offered")

	// ErrUnparseableCompletion is returned by the completion parser when the
	// model output carries no usable message
	ErrUnparseableCompletion = errors.New("unparseable model completion")

	ErrUserNotFound = errors.New("user not found")
)
