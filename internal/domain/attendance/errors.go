package attendance

import "errors"

// Attendance domain errors
var (
	// Transition errors: an event arrived whose required predecessor
	// state is absent. The event is rejected, never reordered.
	ErrInvalidTransition = errors.New("invalid attendance state transition")
	ErrSessionStillOpen  = errors.New("you still have an open attendance session")
	ErrSessionClosed     = errors.New("attendance session is already closed")
	ErrBreakStillOpen    = errors.New("end your open break before punching out")
	ErrNoOpenBreak       = errors.New("no open break to end")

	// General errors
	ErrSessionNotFound   = errors.New("attendance session not found")
	ErrUnauthorized      = errors.New("unauthorized to access this attendance session")
	ErrExceptionMismatch = errors.New("resolution does not match the session's open exception")
)
