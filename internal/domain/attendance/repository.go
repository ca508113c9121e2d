package attendance

import (
	"context"
	"time"
)

// SessionRepository defines data access for attendance sessions and breaks.
type SessionRepository interface {
	// Create creates a new session record
	Create(ctx context.Context, session Session) (Session, error)

	// GetByID retrieves a session with its breaks
	GetByID(ctx context.Context, id string) (Session, error)

	// GetOpenByEmployee retrieves the employee's session that has not
	// clocked out yet. Used to prevent a second concurrent session.
	GetOpenByEmployee(ctx context.Context, employeeID string) (*Session, error)

	// Update persists punch-out and derived fields
	Update(ctx context.Context, session Session) error

	// SetOpenException links requestID as the session's open exception.
	// Conditional on open_exception_id IS NULL; returns false when an
	// exception is already linked.
	SetOpenException(ctx context.Context, sessionID string, requestID string) (bool, error)

	// ClearOpenException clears the link iff it still points at
	// requestID, optionally flagging the session.
	ClearOpenException(ctx context.Context, sessionID string, requestID string, flagged bool) (bool, error)

	CreateBreak(ctx context.Context, brk Break) (Break, error)
	CloseBreak(ctx context.Context, breakID string, endAt time.Time) error

	// List retrieves sessions with filters and pagination (manager view)
	List(ctx context.Context, filter SessionFilter) ([]Session, int64, error)

	// ListByEmployee retrieves sessions for a specific employee
	ListByEmployee(ctx context.Context, employeeID string, filter MySessionFilter) ([]Session, int64, error)

	// GetStaleOpenSessions returns sessions clocked in before cutoff
	// that never clocked out and have no open exception yet.
	GetStaleOpenSessions(ctx context.Context, cutoff time.Time) ([]Session, error)
}
