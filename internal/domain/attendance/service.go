package attendance

import (
	"context"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/approval"
)

// SessionService is the attendance state machine. Events for the same
// session are serialized; events for different sessions run concurrently.
type SessionService interface {
	// PunchIn starts a new session for the authenticated employee.
	// A geofence violation opens an exception but never fails the punch.
	PunchIn(ctx context.Context, req PunchInRequest) (SessionResponse, error)

	// PunchOut closes a session. Valid only from clocked_in.
	PunchOut(ctx context.Context, req PunchOutRequest) (SessionResponse, error)

	// StartBreak opens a typed break. Valid only from clocked_in.
	StartBreak(ctx context.Context, req StartBreakRequest) (SessionResponse, error)

	// EndBreak closes the open break. Valid only from on_break.
	EndBreak(ctx context.Context, req EndBreakRequest) (SessionResponse, error)

	// GetSession retrieves a single session by ID
	GetSession(ctx context.Context, id string) (SessionResponse, error)

	// ListSessions retrieves sessions with filters (manager view)
	ListSessions(ctx context.Context, filter SessionFilter) (ListSessionsResponse, error)

	// GetMySessions retrieves sessions for the authenticated employee
	GetMySessions(ctx context.Context, filter MySessionFilter) (ListSessionsResponse, error)

	// ResolveException is the workflow engine's terminal-resolution
	// callback. It clears the open exception link; a rejected outcome
	// flags the session but never undoes a punch.
	ResolveException(ctx context.Context, subjectID string, requestID string, outcome approval.RequestStatus) error
}
