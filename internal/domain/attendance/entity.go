package attendance

import (
	"time"
)

// SessionStatus is the lifecycle state of an attendance session.
// Exceptions are an overlay (OpenExceptionID), not a status: a session
// keeps accepting punches while an exception is pending.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusClockedIn  SessionStatus = "clocked_in"
	StatusOnBreak    SessionStatus = "on_break"
	StatusClockedOut SessionStatus = "clocked_out"
)

type BreakType string

const (
	BreakTypeLunch  BreakType = "lunch"
	BreakTypeCoffee BreakType = "coffee"
	BreakTypeRest   BreakType = "rest"
	BreakTypeOther  BreakType = "other"
)

func ValidBreakTypes() []string {
	return []string{
		string(BreakTypeLunch),
		string(BreakTypeCoffee),
		string(BreakTypeRest),
		string(BreakTypeOther),
	}
}

// Break is one break window inside a session. EndAt is nil while the
// break is open; at most one break per session is open at a time.
type Break struct {
	ID        string
	SessionID string
	Type      BreakType
	StartAt   time.Time
	EndAt     *time.Time
	CreatedAt time.Time
}

// Session is one clock-in-to-clock-out attendance period for an employee.
type Session struct {
	ID          string
	EmployeeID  string
	WorkplaceID string
	Status      SessionStatus

	ClockInAt         time.Time
	ClockOutAt        *time.Time
	ClockInLatitude   float64
	ClockInLongitude  float64
	ClockOutLatitude  *float64
	ClockOutLongitude *float64
	ClockInProofURL   *string
	ClockOutProofURL  *string

	Breaks []Break

	WorkMinutes     *int
	OvertimeMinutes int

	// OpenExceptionID references the single pending approval request
	// for this session, if any.
	OpenExceptionID *string
	// Flagged is set when a linked exception request was rejected.
	Flagged bool

	CreatedAt time.Time
	UpdatedAt time.Time

	// DTO
	EmployeeName *string
}

// OpenBreak returns the break without an end time, or nil.
func (s *Session) OpenBreak() *Break {
	for i := range s.Breaks {
		if s.Breaks[i].EndAt == nil {
			return &s.Breaks[i]
		}
	}
	return nil
}
