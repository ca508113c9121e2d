package approval

import (
	"time"
)

// ExceptionType identifies the policy violation a request resolves.
type ExceptionType string

const (
	ExceptionGeofenceViolation ExceptionType = "geofence_violation"
	ExceptionMissingPunch      ExceptionType = "missing_punch"
	ExceptionOvertimeDispute   ExceptionType = "overtime_dispute"
)

// SubjectTypeAttendance is the subject type for attendance exceptions.
const SubjectTypeAttendance = "attendance_exception"

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// IsTerminal reports whether no further transition is defined.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected || s == RequestStatusCancelled
}

type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"
	StepStatusApproved StepStatus = "approved"
	StepStatusRejected StepStatus = "rejected"
)

type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeReject  Outcome = "reject"
	// OutcomeEscalate is a step advance performed by the system actor
	// when a template's escalation timeout elapses.
	OutcomeEscalate Outcome = "escalate"
)

// ApproverKind discriminates the closed ApproverRef variant.
type ApproverKind string

const (
	ApproverKindUser ApproverKind = "user"
	ApproverKindRole ApproverKind = "role"
)

// ApproverRef names a step's nominal approver: a concrete user or a
// role resolved to a user at routing time.
type ApproverRef struct {
	Kind   ApproverKind
	UserID string // set when Kind == user
	RoleID string // set when Kind == role
}

// UserApprover builds a user-kind approver reference.
func UserApprover(userID string) ApproverRef {
	return ApproverRef{Kind: ApproverKindUser, UserID: userID}
}

// RoleApprover builds a role-kind approver reference.
func RoleApprover(roleID string) ApproverRef {
	return ApproverRef{Kind: ApproverKindRole, RoleID: roleID}
}

// WorkflowStep is one ordered entry of a workflow template.
type WorkflowStep struct {
	StepNumber int
	Approver   ApproverRef
	IsFinal    bool
}

// Workflow is an immutable, versioned approval template. A template
// referenced by a live request is never mutated in place; policy
// changes create a new row.
type Workflow struct {
	ID           string
	WorkflowType ExceptionType
	Name         string
	Steps        []WorkflowStep

	// EscalateAfterHours enables timeout escalation for requests on
	// this template. Nil disables it.
	EscalateAfterHours *int

	Active    bool
	CreatedAt time.Time
}

// Request is one live approval chain for a subject.
type Request struct {
	ID          string
	WorkflowID  string
	SubjectType string
	SubjectID   string
	RequesterID string
	Status      RequestStatus

	// CurrentStep is 1-indexed and monotonically non-decreasing.
	CurrentStep int
	TotalSteps  int

	CreatedAt   time.Time
	CompletedAt *time.Time

	// DTO
	WorkflowType *ExceptionType
}

// Step is a materialized step of a request. Steps are created lazily,
// one at a time, when they become current; status is write-once.
type Step struct {
	ID         string
	RequestID  string
	StepNumber int

	// AssignedApproverID is resolved at routing time through the role
	// directory and delegation resolver; it may differ from the
	// template's nominal approver.
	AssignedApproverID string

	Status    StepStatus
	DecidedBy *string
	DecidedAt *time.Time
	Comments  *string

	CreatedAt time.Time
}
