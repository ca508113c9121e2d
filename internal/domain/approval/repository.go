package approval

import (
	"context"
	"time"
)

// WorkflowRepository stores versioned approval templates.
type WorkflowRepository interface {
	// Create inserts a new template version
	Create(ctx context.Context, workflow Workflow) (Workflow, error)

	// GetByID retrieves a template, steps included
	GetByID(ctx context.Context, id string) (Workflow, error)

	// GetActiveByType retrieves the active template registered for an
	// exception type
	GetActiveByType(ctx context.Context, workflowType ExceptionType) (Workflow, error)
}

// RequestRepository stores approval requests.
type RequestRepository interface {
	// Create inserts a request. Returns ErrDuplicatePendingRequest when
	// the partial unique index on (subject_id) WHERE status='pending'
	// rejects the row.
	Create(ctx context.Context, request Request) (Request, error)

	GetByID(ctx context.Context, id string) (Request, error)

	// GetPendingBySubject returns the single pending request for a
	// subject, or nil.
	GetPendingBySubject(ctx context.Context, subjectID string) (*Request, error)

	// AdvanceStep moves current_step from fromStep to fromStep+1.
	// Conditional on status='pending' AND current_step=fromStep.
	AdvanceStep(ctx context.Context, requestID string, fromStep int) (bool, error)

	// Complete moves a pending request to a terminal status.
	Complete(ctx context.Context, requestID string, status RequestStatus, completedAt time.Time) (bool, error)

	// ListPendingOlderThan returns pending requests created before
	// cutoff whose workflow enables escalation.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]Request, error)

	List(ctx context.Context, filter RequestFilter) ([]Request, int64, error)
}

// StepRepository stores materialized request steps.
type StepRepository interface {
	Create(ctx context.Context, step Step) (Step, error)

	GetByRequestAndNumber(ctx context.Context, requestID string, stepNumber int) (Step, error)

	// Decide atomically transitions a step from pending to a terminal
	// status. Implemented as a conditional UPDATE keyed on the step id
	// and the expected pending status; returns false when the row was
	// already decided, which the engine surfaces as ErrStaleDecision.
	Decide(ctx context.Context, stepID string, status StepStatus, decidedBy string, decidedAt time.Time, comments *string) (bool, error)

	// ListPendingByApprover returns pending steps assigned to a user
	// whose request is still pending on that step.
	ListPendingByApprover(ctx context.Context, approverID string) ([]Step, error)

	ListByRequest(ctx context.Context, requestID string) ([]Step, error)
}

// RoleDirectory resolves a role to a concrete approver. Membership is
// owned by the identity collaborator; this engine only reads it.
type RoleDirectory interface {
	// ResolveRole returns the routable member of a role, ordered by
	// member id for deterministic routing.
	ResolveRole(ctx context.Context, roleID string) (string, error)
}
