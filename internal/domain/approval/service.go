package approval

import (
	"context"
)

// Service is the approval workflow engine.
type Service interface {
	// Decide applies an approver's decision to the current step.
	// Exactly one of two racing calls on the same step commits; the
	// other receives ErrStaleDecision.
	Decide(ctx context.Context, req DecideRequest) (RequestResponse, error)

	// Cancel moves a pending request to cancelled. Requester only.
	Cancel(ctx context.Context, requestID string, actingUserID string) (RequestResponse, error)

	// GetRequest retrieves a request with its materialized steps
	GetRequest(ctx context.Context, id string) (RequestResponse, error)

	// ListRequests retrieves requests with filters (manager view)
	ListRequests(ctx context.Context, filter RequestFilter) (ListRequestsResponse, error)

	// ListPendingForApprover lists steps awaiting the acting user
	ListPendingForApprover(ctx context.Context, approverID string) ([]PendingStepResponse, error)

	// EscalateStale advances pending requests older than their
	// template's escalation timeout. Called by the cron sweep.
	EscalateStale(ctx context.Context) error
}

// Dispatcher opens exception-approval requests. Split from Service so
// the attendance engine depends on nothing but this narrow surface.
type Dispatcher interface {
	// OpenException opens (or idempotently returns) the pending request
	// for a subject.
	OpenException(ctx context.Context, req OpenExceptionRequest) (Request, error)
}

// SubjectResolver is the callback interface a subject owner implements
// to receive terminal resolutions. The attendance engine registers one
// per subject type; the two engines never share mutable state.
type SubjectResolver interface {
	ResolveException(ctx context.Context, subjectID string, requestID string, outcome RequestStatus) error
}
