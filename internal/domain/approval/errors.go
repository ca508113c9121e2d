package approval

import "errors"

// Approval domain errors
var (
	// ErrStaleDecision is returned to the loser of a decision race or to
	// a caller acting on a step that is no longer current.
	ErrStaleDecision = errors.New("decision is stale: step already decided or not current")

	// ErrUnauthorizedApprover means the acting user is neither the
	// assigned approver nor an active delegate of them.
	ErrUnauthorizedApprover = errors.New("not authorized to decide this step")

	// ErrUnknownWorkflow means no template is registered for the
	// exception type. Fatal for exception creation, never for the punch.
	ErrUnknownWorkflow = errors.New("no workflow template registered for this type")

	// ErrDuplicatePendingRequest is raised by the repository when the
	// one-pending-request-per-subject constraint trips. The dispatcher
	// absorbs it and returns the existing request.
	ErrDuplicatePendingRequest = errors.New("subject already has a pending request")

	ErrRequestNotFound        = errors.New("approval request not found")
	ErrWorkflowNotFound       = errors.New("approval workflow not found")
	ErrStepNotFound           = errors.New("approval step not found")
	ErrRequestAlreadyResolved = errors.New("approval request already resolved")
	ErrNotRequester           = errors.New("only the requester may cancel")
	ErrNoRoleMember           = errors.New("role has no members to route to")
	ErrUnknownSubjectType     = errors.New("no resolver registered for subject type")
)
