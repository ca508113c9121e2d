package response

import (
	"errors"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/delegation"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/identity"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/notification"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Identity errors
	case errors.Is(err, identity.ErrInvalidToken):
		Unauthorized(w, err.Error())
	case errors.Is(err, identity.ErrManagerAccessRequired):
		Forbidden(w, err.Error())
	case errors.Is(err, identity.ErrAdminAccessRequired):
		Forbidden(w, err.Error())

	// Attendance domain errors. Transition violations are conflicts:
	// the session exists but is in the wrong state for the event.
	case errors.Is(err, attendance.ErrSessionNotFound):
		NotFound(w, "Attendance session not found")
	case errors.Is(err, attendance.ErrUnauthorized):
		Forbidden(w, err.Error())
	case errors.Is(err, attendance.ErrSessionStillOpen):
		Conflict(w, err.Error())
	case errors.Is(err, attendance.ErrSessionClosed):
		Conflict(w, err.Error())
	case errors.Is(err, attendance.ErrBreakStillOpen):
		Conflict(w, err.Error())
	case errors.Is(err, attendance.ErrNoOpenBreak):
		Conflict(w, err.Error())
	case errors.Is(err, attendance.ErrInvalidTransition):
		Conflict(w, err.Error())
	case errors.Is(err, attendance.ErrExceptionMismatch):
		Conflict(w, err.Error())

	// Approval domain errors
	case errors.Is(err, approval.ErrRequestNotFound):
		NotFound(w, "Approval request not found")
	case errors.Is(err, approval.ErrWorkflowNotFound):
		NotFound(w, "Approval workflow not found")
	case errors.Is(err, approval.ErrStepNotFound):
		NotFound(w, "Approval step not found")
	case errors.Is(err, approval.ErrStaleDecision):
		Conflict(w, err.Error())
	case errors.Is(err, approval.ErrRequestAlreadyResolved):
		Conflict(w, err.Error())
	case errors.Is(err, approval.ErrDuplicatePendingRequest):
		Conflict(w, err.Error())
	case errors.Is(err, approval.ErrUnauthorizedApprover):
		Forbidden(w, err.Error())
	case errors.Is(err, approval.ErrNotRequester):
		Forbidden(w, err.Error())
	// ErrUnknownWorkflow and ErrNoRoleMember are routing-configuration
	// failures, not client mistakes; they fall through to 500.

	// Delegation domain errors
	case errors.Is(err, delegation.ErrDelegationNotFound):
		NotFound(w, "Delegation not found")
	case errors.Is(err, delegation.ErrNotDelegator):
		Forbidden(w, err.Error())
	case errors.Is(err, delegation.ErrSelfDelegation):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, delegation.ErrInvalidWindow):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, delegation.ErrAlreadyRevoked):
		Conflict(w, err.Error())

	// Notification domain errors
	case errors.Is(err, notification.ErrNotificationNotFound):
		NotFound(w, "Notification not found")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
