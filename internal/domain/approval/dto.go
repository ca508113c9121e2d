package approval

import (
	"strings"

	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/validator"
)

// ========================================
// APPROVAL DTOs
// ========================================

type DecideRequest struct {
	RequestID    string  `json:"-"`
	StepNumber   int     `json:"step_number"`
	ActingUserID string  `json:"-"`
	Outcome      Outcome `json:"outcome"`
	Comments     *string `json:"comments,omitempty"`
}

func (r *DecideRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.RequestID) {
		errs = append(errs, validator.ValidationError{
			Field:   "request_id",
			Message: "request_id is required",
		})
	}

	if r.StepNumber < 1 {
		errs = append(errs, validator.ValidationError{
			Field:   "step_number",
			Message: "step_number must be 1 or greater",
		})
	}

	validOutcomes := []string{string(OutcomeApprove), string(OutcomeReject), string(OutcomeEscalate)}
	if !validator.IsInSlice(strings.ToLower(string(r.Outcome)), validOutcomes) {
		errs = append(errs, validator.ValidationError{
			Field:   "outcome",
			Message: "outcome must be one of: approve, reject, escalate",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type OpenExceptionRequest struct {
	SubjectType   string
	SubjectID     string
	RequesterID   string
	ExceptionType ExceptionType
	// Context carries violation details (distance, overtime minutes)
	// for the approver's benefit.
	Context map[string]interface{}
}

func (r *OpenExceptionRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.SubjectType) {
		errs = append(errs, validator.ValidationError{
			Field:   "subject_type",
			Message: "subject_type is required",
		})
	}

	if validator.IsEmpty(r.SubjectID) {
		errs = append(errs, validator.ValidationError{
			Field:   "subject_id",
			Message: "subject_id is required",
		})
	}

	if validator.IsEmpty(string(r.ExceptionType)) {
		errs = append(errs, validator.ValidationError{
			Field:   "exception_type",
			Message: "exception_type is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type StepResponse struct {
	ID                 string  `json:"id"`
	StepNumber         int     `json:"step_number"`
	AssignedApproverID string  `json:"assigned_approver_id"`
	Status             string  `json:"status"`
	DecidedBy          *string `json:"decided_by,omitempty"`
	DecidedAt          *string `json:"decided_at,omitempty"`
	Comments           *string `json:"comments,omitempty"`
}

type RequestResponse struct {
	ID           string         `json:"id"`
	WorkflowID   string         `json:"workflow_id"`
	WorkflowType *ExceptionType `json:"workflow_type,omitempty"`
	SubjectType  string         `json:"subject_type"`
	SubjectID    string         `json:"subject_id"`
	RequesterID  string         `json:"requester_id"`
	Status       string         `json:"status"`
	CurrentStep  int            `json:"current_step"`
	TotalSteps   int            `json:"total_steps"`
	Steps        []StepResponse `json:"steps,omitempty"`
	CreatedAt    string         `json:"created_at"`
	CompletedAt  *string        `json:"completed_at,omitempty"`
}

type PendingStepResponse struct {
	RequestID    string         `json:"request_id"`
	StepID       string         `json:"step_id"`
	StepNumber   int            `json:"step_number"`
	TotalSteps   int            `json:"total_steps"`
	SubjectType  string         `json:"subject_type"`
	SubjectID    string         `json:"subject_id"`
	RequesterID  string         `json:"requester_id"`
	WorkflowType *ExceptionType `json:"workflow_type,omitempty"`
	CreatedAt    string         `json:"created_at"`
}

type RequestFilter struct {
	SubjectID    *string `json:"subject_id,omitempty"`
	RequesterID  *string `json:"requester_id,omitempty"`
	Status       *string `json:"status,omitempty"`
	WorkflowType *string `json:"workflow_type,omitempty"`

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *RequestFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Page < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "page",
			Message: "page must be a positive number",
		})
	}
	if f.Page == 0 {
		f.Page = 1 // Default page
	}

	if f.Limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if f.Limit == 0 {
		f.Limit = 20 // Default limit
	}
	if f.Limit > 100 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 100",
		})
	}

	if f.Status != nil {
		validStatuses := []string{"pending", "approved", "rejected", "cancelled"}
		if !validator.IsInSlice(*f.Status, validStatuses) {
			errs = append(errs, validator.ValidationError{
				Field:   "status",
				Message: "status must be one of: pending, approved, rejected, cancelled",
			})
		}
	}

	if f.WorkflowType != nil {
		validTypes := []string{
			string(ExceptionGeofenceViolation),
			string(ExceptionMissingPunch),
			string(ExceptionOvertimeDispute),
		}
		if !validator.IsInSlice(*f.WorkflowType, validTypes) {
			errs = append(errs, validator.ValidationError{
				Field:   "workflow_type",
				Message: "workflow_type must be one of: geofence_violation, missing_punch, overtime_dispute",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type ListRequestsResponse struct {
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
	Requests   []RequestResponse `json:"requests"`
}
