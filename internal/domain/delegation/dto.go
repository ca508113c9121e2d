package delegation

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/validator"
)

// ========================================
// DELEGATION DTOs
// ========================================

type CreateDelegationRequest struct {
	DelegatorID string  `json:"-"`
	DelegateID  string  `json:"delegate_id"`
	Scope       string  `json:"scope"`                // workflow type or "*"
	StartDate   string  `json:"start_date"`           // YYYY-MM-DD
	EndDate     *string `json:"end_date,omitempty"`   // YYYY-MM-DD, open-ended when absent
}

func (r *CreateDelegationRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.DelegateID) {
		errs = append(errs, validator.ValidationError{
			Field:   "delegate_id",
			Message: "delegate_id is required",
		})
	}

	if validator.IsEmpty(r.Scope) {
		errs = append(errs, validator.ValidationError{
			Field:   "scope",
			Message: "scope is required (workflow type or *)",
		})
	}

	var startDate time.Time
	var startOK bool
	if startDate, startOK = validator.IsValidDate(r.StartDate); !startOK {
		errs = append(errs, validator.ValidationError{
			Field:   "start_date",
			Message: "start_date must be in YYYY-MM-DD format",
		})
	}

	if r.EndDate != nil && *r.EndDate != "" {
		endDate, ok := validator.IsValidDate(*r.EndDate)
		if !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		} else if startOK && endDate.Before(startDate) {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must not be before start_date",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type DelegationResponse struct {
	ID          string  `json:"id"`
	DelegatorID string  `json:"delegator_id"`
	DelegateID  string  `json:"delegate_id"`
	Scope       string  `json:"scope"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date,omitempty"`
	Active      bool    `json:"active"`
	RevokedAt   *string `json:"revoked_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}
