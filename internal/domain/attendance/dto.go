package attendance

import (
	"mime/multipart"
	"strings"

	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/validator"
)

// ========================================
// ATTENDANCE DTOs
// ========================================

type PunchInRequest struct {
	EmployeeID    string                `json:"-"`
	WorkplaceID   string                `json:"workplace_id"`
	Latitude      float64               `json:"latitude"`
	Longitude     float64               `json:"longitude"`
	ProofPhotoURL *string               `json:"-"`
	File          multipart.File        `json:"-"`
	FileHeader    *multipart.FileHeader `json:"-"`
}

func (r *PunchInRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.WorkplaceID) {
		errs = append(errs, validator.ValidationError{
			Field:   "workplace_id",
			Message: "workplace_id is required",
		})
	}

	if !validator.IsValidLatitude(r.Latitude) {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if !validator.IsValidLongitude(r.Longitude) {
		errs = append(errs, validator.ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if err := validateProofPhoto(r.FileHeader); err != nil {
		errs = append(errs, *err)
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type PunchOutRequest struct {
	SessionID     string                `json:"-"`
	EmployeeID    string                `json:"-"`
	Latitude      float64               `json:"latitude"`
	Longitude     float64               `json:"longitude"`
	ProofPhotoURL *string               `json:"-"`
	File          multipart.File        `json:"-"`
	FileHeader    *multipart.FileHeader `json:"-"`
}

func (r *PunchOutRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidLatitude(r.Latitude) {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if !validator.IsValidLongitude(r.Longitude) {
		errs = append(errs, validator.ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if err := validateProofPhoto(r.FileHeader); err != nil {
		errs = append(errs, *err)
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

func validateProofPhoto(fileHeader *multipart.FileHeader) *validator.ValidationError {
	if fileHeader == nil {
		return &validator.ValidationError{
			Field:   "file",
			Message: "attendance proof photo is required",
		}
	}

	filename := fileHeader.Filename
	dot := strings.LastIndex(filename, ".")
	if dot < 0 {
		return &validator.ValidationError{
			Field:   "file",
			Message: "invalid file type: only jpg, jpeg, png allowed",
		}
	}

	ext := strings.ToLower(filename[dot:])
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return &validator.ValidationError{
			Field:   "file",
			Message: "invalid file type: only jpg, jpeg, png allowed",
		}
	}

	if fileHeader.Size > 10<<20 { // 10MB
		return &validator.ValidationError{
			Field:   "file",
			Message: "attendance proof photo size must not exceed 10MB",
		}
	}

	return nil
}

type StartBreakRequest struct {
	SessionID  string `json:"-"`
	EmployeeID string `json:"-"`
	Type       string `json:"type"`
}

func (r *StartBreakRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.SessionID) {
		errs = append(errs, validator.ValidationError{
			Field:   "session_id",
			Message: "session_id is required",
		})
	}

	if !validator.IsInSlice(strings.ToLower(r.Type), ValidBreakTypes()) {
		errs = append(errs, validator.ValidationError{
			Field:   "type",
			Message: "type must be one of: lunch, coffee, rest, other",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type EndBreakRequest struct {
	SessionID  string `json:"-"`
	EmployeeID string `json:"-"`
}

type BreakResponse struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	StartAt string  `json:"start_at"`
	EndAt   *string `json:"end_at,omitempty"`
}

type SessionResponse struct {
	ID                string          `json:"id"`
	EmployeeID        string          `json:"employee_id"`
	EmployeeName      *string         `json:"employee_name,omitempty"`
	WorkplaceID       string          `json:"workplace_id"`
	Status            string          `json:"status"`
	ClockInAt         string          `json:"clock_in_at"`
	ClockOutAt        *string         `json:"clock_out_at,omitempty"`
	ClockInLatitude   float64         `json:"clock_in_latitude"`
	ClockInLongitude  float64         `json:"clock_in_longitude"`
	ClockOutLatitude  *float64        `json:"clock_out_latitude,omitempty"`
	ClockOutLongitude *float64        `json:"clock_out_longitude,omitempty"`
	ClockInProofURL   *string         `json:"clock_in_proof_url,omitempty"`
	ClockOutProofURL  *string         `json:"clock_out_proof_url,omitempty"`
	Breaks            []BreakResponse `json:"breaks,omitempty"`
	WorkMinutes       *int            `json:"work_minutes,omitempty"`
	OvertimeMinutes   int             `json:"overtime_minutes"`
	OpenExceptionID   *string         `json:"open_exception_id,omitempty"`
	Flagged           bool            `json:"flagged"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

type SessionFilter struct {
	EmployeeID  *string `json:"employee_id,omitempty"`
	WorkplaceID *string `json:"workplace_id,omitempty"`
	Status      *string `json:"status,omitempty"`
	Flagged     *bool   `json:"flagged,omitempty"`
	StartDate   *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate     *string `json:"end_date,omitempty"`   // YYYY-MM-DD

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *SessionFilter) Validate() error {
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
		validStatuses := []string{
			string(StatusClockedIn),
			string(StatusOnBreak),
			string(StatusClockedOut),
		}
		if !validator.IsInSlice(*f.Status, validStatuses) {
			errs = append(errs, validator.ValidationError{
				Field:   "status",
				Message: "status must be one of: clocked_in, on_break, clocked_out",
			})
		}
	}

	if f.StartDate != nil && *f.StartDate != "" {
		if _, valid := validator.IsValidDate(*f.StartDate); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "start_date",
				Message: "start_date must be in YYYY-MM-DD format",
			})
		}
	}

	if f.EndDate != nil && *f.EndDate != "" {
		if _, valid := validator.IsValidDate(*f.EndDate); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type MySessionFilter struct {
	Status    *string `json:"status,omitempty"`
	StartDate *string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate   *string `json:"end_date,omitempty"`   // YYYY-MM-DD

	// Pagination
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *MySessionFilter) Validate() error {
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
		validStatuses := []string{
			string(StatusClockedIn),
			string(StatusOnBreak),
			string(StatusClockedOut),
		}
		if !validator.IsInSlice(*f.Status, validStatuses) {
			errs = append(errs, validator.ValidationError{
				Field:   "status",
				Message: "status must be one of: clocked_in, on_break, clocked_out",
			})
		}
	}

	if f.StartDate != nil && *f.StartDate != "" {
		if _, valid := validator.IsValidDate(*f.StartDate); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "start_date",
				Message: "start_date must be in YYYY-MM-DD format",
			})
		}
	}

	if f.EndDate != nil && *f.EndDate != "" {
		if _, valid := validator.IsValidDate(*f.EndDate); !valid {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type ListSessionsResponse struct {
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
	Sessions   []SessionResponse `json:"sessions"`
}
