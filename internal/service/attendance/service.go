package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/workplace"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/geofence"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/keymutex"
	"github.com/cmlabs-hris/attendance-engine-go/internal/service/file"
	"github.com/go-chi/jwtauth/v5"
)

// Config holds the attendance policy knobs.
type Config struct {
	StandardShiftMinutes   int
	OvertimeDisputeMinutes int
	StaleSessionHours      int
}

type SessionServiceImpl struct {
	sessions    attendance.SessionRepository
	zones       workplace.ZoneRepository
	dispatcher  approval.Dispatcher
	fileService file.FileService
	locks       *keymutex.KeyMutex
	config      Config
}

func NewSessionService(
	sessions attendance.SessionRepository,
	zones workplace.ZoneRepository,
	dispatcher approval.Dispatcher,
	fileService file.FileService,
	config Config,
) *SessionServiceImpl {
	return &SessionServiceImpl{
		sessions:    sessions,
		zones:       zones,
		dispatcher:  dispatcher,
		fileService: fileService,
		locks:       keymutex.New(),
		config:      config,
	}
}

func employeeIDFromContext(ctx context.Context) (string, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to extract claims from context: %w", err)
	}

	employeeID, ok := claims["employee_id"].(string)
	if !ok || employeeID == "" {
		return "", fmt.Errorf("employee_id claim is missing or invalid")
	}

	return employeeID, nil
}

// timePtrToString safely converts a *time.Time to a string.
func timePtrToString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	format := t.Format(time.RFC3339)
	return &format
}

// PunchIn implements attendance.SessionService.
func (s *SessionServiceImpl) PunchIn(ctx context.Context, req attendance.PunchInRequest) (attendance.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.SessionResponse{}, err
	}

	employeeID, err := employeeIDFromContext(ctx)
	if err != nil {
		return attendance.SessionResponse{}, err
	}
	req.EmployeeID = employeeID

	// One punch-in per employee at a time.
	s.locks.Lock("employee:" + employeeID)
	defer s.locks.Unlock("employee:" + employeeID)

	open, err := s.sessions.GetOpenByEmployee(ctx, employeeID)
	if err != nil {
		return attendance.SessionResponse{}, err
	}
	if open != nil {
		return attendance.SessionResponse{}, attendance.ErrSessionStillOpen
	}

	nowUTC := time.Now().UTC()

	proofURL, err := s.fileService.UploadPunchProof(ctx, employeeID, nowUTC, req.File, req.FileHeader.Filename, "punch_in")
	if err != nil {
		return attendance.SessionResponse{}, fmt.Errorf("failed to upload punch proof: %w", err)
	}
	req.ProofPhotoURL = &proofURL

	session, err := s.sessions.Create(ctx, attendance.Session{
		EmployeeID:       employeeID,
		WorkplaceID:      req.WorkplaceID,
		Status:           attendance.StatusClockedIn,
		ClockInAt:        nowUTC,
		ClockInLatitude:  req.Latitude,
		ClockInLongitude: req.Longitude,
		ClockInProofURL:  req.ProofPhotoURL,
	})
	if err != nil {
		return attendance.SessionResponse{}, fmt.Errorf("failed to create session: %w", err)
	}

	// A geofence problem never blocks the punch; it opens an exception.
	s.checkGeofence(ctx, &session, req.Latitude, req.Longitude, "punch_in")

	return s.toResponse(session), nil
}

// PunchOut implements attendance.SessionService.
func (s *SessionServiceImpl) PunchOut(ctx context.Context, req attendance.PunchOutRequest) (attendance.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.SessionResponse{}, err
	}

	employeeID, err := employeeIDFromContext(ctx)
	if err != nil {
		return attendance.SessionResponse{}, err
	}

	s.locks.Lock("session:" + req.SessionID)
	defer s.locks.Unlock("session:" + req.SessionID)

	session, err := s.sessions.GetByID(ctx, req.SessionID)
	if err != nil {
		return attendance.SessionResponse{}, err
	}

	if session.EmployeeID != employeeID {
		return attendance.SessionResponse{}, attendance.ErrUnauthorized
	}

	switch session.Status {
	case attendance.StatusClockedIn:
		// ok
	case attendance.StatusOnBreak:
		return attendance.SessionResponse{}, attendance.ErrBreakStillOpen
	case attendance.StatusClockedOut:
		return attendance.SessionResponse{}, attendance.ErrSessionClosed
	default:
		return attendance.SessionResponse{}, attendance.ErrInvalidTransition
	}

	nowUTC := time.Now().UTC()

	proofURL, err := s.fileService.UploadPunchProof(ctx, employeeID, nowUTC, req.File, req.FileHeader.Filename, "punch_out")
	if err != nil {
		return attendance.SessionResponse{}, fmt.Errorf("failed to upload punch proof: %w", err)
	}
	req.ProofPhotoURL = &proofURL

	workMinutes := workedMinutes(session, nowUTC)
	overtime := 0
	if workMinutes > s.config.StandardShiftMinutes {
		overtime = workMinutes - s.config.StandardShiftMinutes
	}

	session.Status = attendance.StatusClockedOut
	session.ClockOutAt = &nowUTC
	session.ClockOutLatitude = &req.Latitude
	session.ClockOutLongitude = &req.Longitude
	session.ClockOutProofURL = req.ProofPhotoURL
	session.WorkMinutes = &workMinutes
	session.OvertimeMinutes = overtime

	if err := s.sessions.Update(ctx, session); err != nil {
		return attendance.SessionResponse{}, err
	}

	s.checkGeofence(ctx, &session, req.Latitude, req.Longitude, "punch_out")

	if s.config.OvertimeDisputeMinutes > 0 && overtime > s.config.OvertimeDisputeMinutes {
		s.openException(ctx, &session, approval.ExceptionOvertimeDispute, map[string]interface{}{
			"overtime_minutes": overtime,
			"work_minutes":     workMinutes,
		})
	}

	return s.toResponse(session), nil
}

// StartBreak implements attendance.SessionService.
func (s *SessionServiceImpl) StartBreak(ctx context.Context, req attendance.StartBreakRequest) (attendance.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.SessionResponse{}, err
	}

	employeeID, err := employeeIDFromContext(ctx)
	if err != nil {
		return attendance.SessionResponse{}, err
	}

	s.locks.Lock("session:" + req.SessionID)
	defer s.locks.Unlock("session:" + req.SessionID)

	session, err := s.sessions.GetByID(ctx, req.SessionID)
	if err != nil {
		return attendance.SessionResponse{}, err
	}

	if session.EmployeeID != employeeID {
		return attendance.SessionResponse{}, attendance.ErrUnauthorized
	}

	switch session.Status {
	case attendance.StatusClockedIn:
		// ok
	case attendance.StatusOnBreak:
		return attendance.SessionResponse{}, attendance.ErrInvalidTransition
	case attendance.StatusClockedOut:
		return attendance.SessionResponse{}, attendance.ErrSessionClosed
	default:
		return attendance.SessionResponse{}, attendance.ErrInvalidTransition
	}

	nowUTC := time.Now().UTC()
	brk, err := s.sessions.CreateBreak(ctx, attendance.Break{
		SessionID: session.ID,
		Type:      attendance.BreakType(strings.ToLower(req.Type)),
		StartAt:   nowUTC,
	})
	if err != nil {
		return attendance.SessionResponse{}, err
	}

	session.Status = attendance.StatusOnBreak
	if err := s.sessions.Update(ctx, session); err != nil {
		return attendance.SessionResponse{}, err
	}
	session.Breaks = append(session.Breaks, brk)

	return s.toResponse(session), nil
}

// EndBreak implements attendance.SessionService.
func (s *SessionServiceImpl) EndBreak(ctx context.Context, req attendance.EndBreakRequest) (attendance.SessionResponse, error) {
	employeeID, err := employeeIDFromContext(ctx)
	if err != nil {
		return attendance.SessionResponse{}, err
	}

	s.locks.Lock("session:" + req.SessionID)
	defer s.locks.Unlock("session:" + req.SessionID)

	session, err := s.sessions.GetByID(ctx, req.SessionID)
	if err != nil {
		return attendance.SessionResponse{}, err
	}

	if session.EmployeeID != employeeID {
		return attendance.SessionResponse{}, attendance.ErrUnauthorized
	}

	if session.Status != attendance.StatusOnBreak {
		return attendance.SessionResponse{}, attendance.ErrNoOpenBreak
	}

	open := session.OpenBreak()
	if open == nil {
		return attendance.SessionResponse{}, attendance.ErrNoOpenBreak
	}

	nowUTC := time.Now().UTC()
	if err := s.sessions.CloseBreak(ctx, open.ID, nowUTC); err != nil {
		return attendance.SessionResponse{}, err
	}
	open.EndAt = &nowUTC

	session.Status = attendance.StatusClockedIn
	if err := s.sessions.Update(ctx, session); err != nil {
		return attendance.SessionResponse{}, err
	}

	return s.toResponse(session), nil
}

// GetSession implements attendance.SessionService.
func (s *SessionServiceImpl) GetSession(ctx context.Context, id string) (attendance.SessionResponse, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return attendance.SessionResponse{}, err
	}
	return s.toResponse(session), nil
}

// ListSessions implements attendance.SessionService.
func (s *SessionServiceImpl) ListSessions(ctx context.Context, filter attendance.SessionFilter) (attendance.ListSessionsResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListSessionsResponse{}, err
	}

	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return attendance.ListSessionsResponse{}, err
	}

	return s.toListResponse(sessions, total, filter.Page, filter.Limit), nil
}

// GetMySessions implements attendance.SessionService.
func (s *SessionServiceImpl) GetMySessions(ctx context.Context, filter attendance.MySessionFilter) (attendance.ListSessionsResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListSessionsResponse{}, err
	}

	employeeID, err := employeeIDFromContext(ctx)
	if err != nil {
		return attendance.ListSessionsResponse{}, err
	}

	sessions, total, err := s.sessions.ListByEmployee(ctx, employeeID, filter)
	if err != nil {
		return attendance.ListSessionsResponse{}, err
	}

	return s.toListResponse(sessions, total, filter.Page, filter.Limit), nil
}

// ResolveException implements approval.SubjectResolver for attendance
// sessions. Rejection flags the session; no punch is ever undone.
// Idempotent: a link already cleared by this request is a no-op.
func (s *SessionServiceImpl) ResolveException(ctx context.Context, subjectID string, requestID string, outcome approval.RequestStatus) error {
	flagged := outcome == approval.RequestStatusRejected

	cleared, err := s.sessions.ClearOpenException(ctx, subjectID, requestID, flagged)
	if err != nil {
		return err
	}
	if cleared {
		return nil
	}

	session, err := s.sessions.GetByID(ctx, subjectID)
	if err != nil {
		return err
	}
	if session.OpenExceptionID == nil {
		// Already cleared by a previous delivery of the same resolution.
		return nil
	}

	return attendance.ErrExceptionMismatch
}

// FlagStaleSessions opens a missing-punch exception for sessions left
// open well past the standard shift. Run from the cron scheduler.
func (s *SessionServiceImpl) FlagStaleSessions(ctx context.Context) error {
	cutoff := time.Now().UTC().
		Add(-time.Duration(s.config.StandardShiftMinutes) * time.Minute).
		Add(-time.Duration(s.config.StaleSessionHours) * time.Hour)

	stale, err := s.sessions.GetStaleOpenSessions(ctx, cutoff)
	if err != nil {
		return err
	}

	for i := range stale {
		s.openException(ctx, &stale[i], approval.ExceptionMissingPunch, map[string]interface{}{
			"clock_in_at": stale[i].ClockInAt.Format(time.RFC3339),
		})
	}

	return nil
}

// checkGeofence evaluates a punch location and opens a geofence
// exception when the punch is outside the zone or unverifiable.
func (s *SessionServiceImpl) checkGeofence(ctx context.Context, session *attendance.Session, lat, lon float64, punchType string) {
	zone, err := s.zones.GetActiveZone(ctx, session.WorkplaceID)
	if err != nil {
		if errors.Is(err, workplace.ErrZoneNotFound) {
			// No zone means the location cannot be verified.
			s.openException(ctx, session, approval.ExceptionGeofenceViolation, map[string]interface{}{
				"punch_type": punchType,
				"reason":     "no active geofence zone",
			})
			return
		}
		log.Printf("[SessionService] Failed to load geofence zone for workplace %s: %v", session.WorkplaceID, err)
		return
	}

	result, err := geofence.Evaluate(
		geofence.Point{Latitude: lat, Longitude: lon},
		geofence.Zone{
			CenterLatitude:  zone.CenterLatitude,
			CenterLongitude: zone.CenterLongitude,
			RadiusMeters:    zone.RadiusMeters,
			ToleranceMeters: zone.ToleranceMeters,
		},
	)
	if err != nil {
		s.openException(ctx, session, approval.ExceptionGeofenceViolation, map[string]interface{}{
			"punch_type": punchType,
			"reason":     "invalid coordinates",
		})
		return
	}

	if !result.WithinZone {
		s.openException(ctx, session, approval.ExceptionGeofenceViolation, map[string]interface{}{
			"punch_type":      punchType,
			"distance_meters": math.Round(result.DistanceMeters),
			"radius_meters":   zone.RadiusMeters,
		})
	}
}

// openException dispatches an exception for a session. Dispatch failure
// is logged and swallowed: a punch must never fail because the approval
// engine is unavailable.
func (s *SessionServiceImpl) openException(ctx context.Context, session *attendance.Session, exceptionType approval.ExceptionType, details map[string]interface{}) {
	if session.OpenExceptionID != nil {
		return
	}

	request, err := s.dispatcher.OpenException(ctx, approval.OpenExceptionRequest{
		SubjectType:   approval.SubjectTypeAttendance,
		SubjectID:     session.ID,
		RequesterID:   session.EmployeeID,
		ExceptionType: exceptionType,
		Context:       details,
	})
	if err != nil {
		log.Printf("[SessionService] Failed to open %s exception for session %s: %v", exceptionType, session.ID, err)
		return
	}

	linked, err := s.sessions.SetOpenException(ctx, session.ID, request.ID)
	if err != nil {
		log.Printf("[SessionService] Failed to link exception %s to session %s: %v", request.ID, session.ID, err)
		return
	}
	if linked {
		session.OpenExceptionID = &request.ID
	}
}

func workedMinutes(session attendance.Session, clockOut time.Time) int {
	total := clockOut.Sub(session.ClockInAt)

	for _, brk := range session.Breaks {
		end := clockOut
		if brk.EndAt != nil {
			end = *brk.EndAt
		}
		total -= end.Sub(brk.StartAt)
	}

	minutes := int(total.Minutes())
	if minutes < 0 {
		minutes = 0
	}
	return minutes
}

func (s *SessionServiceImpl) toResponse(session attendance.Session) attendance.SessionResponse {
	breaks := make([]attendance.BreakResponse, len(session.Breaks))
	for i, brk := range session.Breaks {
		breaks[i] = attendance.BreakResponse{
			ID:      brk.ID,
			Type:    string(brk.Type),
			StartAt: brk.StartAt.Format(time.RFC3339),
			EndAt:   timePtrToString(brk.EndAt),
		}
	}

	return attendance.SessionResponse{
		ID:                session.ID,
		EmployeeID:        session.EmployeeID,
		EmployeeName:      session.EmployeeName,
		WorkplaceID:       session.WorkplaceID,
		Status:            string(session.Status),
		ClockInAt:         session.ClockInAt.Format(time.RFC3339),
		ClockOutAt:        timePtrToString(session.ClockOutAt),
		ClockInLatitude:   session.ClockInLatitude,
		ClockInLongitude:  session.ClockInLongitude,
		ClockOutLatitude:  session.ClockOutLatitude,
		ClockOutLongitude: session.ClockOutLongitude,
		ClockInProofURL:   session.ClockInProofURL,
		ClockOutProofURL:  session.ClockOutProofURL,
		Breaks:            breaks,
		WorkMinutes:       session.WorkMinutes,
		OvertimeMinutes:   session.OvertimeMinutes,
		OpenExceptionID:   session.OpenExceptionID,
		Flagged:           session.Flagged,
		CreatedAt:         session.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         session.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *SessionServiceImpl) toListResponse(sessions []attendance.Session, total int64, page, limit int) attendance.ListSessionsResponse {
	responses := make([]attendance.SessionResponse, len(sessions))
	for i, session := range sessions {
		responses[i] = s.toResponse(session)
	}

	return attendance.ListSessionsResponse{
		TotalCount: total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		Sessions:   responses,
	}
}
