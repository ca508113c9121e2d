package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type sessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new attendance session repository
func NewSessionRepository(db *database.DB) attendance.SessionRepository {
	return &sessionRepository{db: db}
}

const sessionColumns = `
	s.id, s.employee_id, s.workplace_id, s.status,
	s.clock_in_at, s.clock_out_at,
	s.clock_in_latitude, s.clock_in_longitude,
	s.clock_out_latitude, s.clock_out_longitude,
	s.clock_in_proof_url, s.clock_out_proof_url,
	s.work_minutes, s.overtime_minutes,
	s.open_exception_id, s.flagged,
	s.created_at, s.updated_at
`

func scanSession(row pgx.Row, s *attendance.Session) error {
	return row.Scan(
		&s.ID, &s.EmployeeID, &s.WorkplaceID, &s.Status,
		&s.ClockInAt, &s.ClockOutAt,
		&s.ClockInLatitude, &s.ClockInLongitude,
		&s.ClockOutLatitude, &s.ClockOutLongitude,
		&s.ClockInProofURL, &s.ClockOutProofURL,
		&s.WorkMinutes, &s.OvertimeMinutes,
		&s.OpenExceptionID, &s.Flagged,
		&s.CreatedAt, &s.UpdatedAt,
	)
}

// Create implements attendance.SessionRepository.
func (r *sessionRepository) Create(ctx context.Context, session attendance.Session) (attendance.Session, error) {
	q := GetQuerier(ctx, r.db)

	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	query := `
		INSERT INTO attendance_sessions (
			id, employee_id, workplace_id, status,
			clock_in_at, clock_in_latitude, clock_in_longitude, clock_in_proof_url,
			overtime_minutes, flagged
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		) RETURNING created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		session.ID,
		session.EmployeeID,
		session.WorkplaceID,
		session.Status,
		session.ClockInAt,
		session.ClockInLatitude,
		session.ClockInLongitude,
		session.ClockInProofURL,
		session.OvertimeMinutes,
		session.Flagged,
	).Scan(&session.CreatedAt, &session.UpdatedAt)

	if err != nil {
		return attendance.Session{}, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// GetByID implements attendance.SessionRepository.
func (r *sessionRepository) GetByID(ctx context.Context, id string) (attendance.Session, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions s
		WHERE s.id = $1
	`

	var session attendance.Session
	err := scanSession(q.QueryRow(ctx, query, id), &session)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Session{}, attendance.ErrSessionNotFound
		}
		return attendance.Session{}, fmt.Errorf("failed to get session by ID: %w", err)
	}

	breaks, err := r.getBreaks(ctx, session.ID)
	if err != nil {
		return attendance.Session{}, err
	}
	session.Breaks = breaks

	return session, nil
}

// GetOpenByEmployee implements attendance.SessionRepository.
func (r *sessionRepository) GetOpenByEmployee(ctx context.Context, employeeID string) (*attendance.Session, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions s
		WHERE s.employee_id = $1
		  AND s.clock_out_at IS NULL
		ORDER BY s.clock_in_at DESC
		LIMIT 1
	`

	var session attendance.Session
	err := scanSession(q.QueryRow(ctx, query, employeeID), &session)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // no open session
		}
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}

	breaks, err := r.getBreaks(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	session.Breaks = breaks

	return &session, nil
}

// Update implements attendance.SessionRepository.
func (r *sessionRepository) Update(ctx context.Context, session attendance.Session) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE attendance_sessions
		SET status = $2,
			clock_out_at = $3,
			clock_out_latitude = $4,
			clock_out_longitude = $5,
			clock_out_proof_url = $6,
			work_minutes = $7,
			overtime_minutes = $8,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := q.Exec(ctx, query,
		session.ID,
		session.Status,
		session.ClockOutAt,
		session.ClockOutLatitude,
		session.ClockOutLongitude,
		session.ClockOutProofURL,
		session.WorkMinutes,
		session.OvertimeMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return attendance.ErrSessionNotFound
	}

	return nil
}

// SetOpenException implements attendance.SessionRepository.
func (r *sessionRepository) SetOpenException(ctx context.Context, sessionID string, requestID string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE attendance_sessions
		SET open_exception_id = $2, updated_at = NOW()
		WHERE id = $1 AND open_exception_id IS NULL
	`

	result, err := q.Exec(ctx, query, sessionID, requestID)
	if err != nil {
		return false, fmt.Errorf("failed to set open exception: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ClearOpenException implements attendance.SessionRepository.
func (r *sessionRepository) ClearOpenException(ctx context.Context, sessionID string, requestID string, flagged bool) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE attendance_sessions
		SET open_exception_id = NULL,
			flagged = flagged OR $3,
			updated_at = NOW()
		WHERE id = $1 AND open_exception_id = $2
	`

	result, err := q.Exec(ctx, query, sessionID, requestID, flagged)
	if err != nil {
		return false, fmt.Errorf("failed to clear open exception: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// CreateBreak implements attendance.SessionRepository.
func (r *sessionRepository) CreateBreak(ctx context.Context, brk attendance.Break) (attendance.Break, error) {
	q := GetQuerier(ctx, r.db)

	if brk.ID == "" {
		brk.ID = uuid.New().String()
	}

	query := `
		INSERT INTO attendance_breaks (id, session_id, type, start_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := q.QueryRow(ctx, query, brk.ID, brk.SessionID, brk.Type, brk.StartAt).Scan(&brk.CreatedAt)
	if err != nil {
		return attendance.Break{}, fmt.Errorf("failed to create break: %w", err)
	}

	return brk, nil
}

// CloseBreak implements attendance.SessionRepository.
func (r *sessionRepository) CloseBreak(ctx context.Context, breakID string, endAt time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE attendance_breaks
		SET end_at = $2
		WHERE id = $1 AND end_at IS NULL
	`

	result, err := q.Exec(ctx, query, breakID, endAt)
	if err != nil {
		return fmt.Errorf("failed to close break: %w", err)
	}

	if result.RowsAffected() == 0 {
		return attendance.ErrNoOpenBreak
	}

	return nil
}

// List implements attendance.SessionRepository.
func (r *sessionRepository) List(ctx context.Context, filter attendance.SessionFilter) ([]attendance.Session, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseWhere := "1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.EmployeeID != nil && *filter.EmployeeID != "" {
		baseWhere += fmt.Sprintf(" AND s.employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}
	if filter.WorkplaceID != nil && *filter.WorkplaceID != "" {
		baseWhere += fmt.Sprintf(" AND s.workplace_id = $%d", argIdx)
		args = append(args, *filter.WorkplaceID)
		argIdx++
	}
	if filter.Status != nil && *filter.Status != "" {
		baseWhere += fmt.Sprintf(" AND s.status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.Flagged != nil {
		baseWhere += fmt.Sprintf(" AND s.flagged = $%d", argIdx)
		args = append(args, *filter.Flagged)
		argIdx++
	}
	if filter.StartDate != nil && *filter.StartDate != "" {
		baseWhere += fmt.Sprintf(" AND s.clock_in_at::date >= $%d", argIdx)
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil && *filter.EndDate != "" {
		baseWhere += fmt.Sprintf(" AND s.clock_in_at::date <= $%d", argIdx)
		args = append(args, *filter.EndDate)
		argIdx++
	}

	countQuery := "SELECT COUNT(*) FROM attendance_sessions s WHERE " + baseWhere
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT `+sessionColumns+`
		FROM attendance_sessions s
		WHERE %s
		ORDER BY s.clock_in_at DESC
		LIMIT $%d OFFSET $%d
	`, baseWhere, argIdx, argIdx+1)

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []attendance.Session
	for rows.Next() {
		var s attendance.Session
		if err := scanSession(rows, &s); err != nil {
			return nil, 0, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, total, nil
}

// ListByEmployee implements attendance.SessionRepository.
func (r *sessionRepository) ListByEmployee(ctx context.Context, employeeID string, filter attendance.MySessionFilter) ([]attendance.Session, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseWhere := "s.employee_id = $1"
	args := []interface{}{employeeID}
	argIdx := 2

	if filter.Status != nil && *filter.Status != "" {
		baseWhere += fmt.Sprintf(" AND s.status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.StartDate != nil && *filter.StartDate != "" {
		baseWhere += fmt.Sprintf(" AND s.clock_in_at::date >= $%d", argIdx)
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil && *filter.EndDate != "" {
		baseWhere += fmt.Sprintf(" AND s.clock_in_at::date <= $%d", argIdx)
		args = append(args, *filter.EndDate)
		argIdx++
	}

	countQuery := "SELECT COUNT(*) FROM attendance_sessions s WHERE " + baseWhere
	var total int64
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT `+sessionColumns+`
		FROM attendance_sessions s
		WHERE %s
		ORDER BY s.clock_in_at DESC
		LIMIT $%d OFFSET $%d
	`, baseWhere, argIdx, argIdx+1)

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []attendance.Session
	for rows.Next() {
		var s attendance.Session
		if err := scanSession(rows, &s); err != nil {
			return nil, 0, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, total, nil
}

// GetStaleOpenSessions implements attendance.SessionRepository.
func (r *sessionRepository) GetStaleOpenSessions(ctx context.Context, cutoff time.Time) ([]attendance.Session, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + sessionColumns + `
		FROM attendance_sessions s
		WHERE s.clock_out_at IS NULL
		  AND s.clock_in_at < $1
		  AND s.open_exception_id IS NULL
		ORDER BY s.clock_in_at ASC
	`

	rows, err := q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale sessions: %w", err)
	}
	defer rows.Close()

	var sessions []attendance.Session
	for rows.Next() {
		var s attendance.Session
		if err := scanSession(rows, &s); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, nil
}

func (r *sessionRepository) getBreaks(ctx context.Context, sessionID string) ([]attendance.Break, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, session_id, type, start_at, end_at, created_at
		FROM attendance_breaks
		WHERE session_id = $1
		ORDER BY start_at ASC
	`

	rows, err := q.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query breaks: %w", err)
	}
	defer rows.Close()

	var breaks []attendance.Break
	for rows.Next() {
		var b attendance.Break
		if err := rows.Scan(&b.ID, &b.SessionID, &b.Type, &b.StartAt, &b.EndAt, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan break: %w", err)
		}
		breaks = append(breaks, b)
	}

	return breaks, nil
}
