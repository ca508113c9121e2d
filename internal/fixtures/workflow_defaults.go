package fixtures

import (
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/approval"
)

// ==========================================
// HELPER FUNCTIONS
// ==========================================

func intPtr(i int) *int { return &i }

// ==========================================
// DEFAULT APPROVER ROLES
// ==========================================

// Role IDs resolved through the role directory at decision time.
const (
	RoleManagers = "managers"
	RoleHRAdmins = "hr_admins"
)

// ==========================================
// DEFAULT APPROVAL WORKFLOWS
// ==========================================

// GetDefaultWorkflows returns the standard approval chain for each
// exception type. Seeded once at startup when the workflow table has
// no active row for the type.
func GetDefaultWorkflows() []approval.Workflow {
	return []approval.Workflow{
		// Geofence violations resolve fast: a single manager decision.
		{
			WorkflowType: approval.ExceptionGeofenceViolation,
			Name:         "Geofence Violation Review",
			Steps: []approval.WorkflowStep{
				{
					StepNumber: 1,
					Approver:   approval.RoleApprover(RoleManagers),
					IsFinal:    true,
				},
			},
			EscalateAfterHours: intPtr(24),
			Active:             true,
		},

		// Missing punches need a manager check plus an HR correction.
		{
			WorkflowType: approval.ExceptionMissingPunch,
			Name:         "Missing Punch Correction",
			Steps: []approval.WorkflowStep{
				{
					StepNumber: 1,
					Approver:   approval.RoleApprover(RoleManagers),
					IsFinal:    false,
				},
				{
					StepNumber: 2,
					Approver:   approval.RoleApprover(RoleHRAdmins),
					IsFinal:    true,
				},
			},
			EscalateAfterHours: intPtr(48),
			Active:             true,
		},

		// Overtime disputes touch payroll, so HR signs off last.
		{
			WorkflowType: approval.ExceptionOvertimeDispute,
			Name:         "Overtime Dispute Review",
			Steps: []approval.WorkflowStep{
				{
					StepNumber: 1,
					Approver:   approval.RoleApprover(RoleManagers),
					IsFinal:    false,
				},
				{
					StepNumber: 2,
					Approver:   approval.RoleApprover(RoleHRAdmins),
					IsFinal:    true,
				},
			},
			EscalateAfterHours: intPtr(48),
			Active:             true,
		},
	}
}
