package notification

import (
	"time"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	TypeExceptionOpened   NotificationType = "exception_opened"
	TypeApprovalPending   NotificationType = "approval_pending"
	TypeRequestApproved   NotificationType = "request_approved"
	TypeRequestRejected   NotificationType = "request_rejected"
	TypeRequestCancelled  NotificationType = "request_cancelled"
	TypeRequestEscalated  NotificationType = "request_escalated"
	TypeSessionFlagged    NotificationType = "session_flagged"
	TypeDelegationGranted NotificationType = "delegation_granted"
	TypeDelegationRevoked NotificationType = "delegation_revoked"
)

// AllNotificationTypes returns all available notification types
func AllNotificationTypes() []NotificationType {
	return []NotificationType{
		TypeExceptionOpened,
		TypeApprovalPending,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestCancelled,
		TypeRequestEscalated,
		TypeSessionFlagged,
		TypeDelegationGranted,
		TypeDelegationRevoked,
	}
}

// Notification represents a notification entity
type Notification struct {
	ID          string
	RecipientID string
	SenderID    *string
	Type        NotificationType
	Title       string
	Message     string
	Data        map[string]interface{}
	IsRead      bool
	ReadAt      *time.Time
	CreatedAt   time.Time
}
