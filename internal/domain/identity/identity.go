package identity

import "errors"

// Role carried in the verified access-token claims. Identity issuance is
// owned by the auth collaborator; this engine only consumes the claims.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// SystemUserID is the reserved actor recorded for engine-initiated
// decisions (escalation by timeout).
const SystemUserID = "system"

var (
	ErrInvalidToken          = errors.New("invalid or missing token")
	ErrManagerAccessRequired = errors.New("manager access required")
	ErrAdminAccessRequired   = errors.New("admin access required")
)
