package delegation

import "errors"

// Delegation domain errors
var (
	ErrDelegationNotFound = errors.New("delegation not found")
	ErrNotDelegator       = errors.New("only the delegator may revoke a delegation")
	ErrSelfDelegation     = errors.New("cannot delegate approvals to yourself")
	ErrAlreadyRevoked     = errors.New("delegation is already revoked")
	ErrInvalidWindow      = errors.New("delegation end date must not be before start date")
)
