package workplace

import "errors"

// Workplace domain errors
var (
	// ErrZoneNotFound means the workplace has no active geofence zone.
	// The attendance engine treats it as "cannot verify" and routes the
	// punch to an exception.
	ErrZoneNotFound = errors.New("no active geofence zone for workplace")
)
