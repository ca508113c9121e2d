package workplace

import (
	"context"
)

// ZoneRepository is the read-only view of workplace geofence zones.
type ZoneRepository interface {
	// GetActiveZone returns the current zone version for a workplace.
	// Returns ErrZoneNotFound when the workplace has none.
	GetActiveZone(ctx context.Context, workplaceID string) (GeofenceZone, error)
}
