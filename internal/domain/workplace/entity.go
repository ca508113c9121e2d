package workplace

import (
	"time"
)

// GeofenceZone is the circular punch area for a workplace. Zones are
// insert-only versions owned by the workplace collaborator; the engine
// reads the active version at evaluation time.
type GeofenceZone struct {
	ID              string
	WorkplaceID     string
	CenterLatitude  float64
	CenterLongitude float64
	RadiusMeters    float64
	ToleranceMeters float64
	Active          bool
	CreatedAt       time.Time
}
