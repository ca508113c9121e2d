package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/workplace"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type zoneRepository struct {
	db *database.DB
}

// NewZoneRepository creates a new geofence zone repository
func NewZoneRepository(db *database.DB) workplace.ZoneRepository {
	return &zoneRepository{db: db}
}

// GetActiveZone implements workplace.ZoneRepository.
// Zones are insert-only versions; the newest active row wins.
func (r *zoneRepository) GetActiveZone(ctx context.Context, workplaceID string) (workplace.GeofenceZone, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, workplace_id, center_latitude, center_longitude,
			   radius_meters, tolerance_meters, active, created_at
		FROM geofence_zones
		WHERE workplace_id = $1 AND active = true
		ORDER BY created_at DESC
		LIMIT 1
	`

	var zone workplace.GeofenceZone
	err := q.QueryRow(ctx, query, workplaceID).Scan(
		&zone.ID, &zone.WorkplaceID, &zone.CenterLatitude, &zone.CenterLongitude,
		&zone.RadiusMeters, &zone.ToleranceMeters, &zone.Active, &zone.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return workplace.GeofenceZone{}, workplace.ErrZoneNotFound
		}
		return workplace.GeofenceZone{}, fmt.Errorf("failed to get active zone: %w", err)
	}

	return zone, nil
}
