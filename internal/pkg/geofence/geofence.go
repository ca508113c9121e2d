package geofence

import (
	"errors"
	"math"
)

// ErrInvalidLocation means the submitted coordinates cannot be evaluated.
var ErrInvalidLocation = errors.New("invalid location coordinates")

// Point is a submitted punch location.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Zone is the circular area a punch is checked against.
type Zone struct {
	CenterLatitude  float64
	CenterLongitude float64
	RadiusMeters    float64
	ToleranceMeters float64
}

// Result is the outcome of a zone evaluation.
type Result struct {
	WithinZone     bool
	DistanceMeters float64
}

// Evaluate checks a point against a zone. A point counts as within the
// zone when its distance to the center does not exceed radius plus
// tolerance.
func Evaluate(point Point, zone Zone) (Result, error) {
	if !validCoordinate(point.Latitude, point.Longitude) {
		return Result{}, ErrInvalidLocation
	}

	distance := HaversineDistance(
		point.Latitude, point.Longitude,
		zone.CenterLatitude, zone.CenterLongitude,
	)

	return Result{
		WithinZone:     distance <= zone.RadiusMeters+zone.ToleranceMeters,
		DistanceMeters: distance,
	}, nil
}

// HaversineDistance menghitung jarak antara dua titik koordinat dalam Meter.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000 // Jari-jari bumi dalam Meter

	// Konversi ke Radian
	dLat := (lat2 - lat1) * (math.Pi / 180.0)
	dLon := (lon2 - lon1) * (math.Pi / 180.0)

	lat1Rad := lat1 * (math.Pi / 180.0)
	lat2Rad := lat2 * (math.Pi / 180.0)

	// Rumus Haversine
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1Rad)*math.Cos(lat2Rad)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	// (0,0) sits in the ocean; treat it as a missing GPS fix.
	if lat == 0 && lon == 0 {
		return false
	}
	return true
}
