package geofence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monas, Jakarta
const (
	centerLat = -6.175392
	centerLon = 106.827153
)

// offsetNorth shifts a latitude north by roughly the given meters.
func offsetNorth(lat float64, meters float64) float64 {
	return lat + meters/111320.0
}

func TestEvaluate_InsideZone(t *testing.T) {
	zone := Zone{
		CenterLatitude:  centerLat,
		CenterLongitude: centerLon,
		RadiusMeters:    50,
		ToleranceMeters: 10,
	}
	point := Point{Latitude: offsetNorth(centerLat, 40), Longitude: centerLon}

	result, err := Evaluate(point, zone)
	require.NoError(t, err)
	assert.True(t, result.WithinZone)
	assert.InDelta(t, 40, result.DistanceMeters, 1)
}

func TestEvaluate_WithinTolerance(t *testing.T) {
	zone := Zone{
		CenterLatitude:  centerLat,
		CenterLongitude: centerLon,
		RadiusMeters:    50,
		ToleranceMeters: 10,
	}
	// 55m out: beyond the radius but inside radius+tolerance.
	point := Point{Latitude: offsetNorth(centerLat, 55), Longitude: centerLon}

	result, err := Evaluate(point, zone)
	require.NoError(t, err)
	assert.True(t, result.WithinZone)
}

func TestEvaluate_OutsideZone(t *testing.T) {
	zone := Zone{
		CenterLatitude:  centerLat,
		CenterLongitude: centerLon,
		RadiusMeters:    50,
		ToleranceMeters: 10,
	}
	point := Point{Latitude: offsetNorth(centerLat, 75), Longitude: centerLon}

	result, err := Evaluate(point, zone)
	require.NoError(t, err)
	assert.False(t, result.WithinZone)
	assert.InDelta(t, 75, result.DistanceMeters, 1)
}

func TestEvaluate_AtCenter(t *testing.T) {
	zone := Zone{
		CenterLatitude:  centerLat,
		CenterLongitude: centerLon,
		RadiusMeters:    50,
	}
	point := Point{Latitude: centerLat, Longitude: centerLon}

	result, err := Evaluate(point, zone)
	require.NoError(t, err)
	assert.True(t, result.WithinZone)
	assert.Zero(t, result.DistanceMeters)
}

func TestEvaluate_InvalidCoordinates(t *testing.T) {
	zone := Zone{CenterLatitude: centerLat, CenterLongitude: centerLon, RadiusMeters: 50}

	tests := []struct {
		name  string
		point Point
	}{
		{"latitude over 90", Point{Latitude: 91, Longitude: 0}},
		{"latitude under -90", Point{Latitude: -91, Longitude: 0}},
		{"longitude over 180", Point{Latitude: 0, Longitude: 181}},
		{"longitude under -180", Point{Latitude: 0, Longitude: -181}},
		{"null island", Point{Latitude: 0, Longitude: 0}},
		{"nan latitude", Point{Latitude: math.NaN(), Longitude: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.point, zone)
			assert.ErrorIs(t, err, ErrInvalidLocation)
		})
	}
}

func TestHaversineDistance_JakartaToBandung(t *testing.T) {
	// Jakarta (Monas) to Bandung (Gedung Sate), roughly 118km.
	distance := HaversineDistance(centerLat, centerLon, -6.902454, 107.618881)
	assert.InDelta(t, 118000, distance, 3000)
}
