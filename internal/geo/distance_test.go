package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	newYork    = Point{Lat: 40.7128, Lon: -74.0060}
	losAngeles = Point{Lat: 34.0522, Lon: -118.2437}
)

func TestDistance_NewYorkLosAngeles(t *testing.T) {
	miles, err := Distance(newYork, losAngeles, Miles)
	require.NoError(t, err)
	assert.InDelta(t, 2445, miles, 10)

	km, err := Distance(newYork, losAngeles, Kilometers)
	require.NoError(t, err)
	assert.InDelta(t, 3936, km, 16)
}

func TestDistance_UnitsAreConsistent(t *testing.T) {
	m, err := Distance(newYork, losAngeles, Meters)
	require.NoError(t, err)
	km, _ := Distance(newYork, losAngeles, Kilometers)
	ft, _ := Distance(newYork, losAngeles, Feet)
	mi, _ := Distance(newYork, losAngeles, Miles)

	assert.InDelta(t, m/1000, km, 1e-6)
	assert.InDelta(t, m/0.3048, ft, 1e-3)
	assert.InDelta(t, m/1609.344, mi, 1e-6)
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]Point{
		{newYork, losAngeles},
		{{Lat: 37.33874, Lon: -121.885}, {Lat: 37.7749, Lon: -122.4194}},
		{{Lat: -33.8688, Lon: 151.2093}, {Lat: 51.5074, Lon: -0.1278}},
		{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 90}},
	}
	for _, unit := range []Unit{Meters, Kilometers, Feet, Miles} {
		for _, p := range pairs {
			ab, err := Distance(p[0], p[1], unit)
			require.NoError(t, err)
			ba, err := Distance(p[1], p[0], unit)
			require.NoError(t, err)
			assert.Equal(t, ab, ba, "distance must be exactly symmetric")
		}
	}
}

func TestDistance_SamePointIsZero(t *testing.T) {
	d, err := Distance(newYork, newYork, Miles)
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestDistance_NearlyAntipodalFallsBack(t *testing.T) {
	d, err := Distance(Point{Lat: 0, Lon: 0}, Point{Lat: 0.5, Lon: 179.7}, Kilometers)
	require.NoError(t, err)
	assert.InDelta(t, 19960, d, 150)
}

func TestDistance_UnknownUnit(t *testing.T) {
	_, err := Distance(newYork, losAngeles, Unit("furlongs"))
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestDistance_InvalidPoint(t *testing.T) {
	_, err := Distance(Point{Lat: 91, Lon: 0}, losAngeles, Miles)
	assert.ErrorIs(t, err, ErrInvalidPoint)
}

func TestParseUnit(t *testing.T) {
	for _, s := range []string{"meters", "kilometers", "feet", "miles"} {
		u, err := ParseUnit(s)
		require.NoError(t, err)
		assert.Equal(t, Unit(s), u)
	}
	_, err := ParseUnit("parsecs")
	assert.ErrorIs(t, err, ErrUnknownUnit)
}
