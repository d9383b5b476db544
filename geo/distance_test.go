package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	colombo := Coordinate{79.8612, 6.9271}
	kandy := Coordinate{80.6337, 7.2906}

	assert.Zero(t, DistanceKm(colombo, colombo))
	assert.Equal(t, DistanceKm(colombo, kandy), DistanceKm(kandy, colombo))

	// Colombo to Kandy is roughly 94 km great-circle.
	d := DistanceKm(colombo, kandy)
	assert.InDelta(t, 94, d, 3)
}

func TestOffsetCardinal(t *testing.T) {
	base := Coordinate{79.8612, 6.9271}

	for _, dir := range []Direction{North, East, South, West} {
		got := Offset(base, 2, dir)
		assert.NotEqual(t, base, got, "direction %s", dir)
		// Flat-earth approximation should stay within a few percent of
		// the requested distance at equatorial latitudes.
		assert.InDelta(t, 2, DistanceKm(base, got), 0.05, "direction %s", dir)
	}
}

func TestOffsetDirections(t *testing.T) {
	base := Coordinate{79.8612, 6.9271}

	assert.Greater(t, Offset(base, 1, North).Lat(), base.Lat())
	assert.Less(t, Offset(base, 1, South).Lat(), base.Lat())
	assert.Greater(t, Offset(base, 1, East).Lng(), base.Lng())
	assert.Less(t, Offset(base, 1, West).Lng(), base.Lng())

	ne := Offset(base, 1, Northeast)
	assert.Greater(t, ne.Lng(), base.Lng())
	assert.Greater(t, ne.Lat(), base.Lat())

	sw := Offset(base, 1, Southwest)
	assert.Less(t, sw.Lng(), base.Lng())
	assert.Less(t, sw.Lat(), base.Lat())
}

func TestOffsetUnknownDirection(t *testing.T) {
	base := Coordinate{79.8612, 6.9271}
	assert.Equal(t, base, Offset(base, 5, Direction("up")))
}
