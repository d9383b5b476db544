package geo

import "math"

// earthRadiusKm is the mean radius used by the haversine formula.
const earthRadiusKm = 6371

// DistanceKm returns the great-circle distance between two coordinates in
// kilometers.
func DistanceKm(a, b Coordinate) float64 {
	lat1 := deg2rad(a.Lat())
	lat2 := deg2rad(b.Lat())
	dLat := deg2rad(b.Lat() - a.Lat())
	dLng := deg2rad(b.Lng() - a.Lng())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// Direction is a compass direction for Offset.
type Direction string

const (
	North     Direction = "north"
	East      Direction = "east"
	South     Direction = "south"
	West      Direction = "west"
	Northeast Direction = "northeast"
	Southeast Direction = "southeast"
	Southwest Direction = "southwest"
	Northwest Direction = "northwest"
)

// Offset returns a coordinate shifted approximately km kilometers from base
// in the given direction, using a flat-earth approximation (111 km per
// degree of latitude, longitude scaled by cos(latitude)). It exists to
// synthesize demo and fallback positions only; callers must never use it in
// place of a real coordinate. Unknown directions return base unchanged.
func Offset(base Coordinate, km float64, dir Direction) Coordinate {
	lng, lat := base.Lng(), base.Lat()

	latOffset := km / 111
	lngOffset := km / (111 * math.Cos(deg2rad(lat)))

	switch dir {
	case North:
		return Coordinate{lng, lat + latOffset}
	case East:
		return Coordinate{lng + lngOffset, lat}
	case South:
		return Coordinate{lng, lat - latOffset}
	case West:
		return Coordinate{lng - lngOffset, lat}
	case Northeast:
		return Coordinate{lng + lngOffset*0.7, lat + latOffset*0.7}
	case Southeast:
		return Coordinate{lng + lngOffset*0.7, lat - latOffset*0.7}
	case Southwest:
		return Coordinate{lng - lngOffset*0.7, lat - latOffset*0.7}
	case Northwest:
		return Coordinate{lng - lngOffset*0.7, lat + latOffset*0.7}
	default:
		return base
	}
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / 180)
}
