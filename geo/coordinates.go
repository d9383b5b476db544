// Package geo provides coordinate extraction and validation for the
// location payloads returned by the backend services. The services are
// not consistent about how they nest coordinates, so everything that
// touches a location goes through Normalize first.
package geo

import (
	"encoding/json"
	"math"
)

// Coordinate is a [longitude, latitude] pair in decimal degrees.
type Coordinate [2]float64

func (c Coordinate) Lng() float64 { return c[0] }
func (c Coordinate) Lat() float64 { return c[1] }

// decoder attempts to read one known location shape. ok is false when the
// value does not structurally match the shape.
type decoder func(v interface{}) (Coordinate, bool)

// Shape precedence is fixed: bare pair, {coordinates}, {location:{coordinates}},
// {lat,lng}, {latitude,longitude}. The first structural match wins even if a
// later shape would also match; ambiguous payloads in the wild depend on this.
var decoders = []decoder{
	decodeBarePair,
	decodeCoordinatesField,
	decodeNestedLocation,
	decodeLatLng,
	decodeLatitudeLongitude,
}

// Normalize extracts a [lng, lat] pair from any of the documented location
// shapes. It accepts decoded JSON values (maps, slices), raw JSON bytes,
// float slices and Coordinate itself. Returns ok=false for nil input,
// unrecognized shapes and non-finite numbers.
func Normalize(locationData interface{}) (Coordinate, bool) {
	v, ok := decodeValue(locationData)
	if !ok {
		return Coordinate{}, false
	}
	for _, dec := range decoders {
		if c, ok := dec(v); ok {
			return c, true
		}
	}
	return Coordinate{}, false
}

// IsValidGPS reports whether the pair is inside the valid GPS range:
// longitude in [-180, 180] and latitude in [-90, 90].
func IsValidGPS(c Coordinate) bool {
	if !isFinite(c[0]) || !isFinite(c[1]) {
		return false
	}
	return c[0] >= -180 && c[0] <= 180 && c[1] >= -90 && c[1] <= 90
}

// ValidationError describes why a location payload is unusable, or returns
// the empty string when the payload normalizes to a valid pair.
func ValidationError(locationData interface{}) string {
	if locationData == nil {
		return "location data is missing"
	}
	c, ok := Normalize(locationData)
	if !ok {
		return "location data is in an unrecognized format"
	}
	if !IsValidGPS(c) {
		return "coordinates are outside valid GPS range"
	}
	return ""
}

// decodeValue unifies the supported input types into decoded-JSON form.
func decodeValue(locationData interface{}) (interface{}, bool) {
	switch v := locationData.(type) {
	case nil:
		return nil, false
	case Coordinate:
		return []interface{}{v[0], v[1]}, true
	case [2]float64:
		return []interface{}{v[0], v[1]}, true
	case []float64:
		out := make([]interface{}, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out, true
	case json.RawMessage:
		return unmarshalAny(v)
	case []byte:
		return unmarshalAny(v)
	default:
		return v, true
	}
}

func unmarshalAny(raw []byte) (interface{}, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	if v == nil {
		return nil, false
	}
	return v, true
}

func decodeBarePair(v interface{}) (Coordinate, bool) {
	return pairFrom(v)
}

func decodeCoordinatesField(v interface{}) (Coordinate, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return Coordinate{}, false
	}
	return pairFrom(m["coordinates"])
}

func decodeNestedLocation(v interface{}) (Coordinate, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return Coordinate{}, false
	}
	loc, ok := m["location"].(map[string]interface{})
	if !ok {
		return Coordinate{}, false
	}
	return pairFrom(loc["coordinates"])
}

func decodeLatLng(v interface{}) (Coordinate, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return Coordinate{}, false
	}
	lat, latOK := asFloat(m["lat"])
	lng, lngOK := asFloat(m["lng"])
	if !latOK || !lngOK {
		return Coordinate{}, false
	}
	return Coordinate{lng, lat}, true
}

func decodeLatitudeLongitude(v interface{}) (Coordinate, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return Coordinate{}, false
	}
	lat, latOK := asFloat(m["latitude"])
	lng, lngOK := asFloat(m["longitude"])
	if !latOK || !lngOK {
		return Coordinate{}, false
	}
	return Coordinate{lng, lat}, true
}

func pairFrom(v interface{}) (Coordinate, bool) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 2 {
		return Coordinate{}, false
	}
	lng, lngOK := asFloat(arr[0])
	lat, latOK := asFloat(arr[1])
	if !lngOK || !latOK {
		return Coordinate{}, false
	}
	return Coordinate{lng, lat}, true
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, isFinite(n)
	case float32:
		return float64(n), isFinite(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && isFinite(f)
	default:
		return 0, false
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
