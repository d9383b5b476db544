package geo

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKnownShapes(t *testing.T) {
	want := Coordinate{79.8612, 6.9271}

	shapes := map[string]string{
		"bare pair":          `[79.8612, 6.9271]`,
		"coordinates field":  `{"coordinates": [79.8612, 6.9271]}`,
		"nested location":    `{"location": {"type": "Point", "coordinates": [79.8612, 6.9271]}}`,
		"lat/lng":            `{"lat": 6.9271, "lng": 79.8612}`,
		"latitude/longitude": `{"latitude": 6.9271, "longitude": 79.8612}`,
	}

	for name, raw := range shapes {
		t.Run(name, func(t *testing.T) {
			got, ok := Normalize(json.RawMessage(raw))
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}
}

func TestNormalizeRejectsUnknownShapes(t *testing.T) {
	cases := map[string]interface{}{
		"nil":               nil,
		"empty object":      json.RawMessage(`{}`),
		"short array":       json.RawMessage(`[79.8612]`),
		"long array":        json.RawMessage(`[79.8612, 6.9271, 0]`),
		"string pair":       json.RawMessage(`["79.8612", "6.9271"]`),
		"lat without lng":   json.RawMessage(`{"lat": 6.9271}`),
		"string value":      json.RawMessage(`"colombo"`),
		"malformed json":    json.RawMessage(`{`),
		"null json":         json.RawMessage(`null`),
		"coordinates short": json.RawMessage(`{"coordinates": [79.8612]}`),
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := Normalize(in)
			assert.False(t, ok)
		})
	}
}

func TestNormalizePrecedence(t *testing.T) {
	// A payload matching both {coordinates} and {lat,lng} must resolve
	// through the coordinates field, which comes first in precedence.
	raw := json.RawMessage(`{"coordinates": [79.8612, 6.9271], "lat": 1, "lng": 2}`)
	got, ok := Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, Coordinate{79.8612, 6.9271}, got)
}

func TestNormalizeNonFinite(t *testing.T) {
	_, ok := Normalize([]float64{math.NaN(), 6.9271})
	assert.False(t, ok)

	_, ok = Normalize(map[string]interface{}{"lat": math.Inf(1), "lng": 79.8612})
	assert.False(t, ok)
}

func TestNormalizeDecodedValues(t *testing.T) {
	got, ok := Normalize([]float64{79.8612, 6.9271})
	require.True(t, ok)
	assert.Equal(t, Coordinate{79.8612, 6.9271}, got)

	got, ok = Normalize(map[string]interface{}{
		"location": map[string]interface{}{"coordinates": []interface{}{79.8612, 6.9271}},
	})
	require.True(t, ok)
	assert.Equal(t, Coordinate{79.8612, 6.9271}, got)
}

func TestIsValidGPS(t *testing.T) {
	assert.True(t, IsValidGPS(Coordinate{79.86, 6.92}))
	assert.True(t, IsValidGPS(Coordinate{-180, 90}))
	assert.False(t, IsValidGPS(Coordinate{200, 0}))
	assert.False(t, IsValidGPS(Coordinate{0, 100}))
	assert.False(t, IsValidGPS(Coordinate{math.NaN(), 0}))
}

func TestValidationError(t *testing.T) {
	assert.Equal(t, "location data is missing", ValidationError(nil))
	assert.Equal(t, "location data is in an unrecognized format", ValidationError(json.RawMessage(`{}`)))
	assert.Equal(t, "coordinates are outside valid GPS range", ValidationError([]float64{200, 0}))
	assert.Empty(t, ValidationError([]float64{79.86, 6.92}))
}
