package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryPersonFromHash(t *testing.T) {
	person := deliveryPersonFromHash("d1", map[string]string{
		"latitude":    "6.9271",
		"longitude":   "79.8612",
		"is_active":   "true",
		"is_busy":     "false",
		"last_update": "1724995200",
	})

	assert.Equal(t, "d1", person.ID)
	assert.True(t, person.Available)
	assert.Equal(t, int64(1724995200), person.LastUpdate)

	require.NotNil(t, person.CurrentLocation)
	var loc map[string]float64
	require.NoError(t, json.Unmarshal(person.CurrentLocation, &loc))
	assert.InDelta(t, 6.9271, loc["lat"], 1e-9)
	assert.InDelta(t, 79.8612, loc["lng"], 1e-9)
}

func TestDeliveryPersonFromHashInactiveCourierHasNoLocation(t *testing.T) {
	person := deliveryPersonFromHash("d2", map[string]string{
		"latitude":    "6.9271",
		"longitude":   "79.8612",
		"is_active":   "false",
		"is_busy":     "true",
		"last_update": "1724995200",
	})

	assert.Nil(t, person.CurrentLocation)
	assert.False(t, person.Available)
	assert.Equal(t, int64(1724995200), person.LastUpdate)
}

func TestDeliveryPersonFromHashDropsZeroIslandFix(t *testing.T) {
	person := deliveryPersonFromHash("d3", map[string]string{
		"latitude":  "0",
		"longitude": "0",
		"is_active": "true",
		"is_busy":   "false",
	})

	assert.Nil(t, person.CurrentLocation)
	assert.Zero(t, person.LastUpdate)
}
