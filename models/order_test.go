package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-delivery/tracking/geo"
)

func TestOrderUnmarshalToleratesIDSpellings(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"mongo", `{"_id":"o1","status":"paid","restaurantID":"r1","customerID":"c1"}`},
		{"plain", `{"id":"o1","status":"paid","restaurantId":"r1","customerId":"c1"}`},
		{"orderId", `{"orderId":"o1","status":"paid","restaurantId":"r1","customerId":"c1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var order Order
			require.NoError(t, json.Unmarshal([]byte(tc.body), &order))
			assert.Equal(t, "o1", order.ID)
			assert.Equal(t, "r1", order.RestaurantID)
			assert.Equal(t, "c1", order.CustomerID)
			assert.Equal(t, StatusPaid, order.Status)
		})
	}
}

func TestDeliveryLocationCoordinateSwapsLatitudeFirstPair(t *testing.T) {
	loc := DeliveryLocation{
		Address:  "12 Galle Rd",
		Location: json.RawMessage(`{"location":{"type":"Point","coordinates":[6.9000,79.8800]}}`),
	}

	c, ok := loc.Coordinate()
	require.True(t, ok)
	assert.Equal(t, geo.Coordinate{79.88, 6.9}, c)
}

func TestDeliveryLocationCoordinateRejectsBadInput(t *testing.T) {
	_, ok := DeliveryLocation{}.Coordinate()
	assert.False(t, ok)

	// A pair that is already longitude-first fails the range check after
	// the swap instead of silently producing a wrong point.
	loc := DeliveryLocation{Location: json.RawMessage(`[200,6.9]`)}
	_, ok = loc.Coordinate()
	assert.False(t, ok)
}

func TestClaimed(t *testing.T) {
	for _, status := range []OrderStatus{StatusAssigned, StatusPickup, StatusPickedUp, StatusDelivered} {
		assert.True(t, status.Claimed(), "status %s", status)
	}
	for _, status := range []OrderStatus{StatusPending, StatusAccepted, StatusRejected, StatusPaid, StatusPreparing, StatusReady} {
		assert.False(t, status.Claimed(), "status %s", status)
	}
}

func TestTotalAmount(t *testing.T) {
	order := Order{RestaurantCost: 1450, DeliveryCost: 250}
	assert.Equal(t, 1700.0, order.TotalAmount())
}

func TestRestaurantCoordinateIsNotSwapped(t *testing.T) {
	restaurant := Restaurant{
		ID:       "r1",
		Location: json.RawMessage(`{"coordinates":[79.8612,6.9271]}`),
	}

	c, ok := restaurant.Coordinate()
	require.True(t, ok)
	assert.Equal(t, geo.Coordinate{79.8612, 6.9271}, c)
}

func TestDeliveryPersonCoordinateFromLatLng(t *testing.T) {
	person := DeliveryPerson{
		ID:              "d1",
		CurrentLocation: json.RawMessage(`{"lat":6.91,"lng":79.87}`),
	}

	c, ok := person.Coordinate()
	require.True(t, ok)
	assert.Equal(t, geo.Coordinate{79.87, 6.91}, c)

	person.CurrentLocation = nil
	_, ok = person.Coordinate()
	assert.False(t, ok)
}
