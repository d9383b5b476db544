package models

import (
	"encoding/json"
	"time"

	"food-delivery/tracking/geo"
)

// Restaurant is the slice of the restaurant record this subsystem needs:
// a name and a coordinate. Verification flags belong to the admin panel.
type Restaurant struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Location json.RawMessage `json:"location,omitempty"`
	Verified bool            `json:"verified"`
	Open     bool            `json:"open"`
}

// Coordinate extracts the restaurant position, if any valid one is present.
func (r Restaurant) Coordinate() (geo.Coordinate, bool) {
	c, ok := geo.Normalize(r.Location)
	if !ok || !geo.IsValidGPS(c) {
		return geo.Coordinate{}, false
	}
	return c, true
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type DeliveryPerson struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone,omitempty"`
	CurrentLocation json.RawMessage `json:"currentLocation,omitempty"`
	Verified        bool            `json:"verified"`
	Available       bool            `json:"available"`
	LastUpdate      int64           `json:"lastUpdate,omitempty"`
}

// Coordinate extracts the live position. May be stale or absent; callers
// fall back to a synthetic offset near the restaurant in that case.
func (p DeliveryPerson) Coordinate() (geo.Coordinate, bool) {
	c, ok := geo.Normalize(p.CurrentLocation)
	if !ok || !geo.IsValidGPS(c) {
		return geo.Coordinate{}, false
	}
	return c, true
}

// NearbyOrder is the ephemeral per-poll view joining an order with its
// restaurant and customer plus the distance from the delivery person.
// It is recomputed on every fetch and never persisted.
type NearbyOrder struct {
	OrderID            string         `json:"orderId"`
	OrderRefNo         string         `json:"orderRefNo"`
	Status             OrderStatus    `json:"status"`
	RestaurantID       string         `json:"restaurantId"`
	RestaurantName     string         `json:"restaurantName"`
	RestaurantLocation geo.Coordinate `json:"restaurantLocation"`
	CustomerID         string         `json:"customerId"`
	CustomerName       string         `json:"customerName"`
	CustomerPhone      string         `json:"customerPhone,omitempty"`
	CustomerLocation   geo.Coordinate `json:"customerLocation"`
	DeliveryAddress    string         `json:"deliveryAddress"`
	DeliveryPersonID   string         `json:"deliveryPersonId,omitempty"`
	Items              []OrderItem    `json:"items,omitempty"`
	TotalAmount        float64        `json:"totalAmount"`
	DistanceKm         float64        `json:"distance"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// AssignmentRequest is the payload accepted by the delivery service's
// assign endpoint and by the order service's fallback endpoint.
type AssignmentRequest struct {
	ID               string          `json:"id"`
	DeliveryPersonID string          `json:"deliveryPersonId"`
	RestaurantID     string          `json:"restaurantId"`
	CustomerID       string          `json:"customerId"`
	DeliveryLocation GeoJSONLocation `json:"deliveryLocation"`
}

// GeoJSONLocation is the point-with-address form the delivery service
// stores. Coordinates are canonical [lng, lat].
type GeoJSONLocation struct {
	Location GeoJSONPoint `json:"location"`
	Address  string       `json:"address"`
}

type GeoJSONPoint struct {
	Type        string         `json:"type"`
	Coordinates geo.Coordinate `json:"coordinates"`
}

// NewGeoJSONLocation builds the assignment drop-off from a canonical pair.
func NewGeoJSONLocation(c geo.Coordinate, address string) GeoJSONLocation {
	return GeoJSONLocation{
		Location: GeoJSONPoint{Type: "Point", Coordinates: c},
		Address:  address,
	}
}

// StatusUpdateRequest is the body of PUT /delivery/{id}/status.
type StatusUpdateRequest struct {
	Status OrderStatus `json:"status"`
}

// Notification is the message accepted by POST /notification/send.
type Notification struct {
	ID       string            `json:"id,omitempty"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Text     string            `json:"text"`
	HTML     string            `json:"html,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
