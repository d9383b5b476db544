package models

import (
	"encoding/json"
	"time"

	"food-delivery/tracking/geo"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusRejected  OrderStatus = "rejected"
	StatusPaid      OrderStatus = "paid"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusAssigned  OrderStatus = "assigned"
	// The services are split on the spelling; both appear in live data.
	StatusPickup    OrderStatus = "pickup"
	StatusPickedUp  OrderStatus = "picked_up"
	StatusDelivered OrderStatus = "delivered"
)

// Claimed reports whether the order is already held by a delivery person
// (or finished) and therefore cannot be assigned again.
func (s OrderStatus) Claimed() bool {
	switch s {
	case StatusAssigned, StatusPickup, StatusPickedUp, StatusDelivered:
		return true
	}
	return false
}

type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// DeliveryLocation is the drop-off point attached to an order. Location is
// kept raw because the order service nests coordinates inconsistently.
type DeliveryLocation struct {
	Address  string          `json:"address"`
	Location json.RawMessage `json:"location,omitempty"`
}

// Coordinate normalizes the drop-off point into canonical [lng, lat] form.
// The order service persists delivery points latitude-first, so the pair is
// swapped after shape extraction.
func (d DeliveryLocation) Coordinate() (geo.Coordinate, bool) {
	c, ok := geo.Normalize(d.Location)
	if !ok {
		return geo.Coordinate{}, false
	}
	swapped := geo.Coordinate{c[1], c[0]}
	if !geo.IsValidGPS(swapped) {
		return geo.Coordinate{}, false
	}
	return swapped, true
}

type Order struct {
	ID               string           `json:"id"`
	RefNo            string           `json:"refNo,omitempty"`
	Status           OrderStatus      `json:"status"`
	RestaurantID     string           `json:"restaurantId"`
	CustomerID       string           `json:"customerId"`
	DeliveryPersonID string           `json:"deliveryPersonId,omitempty"`
	DeliveryLocation DeliveryLocation `json:"deliveryLocation"`
	Items            []OrderItem      `json:"items,omitempty"`
	RestaurantCost   float64          `json:"restaurantCost"`
	DeliveryCost     float64          `json:"deliveryCost"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// TotalAmount is the customer-facing order total.
func (o Order) TotalAmount() float64 {
	return o.RestaurantCost + o.DeliveryCost
}

// UnmarshalJSON tolerates the id spellings the services disagree on
// (_id vs id vs orderId, restaurantID vs restaurantId, customerID vs
// customerId).
func (o *Order) UnmarshalJSON(data []byte) error {
	type alias Order
	aux := struct {
		*alias
		MongoID         string `json:"_id"`
		OrderID         string `json:"orderId"`
		RestaurantIDAlt string `json:"restaurantID"`
		CustomerIDAlt   string `json:"customerID"`
	}{alias: (*alias)(o)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = firstNonEmpty(aux.MongoID, aux.OrderID)
	}
	if o.RestaurantID == "" {
		o.RestaurantID = aux.RestaurantIDAlt
	}
	if o.CustomerID == "" {
		o.CustomerID = aux.CustomerIDAlt
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
