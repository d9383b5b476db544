// Package nearby implements the courier-facing side of order assignment:
// listing open orders around a point, claiming one, and walking an
// accepted order through the delivery statuses.
package nearby

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"food-delivery/tracking/geo"
	"food-delivery/tracking/models"
)

// DefaultPoint anchors the nearby search when the courier position cannot
// be resolved in time.
var DefaultPoint = geo.Coordinate{79.8612, 6.9271}

const locateTimeout = 5 * time.Second

// ErrAlreadyClaimed is returned without touching the network when the
// courier tries to claim an order that is already past the open statuses.
var ErrAlreadyClaimed = errors.New("nearby: order is already claimed")

type OrderService interface {
	Nearby(ctx context.Context, point geo.Coordinate) ([]models.Order, error)
	Assign(ctx context.Context, req models.AssignmentRequest) error
}

type UserService interface {
	Restaurant(ctx context.Context, id string) (*models.Restaurant, error)
	Customer(ctx context.Context, id string) (*models.Customer, error)
}

type DeliveryService interface {
	Assign(ctx context.Context, req models.AssignmentRequest) error
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) error
}

// Finder holds the courier's working set: the open orders around them and
// the orders they have claimed.
type Finder struct {
	orders           OrderService
	users            UserService
	delivery         DeliveryService
	deliveryPersonID string

	mu     sync.Mutex
	nearby []models.NearbyOrder
	mine   []models.NearbyOrder
}

func NewFinder(orders OrderService, users UserService, delivery DeliveryService, deliveryPersonID string) *Finder {
	return &Finder{
		orders:           orders,
		users:            users,
		delivery:         delivery,
		deliveryPersonID: deliveryPersonID,
	}
}

// ResolvePoint runs the locate callback with a hard timeout and falls
// back to the default search anchor when it fails, times out or returns
// something outside GPS range.
func ResolvePoint(ctx context.Context, locate func(context.Context) (geo.Coordinate, error)) geo.Coordinate {
	if locate == nil {
		return DefaultPoint
	}
	ctx, cancel := context.WithTimeout(ctx, locateTimeout)
	defer cancel()

	type result struct {
		point geo.Coordinate
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := locate(ctx)
		ch <- result{p, err}
	}()

	select {
	case <-ctx.Done():
		log.Printf("nearby: position lookup timed out, using default point")
		return DefaultPoint
	case res := <-ch:
		if res.err != nil || !geo.IsValidGPS(res.point) {
			log.Printf("nearby: position lookup failed (%v), using default point", res.err)
			return DefaultPoint
		}
		return res.point
	}
}

// FetchNearby rebuilds the candidate list around a point. Rejected orders
// and orders claimed by someone else are dropped; orders claimed by this
// courier land in the Mine list instead. Candidates missing a usable
// restaurant or drop-off coordinate are skipped.
func (f *Finder) FetchNearby(ctx context.Context, around geo.Coordinate) ([]models.NearbyOrder, error) {
	orders, err := f.orders.Nearby(ctx, around)
	if err != nil {
		return nil, err
	}

	var candidates, mine []models.NearbyOrder
	for i := range orders {
		order := &orders[i]
		if order.Status == models.StatusRejected {
			continue
		}
		claimedByMe := order.DeliveryPersonID == f.deliveryPersonID && f.deliveryPersonID != ""
		if order.Status.Claimed() && !claimedByMe {
			continue
		}

		candidate, ok := f.buildCandidate(ctx, order, around)
		if !ok {
			continue
		}
		if claimedByMe {
			mine = append(mine, candidate)
		} else {
			candidates = append(candidates, candidate)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DistanceKm < candidates[j].DistanceKm
	})

	f.mu.Lock()
	f.nearby = candidates
	f.mine = mine
	f.mu.Unlock()
	return candidates, nil
}

func (f *Finder) buildCandidate(ctx context.Context, order *models.Order, around geo.Coordinate) (models.NearbyOrder, bool) {
	dropOff, ok := order.DeliveryLocation.Coordinate()
	if !ok {
		log.Printf("nearby: order %s: unusable drop-off location, skipping", order.ID)
		return models.NearbyOrder{}, false
	}

	restaurant, err := f.users.Restaurant(ctx, order.RestaurantID)
	if err != nil || restaurant == nil {
		log.Printf("nearby: order %s: restaurant %s lookup failed: %v", order.ID, order.RestaurantID, err)
		return models.NearbyOrder{}, false
	}
	restCoord, ok := restaurant.Coordinate()
	if !ok {
		log.Printf("nearby: order %s: restaurant %s has no usable location, skipping", order.ID, order.RestaurantID)
		return models.NearbyOrder{}, false
	}

	customerName := "Customer"
	customerPhone := ""
	if customer, err := f.users.Customer(ctx, order.CustomerID); err == nil && customer != nil && customer.Name != "" {
		customerName = customer.Name
		customerPhone = customer.Phone
	}

	distance := roundTenth(geo.DistanceKm(around, restCoord))

	return models.NearbyOrder{
		OrderID:            order.ID,
		OrderRefNo:         order.RefNo,
		Status:             order.Status,
		RestaurantID:       order.RestaurantID,
		RestaurantName:     restaurant.Name,
		RestaurantLocation: restCoord,
		CustomerID:         order.CustomerID,
		CustomerName:       customerName,
		CustomerPhone:      customerPhone,
		CustomerLocation:   dropOff,
		DeliveryAddress:    order.DeliveryLocation.Address,
		DeliveryPersonID:   order.DeliveryPersonID,
		Items:              order.Items,
		TotalAmount:        order.TotalAmount(),
		DistanceKm:         distance,
		CreatedAt:          order.CreatedAt,
	}, true
}

func roundTenth(km float64) float64 {
	return float64(int(km*10+0.5)) / 10
}

// Nearby returns the last fetched candidate list.
func (f *Finder) Nearby() []models.NearbyOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.NearbyOrder, len(f.nearby))
	copy(out, f.nearby)
	return out
}

// Mine returns the orders this courier has claimed.
func (f *Finder) Mine() []models.NearbyOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.NearbyOrder, len(f.mine))
	copy(out, f.mine)
	return out
}

// Assign claims a candidate for this courier. Orders already in a claimed
// status are refused locally. The delivery service is the primary path;
// the order service takes over when it is unreachable. On success the
// candidate moves from the nearby list to the mine list immediately.
func (f *Finder) Assign(ctx context.Context, candidate models.NearbyOrder) error {
	if candidate.Status.Claimed() {
		return ErrAlreadyClaimed
	}

	req := models.AssignmentRequest{
		ID:               candidate.OrderID,
		DeliveryPersonID: f.deliveryPersonID,
		RestaurantID:     candidate.RestaurantID,
		CustomerID:       candidate.CustomerID,
		DeliveryLocation: models.NewGeoJSONLocation(candidate.CustomerLocation, candidate.DeliveryAddress),
	}

	if err := f.delivery.Assign(ctx, req); err != nil {
		log.Printf("nearby: delivery assignment for order %s failed (%v), trying order service", candidate.OrderID, err)
		if err := f.orders.Assign(ctx, req); err != nil {
			return err
		}
	}

	candidate.Status = models.StatusAssigned
	candidate.DeliveryPersonID = f.deliveryPersonID

	f.mu.Lock()
	kept := f.nearby[:0]
	for _, c := range f.nearby {
		if c.OrderID != candidate.OrderID {
			kept = append(kept, c)
		}
	}
	f.nearby = kept
	f.mine = append(f.mine, candidate)
	f.mu.Unlock()
	return nil
}

// UpdateStatus moves a claimed order to the next status optimistically:
// the local copy changes first and is reverted if the service refuses.
func (f *Finder) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	previous, ok := f.setMineStatus(orderID, status)
	if !ok {
		return errors.New("nearby: order is not in the claimed list")
	}

	if err := f.delivery.UpdateStatus(ctx, orderID, status); err != nil {
		f.setMineStatus(orderID, previous)
		return err
	}
	return nil
}

func (f *Finder) setMineStatus(orderID string, status models.OrderStatus) (models.OrderStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.mine {
		if f.mine[i].OrderID == orderID {
			previous := f.mine[i].Status
			f.mine[i].Status = status
			return previous, true
		}
	}
	return "", false
}

// Filter narrows a candidate list by status and free-text search over the
// restaurant name, customer name and delivery address. The pickup and
// picked_up spellings match each other.
func Filter(orders []models.NearbyOrder, status models.OrderStatus, query string) []models.NearbyOrder {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []models.NearbyOrder
	for _, order := range orders {
		if status != "" && !statusMatches(order.Status, status) {
			continue
		}
		if query != "" && !textMatches(order, query) {
			continue
		}
		out = append(out, order)
	}
	return out
}

func statusMatches(have, want models.OrderStatus) bool {
	if have == want {
		return true
	}
	pickup := func(s models.OrderStatus) bool {
		return s == models.StatusPickup || s == models.StatusPickedUp
	}
	return pickup(have) && pickup(want)
}

func textMatches(order models.NearbyOrder, query string) bool {
	for _, field := range []string{order.RestaurantName, order.CustomerName, order.DeliveryAddress, order.OrderRefNo} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
