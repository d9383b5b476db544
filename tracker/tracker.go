// Package tracker runs the per-order tracking session: it polls the order
// and the people attached to it, and projects everything onto a map view.
package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"food-delivery/tracking/geo"
	"food-delivery/tracking/mapview"
	"food-delivery/tracking/models"
	"food-delivery/tracking/routing"
)

// RouteResolver computes a drivable route through ordered waypoints.
type RouteResolver interface {
	ComputeRoute(ctx context.Context, waypoints []geo.Coordinate, profile string) (*routing.Route, error)
}

// OrderSource reads orders from the order service.
type OrderSource interface {
	Order(ctx context.Context, id string) (*models.Order, error)
}

// UserSource reads restaurant and customer profiles.
type UserSource interface {
	Restaurant(ctx context.Context, id string) (*models.Restaurant, error)
	Customer(ctx context.Context, id string) (*models.Customer, error)
}

// DeliverySource reads courier state from the delivery service.
type DeliverySource interface {
	DeliveryPerson(ctx context.Context, id string) (*models.DeliveryPerson, error)
}

// Session tracks a single order. Concurrent refreshes are serialized by
// sequence number so a slow older response can never overwrite a newer
// one.
type Session struct {
	orderID  string
	orders   OrderSource
	users    UserSource
	delivery DeliverySource
	routes   RouteResolver
	view     *mapview.View

	pollInterval time.Duration
	profile      string

	mu         sync.Mutex
	seq        uint64
	applied    uint64
	order      *models.Order
	restaurant *models.Restaurant
	person     *models.DeliveryPerson
	lastErr    error
	updatedAt  time.Time
	closed     bool
	done       chan struct{}
}

func NewSession(orderID string, orders OrderSource, users UserSource, delivery DeliverySource, routes RouteResolver, view *mapview.View, pollInterval time.Duration) *Session {
	if pollInterval <= 0 {
		pollInterval = 60 * time.Second
	}
	return &Session{
		orderID:      orderID,
		orders:       orders,
		users:        users,
		delivery:     delivery,
		routes:       routes,
		view:         view,
		pollInterval: pollInterval,
		profile:      routing.ProfileDriving,
		done:         make(chan struct{}),
	}
}

// SetProfile overrides the routing profile used for route computation.
// An empty profile keeps the driving default.
func (s *Session) SetProfile(profile string) {
	if profile != "" {
		s.profile = profile
	}
}

// View exposes the session's map view.
func (s *Session) View() *mapview.View { return s.view }

// Refresh fetches the order and its participants once and redraws the
// map. Fetch failures keep the last known good state and surface as a
// recoverable error on the snapshot.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	order, err := s.orders.Order(ctx, s.orderID)
	if err != nil {
		s.recordError(seq, err)
		return err
	}

	var restaurant *models.Restaurant
	if order.RestaurantID != "" {
		restaurant, err = s.users.Restaurant(ctx, order.RestaurantID)
		if err != nil {
			s.recordError(seq, err)
			return err
		}
	}

	var person *models.DeliveryPerson
	if order.DeliveryPersonID != "" {
		person, err = s.delivery.DeliveryPerson(ctx, order.DeliveryPersonID)
		if err != nil {
			// The courier fix is best-effort; the order view stays usable
			// without it.
			log.Printf("tracker: order %s: courier lookup failed: %v", s.orderID, err)
			person = nil
		}
	}

	s.mu.Lock()
	if s.closed || seq <= s.applied {
		// A newer refresh already landed; this response is stale.
		s.mu.Unlock()
		return nil
	}
	s.applied = seq
	s.order = order
	s.restaurant = restaurant
	s.person = person
	s.lastErr = nil
	s.updatedAt = time.Now()
	s.mu.Unlock()

	s.redraw(ctx, order, restaurant, person)
	return nil
}

func (s *Session) recordError(seq uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq <= s.applied {
		// A newer refresh already landed; its state wins over this failure.
		return
	}
	s.lastErr = err
}

// redraw projects the refreshed state onto the map: one marker per role,
// the courier synthesized near the restaurant when no GPS fix exists, and
// a single route courier -> restaurant -> customer.
func (s *Session) redraw(ctx context.Context, order *models.Order, restaurant *models.Restaurant, person *models.DeliveryPerson) {
	var points []geo.Coordinate

	restCoord, restOK := geo.Coordinate{}, false
	if restaurant != nil {
		restCoord, restOK = restaurant.Coordinate()
	}
	if restOK {
		title := "Restaurant"
		if restaurant.Name != "" {
			title = restaurant.Name
		}
		s.view.UpsertMarker(mapview.RoleRestaurant, restCoord, title, "#ff3333")
		points = append(points, restCoord)
	}

	custCoord, custOK := order.DeliveryLocation.Coordinate()
	if custOK {
		s.view.UpsertMarker(mapview.RoleCustomer, custCoord, "Delivery address", "#3366ff")
		points = append(points, custCoord)
	}

	var personCoord geo.Coordinate
	personOK := false
	if person != nil {
		if c, ok := person.Coordinate(); ok {
			personCoord, personOK = c, true
			s.view.UpsertMarker(mapview.RoleDeliveryPerson, personCoord, "Courier", "#00cc66")
		} else if restOK {
			// No GPS fix yet; park the courier just off the restaurant so
			// the customer still sees someone on the map.
			personCoord, personOK = geo.Offset(restCoord, 0.5, geo.Northeast), true
			s.view.UpsertMarker(mapview.RoleDeliveryPerson, personCoord, "Courier", "#00cc66")
			s.view.SetApproximate(mapview.RoleDeliveryPerson, true)
		}
	}
	if personOK {
		points = append(points, personCoord)
	}

	if !restOK || !custOK {
		log.Printf("tracker: order %s: missing restaurant or drop-off coordinate, skipping route", s.orderID)
		s.view.FitToPoints(points)
		return
	}

	waypoints := make([]geo.Coordinate, 0, 3)
	if personOK {
		waypoints = append(waypoints, personCoord)
	}
	waypoints = append(waypoints, restCoord, custCoord)
	route, err := s.routes.ComputeRoute(ctx, waypoints, s.profile)
	if err != nil {
		log.Printf("tracker: order %s: route computation failed: %v", s.orderID, err)
	} else {
		s.view.SetRoute(route)
	}

	s.view.FitToPoints(points)
}

// Run drives the polling loop until the order reaches a terminal status,
// the context is cancelled or the session is closed. Ticks outside the
// active delivery statuses are skipped.
func (s *Session) Run(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		log.Printf("tracker: order %s: initial refresh failed: %v", s.orderID, err)
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			status := s.Status()
			if Terminal(status) {
				return
			}
			if !ShouldPoll(status) {
				continue
			}
			if err := s.Refresh(ctx); err != nil {
				log.Printf("tracker: order %s: refresh failed: %v", s.orderID, err)
			}
		}
	}
}

// Status returns the last applied order status.
func (s *Session) Status() models.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return models.StatusPending
	}
	return s.order.Status
}

// SessionSnapshot is what tracking subscribers receive on every push.
type SessionSnapshot struct {
	OrderID       string             `json:"orderId"`
	Status        models.OrderStatus `json:"status"`
	Step          int                `json:"step"`
	ProgressWidth int                `json:"progressWidth"`
	Description   string             `json:"description"`
	Polling       bool               `json:"polling"`
	Error         string             `json:"error,omitempty"`
	Map           mapview.Snapshot   `json:"map"`
	UpdatedAt     time.Time          `json:"updatedAt,omitempty"`
}

func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	status := models.StatusPending
	if s.order != nil {
		status = s.order.Status
	}
	snap := SessionSnapshot{
		OrderID:       s.orderID,
		Status:        status,
		Step:          StepForStatus(status),
		ProgressWidth: ProgressWidth(status),
		Description:   StatusDescription(status),
		Polling:       ShouldPoll(status),
		UpdatedAt:     s.updatedAt,
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	s.mu.Unlock()

	snap.Map = s.view.Snapshot()
	return snap
}

// Close stops the poll loop and tears down the map view. Safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.view.Close()
}
