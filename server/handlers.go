package server

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"food-delivery/tracking/geo"
	"food-delivery/tracking/models"
	"food-delivery/tracking/nearby"
)

// @Summary Health check
// @Tags Health
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now(),
	})
}

// resolveSearchPoint prefers explicit coordinates from the query, then
// the courier's last Redis fix, then the default anchor.
func (s *TrackingServer) resolveSearchPoint(c *fiber.Ctx, courierID string) geo.Coordinate {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr == nil && lngErr == nil {
		if point := (geo.Coordinate{lng, lat}); geo.IsValidGPS(point) {
			return point
		}
	}
	return nearby.ResolvePoint(c.Context(), func(ctx context.Context) (geo.Coordinate, error) {
		point, ok := s.CourierPoint(ctx, courierID)
		if !ok {
			return geo.Coordinate{}, errors.New("no position on record")
		}
		return point, nil
	})
}

// @Summary List open orders near a courier
// @Tags Orders
// @Produce json
// @Success 200 {array} models.NearbyOrder
// @Router /orders/nearby [get]
func (s *TrackingServer) GetNearbyOrders(c *fiber.Ctx) error {
	courierID := c.Query("courier_id")
	if courierID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "courier_id is required")
	}

	point := s.resolveSearchPoint(c, courierID)
	finder := s.Finder(courierID)
	orders, err := finder.FetchNearby(c.Context(), point)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "failed to fetch nearby orders: "+err.Error())
	}

	orders = nearby.Filter(orders, models.OrderStatus(c.Query("status")), c.Query("q"))
	return c.JSON(fiber.Map{
		"orders": orders,
		"mine":   finder.Mine(),
		"point":  point,
	})
}

// @Summary Claim an order for a courier
// @Tags Delivery
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /delivery/assign [post]
func (s *TrackingServer) AssignOrder(c *fiber.Ctx) error {
	var req struct {
		OrderID   string `json:"orderId"`
		CourierID string `json:"courierId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.OrderID == "" || req.CourierID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "orderId and courierId are required")
	}

	finder := s.Finder(req.CourierID)
	candidate, found := findCandidate(finder.Nearby(), req.OrderID)
	if !found {
		// A claimed order surfaces here too when the courier still holds a
		// stale list.
		if claimed, ok := findCandidate(finder.Mine(), req.OrderID); ok {
			candidate = claimed
			found = true
		}
	}
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "order is not in the nearby list")
	}

	if err := finder.Assign(c.Context(), candidate); err != nil {
		if errors.Is(err, nearby.ErrAlreadyClaimed) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return fiber.NewError(fiber.StatusBadGateway, "assignment failed: "+err.Error())
	}

	ordersAssigned.Inc()
	if err := s.logEvent(map[string]interface{}{
		"event":      "order_claimed",
		"order_id":   req.OrderID,
		"courier_id": req.CourierID,
	}); err != nil {
		log.Printf("Failed to log claim event: %v", err)
	}

	return c.JSON(fiber.Map{"status": "assigned", "orderId": req.OrderID})
}

func findCandidate(list []models.NearbyOrder, orderID string) (models.NearbyOrder, bool) {
	for _, candidate := range list {
		if candidate.OrderID == orderID {
			return candidate, true
		}
	}
	return models.NearbyOrder{}, false
}

// @Summary Advance a claimed order to the next delivery status
// @Tags Delivery
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /orders/{id}/status [put]
func (s *TrackingServer) UpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	courierID := c.Query("courier_id")
	if courierID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "courier_id is required")
	}

	var req models.StatusUpdateRequest
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return fiber.NewError(fiber.StatusBadRequest, "status is required")
	}

	finder := s.Finder(courierID)
	if err := finder.UpdateStatus(c.Context(), orderID, req.Status); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "status update failed: "+err.Error())
	}

	return c.JSON(fiber.Map{"status": string(req.Status), "orderId": orderID})
}

// @Summary Current tracking snapshot for an order
// @Tags Tracking
// @Produce json
// @Success 200 {object} tracker.SessionSnapshot
// @Router /track/{id} [get]
func (s *TrackingServer) GetTrackingSnapshot(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if orderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "order id is required")
	}

	session := s.Session(orderID)
	if err := session.Refresh(c.Context()); err != nil {
		// The snapshot still carries the last known state plus the error
		// banner.
		log.Printf("tracking: order %s: refresh failed: %v", orderID, err)
	}
	return c.JSON(session.Snapshot())
}

// @Summary Retry a failed map initialization
// @Tags Tracking
// @Produce json
// @Success 200 {object} map[string]string
// @Router /track/{id}/map/retry [post]
func (s *TrackingServer) RetryMap(c *fiber.Ctx) error {
	orderID := c.Params("id")
	session := s.Session(orderID)

	view := session.View()
	if !view.Retry() {
		state, _ := view.State()
		return fiber.NewError(fiber.StatusConflict, "map is not in a retryable state: "+string(state))
	}
	if err := view.Init(s.baseCtx, s.cfg.Mapbox.Token); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	state, _ := view.State()
	return c.JSON(fiber.Map{"state": string(state)})
}
