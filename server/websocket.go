package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt"

	"food-delivery/tracking/models"
)

// ValidateToken guards the courier WebSocket: the query token must be a
// valid JWT carrying the courier id it claims to be.
func (s *TrackingServer) ValidateToken(c *fiber.Ctx) error {
	token := c.Query("token")
	courierID := c.Query("courier_id")

	if token == "" || courierID == "" {
		return fiber.ErrUnauthorized
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.SecretKey), nil
	})

	if err != nil || claims["courier_id"] != courierID {
		return fiber.ErrUnauthorized
	}

	return c.Next()
}

// HandleCourierWebSocket keeps the courier connection registered for
// assignment pushes and accepts delivery confirmations back.
func (s *TrackingServer) HandleCourierWebSocket(c *websocket.Conn) {
	courierID := c.Query("courier_id")
	s.mu.Lock()
	s.wsClients[courierID] = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.wsClients, courierID)
		s.mu.Unlock()
	}()

	for {
		var msg struct {
			Event   string `json:"event"`
			OrderID string `json:"order_id"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			break
		}

		if msg.Event == "delivery_confirmed" {
			s.handleDeliveryConfirmation(courierID, msg.OrderID)
		}
	}
}

func (s *TrackingServer) handleDeliveryConfirmation(courierID, orderID string) {
	ctx := s.baseCtx

	if err := s.rdb.HSet(ctx, "courier:"+courierID, "is_busy", "false").Err(); err != nil {
		log.Printf("Failed to update courier status: %v", err)
	}
	s.rdb.Del(ctx, "courier:"+courierID+":order", "order:"+orderID+":courier")

	if err := s.delivery.UpdateStatus(ctx, orderID, models.StatusDelivered); err != nil {
		log.Printf("Failed to mark order %s delivered: %v", orderID, err)
	}

	s.notifyDelivered(ctx, orderID)

	if err := s.logEvent(map[string]interface{}{
		"event":      "order_delivered",
		"order_id":   orderID,
		"courier_id": courierID,
	}); err != nil {
		log.Printf("Failed to log delivery event: %v", err)
	}
}

func (s *TrackingServer) notifyDelivered(ctx context.Context, orderID string) {
	order, err := s.orders.Order(ctx, orderID)
	if err != nil {
		log.Printf("Failed to load order %s for notification: %v", orderID, err)
		return
	}
	customer, err := s.users.Customer(ctx, order.CustomerID)
	if err != nil || customer.Email == "" {
		return
	}

	err = s.notifications.Send(ctx, models.Notification{
		To:      customer.Email,
		Subject: "Your order has been delivered",
		Text:    fmt.Sprintf("Order %s was delivered. Enjoy your meal!", order.RefNo),
		Metadata: map[string]string{
			"order_id": orderID,
		},
	})
	if err != nil {
		log.Printf("Failed to send delivery notification for order %s: %v", orderID, err)
	}
}

// HandleTrackingWebSocket streams tracking snapshots for one order. A
// snapshot goes out immediately and then on every push interval until the
// client disconnects.
func (s *TrackingServer) HandleTrackingWebSocket(c *websocket.Conn) {
	orderID := c.Query("order_id")
	if orderID == "" {
		return
	}

	session := s.Session(orderID)
	if err := session.Refresh(s.baseCtx); err != nil {
		log.Printf("tracking: order %s: refresh failed: %v", orderID, err)
	}
	if err := c.WriteJSON(session.Snapshot()); err != nil {
		return
	}

	interval := s.cfg.Tracking.PushInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := c.WriteJSON(session.Snapshot()); err != nil {
			return
		}
	}
}
