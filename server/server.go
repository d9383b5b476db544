// Package server wires the tracking sessions, courier state and peer
// services behind the HTTP and WebSocket surface.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/websocket/v2"
	"github.com/streadway/amqp"

	"food-delivery/tracking/clients"
	"food-delivery/tracking/config"
	"food-delivery/tracking/geo"
	"food-delivery/tracking/models"
	"food-delivery/tracking/nearby"
	"food-delivery/tracking/routing"
	"food-delivery/tracking/tracker"
)

type TrackingServer struct {
	cfg      *config.Config
	rdb      *redis.Client
	rabbitmq *amqp.Connection
	kafka    sarama.SyncProducer
	routes   *routing.Client

	orders        *clients.OrderClient
	users         *clients.UserClient
	delivery      *clients.DeliveryClient
	notifications *clients.NotificationClient

	mu        sync.Mutex
	sessions  map[string]*tracker.Session
	finders   map[string]*nearby.Finder
	wsClients map[string]*websocket.Conn
	cancel    context.CancelFunc
	baseCtx   context.Context
}

func NewTrackingServer(cfg *config.Config) (*TrackingServer, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})

	// RabbitMQ connection with retry
	var rmq *amqp.Connection
	var err error
	for i := 0; i < 5; i++ {
		log.Printf("Attempting to connect to RabbitMQ (attempt %d/5)...", i+1)
		rmq, err = amqp.Dial(cfg.RabbitMQ.URL)
		if err == nil {
			break
		}
		if i < 4 {
			log.Printf("Failed to connect to RabbitMQ: %v. Retrying in 5 seconds...", err)
			time.Sleep(5 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after 5 attempts: %v", err)
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TrackingServer{
		cfg:           cfg,
		rdb:           rdb,
		rabbitmq:      rmq,
		kafka:         producer,
		routes:        routing.NewClient(cfg.Mapbox.BaseURL, cfg.Mapbox.Token),
		orders:        clients.NewOrderClient(cfg.Services.OrderAPIURL),
		users:         clients.NewUserClient(cfg.Services.UserAPIURL),
		delivery:      clients.NewDeliveryClient(cfg.Services.DeliveryAPIURL),
		notifications: clients.NewNotificationClient(cfg.Services.NotificationAPIURL),
		sessions:      make(map[string]*tracker.Session),
		finders:       make(map[string]*nearby.Finder),
		wsClients:     make(map[string]*websocket.Conn),
		cancel:        cancel,
		baseCtx:       ctx,
	}, nil
}

func (s *TrackingServer) logEvent(event map[string]interface{}) error {
	event["timestamp"] = time.Now().Unix()
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, _, err = s.kafka.SendMessage(&sarama.ProducerMessage{
		Topic: s.cfg.Kafka.Topic,
		Value: sarama.StringEncoder(data),
	})
	return err
}

// Session returns the running tracking session for an order, starting one
// on first use.
func (s *TrackingServer) Session(orderID string) *tracker.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[orderID]; ok {
		return session
	}

	view := newProviderView(s.routes, s.cfg.Tracking.InitTimeout)
	session := tracker.NewSession(orderID, s.orders, s.users, s.delivery, s.routes, view, s.cfg.Tracking.PollInterval)
	session.SetProfile(s.cfg.Mapbox.Profile)
	s.sessions[orderID] = session

	if err := view.Init(s.baseCtx, s.cfg.Mapbox.Token); err != nil {
		log.Printf("tracking: order %s: map init failed: %v", orderID, err)
	}
	go func() {
		session.Run(s.baseCtx)
		s.dropSession(orderID)
	}()
	trackedOrders.Inc()

	if err := s.logEvent(map[string]interface{}{
		"event":    "tracking_started",
		"order_id": orderID,
	}); err != nil {
		log.Printf("Failed to log tracking event: %v", err)
	}
	return session
}

func (s *TrackingServer) dropSession(orderID string) {
	s.mu.Lock()
	session, ok := s.sessions[orderID]
	if ok {
		delete(s.sessions, orderID)
	}
	s.mu.Unlock()
	if ok {
		session.Close()
		trackedOrders.Dec()
	}
}

// Finder returns the nearby-order state for a courier, creating it on
// first use.
func (s *TrackingServer) Finder(deliveryPersonID string) *nearby.Finder {
	s.mu.Lock()
	defer s.mu.Unlock()
	if finder, ok := s.finders[deliveryPersonID]; ok {
		return finder
	}
	finder := nearby.NewFinder(s.orders, s.users, s.delivery, deliveryPersonID)
	s.finders[deliveryPersonID] = finder
	return finder
}

// CourierPoint reads a courier's last reported position from Redis.
func (s *TrackingServer) CourierPoint(ctx context.Context, courierID string) (geo.Coordinate, bool) {
	data, err := s.rdb.HGetAll(ctx, "courier:"+courierID).Result()
	if err != nil || len(data) == 0 {
		return geo.Coordinate{}, false
	}
	lat, _ := strconv.ParseFloat(data["latitude"], 64)
	lng, _ := strconv.ParseFloat(data["longitude"], 64)
	point := geo.Coordinate{lng, lat}
	if !geo.IsValidGPS(point) {
		return geo.Coordinate{}, false
	}
	return point, true
}

// ConsumeAssignments drains the assignment queue: each message is an
// order id that needs a courier. The nearest active, free courier wins.
func (s *TrackingServer) ConsumeAssignments() {
	ch, err := s.rabbitmq.Channel()
	if err != nil {
		log.Fatal(err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(s.cfg.RabbitMQ.AssignQueue, true, false, false, false, nil)
	if err != nil {
		log.Fatal(err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		log.Fatal(err)
	}

	for msg := range msgs {
		orderID := string(msg.Body)
		go s.processAssignment(orderID)
	}
}

func (s *TrackingServer) processAssignment(orderID string) {
	start := time.Now()
	ctx := s.baseCtx

	order, err := s.orders.Order(ctx, orderID)
	if err != nil {
		log.Printf("Error getting order %s: %v", orderID, err)
		return
	}
	restaurant, err := s.users.Restaurant(ctx, order.RestaurantID)
	if err != nil {
		log.Printf("Error getting restaurant for order %s: %v", orderID, err)
		return
	}
	restCoord, ok := restaurant.Coordinate()
	if !ok {
		log.Printf("Restaurant %s has no usable location", order.RestaurantID)
		return
	}

	courierID := s.findNearestCourier(ctx, restCoord)
	if courierID == "" {
		log.Printf("No available couriers for order %s", orderID)
		return
	}

	if err := s.assignOrderToCourier(ctx, order.ID, courierID); err != nil {
		log.Printf("Error assigning order %s: %v", orderID, err)
		return
	}

	ordersAssigned.Inc()
	assignmentDuration.Observe(time.Since(start).Seconds())
}

func (s *TrackingServer) findNearestCourier(ctx context.Context, from geo.Coordinate) string {
	var nearestID string
	minDistance := -1.0

	keys, err := s.rdb.Keys(ctx, "courier:*").Result()
	if err != nil {
		return ""
	}

	for _, key := range keys {
		courierData, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			continue
		}

		if courierData["is_active"] == "true" && courierData["is_busy"] == "false" {
			cLat, _ := strconv.ParseFloat(courierData["latitude"], 64)
			cLng, _ := strconv.ParseFloat(courierData["longitude"], 64)
			point := geo.Coordinate{cLng, cLat}
			if !geo.IsValidGPS(point) {
				continue
			}

			dist := geo.DistanceKm(from, point)
			if minDistance < 0 || dist < minDistance {
				minDistance = dist
				nearestID = strings.TrimPrefix(key, "courier:")
			}
		}
	}
	return nearestID
}

func (s *TrackingServer) assignOrderToCourier(ctx context.Context, orderID, courierID string) error {
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, "courier:"+courierID, "is_busy", "true")
	pipe.Set(ctx, "courier:"+courierID+":order", orderID, 0)
	pipe.Set(ctx, "order:"+orderID+":courier", courierID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if err := s.delivery.UpdateStatus(ctx, orderID, models.StatusAssigned); err != nil {
		log.Printf("Failed to record assignment for order %s: %v", orderID, err)
	}

	s.mu.Lock()
	ws, connected := s.wsClients[courierID]
	s.mu.Unlock()
	if connected {
		msg := map[string]interface{}{
			"event":    "order_assigned",
			"order_id": orderID,
		}
		if err := ws.WriteJSON(msg); err != nil {
			log.Printf("Failed to push assignment to courier %s: %v", courierID, err)
		}
	}

	if err := s.logEvent(map[string]interface{}{
		"event":      "order_assigned",
		"order_id":   orderID,
		"courier_id": courierID,
	}); err != nil {
		log.Printf("Failed to log assignment event: %v", err)
	}
	return nil
}

// CheckCourierStatus periodically frees couriers whose GPS feed went
// silent mid-delivery and puts their order back on the queue.
func (s *TrackingServer) CheckCourierStatus() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		ctx := s.baseCtx
		keys, err := s.rdb.Keys(ctx, "courier:*").Result()
		if err != nil {
			log.Printf("Failed to get courier keys: %v", err)
			continue
		}

		active := 0
		for _, key := range keys {
			courierData, err := s.rdb.HGetAll(ctx, key).Result()
			if err != nil {
				continue
			}
			if courierData["is_active"] == "true" {
				active++
			}

			if courierData["is_busy"] == "true" {
				lastUpdate, _ := strconv.ParseInt(courierData["last_update"], 10, 64)
				if time.Now().Unix()-lastUpdate > 300 {
					s.handleCourierTimeout(strings.TrimPrefix(key, "courier:"))
				}
			}
		}
		activeCouriers.Set(float64(active))
	}
}

func (s *TrackingServer) handleCourierTimeout(courierID string) {
	ctx := s.baseCtx

	if err := s.rdb.HSet(ctx, "courier:"+courierID, "is_busy", "false").Err(); err != nil {
		log.Printf("Failed to reset courier status: %v", err)
		return
	}

	orderID, err := s.rdb.Get(ctx, "courier:"+courierID+":order").Result()
	if err != nil {
		return
	}

	ch, err := s.rabbitmq.Channel()
	if err != nil {
		return
	}
	defer ch.Close()

	err = ch.Publish(
		"",
		s.cfg.RabbitMQ.AssignQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "text/plain",
			Body:        []byte(orderID),
		},
	)
	if err != nil {
		log.Printf("Failed to return order to queue: %v", err)
	}

	if err := s.logEvent(map[string]interface{}{
		"event":      "courier_timeout",
		"courier_id": courierID,
		"order_id":   orderID,
	}); err != nil {
		log.Printf("Failed to log timeout event: %v", err)
	}
}

// Shutdown stops the sessions and closes the broker connections.
func (s *TrackingServer) Shutdown() {
	s.cancel()

	s.mu.Lock()
	sessions := make([]*tracker.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessions = make(map[string]*tracker.Session)
	s.mu.Unlock()
	for _, session := range sessions {
		session.Close()
	}

	if err := s.kafka.Close(); err != nil {
		log.Printf("Failed to close Kafka producer: %v", err)
	}
	if err := s.rabbitmq.Close(); err != nil {
		log.Printf("Failed to close RabbitMQ connection: %v", err)
	}
	if err := s.rdb.Close(); err != nil {
		log.Printf("Failed to close Redis client: %v", err)
	}
}
