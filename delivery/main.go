package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/swagger"
	"github.com/streadway/amqp"

	"food-delivery/tracking/config"
	"food-delivery/tracking/geo"
	"food-delivery/tracking/models"
)

// @title Delivery Service API
// @version 1.0
// @description Courier assignment and delivery status service
// @host localhost:4000
// @BasePath /

type assignment struct {
	models.AssignmentRequest
	Status    models.OrderStatus `json:"status"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type deliveryOrder struct {
	OrderID string  `json:"order_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

var (
	rdb          *redis.Client
	assignments  = make(map[string]*assignment)
	asgMux       sync.Mutex
	updatesCh    *amqp.Channel
	updatesQueue string
	updatesMux   sync.Mutex
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	rdb = redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})

	go func() {
		for {
			conn, err := amqp.Dial(cfg.RabbitMQ.URL)
			if err != nil {
				log.Printf("RabbitMQ connection error: %v. Retrying in 5 seconds...", err)
				time.Sleep(5 * time.Second)
				continue
			}

			go consumeDeliveryOrders(conn, cfg)

			// Wait for connection to close
			<-conn.NotifyClose(make(chan *amqp.Error))
			log.Println("RabbitMQ connection lost. Reconnecting...")
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	})

	app.Use(logger.New())

	// Swagger route should be before other routes
	app.Get("/swagger/*", swagger.New(swagger.Config{
		Title: "Delivery Service API",
	}))

	// @Summary Get a delivery person with their last position
	// @Tags Delivery
	// @Produce json
	// @Success 200 {object} models.DeliveryPerson
	// @Router /delivery/deliveryPerson/{id} [get]
	app.Get("/delivery/deliveryPerson/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		person, err := loadDeliveryPerson(c.Context(), id)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "delivery person not found")
		}
		return c.JSON(person)
	})

	// @Summary Assign an order to a courier
	// @Tags Delivery
	// @Accept json
	// @Produce json
	// @Success 200 {object} map[string]string
	// @Router /delivery/assign [post]
	app.Post("/delivery/assign", func(c *fiber.Ctx) error {
		var req models.AssignmentRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid assignment body")
		}
		if req.ID == "" || req.DeliveryPersonID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "id and deliveryPersonId are required")
		}

		asgMux.Lock()
		if existing, ok := assignments[req.ID]; ok && existing.DeliveryPersonID != req.DeliveryPersonID {
			asgMux.Unlock()
			return fiber.NewError(fiber.StatusConflict, "order already assigned to another courier")
		}
		assignments[req.ID] = &assignment{
			AssignmentRequest: req,
			Status:            models.StatusAssigned,
			UpdatedAt:         time.Now(),
		}
		asgMux.Unlock()

		markCourierBusy(c.Context(), req.DeliveryPersonID, req.ID)
		publishUpdate(req.ID, models.StatusAssigned, req.DeliveryPersonID)

		return c.JSON(fiber.Map{"status": "assigned", "orderId": req.ID})
	})

	// @Summary Update the delivery status of an assigned order
	// @Tags Delivery
	// @Accept json
	// @Produce json
	// @Success 200 {object} map[string]string
	// @Router /delivery/{id}/status [put]
	app.Put("/delivery/:id/status", func(c *fiber.Ctx) error {
		orderID := c.Params("id")

		var req models.StatusUpdateRequest
		if err := c.BodyParser(&req); err != nil || req.Status == "" {
			return fiber.NewError(fiber.StatusBadRequest, "status is required")
		}

		asgMux.Lock()
		asg, ok := assignments[orderID]
		if !ok {
			asg = &assignment{}
			asg.ID = orderID
			assignments[orderID] = asg
		}
		asg.Status = req.Status
		asg.UpdatedAt = time.Now()
		courierID := asg.DeliveryPersonID
		asgMux.Unlock()

		if req.Status == models.StatusDelivered && courierID != "" {
			freeCourier(c.Context(), courierID, orderID)
		}
		publishUpdate(orderID, req.Status, courierID)

		return c.JSON(fiber.Map{"status": string(req.Status), "orderId": orderID})
	})

	// @Summary List current assignments
	// @Tags Delivery
	// @Produce json
	// @Success 200 {array} assignment
	// @Router /delivery/assignments [get]
	app.Get("/delivery/assignments", func(c *fiber.Ctx) error {
		asgMux.Lock()
		defer asgMux.Unlock()

		var out []*assignment
		for _, asg := range assignments {
			out = append(out, asg)
		}
		return c.JSON(out)
	})

	// @Summary Health check
	// @Tags Health
	// @Success 200 {object} map[string]string
	// @Router /health [get]
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "Delivery service running",
		})
	})

	port := ":4000"
	log.Printf("Delivery service starting on %s", port)
	if err := app.Listen(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func loadDeliveryPerson(ctx context.Context, id string) (*models.DeliveryPerson, error) {
	data, err := rdb.HGetAll(ctx, "courier:"+id).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("courier %s not found", id)
	}
	return deliveryPersonFromHash(id, data), nil
}

func deliveryPersonFromHash(id string, data map[string]string) *models.DeliveryPerson {
	person := &models.DeliveryPerson{
		ID:        id,
		Verified:  true,
		Available: data["is_busy"] != "true",
	}
	if raw, ok := data["last_update"]; ok {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
			person.LastUpdate = ts
		}
	}

	lat, _ := strconv.ParseFloat(data["latitude"], 64)
	lng, _ := strconv.ParseFloat(data["longitude"], 64)
	if data["is_active"] == "true" && geo.IsValidGPS(geo.Coordinate{lng, lat}) {
		location, err := json.Marshal(map[string]float64{"lat": lat, "lng": lng})
		if err == nil {
			person.CurrentLocation = location
		}
	}
	return person
}

func markCourierBusy(ctx context.Context, courierID, orderID string) {
	pipe := rdb.Pipeline()
	pipe.HSet(ctx, "courier:"+courierID, "is_busy", "true")
	pipe.Set(ctx, "courier:"+courierID+":order", orderID, 0)
	pipe.Set(ctx, "order:"+orderID+":courier", courierID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("Failed to mark courier %s busy: %v", courierID, err)
	}
}

func freeCourier(ctx context.Context, courierID, orderID string) {
	pipe := rdb.Pipeline()
	pipe.HSet(ctx, "courier:"+courierID, "is_busy", "false")
	pipe.Del(ctx, "courier:"+courierID+":order", "order:"+orderID+":courier")
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("Failed to free courier %s: %v", courierID, err)
	}
}

func consumeDeliveryOrders(conn *amqp.Connection, cfg *config.Config) {
	ch, err := conn.Channel()
	if err != nil {
		log.Printf("Channel error: %v", err)
		return
	}
	defer ch.Close()

	ordersQueue, err := ch.QueueDeclare(
		cfg.RabbitMQ.AssignQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		log.Printf("Failed to declare %s queue: %v", cfg.RabbitMQ.AssignQueue, err)
		return
	}

	_, err = ch.QueueDeclare(cfg.RabbitMQ.UpdatesQueue, true, false, false, false, nil)
	if err != nil {
		log.Printf("Failed to declare %s queue: %v", cfg.RabbitMQ.UpdatesQueue, err)
		return
	}

	updatesMux.Lock()
	updatesCh = ch
	updatesQueue = cfg.RabbitMQ.UpdatesQueue
	updatesMux.Unlock()

	msgs, err := ch.Consume(ordersQueue.Name, "", true, false, false, false, nil)
	if err != nil {
		log.Fatal("Consume error:", err)
	}

	for d := range msgs {
		var order deliveryOrder
		if err := json.Unmarshal(d.Body, &order); err != nil {
			log.Printf("Failed to parse order: %v", err)
			continue
		}
		go processDeliveryOrder(order)
	}
}

func processDeliveryOrder(order deliveryOrder) {
	ctx := context.Background()
	pickup := geo.Coordinate{order.Lng, order.Lat}

	courierID := findNearestCourier(ctx, pickup)
	if courierID == "" {
		log.Printf("No available couriers for order %s", order.OrderID)
		publishUpdate(order.OrderID, "failed", "")
		return
	}

	asgMux.Lock()
	asg := &assignment{Status: models.StatusAssigned, UpdatedAt: time.Now()}
	asg.ID = order.OrderID
	asg.DeliveryPersonID = courierID
	assignments[order.OrderID] = asg
	asgMux.Unlock()

	markCourierBusy(ctx, courierID, order.OrderID)
	publishUpdate(order.OrderID, models.StatusAssigned, courierID)
}

func findNearestCourier(ctx context.Context, from geo.Coordinate) string {
	keys, err := rdb.Keys(ctx, "courier:*").Result()
	if err != nil {
		return ""
	}

	var nearestID string
	minDistance := -1.0
	for _, key := range keys {
		if strings.HasSuffix(key, ":order") {
			continue
		}
		data, err := rdb.HGetAll(ctx, key).Result()
		if err != nil {
			continue
		}
		if data["is_active"] != "true" || data["is_busy"] == "true" {
			continue
		}

		lat, _ := strconv.ParseFloat(data["latitude"], 64)
		lng, _ := strconv.ParseFloat(data["longitude"], 64)
		point := geo.Coordinate{lng, lat}
		if !geo.IsValidGPS(point) {
			continue
		}

		dist := geo.DistanceKm(from, point)
		if minDistance < 0 || dist < minDistance {
			minDistance = dist
			nearestID = strings.TrimPrefix(key, "courier:")
		}
	}
	return nearestID
}

func publishUpdate(orderID string, status models.OrderStatus, courierID string) {
	updatesMux.Lock()
	ch := updatesCh
	queue := updatesQueue
	updatesMux.Unlock()
	if ch == nil {
		return
	}

	update := map[string]interface{}{
		"order_id":    orderID,
		"status":      status,
		"delivery_id": courierID,
		"timestamp":   time.Now().Unix(),
	}
	body, _ := json.Marshal(update)

	err := ch.Publish("", queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		log.Printf("Failed to publish update for order %s: %v", orderID, err)
	}
}
