package main

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"

	"food-delivery/tracking/config"
	"food-delivery/tracking/models"
)

var (
	restaurants = make(map[string]*models.Restaurant)
	orders      = make(map[string][]models.Order)
	mux         sync.Mutex
)

func seedRestaurants() {
	seed := []struct {
		id, name string
		lng, lat float64
	}{
		{"r1", "Spice Garden", 79.8612, 6.9271},
		{"r2", "Galle Face Grill", 79.8448, 6.9225},
		{"r3", "Hill Kitchen", 80.6350, 7.2906},
	}
	for _, s := range seed {
		location, _ := json.Marshal(map[string]interface{}{
			"type":        "Point",
			"coordinates": []float64{s.lng, s.lat},
		})
		restaurants[s.id] = &models.Restaurant{
			ID:       s.id,
			Name:     s.name,
			Location: location,
			Verified: true,
			Open:     true,
		}
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	seedRestaurants()

	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal("Failed to open channel:", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare("orders", true, false, false, false, nil)
	if err != nil {
		log.Fatal("Failed to declare queue:", err)
	}

	msgs, err := ch.Consume("orders", "", true, false, false, false, nil)
	if err != nil {
		log.Fatal("Failed to register consumer:", err)
	}

	go func() {
		for d := range msgs {
			var order models.Order
			if err := json.Unmarshal(d.Body, &order); err != nil {
				log.Printf("Error processing order: %v", err)
				continue
			}
			if order.CreatedAt.IsZero() {
				order.CreatedAt = time.Now()
			}

			mux.Lock()
			orders[order.RestaurantID] = append(orders[order.RestaurantID], order)
			mux.Unlock()

			log.Printf("Recorded order %s for restaurant %s", order.ID, order.RestaurantID)
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	})

	app.Use(logger.New())

	// @Summary Get a restaurant profile with its location
	// @Tags Restaurant
	// @Produce json
	// @Success 200 {object} models.Restaurant
	// @Router /restaurant/{id} [get]
	app.Get("/restaurant/:id", func(c *fiber.Ctx) error {
		mux.Lock()
		defer mux.Unlock()

		restaurant, ok := restaurants[c.Params("id")]
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "restaurant not found")
		}
		return c.JSON(restaurant)
	})

	// @Summary Orders received by a restaurant
	// @Tags Restaurant
	// @Produce json
	// @Success 200 {array} models.Order
	// @Router /restaurant/{id}/orders [get]
	app.Get("/restaurant/:id/orders", func(c *fiber.Ctx) error {
		mux.Lock()
		defer mux.Unlock()
		return c.JSON(orders[c.Params("id")])
	})

	// @Summary Five highest-value orders for a restaurant
	// @Tags Restaurant
	// @Produce json
	// @Success 200 {array} models.Order
	// @Router /restaurant/{id}/orders/top [get]
	app.Get("/restaurant/:id/orders/top", func(c *fiber.Ctx) error {
		mux.Lock()
		list := append([]models.Order(nil), orders[c.Params("id")]...)
		mux.Unlock()

		sort.Slice(list, func(i, j int) bool {
			return list[i].RestaurantCost > list[j].RestaurantCost
		})
		return c.JSON(capOrders(list, 5))
	})

	// @Summary Five most recent orders for a restaurant
	// @Tags Restaurant
	// @Produce json
	// @Success 200 {array} models.Order
	// @Router /restaurant/{id}/orders/recent [get]
	app.Get("/restaurant/:id/orders/recent", func(c *fiber.Ctx) error {
		mux.Lock()
		list := append([]models.Order(nil), orders[c.Params("id")]...)
		mux.Unlock()

		sort.Slice(list, func(i, j int) bool {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		})
		return c.JSON(capOrders(list, 5))
	})

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "restaurant",
		})
	})

	port := ":3000"
	log.Printf("Restaurant service starting on %s", port)
	if err := app.Listen(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func capOrders(list []models.Order, n int) []models.Order {
	if len(list) > n {
		return list[:n]
	}
	return list
}
