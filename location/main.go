package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"food-delivery/tracking/config"
	"food-delivery/tracking/location/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	app := fiber.New()
	locationServer := server.NewLocationServer(cfg.Redis.Addr, cfg.JWT.SecretKey)

	// WebSocket route with token validation
	app.Use("/ws", locationServer.ValidateToken)
	app.Get("/ws", websocket.New(locationServer.HandleWSConnection))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "location",
		})
	})

	log.Fatal(app.Listen(":9000"))
}
