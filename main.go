package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"

	"food-delivery/tracking/config"
	_ "food-delivery/tracking/docs"
	"food-delivery/tracking/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid config: ", err)
	}

	srv, err := server.NewTrackingServer(cfg)
	if err != nil {
		log.Fatal("Failed to initialize server:", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	// Middlewares
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())
	app.Use(srv.MetricsMiddleware())

	setupRoutes(app, srv)

	// Swagger
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Metrics endpoint
	app.Get("/metrics", server.PrometheusHandler())

	// WebSocket routes
	app.Use("/ws", srv.ValidateToken)
	app.Get("/ws", websocket.New(srv.HandleCourierWebSocket))
	app.Get("/track", websocket.New(srv.HandleTrackingWebSocket))

	// Start assignment consumer
	go srv.ConsumeAssignments()

	// Start courier status checker
	go srv.CheckCourierStatus()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
		srv.Shutdown()
	}()

	log.Printf("Tracking server starting on port %s", cfg.Server.Port)
	log.Fatal(app.Listen(":" + cfg.Server.Port))
}

func setupRoutes(app *fiber.App, srv *server.TrackingServer) {
	// Health check
	app.Get("/health", server.HealthCheck)

	// API v1
	v1 := app.Group("/api/v1")

	orders := v1.Group("/orders")
	orders.Get("/nearby", srv.GetNearbyOrders)
	orders.Put("/:id/status", srv.UpdateOrderStatus)

	delivery := v1.Group("/delivery")
	delivery.Post("/assign", srv.AssignOrder)

	track := v1.Group("/track")
	track.Get("/:id", srv.GetTrackingSnapshot)
	track.Post("/:id/map/retry", srv.RetryMap)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
