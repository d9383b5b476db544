package server

import (
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ordersAssigned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "food_delivery_orders_assigned_total",
		Help: "The total number of orders assigned to couriers",
	})

	trackedOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "food_delivery_tracked_orders",
		Help: "The number of orders with a live tracking session",
	})

	activeCouriers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "food_delivery_active_couriers",
		Help: "The number of currently active couriers",
	})

	assignmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "food_delivery_assignment_duration_seconds",
		Help:    "Time spent finding a courier for an order",
		Buckets: prometheus.DefBuckets,
	})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "food_delivery_request_duration_seconds",
		Help:    "Time spent handling HTTP requests",
		Buckets: prometheus.DefBuckets,
	})
)

func (s *TrackingServer) MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		requestDuration.Observe(time.Since(start).Seconds())
		return err
	}
}

func PrometheusHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
