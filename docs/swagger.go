package docs

import "github.com/swaggo/swag"

// @title Order Tracking API
// @version 1.0
// @description Delivery tracking, routing and courier assignment API
// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
var SwaggerInfo = &swag.Spec{
	Version:     "1.0",
	Host:        "localhost:8080",
	BasePath:    "/api/v1",
	Title:       "Order Tracking API",
	Description: "Delivery tracking, routing and courier assignment API",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
