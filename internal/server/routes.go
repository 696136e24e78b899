package server

import (
	"github.com/latticehq/lattice/internal/server/middleware"
	"github.com/latticehq/lattice/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Query routes
	apiRoutes.POST("/query", routes.QueryHandler)
	apiRoutes.POST("/query/answer", routes.QueryAnswerHandler)
}
