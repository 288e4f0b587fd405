package server

import (
	"github.com/greatvovan/bacon-number/internal/server/middleware"
	"github.com/greatvovan/bacon-number/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	e.GET("/", routes.GetIndexHandler)
	e.GET("/health", routes.GetHealthHandler)
	e.GET("/status", routes.GetStatusHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Distance routes
	e.GET("/bn", routes.GetBaconNumberHandler)
	e.GET("/dist", routes.GetDistanceHandler)

	// Graph maintenance routes
	rebuild := e.Group("/rebuild-graph", middleware.AuthMiddleware, middleware.RequirePermission(middleware.PermissionRebuild))
	rebuild.POST("", routes.RebuildGraphHandler)
	rebuild.GET("", routes.RebuildGraphHandler)
}
