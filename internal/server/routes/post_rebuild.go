package routes

import (
	"net/http"

	"github.com/greatvovan/bacon-number/internal/metrics"
	"github.com/greatvovan/bacon-number/internal/queue"
	"github.com/greatvovan/bacon-number/internal/server/middleware"
	"github.com/greatvovan/bacon-number/pkg/logger"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type rebuildResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}

// RebuildGraphHandler accepts a rebuild and returns at once. With a broker
// configured the request is handed to the snapshot worker, otherwise the
// local coordinator rebuilds.
func RebuildGraphHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	metrics.RebuildRequests.WithLabelValues("http").Inc()

	if app.Events == nil {
		id := app.Resolver.RebuildGraph(c.Request().Context())
		return c.JSON(http.StatusAccepted, rebuildResponse{Message: "Rebuild started", JobID: id})
	}

	id, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, rebuildResponse{Message: "Internal server error"})
	}
	err = app.Events.Publish(c.Request().Context(), queue.RoutingRebuild, queue.Event{JobID: id, Source: "http"})
	if err != nil {
		logger.Error("[Server] Failed to publish rebuild request", "err", err)
		return c.JSON(http.StatusInternalServerError, rebuildResponse{Message: "Failed to queue rebuild"})
	}
	return c.JSON(http.StatusAccepted, rebuildResponse{Message: "Rebuild queued", JobID: id})
}
