package routes

import (
	"net/http"

	"github.com/greatvovan/bacon-number/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

func GetHealthHandler(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// GetStatusHandler reports coordinator status, with 503 until a graph is
// published so it can serve as a readiness probe.
func GetStatusHandler(c echo.Context) error {
	g := c.(*middleware.AppContext).App.Graph
	code := http.StatusOK
	if !g.IsReady() {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, g.Status())
}
