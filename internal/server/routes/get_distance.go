package routes

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/greatvovan/bacon-number/internal/metrics"
	"github.com/greatvovan/bacon-number/internal/readiness"
	"github.com/greatvovan/bacon-number/internal/server/middleware"
	"github.com/greatvovan/bacon-number/pkg/distance"
	"github.com/greatvovan/bacon-number/pkg/logger"

	"github.com/labstack/echo/v4"
)

// distanceResponse renders an unreachable pair as {"dist": null}.
type distanceResponse struct {
	Dist *int     `json:"dist"`
	Path []string `json:"path,omitempty"`
}

func toResponse(d distance.Distance) distanceResponse {
	if !d.Reachable {
		return distanceResponse{}
	}
	n := d.Length
	return distanceResponse{Dist: &n, Path: d.Path}
}

func GetIndexHandler(c echo.Context) error {
	return c.String(http.StatusOK,
		"GET /bn?name={actor name}&path={true/false} for Bacon number\n"+
			"GET /dist?name1={actor name}&name2={actor name}&path={true/false} for arbitrary actors distance\n")
}

func GetBaconNumberHandler(c echo.Context) error {
	type getBaconNumberParams struct {
		Name string `query:"name" validate:"required"`
		Path bool   `query:"path"`
	}

	params := new(getBaconNumberParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing required parameter: name"})
	}

	start := time.Now()
	resolver := c.(*middleware.AppContext).App.Resolver
	d, err := resolver.BaconDistance(c.Request().Context(), params.Name, params.Path)
	return respondDistance(c, "bn", start, d, err)
}

func GetDistanceHandler(c echo.Context) error {
	type getDistanceParams struct {
		Name1 string `query:"name1" validate:"required"`
		Name2 string `query:"name2" validate:"required"`
		Path  bool   `query:"path"`
	}

	params := new(getDistanceParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing required parameters: name1, name2"})
	}

	start := time.Now()
	resolver := c.(*middleware.AppContext).App.Resolver
	d, err := resolver.DistanceByName(c.Request().Context(), params.Name1, params.Name2, params.Path)
	return respondDistance(c, "dist", start, d, err)
}

func respondDistance(c echo.Context, endpoint string, start time.Time, d distance.Distance, err error) error {
	outcome := "ok"
	defer func() {
		metrics.QueryDuration.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
	}()

	var notFound *distance.NotFoundError
	var notReady *readiness.NotReadyError
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, toResponse(d))
	case errors.As(err, &notFound):
		outcome = "not_found"
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "No actors with name " + strings.Join(notFound.Names, ", "),
		})
	case errors.As(err, &notReady):
		outcome = "not_ready"
		c.Response().Header().Set("Retry-After", strconv.Itoa(notReady.Seconds()))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Service is initializing"})
	default:
		outcome = "error"
		logger.Error("[Server] Distance query failed", "endpoint", endpoint, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}
