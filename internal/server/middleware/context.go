package middleware

import (
	"context"

	"github.com/greatvovan/bacon-number/internal/queue"
	"github.com/greatvovan/bacon-number/internal/readiness"
	"github.com/greatvovan/bacon-number/pkg/distance"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// GraphStatus is the part of the readiness coordinator the status routes
// read.
type GraphStatus interface {
	IsReady() bool
	Status() readiness.Status
}

// EventPublisher is satisfied by *queue.EventPublisher.
type EventPublisher interface {
	Publish(ctx context.Context, key string, ev queue.Event) error
}

type App struct {
	Resolver *distance.Resolver
	Graph    GraphStatus
	// Events is nil when no broker is configured; rebuilds then run in
	// this process.
	Events EventPublisher

	// Keyfunc verifies JWTs. Nil disables JWT auth.
	Keyfunc        jwt.Keyfunc
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

// AuthEnabled reports whether protected routes require credentials.
func (a *App) AuthEnabled() bool {
	return a.Keyfunc != nil || a.MasterAPIKey != ""
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
